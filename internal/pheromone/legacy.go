package pheromone

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// legacyAuditEntry is a single step in the pre-stigctl YAML audit format,
// the shape an earlier tool wrote chain-of-custody records in before this
// store's JSONL audit log existed.
type legacyAuditEntry struct {
	FileID    string `yaml:"file_id"`
	Operation string `yaml:"operation"`
	Actor     string `yaml:"actor"`
	Timestamp string `yaml:"timestamp"`
	Note      string `yaml:"note,omitempty"`
}

type legacyAuditFile struct {
	Entries []legacyAuditEntry `yaml:"entries"`
}

// MigrateLegacyAuditLog reads a legacy YAML audit file and appends its
// entries to the store's JSONL audit log as synthetic AuditEvents, so a
// store opened against data from before the JSONL format existed keeps a
// continuous chain-of-custody rather than silently dropping history.
func MigrateLegacyAuditLog(s *Store, legacyPath string) (int, error) {
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return 0, fmt.Errorf("read legacy audit log: %w", err)
	}

	var legacy legacyAuditFile
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return 0, fmt.Errorf("parse legacy audit log: %w", err)
	}

	for _, e := range legacy.Entries {
		ts := parseLegacyTimestamp(e.Timestamp)
		op := OpCreate
		if e.Operation == string(OpUpdate) {
			op = OpUpdate
		}
		event := AuditEvent{
			Timestamp: ts,
			Role:      e.Actor,
			MapName:   MapStatus,
			FileID:    e.FileID,
			Operation: op,
			FieldsChanged: map[string]any{
				"migrated_note": e.Note,
			},
			PreviousValues: map[string]any{
				"migrated_note": "",
			},
		}
		if err := s.audit.Append(event); err != nil {
			return 0, fmt.Errorf("append migrated entry for %s: %w", e.FileID, err)
		}
	}

	return len(legacy.Entries), nil
}

func parseLegacyTimestamp(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
