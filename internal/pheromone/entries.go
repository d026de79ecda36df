// Package pheromone implements the shared, stigmergic coordination medium:
// three typed maps (tasks, status, quality) plus an append-only audit log.
// Role runtimes never talk to each other directly — they read and write this
// store, which is the only channel through which coordination happens.
package pheromone

import (
	"time"

	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// MapName identifies one of the three persisted maps.
type MapName string

const (
	MapTasks  MapName = "tasks"
	MapStatus MapName = "status"
	MapQuality MapName = "quality"
)

// DetectionSource tags how a task's patterns were found.
type DetectionSource string

const (
	DetectionStructural DetectionSource = "structural"
	DetectionTextual    DetectionSource = "textual"
	DetectionSemantic   DetectionSource = "semantic"
)

// TaskEntry is the task pheromone: priority and detected-pattern data
// for one file. Entries are created once by Discover and retained for the
// full run, even after their intensity has decayed to the floor.
type TaskEntry struct {
	Intensity      float64         `json:"intensity"`
	PatternCount   int             `json:"pattern_count"`
	DepCount       int             `json:"dep_count"`
	PatternsFound  []string        `json:"patterns_found,omitempty"`
	DetectionSource DetectionSource `json:"detection_source"`
	CreatedAt      time.Time       `json:"created_at"`
	CreatedBy      string          `json:"created_by"`
}

// Status is an alias of the state machine's lifecycle enum; the
// pheromone store is the only thing that persists it, the state machine is
// the only thing that knows how it may change.
type Status = statemachine.Status

const (
	StatusPending     = statemachine.StatusPending
	StatusInProgress  = statemachine.StatusInProgress
	StatusTransformed = statemachine.StatusTransformed
	StatusTested      = statemachine.StatusTested
	StatusValidated   = statemachine.StatusValidated
	StatusNeedsReview = statemachine.StatusNeedsReview
	StatusFailed      = statemachine.StatusFailed
	StatusRetry       = statemachine.StatusRetry
	StatusSkipped     = statemachine.StatusSkipped
)

// StatusEntry is the status pheromone: the per-file lifecycle state plus
// the scope lock and anti-oscillation inhibition field.
type StatusEntry struct {
	Status            Status         `json:"status"`
	PreviousStatus    Status         `json:"previous_status,omitempty"`
	Agent             string         `json:"agent"`
	Timestamp         time.Time      `json:"timestamp"`
	RetryCount        int            `json:"retry_count"`
	Inhibition        float64        `json:"inhibition"`
	LockOwner         string         `json:"lock_owner,omitempty"`
	LockAcquiredTick  int64          `json:"lock_acquired_tick,omitempty"`
	PendingSinceTick  int64          `json:"pending_since_tick,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Locked reports whether any role currently holds the scope lock.
func (e StatusEntry) Locked() bool {
	return e.LockOwner != ""
}

// Classification is the Test-role verdict on a transformed file.
type Classification string

const (
	ClassificationPass             Classification = "pass"
	ClassificationFailRelated      Classification = "fail_related"
	ClassificationFailInconclusive Classification = "fail_inconclusive"
	ClassificationCompileFail      Classification = "compile_fail"
	ClassificationNoTests          Classification = "no_tests"
)

// QualityEntry is the quality pheromone: Test/Validate's confidence and
// diagnostic trail for one file.
type QualityEntry struct {
	Confidence     float64        `json:"confidence"`
	TestsTotal     int            `json:"tests_total"`
	TestsPassed    int            `json:"tests_passed"`
	TestsFailed    int            `json:"tests_failed"`
	Coverage       *float64       `json:"coverage,omitempty"`
	Issues         []string       `json:"issues,omitempty"`
	Classification Classification `json:"classification"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Operation is the kind of mutation recorded in an audit event.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// AuditEvent is the append-only record of a single map mutation.
type AuditEvent struct {
	Timestamp      time.Time      `json:"timestamp"`
	Role           string         `json:"role"`
	MapName        MapName        `json:"map_name"`
	FileID         string         `json:"file_id"`
	Operation      Operation      `json:"operation"`
	FieldsChanged  map[string]any `json:"fields_changed"`
	PreviousValues map[string]any `json:"previous_values"`
}

// Complete reports whether the event carries full before/after values for
// every changed field, which is the basis of the audit_completeness metric.
func (e AuditEvent) Complete() bool {
	if e.FieldsChanged == nil {
		return false
	}
	if e.Operation == OpUpdate && e.PreviousValues == nil {
		return false
	}
	for k := range e.FieldsChanged {
		if e.Operation == OpUpdate {
			if _, ok := e.PreviousValues[k]; !ok {
				return false
			}
		}
	}
	return true
}
