package pheromone

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateLegacyAuditLog(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)

	legacy := `
entries:
  - file_id: a.go
    operation: create
    actor: discover
    timestamp: "2025-01-02T15:04:05Z"
    note: initial scan
  - file_id: a.go
    operation: update
    actor: transform
    timestamp: "2025-01-02T16:00:00Z"
`
	path := filepath.Join(t.TempDir(), "legacy_audit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	n, err := MigrateLegacyAuditLog(store, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	events, err := store.AuditEvents()
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "discover", events[0].Role)
	require.Equal(t, OpCreate, events[0].Operation)
	require.Equal(t, "transform", events[1].Role)
	require.Equal(t, OpUpdate, events[1].Operation)
	require.True(t, events[0].Complete())
	require.True(t, events[1].Complete())
}

func TestMigrateLegacyAuditLog_MissingFile(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	_, err = MigrateLegacyAuditLog(store, filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
