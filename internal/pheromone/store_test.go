package pheromone

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/migrantcolony/stigctl/internal/statemachine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestCreateAndReadTask(t *testing.T) {
	s := newTestStore(t)
	entry := TaskEntry{Intensity: 0.8, PatternCount: 3, DetectionSource: DetectionStructural}
	require.NoError(t, s.CreateTask("a.go", entry, "discover"))

	got, err := s.ReadTask("a.go")
	require.NoError(t, err)
	require.Equal(t, 0.8, got.Intensity)
}

func TestCreateTaskTwiceFails(t *testing.T) {
	s := newTestStore(t)
	entry := TaskEntry{Intensity: 0.5}
	require.NoError(t, s.CreateTask("a.go", entry, "discover"))
	err := s.CreateTask("a.go", entry, "discover")
	require.Error(t, err)
}

func TestUpdateTaskUnknownField(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTask("a.go", TaskEntry{Intensity: 1}, "discover"))
	err := s.UpdateTask("a.go", map[string]any{"bogus": 1}, "discover")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestStatusTransitionValidation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))

	// pending -> in_progress by transform is valid
	err := s.UpdateStatus("a.go", map[string]any{
		"status":              StatusInProgress,
		"lock_owner":          "transform",
		"lock_acquired_tick":  1,
	}, string(statemachine.ActorTransform))
	require.NoError(t, err)

	// in_progress -> validated is never valid
	err = s.UpdateStatus("a.go", map[string]any{"status": StatusValidated}, string(statemachine.ActorValidate))
	require.Error(t, err)
	var invalidTransition *statemachine.ErrInvalidTransition
	require.True(t, errors.As(err, &invalidTransition) || errors.Is(err, ErrTransitionInvalid))
}

func TestScopeLockViolation(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{
		"status":             StatusInProgress,
		"lock_owner":         "transform",
		"lock_acquired_tick": 1,
	}, string(statemachine.ActorTransform)))

	// test trying to touch a file locked by transform is rejected
	err := s.UpdateStatus("a.go", map[string]any{"retry_count": 1}, string(statemachine.ActorTest))
	require.ErrorIs(t, err, ErrLockViolation)

	// system maintenance is exempt from the lock check
	err = s.UpdateStatus("a.go", map[string]any{"status": StatusPending, "lock_owner": ""}, string(statemachine.ActorSystem))
	require.NoError(t, err)
}

func TestQueryStatusFilters(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.CreateStatus("b.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.UpdateStatus("b.go", map[string]any{
		"status":             StatusInProgress,
		"lock_owner":         "transform",
		"lock_acquired_tick": 1,
	}, string(statemachine.ActorTransform)))

	pending, err := s.QueryStatus(Eq("status", StatusPending))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	_, ok := pending["a.go"]
	require.True(t, ok)
}

func TestAuditCompletenessIsOne(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTask("a.go", TaskEntry{Intensity: 1}, "discover"))
	require.NoError(t, s.UpdateTask("a.go", map[string]any{"intensity": 0.9}, "discover"))

	completeness, err := s.AuditCompleteness()
	require.NoError(t, err)
	require.Equal(t, 1.0, completeness)
}

func TestMaintainStatusReleasesZombieLocks(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{
		"status":             StatusInProgress,
		"lock_owner":         "transform",
		"lock_acquired_tick": 1,
	}, string(statemachine.ActorTransform)))

	require.NoError(t, s.MaintainStatus(10)) // well past default TTL of 3

	got, err := s.ReadStatus("a.go")
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.False(t, got.Locked())
	require.Equal(t, int64(10), got.PendingSinceTick)
}

func TestMaintainStatusPromotesRetry(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{
		"status":             StatusInProgress,
		"lock_owner":         "transform",
		"lock_acquired_tick": 1,
	}, string(statemachine.ActorTransform)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{"status": StatusFailed, "lock_owner": ""}, string(statemachine.ActorTransform)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{"status": StatusRetry}, string(statemachine.ActorValidate)))

	require.NoError(t, s.MaintainStatus(1))

	got, err := s.ReadStatus("a.go")
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, int64(1), got.PendingSinceTick)
}

func TestApplyDecaySkipsWorkingFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateTask("a.go", TaskEntry{Intensity: 1.0}, "discover"))
	require.NoError(t, s.CreateStatus("a.go", StatusEntry{Status: StatusPending}, string(statemachine.ActorDiscover)))
	require.NoError(t, s.UpdateStatus("a.go", map[string]any{
		"status":             StatusInProgress,
		"lock_owner":         "transform",
		"lock_acquired_tick": 1,
	}, string(statemachine.ActorTransform)))

	require.NoError(t, s.ApplyDecay())

	task, err := s.ReadTask("a.go")
	require.NoError(t, err)
	require.Equal(t, 1.0, task.Intensity) // exempt while in_progress
}
