package roles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

type fakeModel struct {
	patch   string
	tokens  int64
	dollars float64
	err     error
}

func (f *fakeModel) Generate(ctx context.Context, req effector.Generation) (effector.GenerationResult, error) {
	if f.err != nil {
		return effector.GenerationResult{}, f.err
	}
	return effector.GenerationResult{Patch: f.patch, TokensUsed: f.tokens, DollarsSpent: f.dollars}, nil
}

func seedPendingTask(t *testing.T, store *pheromone.Store, fileID string) {
	t.Helper()
	require.NoError(t, store.CreateTask(fileID, pheromone.TaskEntry{
		Intensity: 0.5,
		CreatedAt: clock.Now(),
		CreatedBy: string(statemachine.ActorDiscover),
	}, string(statemachine.ActorDiscover)))
	require.NoError(t, store.CreateStatus(fileID, pheromone.StatusEntry{
		Status:    pheromone.StatusPending,
		Agent:     string(statemachine.ActorDiscover),
		Timestamp: clock.Now(),
	}, string(statemachine.ActorDiscover)))
}

func TestTransform_WritesPatchAndMarksTransformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))

	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)
	seedPendingTask(t, store, "a.go")

	model := &fakeModel{patch: "package a\n\n// migrated", tokens: 10, dollars: 0.01}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	currentTick := func() int64 { return 1 }

	rt := NewTransform(store, model, budget, dir, currentTick, 0, 0.1, 0.1)
	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Acted)

	status, err := store.ReadStatus("a.go")
	require.NoError(t, err)
	require.Equal(t, pheromone.StatusTransformed, status.Status)
	require.Empty(t, status.LockOwner)

	content, err := os.ReadFile(filepath.Join(dir, "a.go"))
	require.NoError(t, err)
	require.Contains(t, string(content), "migrated")

	tokens, dollars := budget.Spent()
	require.Equal(t, int64(10), tokens)
	require.InDelta(t, 0.01, dollars, 1e-9)
}

func TestTransform_EmptyPatchMarksFailed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))

	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)
	seedPendingTask(t, store, "a.go")

	model := &fakeModel{patch: ""}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	rt := NewTransform(store, model, budget, dir, func() int64 { return 1 }, 0, 0.1, 0.1)

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Acted)

	status, err := store.ReadStatus("a.go")
	require.NoError(t, err)
	require.Equal(t, pheromone.StatusFailed, status.Status)
}

func TestTransform_InhibitedFileNotSelected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))

	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)
	seedPendingTask(t, store, "a.go")
	require.NoError(t, store.UpdateStatus("a.go", map[string]any{"inhibition": 0.5}, string(statemachine.ActorValidate)))

	model := &fakeModel{patch: "package a\n// migrated"}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	rt := NewTransform(store, model, budget, dir, func() int64 { return 1 }, 0, 0.1, 0.1)

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Perceived)

	status, err := store.ReadStatus("a.go")
	require.NoError(t, err)
	require.Equal(t, pheromone.StatusPending, status.Status)
}

func TestTransform_BelowIntensityFloorNotSelected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0644))

	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.CreateTask("a.go", pheromone.TaskEntry{
		Intensity: 0.05,
		CreatedAt: clock.Now(),
		CreatedBy: string(statemachine.ActorDiscover),
	}, string(statemachine.ActorDiscover)))
	require.NoError(t, store.CreateStatus("a.go", pheromone.StatusEntry{
		Status:    pheromone.StatusPending,
		Agent:     string(statemachine.ActorDiscover),
		Timestamp: clock.Now(),
	}, string(statemachine.ActorDiscover)))

	model := &fakeModel{patch: "package a\n// migrated"}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	rt := NewTransform(store, model, budget, dir, func() int64 { return 1 }, 0, 0.1, 0.1)

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Perceived)
}

func TestTransform_AgingBoostPrefersIdleLowerIntensityFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"fresh.go", "idle.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("package x"), 0644))
	}
	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.CreateTask("fresh.go", pheromone.TaskEntry{
		Intensity: 0.5, CreatedAt: clock.Now(), CreatedBy: string(statemachine.ActorDiscover),
	}, string(statemachine.ActorDiscover)))
	require.NoError(t, store.CreateStatus("fresh.go", pheromone.StatusEntry{
		Status: pheromone.StatusPending, Timestamp: clock.Now(), PendingSinceTick: 100,
	}, string(statemachine.ActorDiscover)))

	require.NoError(t, store.CreateTask("idle.go", pheromone.TaskEntry{
		Intensity: 0.45, CreatedAt: clock.Now(), CreatedBy: string(statemachine.ActorDiscover),
	}, string(statemachine.ActorDiscover)))
	require.NoError(t, store.CreateStatus("idle.go", pheromone.StatusEntry{
		Status: pheromone.StatusPending, Timestamp: clock.Now(), PendingSinceTick: 0,
	}, string(statemachine.ActorDiscover)))

	model := &fakeModel{patch: "package x\n// patched"}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	// idle.go has been pending for 100 ticks: boost caps at 0.08, so its
	// 0.45 + 0.08 = 0.53 effective score beats fresh.go's bare 0.5.
	rt := NewTransform(store, model, budget, dir, func() int64 { return 100 }, 1, 0.1, 0.1)

	_, err = rt.Run(context.Background())
	require.NoError(t, err)

	idle, err := store.ReadStatus("idle.go")
	require.NoError(t, err)
	require.Equal(t, pheromone.StatusTransformed, idle.Status)

	fresh, err := store.ReadStatus("fresh.go")
	require.NoError(t, err)
	require.Equal(t, pheromone.StatusPending, fresh.Status)
}

func TestTransform_MaxBatchLimitsCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("package x"), 0644))
	}
	store, err := pheromone.Open(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		seedPendingTask(t, store, name)
	}

	model := &fakeModel{patch: "package x\n// patched"}
	budget := guardrails.NewBudget(guardrails.DefaultLimits())
	rt := NewTransform(store, model, budget, dir, func() int64 { return 1 }, 1, 0.1, 0.1)

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Perceived)
}
