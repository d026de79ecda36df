package pheromone

import (
	"github.com/migrantcolony/stigctl/internal/decay"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// ApplyDecay runs one tick of decay: task intensity decays for every
// file not currently "working" (in_progress/transformed/tested are
// exempt), and every status entry's inhibition field decays unconditionally.
// Both maps are read once and written back entry by entry so each mutation
// gets its own audit event, preserving per-field audit_completeness.
func (s *Store) ApplyDecay() error {
	statuses, err := s.status.ReadAll()
	if err != nil {
		return err
	}

	tasks, err := s.tasks.ReadAll()
	if err != nil {
		return err
	}
	for id, task := range tasks {
		st, hasStatus := statuses[id]
		if hasStatus && st.Status.Working() {
			continue
		}
		next := decay.Intensity(task.Intensity, s.rates)
		if next == task.Intensity {
			continue
		}
		if err := s.UpdateTask(id, map[string]any{"intensity": next}, string(statemachine.ActorSystem)); err != nil {
			return err
		}
	}

	for id, st := range statuses {
		next := decay.Inhibition(st.Inhibition, s.rates)
		if next == st.Inhibition {
			continue
		}
		if err := s.UpdateStatus(id, map[string]any{"inhibition": next}, string(statemachine.ActorSystem)); err != nil {
			return err
		}
	}
	return nil
}

// MaintainStatus runs tick-start maintenance:
// releasing zombie scope locks whose TTL has expired (in_progress -> pending)
// and promoting retry-flagged files back into the pending pool so Transform
// can pick them up again.
func (s *Store) MaintainStatus(currentTick int64) error {
	statuses, err := s.status.ReadAll()
	if err != nil {
		return err
	}
	for id, st := range statuses {
		switch {
		case st.Status == StatusInProgress && st.Locked() && guardrails.LockExpired(st.LockAcquiredTick, currentTick, s.limits):
			changes := map[string]any{
				"status":             StatusPending,
				"lock_owner":         "",
				"pending_since_tick": currentTick,
			}
			if err := s.UpdateStatus(id, changes, string(statemachine.ActorSystem)); err != nil {
				return err
			}
		case st.Status == StatusRetry:
			changes := map[string]any{
				"status":             StatusPending,
				"pending_since_tick": currentTick,
			}
			if err := s.UpdateStatus(id, changes, string(statemachine.ActorSystem)); err != nil {
				return err
			}
		}
	}
	return nil
}
