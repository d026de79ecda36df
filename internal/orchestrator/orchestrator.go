// Package orchestrator drives the round-robin tick loop: one tick
// is maintenance, then decay, then each of the four roles activates in a
// fixed order, then the stop condition is evaluated.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/metrics"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/roles"
)

// StopReason names why a run ended, matching the stop conditions.
type StopReason string

const (
	StopNone            StopReason = ""
	StopAllTerminal     StopReason = "all_terminal"
	StopBudgetExhausted StopReason = "budget_exhausted"
	StopMaxTicks        StopReason = "max_ticks"
	StopIdleCycles      StopReason = "idle_cycles"
)

// Limits bounds a run independently of the per-file guardrails in
// internal/guardrails.
type Limits struct {
	MaxTicks        int64
	MaxIdleCycles   int64 // consecutive ticks with zero role activity
}

// Orchestrator owns the fixed activation order and the stop-condition
// evaluation for one run.
type Orchestrator struct {
	Store   *pheromone.Store
	Clock   *clock.Clock
	Budget  *guardrails.Budget
	Metrics *metrics.Collector
	Limits  Limits

	// Roles run in this fixed order every tick: discover, transform,
	// test, validate.
	Discover  *roles.Runtime
	Transform *roles.Runtime
	Test      *roles.Runtime
	Validate  *roles.Runtime

	// OnTick, if set, is called once per completed tick with the tick
	// number and the count of role activations, for callers that want to
	// drive a progress indicator without owning the loop themselves.
	OnTick func(tick int64, activity int)

	idleCycles int64
}

// Run executes ticks until a stop condition is reached, returning why it
// stopped.
func (o *Orchestrator) Run(ctx context.Context) (StopReason, error) {
	for {
		select {
		case <-ctx.Done():
			return StopReason(ctx.Err().Error()), ctx.Err()
		default:
		}

		reason, err := o.tick(ctx)
		if err != nil {
			return StopNone, err
		}
		if reason != StopNone {
			return reason, nil
		}
	}
}

// tick runs one full cycle: maintenance, decay, the four roles in order,
// then stop-condition evaluation and metrics emission.
func (o *Orchestrator) tick(ctx context.Context) (StopReason, error) {
	currentTick := o.Clock.Advance()

	if err := o.Store.MaintainStatus(int64(currentTick)); err != nil {
		return StopNone, fmt.Errorf("orchestrator: maintenance: %w", err)
	}
	if err := o.Store.ApplyDecay(); err != nil {
		return StopNone, fmt.Errorf("orchestrator: decay: %w", err)
	}

	var activity int
	for _, r := range []*roles.Runtime{o.Discover, o.Transform, o.Test, o.Validate} {
		if r == nil {
			continue
		}
		res, err := r.Run(ctx)
		if err != nil {
			return StopNone, fmt.Errorf("orchestrator: tick %d: %w", currentTick, err)
		}
		activity += res.Acted
		if o.Metrics != nil {
			o.Metrics.RecordRoleActivation(int64(currentTick), res)
		}
	}

	if activity == 0 {
		o.idleCycles++
	} else {
		o.idleCycles = 0
	}

	if o.OnTick != nil {
		o.OnTick(int64(currentTick), activity)
	}

	reason, err := o.evaluateStop(int64(currentTick))
	if err != nil {
		return StopNone, err
	}

	if o.Metrics != nil {
		if err := o.Metrics.EmitTick(int64(currentTick), o.Store); err != nil {
			return StopNone, fmt.Errorf("orchestrator: emit tick metrics: %w", err)
		}
		if reason != StopNone {
			if err := o.Metrics.Finalize(o.Store, string(reason), int64(currentTick)); err != nil {
				return StopNone, fmt.Errorf("orchestrator: finalize metrics: %w", err)
			}
		}
	}
	return reason, nil
}

// evaluateStop implements the stop-condition priority: budget first
// (a hard external ceiling), then max_ticks, then idle_cycles, then
// all_terminal as the natural success path.
func (o *Orchestrator) evaluateStop(currentTick int64) (StopReason, error) {
	if o.Budget != nil && o.Budget.Exhausted() {
		return StopBudgetExhausted, nil
	}
	if o.Limits.MaxTicks > 0 && currentTick >= o.Limits.MaxTicks {
		return StopMaxTicks, nil
	}
	if o.Limits.MaxIdleCycles > 0 && o.idleCycles >= o.Limits.MaxIdleCycles {
		return StopIdleCycles, nil
	}

	statuses, err := o.Store.ReadAllStatus()
	if err != nil {
		return StopNone, err
	}
	if len(statuses) == 0 {
		return StopNone, nil
	}
	for _, st := range statuses {
		if !st.Status.LoopTerminal() {
			return StopNone, nil
		}
	}
	return StopAllTerminal, nil
}
