// Package roles implements the four role variants (Discover, Transform,
// Test, Validate) as one shared five-step runtime cycle configured
// by a data-driven descriptor, rather than four separate types with
// duplicated perceive/decide/execute/deposit plumbing.
package roles

import (
	"context"
	"fmt"

	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// Descriptor is one role's behavior, expressed as the five steps:
// perceive reads the pheromone store for candidate files, shouldAct filters
// them, decide picks one action and its inputs, execute calls the
// effector, and deposit writes the result back to the store. decision and
// result are role-specific and passed through as opaque values.
type Descriptor struct {
	Actor     statemachine.Actor
	Perceive  func(ctx context.Context) ([]Candidate, error)
	ShouldAct func(c Candidate) bool
	Decide    func(ctx context.Context, c Candidate) (decision any, err error)
	Execute   func(ctx context.Context, c Candidate, decision any) (result any, err error)
	Deposit   func(c Candidate, result any) error
}

// Candidate is one file under consideration by a role this tick.
type Candidate struct {
	FileID string
}

// Runtime executes one Descriptor's cycle.
type Runtime struct {
	Descriptor Descriptor
}

// New wraps a Descriptor in a Runtime.
func New(d Descriptor) *Runtime {
	return &Runtime{Descriptor: d}
}

// CycleResult summarizes one role activation for the tick orchestrator and
// metrics collector.
type CycleResult struct {
	Actor     statemachine.Actor
	Perceived int
	Acted     int
	Errors    []error
}

// Run executes perceive -> (shouldAct -> decide -> execute -> deposit) for
// every candidate the role perceives this tick. A single candidate's
// failure is recorded and does not abort the rest of the cycle — one bad
// file must not starve every other file's progress.
func (r *Runtime) Run(ctx context.Context) (CycleResult, error) {
	d := r.Descriptor
	res := CycleResult{Actor: d.Actor}

	candidates, err := d.Perceive(ctx)
	if err != nil {
		return res, fmt.Errorf("roles: %s perceive: %w", d.Actor, err)
	}
	res.Perceived = len(candidates)

	for _, c := range candidates {
		if d.ShouldAct != nil && !d.ShouldAct(c) {
			continue
		}
		decision, err := d.Decide(ctx, c)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s decide %s: %w", d.Actor, c.FileID, err))
			continue
		}
		result, err := d.Execute(ctx, c, decision)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s execute %s: %w", d.Actor, c.FileID, err))
			continue
		}
		if err := d.Deposit(c, result); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s deposit %s: %w", d.Actor, c.FileID, err))
			continue
		}
		res.Acted++
	}
	return res, nil
}
