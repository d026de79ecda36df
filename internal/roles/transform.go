package roles

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// agingBoostCap and agingBoostPerTick bound the starvation-prevention term
// in Transform's priority score: a file stuck in pending gains at most
// agingBoostCap regardless of how many ticks it waits.
const (
	agingBoostCap     = 0.08
	agingBoostPerTick = 0.01
)

// transformDecision carries the assembled prompt from Decide to Execute.
// Execute reads the current tick itself when it stamps lock_acquired_tick.
type transformDecision struct {
	prompt string
}

type transformResult struct {
	patch      string
	tokensUsed int64
	dollars    float64
	changed    bool
}

// NewTransform builds the Transform role descriptor: rank the pending files
// clear of the intensity floor and inhibition gate by priority (intensity
// plus an aging boost so an old, low-intensity file is not starved forever,
// minus inhibition so a file that just failed stays cold), and for each of
// the top maxBatch of them acquire its scope lock, generate a patch, and
// apply it. A maxBatch of 0 or less means every ranked file is transformed
// in the same tick, not only the highest-priority one.
func NewTransform(store *pheromone.Store, model effector.LanguageModel, budget *guardrails.Budget, targetDir string, currentTick func() int64, maxBatch int, intensityMin, inhibitionThreshold float64) *Runtime {
	d := Descriptor{
		Actor: statemachine.ActorTransform,
		Perceive: func(ctx context.Context) ([]Candidate, error) {
			pending, err := store.QueryStatus(pheromone.Eq("status", pheromone.StatusPending))
			if err != nil {
				return nil, err
			}
			tasks, err := store.ReadAllTasks()
			if err != nil {
				return nil, err
			}
			type scored struct {
				id    string
				score float64
			}
			now := currentTick()
			var ranked []scored
			for id, status := range pending {
				task, ok := tasks[id]
				if !ok {
					continue
				}
				if task.Intensity < intensityMin || status.Inhibition >= inhibitionThreshold {
					continue
				}
				idleTicks := now - status.PendingSinceTick
				if idleTicks < 0 {
					idleTicks = 0
				}
				agingBoost := agingBoostPerTick * float64(idleTicks)
				if agingBoost > agingBoostCap {
					agingBoost = agingBoostCap
				}
				ranked = append(ranked, scored{id: id, score: task.Intensity + agingBoost - status.Inhibition})
			}
			sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
			if maxBatch > 0 && len(ranked) > maxBatch {
				ranked = ranked[:maxBatch]
			}
			candidates := make([]Candidate, len(ranked))
			for i, r := range ranked {
				candidates[i] = Candidate{FileID: r.id}
			}
			return candidates, nil
		},
		Decide: func(ctx context.Context, c Candidate) (any, error) {
			task, err := store.ReadTask(c.FileID)
			if err != nil {
				return nil, err
			}
			prompt := buildTransformPrompt(c.FileID, task)
			return transformDecision{prompt: prompt}, nil
		},
		Execute: func(ctx context.Context, c Candidate, decision any) (any, error) {
			dec := decision.(transformDecision)

			lockChanges := map[string]any{
				"status":             pheromone.StatusInProgress,
				"lock_owner":         string(statemachine.ActorTransform),
				"lock_acquired_tick": currentTick(),
			}
			if err := store.UpdateStatus(c.FileID, lockChanges, string(statemachine.ActorTransform)); err != nil {
				return nil, fmt.Errorf("acquire lock: %w", err)
			}

			gen, err := model.Generate(ctx, effector.Generation{Prompt: dec.prompt})
			if err != nil {
				return nil, err
			}
			budget.Record(gen.TokensUsed, gen.DollarsSpent)

			changed := false
			if strings.TrimSpace(gen.Patch) != "" {
				if err := os.WriteFile(filepath.Join(targetDir, c.FileID), []byte(gen.Patch), 0644); err != nil {
					return nil, fmt.Errorf("write patch: %w", err)
				}
				changed = true
			}
			return transformResult{patch: gen.Patch, tokensUsed: gen.TokensUsed, dollars: gen.DollarsSpent, changed: changed}, nil
		},
		Deposit: func(c Candidate, result any) error {
			res := result.(transformResult)
			if !res.changed {
				return store.UpdateStatus(c.FileID, map[string]any{
					"status":     pheromone.StatusFailed,
					"lock_owner": "",
				}, string(statemachine.ActorTransform))
			}
			return store.UpdateStatus(c.FileID, map[string]any{
				"status":     pheromone.StatusTransformed,
				"lock_owner": "",
			}, string(statemachine.ActorTransform))
		},
	}
	return New(d)
}

func buildTransformPrompt(fileID string, task pheromone.TaskEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Migrate %s.\n", fileID)
	if len(task.PatternsFound) > 0 {
		fmt.Fprintf(&b, "Detected patterns: %s\n", strings.Join(task.PatternsFound, ", "))
	}
	fmt.Fprintf(&b, "Detection source: %s\n", task.DetectionSource)
	return b.String()
}
