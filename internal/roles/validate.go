package roles

import (
	"context"
	"path/filepath"

	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

type validateDecision struct {
	band  guardrails.ConfidenceBand
	entry pheromone.QualityEntry
}

type validateResult struct {
	committed bool
	ref       string
	reverted  bool
}

// NewValidate builds the Validate role descriptor: band a tested
// file's confidence against the guardrail thresholds and commit, request
// review, or fail/retry/skip it accordingly.
func NewValidate(store *pheromone.Store, vcs effector.VCS, targetDir string, limits guardrails.Limits) *Runtime {
	d := Descriptor{
		Actor: statemachine.ActorValidate,
		Perceive: func(ctx context.Context) ([]Candidate, error) {
			tested, err := store.QueryStatus(pheromone.Eq("status", pheromone.StatusTested))
			if err != nil {
				return nil, err
			}
			candidates := make([]Candidate, 0, len(tested))
			for id := range tested {
				candidates = append(candidates, Candidate{FileID: id})
			}
			return candidates, nil
		},
		Decide: func(ctx context.Context, c Candidate) (any, error) {
			q, err := store.ReadQuality(c.FileID)
			if err != nil {
				return nil, err
			}
			return validateDecision{band: guardrails.Classify(q.Confidence, limits), entry: q}, nil
		},
		Execute: func(ctx context.Context, c Candidate, decision any) (any, error) {
			dec := decision.(validateDecision)
			switch dec.band {
			case guardrails.BandHigh:
				if dec.entry.Classification == pheromone.ClassificationCompileFail {
					return validateResult{}, nil
				}
				res, err := vcs.Commit(ctx, []string{filepath.Join(targetDir, c.FileID)}, "migrate: "+c.FileID)
				if err != nil {
					return nil, err
				}
				return validateResult{committed: true, ref: res.Ref}, nil
			case guardrails.BandLow:
				if err := vcs.Revert(ctx, []string{filepath.Join(targetDir, c.FileID)}); err != nil {
					return nil, err
				}
				return validateResult{reverted: true}, nil
			default:
				return validateResult{}, nil
			}
		},
		Deposit: func(c Candidate, result any) error {
			res := result.(validateResult)
			status, err := store.ReadStatus(c.FileID)
			if err != nil {
				return err
			}
			q, err := store.ReadQuality(c.FileID)
			if err != nil {
				return err
			}

			if res.committed {
				reinforced := q.Confidence + 0.1
				if reinforced > 1.0 {
					reinforced = 1.0
				}
				if err := store.UpdateQuality(c.FileID, map[string]any{"confidence": reinforced}, string(statemachine.ActorValidate)); err != nil {
					return err
				}
				return store.UpdateStatus(c.FileID, map[string]any{"status": pheromone.StatusValidated}, string(statemachine.ActorValidate))
			}

			band := guardrails.Classify(q.Confidence, limits)
			if band == guardrails.BandMid {
				return store.UpdateStatus(c.FileID, map[string]any{"status": pheromone.StatusNeedsReview}, string(statemachine.ActorValidate))
			}

			evaporated := q.Confidence - 0.2
			if evaporated < 0.0 {
				evaporated = 0.0
			}
			if err := store.UpdateQuality(c.FileID, map[string]any{"confidence": evaporated}, string(statemachine.ActorValidate)); err != nil {
				return err
			}

			// Low band: tested -> failed is always the first hop, then the
			// anti-loop ceiling decides whether the file gets another
			// attempt (failed -> retry -> pending) or gives up for good
			// (failed -> skipped).
			if err := store.UpdateStatus(c.FileID, map[string]any{"status": pheromone.StatusFailed}, string(statemachine.ActorValidate)); err != nil {
				return err
			}
			if guardrails.RetryExhausted(status.RetryCount, limits) {
				return store.UpdateStatus(c.FileID, map[string]any{"status": pheromone.StatusSkipped}, string(statemachine.ActorValidate))
			}
			return store.UpdateStatus(c.FileID, map[string]any{
				"status":      pheromone.StatusRetry,
				"retry_count": status.RetryCount + 1,
				"inhibition":  status.Inhibition + 0.5,
			}, string(statemachine.ActorValidate))
		},
	}
	return New(d)
}
