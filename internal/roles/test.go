package roles

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

type testResult struct {
	compileErr error
	outcome    effector.TestOutcome
}

// NewTest builds the Test role descriptor: compile-check and run
// tests for every transformed file, classify the outcome five ways, and
// deposit a quality pheromone. The status transition itself is always
// transformed -> tested regardless of verdict; Validate is what decides
// whether a tested file passes, needs a human, or fails, based on the
// classification and confidence recorded here.
func NewTest(store *pheromone.Store, runner effector.TestRunner, targetDir string) *Runtime {
	d := Descriptor{
		Actor: statemachine.ActorTest,
		Perceive: func(ctx context.Context) ([]Candidate, error) {
			transformed, err := store.QueryStatus(pheromone.Eq("status", pheromone.StatusTransformed))
			if err != nil {
				return nil, err
			}
			candidates := make([]Candidate, 0, len(transformed))
			for id := range transformed {
				candidates = append(candidates, Candidate{FileID: id})
			}
			return candidates, nil
		},
		Decide: func(ctx context.Context, c Candidate) (any, error) {
			return nil, nil
		},
		Execute: func(ctx context.Context, c Candidate, decision any) (any, error) {
			path := filepath.Join(targetDir, c.FileID)
			if err := runner.CompileCheck(ctx, path); err != nil {
				return testResult{compileErr: err}, nil
			}
			outcome, err := runner.RunTests(ctx, path)
			if err != nil {
				return testResult{compileErr: nil, outcome: outcome}, nil
			}
			return testResult{outcome: outcome}, nil
		},
		Deposit: func(c Candidate, result any) error {
			res := result.(testResult)
			quality := classify(res)
			_, err := store.ReadQuality(c.FileID)
			if errors.Is(err, pheromone.ErrNotFound) {
				if err := store.CreateQuality(c.FileID, quality, string(statemachine.ActorTest)); err != nil {
					return err
				}
			} else if err != nil {
				return err
			} else {
				if err := store.UpdateQuality(c.FileID, map[string]any{
					"confidence":     quality.Confidence,
					"tests_total":    quality.TestsTotal,
					"tests_passed":   quality.TestsPassed,
					"tests_failed":   quality.TestsFailed,
					"classification": quality.Classification,
					"timestamp":      quality.Timestamp,
				}, string(statemachine.ActorTest)); err != nil {
					return err
				}
			}
			return store.UpdateStatus(c.FileID, map[string]any{"status": pheromone.StatusTested}, string(statemachine.ActorTest))
		},
	}
	return New(d)
}

// classify implements the five-way classification policy.
func classify(res testResult) pheromone.QualityEntry {
	q := pheromone.QualityEntry{Timestamp: clock.Now()}
	if res.compileErr != nil {
		q.Classification = pheromone.ClassificationCompileFail
		q.Confidence = 0
		q.Issues = []string{res.compileErr.Error()}
		return q
	}
	o := res.outcome
	q.TestsTotal = o.TestsTotal
	q.TestsPassed = o.TestsPassed
	q.TestsFailed = o.TestsFailed
	q.Coverage = o.Coverage

	switch {
	case o.TestsTotal == 0:
		q.Classification = pheromone.ClassificationNoTests
		q.Confidence = 0.5
	case o.TestsFailed == 0:
		q.Classification = pheromone.ClassificationPass
		q.Confidence = float64(o.TestsPassed) / float64(o.TestsTotal)
	case o.TestsPassed > 0:
		q.Classification = pheromone.ClassificationFailInconclusive
		q.Confidence = float64(o.TestsPassed) / float64(o.TestsTotal)
	default:
		q.Classification = pheromone.ClassificationFailRelated
		q.Confidence = 0
	}
	return q
}
