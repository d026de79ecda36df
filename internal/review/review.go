// Package review builds the operator-facing summaries the --review CLI
// surface walks over, one per needs_review file.
package review

import (
	"fmt"

	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// GateResult summarizes one needs_review file for an operator decision:
// approve, retry, or skip it.
type GateResult struct {
	FileID         string
	Passed         bool
	Message        string
	Confidence     float64
	Classification pheromone.Classification
	Issues         []string
}

// Decision is what an operator chose for a needs_review file.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionRetry   Decision = "retry"
	DecisionSkip    Decision = "skip"
)

// BuildGateResult assembles the human-facing gate summary for one
// needs_review file from its current quality entry.
func BuildGateResult(fileID string, q pheromone.QualityEntry) GateResult {
	r := GateResult{
		FileID:         fileID,
		Confidence:     q.Confidence,
		Classification: q.Classification,
		Issues:         q.Issues,
	}
	switch q.Classification {
	case pheromone.ClassificationPass:
		r.Passed = true
		r.Message = fmt.Sprintf("confidence %.2f, all tests passing but below the high-confidence auto-commit cutoff", q.Confidence)
	case pheromone.ClassificationFailInconclusive:
		r.Message = fmt.Sprintf("confidence %.2f, mixed test results", q.Confidence)
	case pheromone.ClassificationCompileFail:
		r.Message = "compile failure: " + firstIssue(q.Issues)
	case pheromone.ClassificationNoTests:
		r.Message = "no tests exercised this file"
	default:
		r.Message = fmt.Sprintf("confidence %.2f", q.Confidence)
	}
	return r
}

func firstIssue(issues []string) string {
	if len(issues) == 0 {
		return "unknown"
	}
	return issues[0]
}

// Apply records an operator's decision as the corresponding status
// transition: approve commits by promoting straight to validated, retry
// re-queues through the failed->retry path, skip gives up for good.
func Apply(store *pheromone.Store, fileID string, d Decision) error {
	actor := string(statemachine.ActorOperator)
	switch d {
	case DecisionApprove:
		return store.UpdateStatus(fileID, map[string]any{"status": pheromone.StatusValidated}, actor)
	case DecisionSkip:
		if err := store.UpdateStatus(fileID, map[string]any{"status": pheromone.StatusFailed}, actor); err != nil {
			return err
		}
		return store.UpdateStatus(fileID, map[string]any{"status": pheromone.StatusSkipped}, actor)
	case DecisionRetry:
		status, err := store.ReadStatus(fileID)
		if err != nil {
			return err
		}
		if err := store.UpdateStatus(fileID, map[string]any{"status": pheromone.StatusFailed}, actor); err != nil {
			return err
		}
		return store.UpdateStatus(fileID, map[string]any{
			"status":      pheromone.StatusRetry,
			"retry_count": status.RetryCount + 1,
		}, actor)
	default:
		return fmt.Errorf("review: unknown decision %q", d)
	}
}
