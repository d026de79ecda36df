package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk needs_review files for an operator decision",
	Long: `review opens the store for --target and presents each needs_review
file's gate summary, reading a decision (approve/retry/skip) from stdin for
each one. Running "stigctl run --review" does the same thing automatically
once a tick loop reaches a stop condition.`,
	RunE: runReviewCmd,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
}

func runReviewCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := pheromone.Open(cfg.BaseDir, pheromone.WithDecayRates(decayRates(cfg)), pheromone.WithLimits(guardrailLimits(cfg)))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	return runReviewLoop(cmd.Context(), store)
}

// runReviewLoop presents every needs_review file's gate summary and reads
// an approve/retry/skip decision from stdin for each one.
func runReviewLoop(ctx context.Context, store *pheromone.Store) error {
	needsReview, err := store.QueryStatus(pheromone.Eq("status", pheromone.StatusNeedsReview))
	if err != nil {
		return fmt.Errorf("query needs_review: %w", err)
	}
	if len(needsReview) == 0 {
		fmt.Println("no files awaiting review")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for fileID := range needsReview {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		q, err := store.ReadQuality(fileID)
		if err != nil {
			return fmt.Errorf("read quality for %s: %w", fileID, err)
		}
		result := review.BuildGateResult(fileID, q)
		printGateResult(result)

		decision, err := promptDecision(reader)
		if err != nil {
			return err
		}
		if err := review.Apply(store, fileID, decision); err != nil {
			return fmt.Errorf("apply decision for %s: %w", fileID, err)
		}
	}
	return nil
}

func printGateResult(r review.GateResult) {
	fmt.Printf("\n%s\n", r.FileID)
	fmt.Printf("  classification: %s\n", r.Classification)
	fmt.Printf("  confidence:     %.2f\n", r.Confidence)
	fmt.Printf("  %s\n", r.Message)
}

// promptDecision reads one line from r, defaulting to retry on blank input
// or anything it doesn't recognize.
func promptDecision(r *bufio.Reader) (review.Decision, error) {
	fmt.Print("approve/retry/skip [retry]: ")
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read decision: %w", err)
	}
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "a", "approve":
		return review.DecisionApprove, nil
	case "s", "skip":
		return review.DecisionSkip, nil
	default:
		return review.DecisionRetry, nil
	}
}
