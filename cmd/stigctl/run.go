package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Drive ticks until a stop condition is reached",
	Long: `run opens the pheromone store for --target, wires the four role
runtimes, and ticks the orchestrator until a stop condition fires: the
budget is exhausted, max-ticks is reached, the loop goes idle for too
long, or every file has reached a terminal status.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

type runOutput struct {
	StopReason   string  `json:"stop_reason"`
	Completeness float64 `json:"audit_completeness"`
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	orc, err := buildOrchestrator(cfg, store)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}

	if flagOutput != "json" && cfg.Loop.MaxTicks > 0 {
		bar := progressbar.Default(cfg.Loop.MaxTicks, "ticking")
		orc.OnTick = func(tick int64, activity int) { _ = bar.Set64(tick) }
		defer func() { _ = bar.Close() }()
	}

	verbosePrintf("stigctl: run starting against %s\n", cfg.Target)
	reason, err := orc.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	completeness, err := store.AuditCompleteness()
	if err != nil {
		return fmt.Errorf("audit completeness: %w", err)
	}

	if cfg.Review {
		if err := runReviewLoop(cmd.Context(), store); err != nil {
			return fmt.Errorf("review: %w", err)
		}
	}

	return printRunResult(runOutput{StopReason: string(reason), Completeness: completeness})
}

func printRunResult(out runOutput) error {
	if flagOutput == "json" {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("stop reason:        %s\n", highlightStop(out.StopReason))
	fmt.Printf("audit completeness: %.4f\n", out.Completeness)
	return nil
}

func highlightStop(reason string) string {
	switch pheromoneStopSeverity(reason) {
	case "ok":
		return color.GreenString(reason)
	case "warn":
		return color.YellowString(reason)
	default:
		return color.RedString(reason)
	}
}

func pheromoneStopSeverity(reason string) string {
	switch reason {
	case "all_terminal":
		return "ok"
	case "max_ticks", "idle_cycles":
		return "warn"
	case "budget_exhausted":
		return "bad"
	default:
		return "bad"
	}
}
