package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagTarget       string
	flagConfig       string
	flagMaxTicks     int64
	flagMaxTokens    int64
	flagMaxBudgetUSD float64
	flagSeed         int64
	flagDryRun       bool
	flagResume       bool
	flagReview       bool
	flagVerbose      bool
	flagOutput       string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stigctl",
	Short: "Stigmergic code-migration orchestrator",
	Long: `stigctl coordinates a fleet of discover/transform/test/validate role
runtimes over a shared pheromone store, migrating a working tree one file at
a time without centralized scheduling.

Core commands:
  run            Drive ticks until a stop condition is reached
  status         Show the store's current status distribution
  review         Walk needs_review files for an operator decision
  migrate-audit  Import a legacy YAML audit log into the JSONL store
  version        Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagTarget, "target", ".", "working tree under migration")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "configuration file path (default: .stigmergy/config.yaml)")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTicks, "max-ticks", 0, "tick horizon override (0: use config)")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens-total", 0, "token budget override (0: use config)")
	rootCmd.PersistentFlags().Float64Var(&flagMaxBudgetUSD, "max-budget-usd", 0, "dollar budget override (0: use config)")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "seed value (stored in the config; candidate ranking does not use it)")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "turn VCS effectors into no-ops")
	rootCmd.PersistentFlags().BoolVar(&flagResume, "resume", false, "initialize from existing store state rather than clearing it")
	rootCmd.PersistentFlags().BoolVar(&flagReview, "review", false, "iterate needs_review files for an external decision")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "elevated logging")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "output format (table, json)")
}

func verbosePrintf(format string, args ...interface{}) {
	if flagVerbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
