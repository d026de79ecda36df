package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/migrantcolony/stigctl/internal/pheromone"
)

var migrateAuditCmd = &cobra.Command{
	Use:   "migrate-audit <legacy-file>",
	Short: "Import a legacy YAML audit log into the JSONL store",
	Long: `migrate-audit reads a legacy YAML-formatted audit log and appends one
event per legacy entry to the store's JSONL audit log for --target, so older runs
still contribute to audit_completeness after the storage format changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrateAudit,
}

func init() {
	rootCmd.AddCommand(migrateAuditCmd)
}

func runMigrateAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := pheromone.Open(cfg.BaseDir, pheromone.WithDecayRates(decayRates(cfg)), pheromone.WithLimits(guardrailLimits(cfg)))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	n, err := pheromone.MigrateLegacyAuditLog(store, args[0])
	if err != nil {
		return fmt.Errorf("migrate %s: %w", args[0], err)
	}
	fmt.Printf("imported %d legacy audit entries from %s\n", n, args[0])
	return nil
}
