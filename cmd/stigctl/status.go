package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/migrantcolony/stigctl/internal/pheromone"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the store's current status distribution",
	Long: `status opens the store for --target and reports how many files sit
in each status, plus the audit log's completeness ratio.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusOutput struct {
	BaseDir      string         `json:"base_dir"`
	TotalFiles   int            `json:"total_files"`
	Distribution map[string]int `json:"distribution"`
	Completeness float64        `json:"audit_completeness"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := pheromone.Open(cfg.BaseDir, pheromone.WithDecayRates(decayRates(cfg)), pheromone.WithLimits(guardrailLimits(cfg)))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	statuses, err := store.ReadAllStatus()
	if err != nil {
		return fmt.Errorf("read status map: %w", err)
	}
	completeness, err := store.AuditCompleteness()
	if err != nil {
		return fmt.Errorf("audit completeness: %w", err)
	}

	dist := map[string]int{}
	for _, st := range statuses {
		dist[string(st.Status)]++
	}

	out := statusOutput{
		BaseDir:      cfg.BaseDir,
		TotalFiles:   len(statuses),
		Distribution: dist,
		Completeness: completeness,
	}
	return printStatus(out)
}

func printStatus(out statusOutput) error {
	if flagOutput == "json" {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("store:      %s\n", out.BaseDir)
	fmt.Printf("files:      %d\n", out.TotalFiles)
	fmt.Printf("audit:      %.4f\n", out.Completeness)
	fmt.Println()

	names := make([]string, 0, len(out.Distribution))
	for name := range out.Distribution {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %s\n", name, statusBar(name, out.Distribution[name]))
	}
	return nil
}

func statusBar(status string, count int) string {
	text := fmt.Sprintf("%d", count)
	switch status {
	case string(pheromone.StatusValidated):
		return color.GreenString(text)
	case string(pheromone.StatusFailed), string(pheromone.StatusSkipped):
		return color.RedString(text)
	case string(pheromone.StatusNeedsReview), string(pheromone.StatusRetry):
		return color.YellowString(text)
	default:
		return text
	}
}
