package main

import (
	"fmt"
	"os"
	"time"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/config"
	"github.com/migrantcolony/stigctl/internal/decay"
	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/metrics"
	"github.com/migrantcolony/stigctl/internal/orchestrator"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/roles"
)

// loadConfig resolves the flag/env/project/home/default precedence chain
// and folds in persistent flag overrides.
func loadConfig() (*config.Config, error) {
	overrides := &config.Config{
		Target:  flagTarget,
		Output:  flagOutput,
		Verbose: flagVerbose,
		DryRun:  flagDryRun,
		Resume:  flagResume,
		Review:  flagReview,
		Seed:    flagSeed,
		Loop:    config.LoopConfig{MaxTicks: flagMaxTicks},
		Budgets: config.BudgetsConfig{MaxTokensTotal: flagMaxTokens, MaxBudgetUSD: flagMaxBudgetUSD},
	}
	if flagConfig != "" {
		fileCfg, err := loadNamedConfigFile(flagConfig)
		if err != nil {
			return nil, fmt.Errorf("load --config %s: %w", flagConfig, err)
		}
		return config.Load(mergeInto(fileCfg, overrides))
	}
	return config.Load(overrides)
}

func mergeInto(base, overrides *config.Config) *config.Config {
	if overrides.Output != "" {
		base.Output = overrides.Output
	}
	if overrides.Target != "" {
		base.Target = overrides.Target
	}
	base.Verbose = base.Verbose || overrides.Verbose
	base.DryRun = base.DryRun || overrides.DryRun
	base.Resume = base.Resume || overrides.Resume
	base.Review = base.Review || overrides.Review
	if overrides.Seed != 0 {
		base.Seed = overrides.Seed
	}
	if overrides.Loop.MaxTicks != 0 {
		base.Loop.MaxTicks = overrides.Loop.MaxTicks
	}
	if overrides.Budgets.MaxTokensTotal != 0 {
		base.Budgets.MaxTokensTotal = overrides.Budgets.MaxTokensTotal
	}
	if overrides.Budgets.MaxBudgetUSD != 0 {
		base.Budgets.MaxBudgetUSD = overrides.Budgets.MaxBudgetUSD
	}
	return base
}

func loadNamedConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	loaded, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if loaded != nil {
		cfg = loaded
	}
	return cfg, nil
}

func decayRates(cfg *config.Config) decay.Rates {
	t := decay.Exponential
	if cfg.Pheromones.DecayType == "linear" {
		t = decay.Linear
	}
	return decay.Rates{
		Type:         t,
		Rho:          cfg.Pheromones.DecayRate,
		KGamma:       cfg.Pheromones.InhibitionDecayRate,
		IntensityMin: cfg.Pheromones.TaskIntensityClampMin,
	}
}

func guardrailLimits(cfg *config.Config) guardrails.Limits {
	return guardrails.Limits{
		ScopeLockTTLTicks: cfg.Thresholds.ScopeLockTTL,
		MaxRetry:          cfg.Thresholds.MaxRetryCount,
		ConfidenceHigh:    cfg.Thresholds.ValidatorConfidenceHigh,
		ConfidenceLow:     cfg.Thresholds.ValidatorConfidenceLow,
		MaxTokensTotal:    cfg.Budgets.MaxTokensTotal,
		MaxBudgetUSD:      cfg.Budgets.MaxBudgetUSD,
	}
}

// openStore opens the pheromone store, clearing any existing state first
// unless --resume was given.
func openStore(cfg *config.Config) (*pheromone.Store, error) {
	if !cfg.Resume {
		if err := clearStore(cfg.BaseDir); err != nil {
			return nil, fmt.Errorf("clear store: %w", err)
		}
	}
	return pheromone.Open(cfg.BaseDir,
		pheromone.WithDecayRates(decayRates(cfg)),
		pheromone.WithLimits(guardrailLimits(cfg)),
	)
}

// buildOrchestrator wires every role runtime and the metrics collector for
// one run, in the fixed discover/transform/test/validate order.
func buildOrchestrator(cfg *config.Config, store *pheromone.Store) (*orchestrator.Orchestrator, error) {
	clk := clock.New()
	budget := guardrails.NewBudget(guardrailLimits(cfg))

	detector := &effector.TreeSitterDetector{Patterns: defaultPatterns()}
	testRunner := effector.NewSubprocessTestRunner(cfg.Target)
	vcs := &effector.GitVCS{RepoRoot: cfg.Target, DryRun: cfg.DryRun}
	model := effector.NewHTTPLanguageModel(
		envOrDefault("STIGCTL_LLM_ENDPOINT", "https://api.example.invalid/v1/complete"),
		envOrDefault("STIGCTL_LLM_MODEL", "default"),
		"STIGCTL_LLM_API_KEY",
	)
	if cfg.Budgets.RequestTimeoutSeconds > 0 {
		model.HTTPClient.Timeout = time.Duration(cfg.Budgets.RequestTimeoutSeconds) * time.Second
	}

	mcol, err := metrics.NewCollector(cfg.BaseDir, nil)
	if err != nil {
		return nil, err
	}

	currentTick := func() int64 { return int64(clk.Current()) }

	return &orchestrator.Orchestrator{
		Store:   store,
		Clock:   clk,
		Budget:  budget,
		Metrics: mcol,
		Limits: orchestrator.Limits{
			MaxTicks:      cfg.Loop.MaxTicks,
			MaxIdleCycles: cfg.Loop.IdleCyclesToStop,
		},
		Discover: roles.NewDiscover(store, detector, cfg.Target, currentTick),
		Transform: roles.NewTransform(store, model, budget, cfg.Target, currentTick, cfg.Loop.SequentialStageActionCap,
			cfg.Thresholds.TransformerIntensityMin, cfg.Pheromones.InhibitionThreshold),
		Test:     roles.NewTest(store, testRunner, cfg.Target),
		Validate: roles.NewValidate(store, vcs, cfg.Target, guardrailLimits(cfg)),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// clearStore removes a prior run's store directory so a fresh run starts
// from an empty tasks/status/quality map, unless --resume was given.
func clearStore(baseDir string) error {
	if baseDir == "" || baseDir == "." || baseDir == "/" {
		return fmt.Errorf("refusing to clear suspicious base dir %q", baseDir)
	}
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		return nil
	}
	return os.RemoveAll(baseDir)
}
