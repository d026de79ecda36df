// Package config provides configuration management for stigctl.
// Configuration is loaded from (highest to lowest priority):
// 1. Command-line flags
// 2. Environment variables (STIGCTL_*)
// 3. Project config (.stigmergy/config.yaml in cwd)
// 4. Home config (~/.stigmergy/config.yaml)
// 5. Defaults
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every recognized option.
type Config struct {
	// Output controls the default output format (table, json).
	Output string `yaml:"output" json:"output"`

	// BaseDir is the stigctl store directory (tasks/status/quality maps,
	// audit log, run artifacts). Default: .stigmergy/store.
	BaseDir string `yaml:"base_dir" json:"base_dir"`

	// Target is the working tree under migration.
	Target string `yaml:"target" json:"target"`

	// Verbose enables elevated logging.
	Verbose bool `yaml:"verbose" json:"verbose"`

	// DryRun turns VCS effectors into no-ops.
	DryRun bool `yaml:"dry_run" json:"dry_run"`

	// Resume initializes from an existing store state rather than clearing it.
	Resume bool `yaml:"resume" json:"resume"`

	// Review iterates over needs_review files and presents them for an
	// external decision once the tick loop has stopped.
	Review bool `yaml:"review" json:"review"`

	// Seed is loaded and merged from flags and files but read by nothing
	// else: candidate ranking has no randomized tie-breaking.
	Seed int64 `yaml:"seed" json:"seed"`

	Pheromones PheromonesConfig `yaml:"pheromones" json:"pheromones"`
	Thresholds ThresholdsConfig `yaml:"thresholds" json:"thresholds"`
	Loop       LoopConfig       `yaml:"loop" json:"loop"`
	Budgets    BudgetsConfig    `yaml:"budgets" json:"budgets"`
	Tester     TesterConfig     `yaml:"tester" json:"tester"`
}

// PheromonesConfig controls decay law and normalization for task intensity
// and the anti-oscillation inhibition field.
type PheromonesConfig struct {
	// DecayType selects exponential or linear decay.
	DecayType string `yaml:"decay_type" json:"decay_type"`
	// DecayRate is rho, the decay constant for task intensity.
	DecayRate float64 `yaml:"decay_rate" json:"decay_rate"`
	// InhibitionDecayRate is k_gamma, the decay constant for gamma.
	InhibitionDecayRate float64 `yaml:"inhibition_decay_rate" json:"inhibition_decay_rate"`
	// InhibitionThreshold is the max gamma below which Transform may resume
	// a file.
	InhibitionThreshold float64 `yaml:"inhibition_threshold" json:"inhibition_threshold"`
	// TaskIntensityClampMin is the floor that intensity decay stops at.
	// TaskIntensityClampMax is not read: Discover clamps normalized
	// intensity to the fixed range [0.1, 1.0] on its own.
	TaskIntensityClampMin float64 `yaml:"task_intensity_clamp_min" json:"task_intensity_clamp_min"`
	TaskIntensityClampMax float64 `yaml:"task_intensity_clamp_max" json:"task_intensity_clamp_max"`
}

// ThresholdsConfig gates role activation and the guardrail policies.
type ThresholdsConfig struct {
	// TransformerIntensityMin is the activation floor for Transform.
	TransformerIntensityMin float64 `yaml:"transformer_intensity_min" json:"transformer_intensity_min"`
	// ValidatorConfidenceHigh/Low implement the two-cutoff confidence policy.
	ValidatorConfidenceHigh float64 `yaml:"validator_confidence_high" json:"validator_confidence_high"`
	ValidatorConfidenceLow  float64 `yaml:"validator_confidence_low" json:"validator_confidence_low"`
	// MaxRetryCount is the anti-loop retry ceiling.
	MaxRetryCount int `yaml:"max_retry_count" json:"max_retry_count"`
	// ScopeLockTTL is the number of ticks before a held lock is considered
	// zombied and released by the system actor.
	ScopeLockTTL int64 `yaml:"scope_lock_ttl" json:"scope_lock_ttl"`
}

// LoopConfig bounds a run independently of the per-file guardrails.
type LoopConfig struct {
	MaxTicks               int64 `yaml:"max_ticks" json:"max_ticks"`
	IdleCyclesToStop       int64 `yaml:"idle_cycles_to_stop" json:"idle_cycles_to_stop"`
	SequentialStageActionCap int `yaml:"sequential_stage_action_cap" json:"sequential_stage_action_cap"`
}

// BudgetsConfig bounds total spend and per-call latency.
type BudgetsConfig struct {
	MaxTokensTotal        int64   `yaml:"max_tokens_total" json:"max_tokens_total"`
	MaxBudgetUSD          float64 `yaml:"max_budget_usd" json:"max_budget_usd"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`
}

// TesterConfig names fallback confidence values for Test-role
// classifications. The Test role does not read it: its confidences are
// fixed in roles/test.go's classify.
type TesterConfig struct {
	FallbackQuality FallbackQualityConfig `yaml:"fallback_quality" json:"fallback_quality"`
}

// FallbackQualityConfig names the three fallback confidence values.
type FallbackQualityConfig struct {
	CompileImportFail     float64 `yaml:"compile_import_fail" json:"compile_import_fail"`
	RelatedRegression     float64 `yaml:"related_regression" json:"related_regression"`
	PassOrInconclusive    float64 `yaml:"pass_or_inconclusive" json:"pass_or_inconclusive"`
}

// Default config values (used in resolution and validation).
const (
	defaultOutput  = "table"
	defaultBaseDir = ".stigmergy/store"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Output:  defaultOutput,
		BaseDir: defaultBaseDir,
		Verbose: false,
		Pheromones: PheromonesConfig{
			DecayType:             "exponential",
			DecayRate:             0.05,
			InhibitionDecayRate:   0.08,
			InhibitionThreshold:   0.1,
			TaskIntensityClampMin: 0.01,
			TaskIntensityClampMax: 1.0,
		},
		Thresholds: ThresholdsConfig{
			TransformerIntensityMin: 0.1,
			ValidatorConfidenceHigh: 0.8,
			ValidatorConfidenceLow:  0.5,
			MaxRetryCount:           3,
			ScopeLockTTL:            3,
		},
		Loop: LoopConfig{
			MaxTicks:                 0,
			IdleCyclesToStop:         5,
			SequentialStageActionCap: 0,
		},
		Budgets: BudgetsConfig{
			MaxTokensTotal:        0,
			MaxBudgetUSD:          0,
			RequestTimeoutSeconds: 60,
		},
		Tester: TesterConfig{
			FallbackQuality: FallbackQualityConfig{
				CompileImportFail:  0,
				RelatedRegression:  0,
				PassOrInconclusive: 0.5,
			},
		},
	}
}

// Load loads configuration with proper precedence.
// Priority: flags > env > project > home > defaults
func Load(flagOverrides *Config) (*Config, error) {
	cfg := Default()

	homeConfig, _ := loadFromPath(homeConfigPath())
	if homeConfig != nil {
		cfg = merge(cfg, homeConfig)
	}

	projectConfig, _ := loadFromPath(projectConfigPath())
	if projectConfig != nil {
		cfg = merge(cfg, projectConfig)
	}

	cfg = applyEnv(cfg)

	if flagOverrides != nil {
		cfg = merge(cfg, flagOverrides)
	}

	return cfg, nil
}

func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".stigmergy", "config.yaml")
}

func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("STIGCTL_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".stigmergy", "config.yaml")
}

// LoadFile reads and parses a YAML config file at an explicit path, for
// callers (the --config flag) that bypass the home/project search.
func LoadFile(path string) (*Config, error) {
	return loadFromPath(path)
}

func loadFromPath(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) *Config {
	if v := os.Getenv("STIGCTL_OUTPUT"); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv("STIGCTL_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("STIGCTL_TARGET"); v != "" {
		cfg.Target = v
	}
	if v := os.Getenv("STIGCTL_VERBOSE"); v == "true" || v == "1" {
		cfg.Verbose = true
	}
	if v := os.Getenv("STIGCTL_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}
	if v := os.Getenv("STIGCTL_MAX_TICKS"); v != "" {
		if n, ok := parseInt64(v); ok {
			cfg.Loop.MaxTicks = n
		}
	}
	if v := os.Getenv("STIGCTL_MAX_TOKENS_TOTAL"); v != "" {
		if n, ok := parseInt64(v); ok {
			cfg.Budgets.MaxTokensTotal = n
		}
	}
	if v := os.Getenv("STIGCTL_MAX_BUDGET_USD"); v != "" {
		if f, ok := parseFloat(v); ok {
			cfg.Budgets.MaxBudgetUSD = f
		}
	}
	return cfg
}

// merge merges src into dst, with src values taking precedence. Zero values
// in src are treated as "not set" for this layer, consistent with the
// teacher's merge semantics.
func merge(dst, src *Config) *Config {
	if src.Output != "" {
		dst.Output = src.Output
	}
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.Target != "" {
		dst.Target = src.Target
	}
	if src.Verbose {
		dst.Verbose = true
	}
	if src.DryRun {
		dst.DryRun = true
	}
	if src.Resume {
		dst.Resume = true
	}
	if src.Review {
		dst.Review = true
	}
	if src.Seed != 0 {
		dst.Seed = src.Seed
	}

	if src.Pheromones.DecayType != "" {
		dst.Pheromones.DecayType = src.Pheromones.DecayType
	}
	if src.Pheromones.DecayRate != 0 {
		dst.Pheromones.DecayRate = src.Pheromones.DecayRate
	}
	if src.Pheromones.InhibitionDecayRate != 0 {
		dst.Pheromones.InhibitionDecayRate = src.Pheromones.InhibitionDecayRate
	}
	if src.Pheromones.InhibitionThreshold != 0 {
		dst.Pheromones.InhibitionThreshold = src.Pheromones.InhibitionThreshold
	}
	if src.Pheromones.TaskIntensityClampMin != 0 {
		dst.Pheromones.TaskIntensityClampMin = src.Pheromones.TaskIntensityClampMin
	}
	if src.Pheromones.TaskIntensityClampMax != 0 {
		dst.Pheromones.TaskIntensityClampMax = src.Pheromones.TaskIntensityClampMax
	}

	if src.Thresholds.TransformerIntensityMin != 0 {
		dst.Thresholds.TransformerIntensityMin = src.Thresholds.TransformerIntensityMin
	}
	if src.Thresholds.ValidatorConfidenceHigh != 0 {
		dst.Thresholds.ValidatorConfidenceHigh = src.Thresholds.ValidatorConfidenceHigh
	}
	if src.Thresholds.ValidatorConfidenceLow != 0 {
		dst.Thresholds.ValidatorConfidenceLow = src.Thresholds.ValidatorConfidenceLow
	}
	if src.Thresholds.MaxRetryCount != 0 {
		dst.Thresholds.MaxRetryCount = src.Thresholds.MaxRetryCount
	}
	if src.Thresholds.ScopeLockTTL != 0 {
		dst.Thresholds.ScopeLockTTL = src.Thresholds.ScopeLockTTL
	}

	if src.Loop.MaxTicks != 0 {
		dst.Loop.MaxTicks = src.Loop.MaxTicks
	}
	if src.Loop.IdleCyclesToStop != 0 {
		dst.Loop.IdleCyclesToStop = src.Loop.IdleCyclesToStop
	}
	if src.Loop.SequentialStageActionCap != 0 {
		dst.Loop.SequentialStageActionCap = src.Loop.SequentialStageActionCap
	}

	if src.Budgets.MaxTokensTotal != 0 {
		dst.Budgets.MaxTokensTotal = src.Budgets.MaxTokensTotal
	}
	if src.Budgets.MaxBudgetUSD != 0 {
		dst.Budgets.MaxBudgetUSD = src.Budgets.MaxBudgetUSD
	}
	if src.Budgets.RequestTimeoutSeconds != 0 {
		dst.Budgets.RequestTimeoutSeconds = src.Budgets.RequestTimeoutSeconds
	}

	return dst
}

// Source represents where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceHome    Source = "~/.stigmergy/config.yaml"
	SourceProject Source = ".stigmergy/config.yaml"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

func getEnvString(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "true" || v == "1" {
		return true, true
	}
	return false, false
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// resolveStringField resolves a string through the precedence chain.
func resolveStringField(home, project, env, flag, def string) resolved {
	result := resolved{Value: def, Source: SourceDefault}
	if home != "" {
		result = resolved{Value: home, Source: SourceHome}
	}
	if project != "" {
		result = resolved{Value: project, Source: SourceProject}
	}
	if env != "" {
		result = resolved{Value: env, Source: SourceEnv}
	}
	if flag != "" {
		result = resolved{Value: flag, Source: SourceFlag}
	}
	return result
}

// ResolvedConfig shows config values with their sources, for `stigctl
// status --show-config`-style introspection.
type ResolvedConfig struct {
	Output  resolved `json:"output"`
	BaseDir resolved `json:"base_dir"`
	Target  resolved `json:"target"`
	Verbose resolved `json:"verbose"`
}

type resolved struct {
	Value  interface{} `json:"value"`
	Source Source      `json:"source"`
}

// Resolve returns configuration with source tracking for the subset of
// fields most commonly overridden from the CLI.
// Uses precedence chain: flags > env > project > home > defaults.
func Resolve(flagOutput, flagBaseDir, flagTarget string, flagVerbose bool) *ResolvedConfig {
	homeConfig, _ := loadFromPath(homeConfigPath())
	projectConfig, _ := loadFromPath(projectConfigPath())

	var homeOutput, homeBaseDir, homeTarget string
	var homeVerbose bool
	if homeConfig != nil {
		homeOutput = homeConfig.Output
		homeBaseDir = homeConfig.BaseDir
		homeTarget = homeConfig.Target
		homeVerbose = homeConfig.Verbose
	}

	var projectOutput, projectBaseDir, projectTarget string
	var projectVerbose bool
	if projectConfig != nil {
		projectOutput = projectConfig.Output
		projectBaseDir = projectConfig.BaseDir
		projectTarget = projectConfig.Target
		projectVerbose = projectConfig.Verbose
	}

	envOutput, _ := getEnvString("STIGCTL_OUTPUT")
	envBaseDir, _ := getEnvString("STIGCTL_BASE_DIR")
	envTarget, _ := getEnvString("STIGCTL_TARGET")
	envVerbose, envVerboseSet := getEnvBool("STIGCTL_VERBOSE")

	rc := &ResolvedConfig{
		Output:  resolveStringField(homeOutput, projectOutput, envOutput, flagOutput, defaultOutput),
		BaseDir: resolveStringField(homeBaseDir, projectBaseDir, envBaseDir, flagBaseDir, defaultBaseDir),
		Target:  resolveStringField(homeTarget, projectTarget, envTarget, flagTarget, "."),
		Verbose: resolved{Value: false, Source: SourceDefault},
	}

	if homeVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceHome}
	}
	if projectVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceProject}
	}
	if envVerboseSet && envVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceEnv}
	}
	if flagVerbose {
		rc.Verbose = resolved{Value: true, Source: SourceFlag}
	}

	return rc
}
