package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, "table", cfg.Output)
	require.Equal(t, ".stigmergy/store", cfg.BaseDir)
	require.False(t, cfg.Verbose)
	require.Equal(t, "exponential", cfg.Pheromones.DecayType)
	require.Equal(t, 0.05, cfg.Pheromones.DecayRate)
	require.Equal(t, 0.08, cfg.Pheromones.InhibitionDecayRate)
	require.Equal(t, 0.8, cfg.Thresholds.ValidatorConfidenceHigh)
	require.Equal(t, 0.5, cfg.Thresholds.ValidatorConfidenceLow)
	require.Equal(t, 3, cfg.Thresholds.MaxRetryCount)
	require.Equal(t, int64(3), cfg.Thresholds.ScopeLockTTL)
}

func TestMerge(t *testing.T) {
	dst := Default()
	src := &Config{
		Output:  "json",
		BaseDir: "/custom/path",
	}

	result := merge(dst, src)

	require.Equal(t, "json", result.Output)
	require.Equal(t, "/custom/path", result.BaseDir)
	// Unrelated defaults are preserved when not overridden.
	require.Equal(t, 0.05, result.Pheromones.DecayRate)
}

func TestMerge_NestedThresholds(t *testing.T) {
	dst := Default()
	src := &Config{
		Thresholds: ThresholdsConfig{
			MaxRetryCount: 7,
		},
	}

	result := merge(dst, src)

	require.Equal(t, 7, result.Thresholds.MaxRetryCount)
	// Sibling fields in the same nested struct are untouched.
	require.Equal(t, 0.8, result.Thresholds.ValidatorConfidenceHigh)
}

func TestMerge_BooleanOverride(t *testing.T) {
	dst := Default()
	require.False(t, dst.DryRun)

	src := &Config{DryRun: true}
	result := merge(dst, src)

	require.True(t, result.DryRun)
}

func TestApplyEnv(t *testing.T) {
	orig := map[string]string{
		"STIGCTL_OUTPUT":  os.Getenv("STIGCTL_OUTPUT"),
		"STIGCTL_VERBOSE": os.Getenv("STIGCTL_VERBOSE"),
		"STIGCTL_DRY_RUN": os.Getenv("STIGCTL_DRY_RUN"),
	}
	defer func() {
		for k, v := range orig {
			_ = os.Setenv(k, v) //nolint:errcheck // test env restore
		}
	}()

	require.NoError(t, os.Setenv("STIGCTL_OUTPUT", "json"))
	require.NoError(t, os.Setenv("STIGCTL_VERBOSE", "true"))
	require.NoError(t, os.Setenv("STIGCTL_DRY_RUN", "1"))

	cfg := applyEnv(Default())

	require.Equal(t, "json", cfg.Output)
	require.True(t, cfg.Verbose)
	require.True(t, cfg.DryRun)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("output: json\nthresholds:\n  max_retry_count: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0600))

	cfg, err := loadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "json", cfg.Output)
	require.Equal(t, 5, cfg.Thresholds.MaxRetryCount)
}

func TestLoadFromPath_MissingFileReturnsError(t *testing.T) {
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestResolve_PrecedenceChain(t *testing.T) {
	rc := Resolve("json", "", "", false)
	require.Equal(t, "json", rc.Output.Value)
	require.Equal(t, SourceFlag, rc.Output.Source)
	require.Equal(t, SourceDefault, rc.BaseDir.Source)
}
