// Package metrics collects per-tick counters and end-of-run aggregates for a
// stigctl run, writing them to disk as a manifest, a per-tick timeseries, and
// a final summary using an atomic-write-plus-JSONL-append pattern.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/roles"
)

const (
	timeseriesFile = "metrics_timeseries.jsonl"
	manifestFile   = "metrics_manifest.json"
	summaryFile    = "metrics_summary.json"
)

// TickSnapshot is one row of the timeseries artifact.
type TickSnapshot struct {
	Tick         int64          `json:"tick"`
	StatusCounts map[string]int `json:"status_counts"`
	RoleActivity map[string]int `json:"role_activity"`
	RoleErrors   map[string]int `json:"role_errors"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Summary is the end-of-run aggregate.
type Summary struct {
	Ticks               int64   `json:"ticks"`
	StopReason          string  `json:"stop_reason"`
	TotalFiles          int     `json:"total_files"`
	Validated           int     `json:"validated"`
	Skipped             int     `json:"skipped"`
	NeedsReview         int     `json:"needs_review"`
	SuccessRate         float64 `json:"success_rate"`
	RollbackRate        float64 `json:"rollback_rate"`
	HumanEscalationRate float64 `json:"human_escalation_rate"`
	RetryResolutionRate float64 `json:"retry_resolution_rate"`
	StarvationCount     int     `json:"starvation_count"`
	AuditCompleteness   float64 `json:"audit_completeness"`
}

// Collector accumulates per-tick role activity and writes every artifact
// under baseDir.
type Collector struct {
	baseDir string

	// Prometheus gauges, registered once; optional (with a nil Registerer
	// no gauges are created; this package serves no HTTP endpoint itself).
	reg         prometheus.Registerer
	gaugeTick   prometheus.Gauge
	gaugeActive *prometheus.GaugeVec

	pendingActivity map[string]int
	pendingErrors   map[string]int
}

// NewCollector returns a Collector that writes artifacts under baseDir. Pass
// a non-nil reg to additionally export live gauges (the optional Prometheus
// surface).
func NewCollector(baseDir string, reg prometheus.Registerer) (*Collector, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create metrics directory: %w", err)
	}
	c := &Collector{baseDir: baseDir, reg: reg}
	if reg != nil {
		c.gaugeTick = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stigctl_tick",
			Help: "Current orchestrator tick.",
		})
		c.gaugeActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stigctl_role_activity",
			Help: "Files acted on by each role in the most recent tick.",
		}, []string{"role"})
		reg.MustRegister(c.gaugeTick, c.gaugeActive)
	}
	return c, nil
}

// RecordRoleActivation folds one role's cycle result into the counters for
// the tick currently being assembled. Call EmitTick once all four roles
// have run to flush it to the timeseries.
func (c *Collector) RecordRoleActivation(tick int64, res roles.CycleResult) {
	if c.pendingActivity == nil {
		c.pendingActivity = map[string]int{}
		c.pendingErrors = map[string]int{}
	}
	c.pendingActivity[string(res.Actor)] += res.Acted
	c.pendingErrors[string(res.Actor)] += len(res.Errors)
	if c.gaugeActive != nil {
		c.gaugeActive.WithLabelValues(string(res.Actor)).Set(float64(res.Acted))
	}
}

// EmitTick writes the accumulated per-tick counters plus a fresh status
// distribution snapshot to the timeseries, then resets the per-tick
// accumulator.
func (c *Collector) EmitTick(tick int64, store *pheromone.Store) error {
	statuses, err := store.ReadAllStatus()
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, st := range statuses {
		counts[string(st.Status)]++
	}

	snap := TickSnapshot{
		Tick:         tick,
		StatusCounts: counts,
		RoleActivity: c.pendingActivity,
		RoleErrors:   c.pendingErrors,
		Timestamp:    time.Now().UTC(),
	}
	c.pendingActivity = nil
	c.pendingErrors = nil

	if c.gaugeTick != nil {
		c.gaugeTick.Set(float64(tick))
	}

	return appendJSONL(filepath.Join(c.baseDir, timeseriesFile), snap)
}

// Finalize computes the aggregate summary and writes it plus a run
// manifest. ticks is the final tick count the orchestrator reached.
func (c *Collector) Finalize(store *pheromone.Store, stopReason string, ticks int64) error {
	statuses, err := store.ReadAllStatus()
	if err != nil {
		return err
	}
	events, err := store.AuditEvents()
	if err != nil {
		return err
	}
	completeness, err := store.AuditCompleteness()
	if err != nil {
		return err
	}

	s := Summary{Ticks: ticks, StopReason: stopReason, TotalFiles: len(statuses), AuditCompleteness: completeness}
	var rollbacks, retriesResolved, retriesTotal int
	for _, st := range statuses {
		switch st.Status {
		case pheromone.StatusValidated:
			s.Validated++
		case pheromone.StatusSkipped:
			s.Skipped++
		case pheromone.StatusNeedsReview:
			s.NeedsReview++
		}
		if st.RetryCount > 0 {
			retriesTotal++
			if st.Status == pheromone.StatusValidated {
				retriesResolved++
			}
		}
	}
	for _, ev := range events {
		if ev.MapName == pheromone.MapStatus {
			if to, ok := ev.FieldsChanged["status"]; ok && fmt.Sprint(to) == string(pheromone.StatusFailed) {
				rollbacks++
			}
		}
	}

	if s.TotalFiles > 0 {
		s.SuccessRate = float64(s.Validated) / float64(s.TotalFiles)
		s.HumanEscalationRate = float64(s.NeedsReview) / float64(s.TotalFiles)
		s.RollbackRate = float64(rollbacks) / float64(s.TotalFiles)
	}
	if retriesTotal > 0 {
		s.RetryResolutionRate = float64(retriesResolved) / float64(retriesTotal)
	}
	s.StarvationCount = countStarved(statuses)

	if err := atomicWriteJSON(filepath.Join(c.baseDir, summaryFile), s); err != nil {
		return err
	}
	manifest := map[string]any{
		"stop_reason":  stopReason,
		"completed_at": time.Now().UTC(),
		"total_files":  s.TotalFiles,
	}
	return atomicWriteJSON(filepath.Join(c.baseDir, manifestFile), manifest)
}

// countStarved reports how many files outside the loop-terminal statuses
// carry a retry count of 2 or more — a proxy for files stuck cycling
// without making progress.
func countStarved(statuses map[string]pheromone.StatusEntry) int {
	n := 0
	for _, st := range statuses {
		if !st.Status.LoopTerminal() && st.RetryCount >= 2 {
			n++
		}
	}
	return n
}

func appendJSONL(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func atomicWriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeJSON(tmp, v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	success = true
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
