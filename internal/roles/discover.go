package roles

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/effector"
	"github.com/migrantcolony/stigctl/internal/pheromone"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

// discoverDecision is the detection result Decide hands Execute. The real
// work, reading the file and running the detector, happens during Perceive
// so the whole candidate batch can fan out across a worker pool instead of
// reading and parsing one file at a time.
type discoverDecision struct {
	result effector.DetectionResult
}

// NewDiscover builds the Discover role descriptor: walk targetDir
// for files with no status entry yet, run the pattern detector across the
// batch concurrently, and deposit a task + pending status pheromone for
// anything with at least one match.
func NewDiscover(store *pheromone.Store, detector effector.PatternDetector, targetDir string, currentTick func() int64) *Runtime {
	scanned := map[string]effector.DetectionResult{}

	d := Descriptor{
		Actor: statemachine.ActorDiscover,
		Perceive: func(ctx context.Context) ([]Candidate, error) {
			known, err := store.ReadAllStatus()
			if err != nil {
				return nil, err
			}
			var paths []string
			err = filepath.WalkDir(targetDir, func(path string, entry fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if entry.IsDir() {
					if entry.Name() == ".git" {
						return filepath.SkipDir
					}
					return nil
				}
				rel, err := filepath.Rel(targetDir, path)
				if err != nil {
					rel = path
				}
				if _, seen := known[rel]; seen {
					return nil
				}
				paths = append(paths, rel)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("walk %s: %w", targetDir, err)
			}

			for k := range scanned {
				delete(scanned, k)
			}
			results := detectBatch(paths, func(rel string) (effector.DetectionResult, error) {
				content, err := os.ReadFile(filepath.Join(targetDir, rel))
				if err != nil {
					return effector.DetectionResult{}, err
				}
				return detector.Analyze(ctx, rel, content)
			})

			candidates := make([]Candidate, 0, len(paths))
			for i, rel := range paths {
				if results[i].err != nil {
					continue
				}
				scanned[rel] = results[i].value
				candidates = append(candidates, Candidate{FileID: rel})
			}
			return candidates, nil
		},
		ShouldAct: func(c Candidate) bool {
			return scanned[c.FileID].PatternCount > 0
		},
		Decide: func(ctx context.Context, c Candidate) (any, error) {
			return discoverDecision{result: scanned[c.FileID]}, nil
		},
		Execute: func(ctx context.Context, c Candidate, decision any) (any, error) {
			dec := decision.(discoverDecision)
			return dec.result, nil
		},
		Deposit: func(c Candidate, result any) error {
			det := result.(effector.DetectionResult)
			if det.PatternCount == 0 {
				return nil
			}
			intensity := normalizeIntensity(det.PatternCount, det.DepCount)
			task := pheromone.TaskEntry{
				Intensity:       intensity,
				PatternCount:    det.PatternCount,
				DepCount:        det.DepCount,
				PatternsFound:   det.PatternsFound,
				DetectionSource: pheromone.DetectionSource(det.Source),
				CreatedAt:       clock.Now(),
				CreatedBy:       string(statemachine.ActorDiscover),
			}
			if err := store.CreateTask(c.FileID, task, string(statemachine.ActorDiscover)); err != nil {
				return err
			}
			status := pheromone.StatusEntry{
				Status:           pheromone.StatusPending,
				Agent:            string(statemachine.ActorDiscover),
				Timestamp:        clock.Now(),
				PendingSinceTick: currentTick(),
			}
			return store.CreateStatus(c.FileID, status, string(statemachine.ActorDiscover))
		},
	}
	return New(d)
}

// detectResult holds one detection outcome. detectBatch stores it at the
// same index as its path, so results come back in input order despite
// being processed out of order across workers.
type detectResult struct {
	value effector.DetectionResult
	err   error
}

// detectBatch runs fn over paths across up to runtime.NumCPU() goroutines
// and returns results indexed the same as paths, so Perceive can fan a
// whole candidate batch's file reads and pattern detection out across
// available CPUs instead of scanning one file at a time.
func detectBatch(paths []string, fn func(string) (effector.DetectionResult, error)) []detectResult {
	results := make([]detectResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	workers := runtime.NumCPU()
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int, len(paths))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				val, err := fn(paths[i])
				results[i] = detectResult{value: val, err: err}
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// normalizeIntensity maps raw pattern/dependency counts to the [0, 1] task
// priority scale. Pattern count dominates; dependency count is a
// smaller secondary weight since a heavily-depended-on file is riskier to
// touch, not necessarily higher priority.
func normalizeIntensity(patternCount, depCount int) float64 {
	score := 0.15*float64(patternCount) + 0.05*float64(depCount)
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.1 {
		score = 0.1
	}
	return score
}
