// Package effector defines the narrow interfaces the orchestration core
// uses to reach outside itself: a language-model client for
// Transform, a pattern detector for Discover, a test runner for Test, and
// a VCS for Validate's commit/revert. The core consumes only these
// interfaces — it never imports a concrete LLM SDK or shells out directly.
package effector

import "context"

// Generation is one Transform request/response pair with the LLM client.
// It deliberately carries no output-token cap: the core never truncates a
// model's response.
type Generation struct {
	Prompt   string
	FewShots []string
}

// GenerationResult carries the model's output plus the spend it cost, so
// Transform can hand the numbers straight to the guardrail budget tracker.
type GenerationResult struct {
	Patch        string
	TokensUsed   int64
	DollarsSpent float64
}

// LanguageModel is the effector Transform uses to produce a patch for one
// file.
type LanguageModel interface {
	Generate(ctx context.Context, req Generation) (GenerationResult, error)
}

// DetectionResult is what PatternDetector.Analyze reports for one file.
type DetectionResult struct {
	PatternsFound []string
	PatternCount  int
	DepCount      int
	Source        string // "structural", "textual", or "semantic"
}

// PatternDetector is the effector Discover uses to find migration
// candidates. A structural detector (AST/tree-sitter based) is
// expected to degrade to textual search when it cannot parse a file.
type PatternDetector interface {
	Analyze(ctx context.Context, path string, content []byte) (DetectionResult, error)
}

// TestOutcome is what TestRunner.Run reports for one file.
type TestOutcome struct {
	CompileOK   bool
	TestsTotal  int
	TestsPassed int
	TestsFailed int
	Coverage    *float64
	Output      string
}

// TestRunner is the effector Test uses to compile-check and run tests
// against a transformed file.
type TestRunner interface {
	CompileCheck(ctx context.Context, path string) error
	RunTests(ctx context.Context, path string) (TestOutcome, error)
}

// CommitResult carries what Validate records after a successful commit.
type CommitResult struct {
	Ref string
}

// VCS is the effector Validate uses to make a file's migration durable, or
// to undo it. Implementations must be safe to call in --dry-run
// mode as a no-op that still returns a plausible CommitResult.
type VCS interface {
	Commit(ctx context.Context, paths []string, message string) (CommitResult, error)
	Revert(ctx context.Context, paths []string) error
}
