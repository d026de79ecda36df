package effector

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitVCS is the default VCS effector: plain `git` subprocess calls scoped
// to a repo root via exec.CommandContext.
type GitVCS struct {
	RepoRoot string
	DryRun   bool
}

// Commit stages paths and commits them. In dry-run mode it stages nothing
// and fabricates a ref so Validate's deposit logic has something to record.
func (g *GitVCS) Commit(ctx context.Context, paths []string, message string) (CommitResult, error) {
	if g.DryRun {
		return CommitResult{Ref: "dry-run"}, nil
	}
	if err := g.run(ctx, append([]string{"add"}, paths...)...); err != nil {
		return CommitResult{}, fmt.Errorf("git add: %w", err)
	}
	if err := g.run(ctx, "commit", "-m", message); err != nil {
		return CommitResult{}, fmt.Errorf("git commit: %w", err)
	}
	out, err := g.output(ctx, "rev-parse", "HEAD")
	if err != nil {
		return CommitResult{}, fmt.Errorf("git rev-parse: %w", err)
	}
	return CommitResult{Ref: strings.TrimSpace(out)}, nil
}

// Revert discards working-tree changes to paths, Validate's rollback path.
// A no-op in dry-run mode since nothing was ever staged.
func (g *GitVCS) Revert(ctx context.Context, paths []string) error {
	if g.DryRun {
		return nil
	}
	if err := g.run(ctx, append([]string{"checkout", "--"}, paths...)...); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}
	return nil
}

func (g *GitVCS) run(ctx context.Context, args ...string) error {
	_, err := g.output(ctx, args...)
	return err
}

func (g *GitVCS) output(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}
