package effector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGitVCS_Commit_DryRun(t *testing.T) {
	g := &GitVCS{RepoRoot: t.TempDir(), DryRun: true}
	res, err := g.Commit(context.Background(), []string{"foo.go"}, "migrate: foo.go")
	require.NoError(t, err)
	require.Equal(t, "dry-run", res.Ref)
}

func TestGitVCS_Revert_DryRun(t *testing.T) {
	g := &GitVCS{RepoRoot: t.TempDir(), DryRun: true}
	require.NoError(t, g.Revert(context.Background(), []string{"foo.go"}))
}
