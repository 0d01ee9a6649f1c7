package gitgw_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/gitgw"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial")
	return dir
}

func TestGateway_BranchCreateMergeDelete(t *testing.T) {
	dir := initRepo(t)
	gw := gitgw.New(logger.Default())
	ctx := context.Background()

	require.NoError(t, gw.CreateBranch(ctx, "p1", dir, "agent-0/feature-f1"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "feature.txt"), []byte("x\n"), 0o644))

	commit := exec.Command("git", "add", "feature.txt")
	commit.Dir = dir
	require.NoError(t, commit.Run())
	commitMsg := exec.Command("git", "-c", "user.email=test@test.com", "-c", "user.name=test", "commit", "-m", "feature")
	commitMsg.Dir = dir
	out, err := commitMsg.CombinedOutput()
	require.NoError(t, err, string(out))

	require.NoError(t, gw.MergeToMain(ctx, "p1", dir, "agent-0/feature-f1"))
	require.NoError(t, gw.DeleteBranch(ctx, "p1", dir, "agent-0/feature-f1"))

	data, err := os.ReadFile(filepath.Join(dir, "feature.txt"))
	require.NoError(t, err)
	require.Equal(t, "x\n", string(data))
}

func TestGateway_RejectsUnsafeBranchName(t *testing.T) {
	dir := initRepo(t)
	gw := gitgw.New(logger.Default())

	err := gw.CreateBranch(context.Background(), "p1", dir, "../../etc/passwd")
	require.ErrorIs(t, err, gitgw.ErrInvalidBranchName)
}

func TestGateway_SerializesConcurrentOperationsOnSameProject(t *testing.T) {
	dir := initRepo(t)
	gw := gitgw.New(logger.Default())
	ctx := context.Background()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			branch := "agent-x/feature-" + string(rune('a'+n))
			_ = gw.CreateBranch(ctx, "p1", dir, branch)
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if cur <= old || atomic.CompareAndSwapInt32(&maxActive, old, cur) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
		}(i)
	}
	wg.Wait()

	require.LessOrEqual(t, int(maxActive), 1, "git operations on the same project must never overlap")
}
