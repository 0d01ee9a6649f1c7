// Package gitgw is the per-project git gateway (spec §4.1/§9): every
// checkout/branch/merge operation a project's agents need runs through a
// single-slot lock, so branch-level git operations on one project never
// interleave (invariant 3) while different projects proceed fully in
// parallel. Command execution style is grounded on the teacher's
// internal/agentctl/server/process.GitOperator (branch-name validation,
// stdout+stderr capture, one command at a time); the tail-chained-queue
// shape is grounded on spec §9's "git lock as tail-chained futures" design
// note, implemented here as a per-project golang.org/x/sync/semaphore of
// weight one instead of chained promises.
package gitgw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/errs"
	"github.com/kilnworks/autodev/internal/pathsafe"
	"github.com/kilnworks/autodev/internal/tracing"
)

// ErrInvalidBranchName is returned when a branch name fails validation.
var ErrInvalidBranchName = errors.New("gitgw: invalid branch name")

// ErrMergeConflict is returned by Merge when the merge could not be
// completed automatically. The caller is expected to abort the merge and
// surface an operator-visible alert (spec §4.1); this package never
// attempts conflict resolution.
var ErrMergeConflict = errors.New("gitgw: merge conflict")

var validBranchNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

func isValidBranchName(branch string) bool {
	if branch == "" || len(branch) > 255 {
		return false
	}
	if strings.Contains(branch, "..") || strings.HasSuffix(branch, ".lock") {
		return false
	}
	return validBranchNameRegex.MatchString(branch)
}

// Gateway owns one weight-one semaphore per project directory, isolating
// callers from each other's branch operations while letting different
// projects' git operations run fully concurrently.
type Gateway struct {
	mu     sync.Mutex
	locks  map[string]*semaphore.Weighted
	logger *logger.Logger
}

// New creates an empty Gateway.
func New(log *logger.Logger) *Gateway {
	return &Gateway{
		locks:  make(map[string]*semaphore.Weighted),
		logger: log.WithFields(zap.String("component", "git_gateway")),
	}
}

func (g *Gateway) lockFor(projectID string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[projectID]
	if !ok {
		l = semaphore.NewWeighted(1)
		g.locks[projectID] = l
	}
	return l
}

// submit acquires projectID's lock, runs fn, then releases it, serializing
// fn against every other operation on the same project. A canceled ctx
// aborts the wait to acquire without running fn.
func (g *Gateway) submit(ctx context.Context, projectID string, fn func(context.Context) error) error {
	l := g.lockFor(projectID)
	if err := l.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.Release(1)
	return fn(ctx)
}

func (g *Gateway) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}
	if err != nil {
		return output, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// CheckoutMain serializes a `git checkout main` in projectDir.
func (g *Gateway) CheckoutMain(ctx context.Context, projectID, projectDir string) error {
	if err := pathsafe.Check(projectDir); err != nil {
		return errs.UnsafePath(projectDir)
	}
	ctx, span := tracing.TraceGitOp(ctx, projectID, "checkout", "main")
	defer span.End()

	err := g.submit(ctx, projectID, func(ctx context.Context) error {
		_, err := g.run(ctx, projectDir, "checkout", "main")
		return err
	})
	tracing.TraceGitOpResult(span, err)
	if err != nil {
		return errs.GitFailure("checkout main", err)
	}
	return nil
}

// CreateBranch serializes creating and checking out a new branch from
// main. branch must pass isValidBranchName.
func (g *Gateway) CreateBranch(ctx context.Context, projectID, projectDir, branch string) error {
	if !isValidBranchName(branch) {
		return ErrInvalidBranchName
	}
	if err := pathsafe.Check(projectDir); err != nil {
		return errs.UnsafePath(projectDir)
	}
	ctx, span := tracing.TraceGitOp(ctx, projectID, "branch_create", branch)
	defer span.End()

	err := g.submit(ctx, projectID, func(ctx context.Context) error {
		if _, err := g.run(ctx, projectDir, "checkout", "main"); err != nil {
			return err
		}
		_, err := g.run(ctx, projectDir, "checkout", "-b", branch)
		return err
	})
	tracing.TraceGitOpResult(span, err)
	if err != nil {
		return errs.GitFailure(fmt.Sprintf("create branch %s", branch), err)
	}
	return nil
}

// MergeToMain serializes checking out main and merging branch with
// --no-ff. On conflict it aborts the merge and returns ErrMergeConflict
// wrapped by errs.GitFailure; it never attempts resolution (spec §4.1).
func (g *Gateway) MergeToMain(ctx context.Context, projectID, projectDir, branch string) error {
	if !isValidBranchName(branch) {
		return ErrInvalidBranchName
	}
	if err := pathsafe.Check(projectDir); err != nil {
		return errs.UnsafePath(projectDir)
	}
	ctx, span := tracing.TraceGitOp(ctx, projectID, "merge", branch)
	defer span.End()

	err := g.submit(ctx, projectID, func(ctx context.Context) error {
		if _, err := g.run(ctx, projectDir, "checkout", "main"); err != nil {
			return err
		}
		if _, mergeErr := g.run(ctx, projectDir, "merge", "--no-ff", "-m", "merge "+branch, branch); mergeErr != nil {
			_, _ = g.run(ctx, projectDir, "merge", "--abort")
			return fmt.Errorf("%w: %v", ErrMergeConflict, mergeErr)
		}
		return nil
	})
	tracing.TraceGitOpResult(span, err)
	if err != nil {
		if errors.Is(err, ErrMergeConflict) {
			return errs.GitFailure(fmt.Sprintf("merge %s into main: conflict", branch), err)
		}
		return errs.GitFailure(fmt.Sprintf("merge %s into main", branch), err)
	}
	return nil
}

// DeleteBranch serializes deleting a merged branch.
func (g *Gateway) DeleteBranch(ctx context.Context, projectID, projectDir, branch string) error {
	if !isValidBranchName(branch) {
		return ErrInvalidBranchName
	}
	if err := pathsafe.Check(projectDir); err != nil {
		return errs.UnsafePath(projectDir)
	}
	ctx, span := tracing.TraceGitOp(ctx, projectID, "branch_delete", branch)
	defer span.End()

	err := g.submit(ctx, projectID, func(ctx context.Context) error {
		_, err := g.run(ctx, projectDir, "branch", "-D", branch)
		return err
	})
	tracing.TraceGitOpResult(span, err)
	if err != nil {
		return errs.GitFailure(fmt.Sprintf("delete branch %s", branch), err)
	}
	return nil
}
