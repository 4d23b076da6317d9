// Package vcs exposes the git plumbing used to store generations of environments.
//
// All operations shell out to the git binary. Repositories are only ever
// manipulated through explicit refs: no operation depends on the user's
// git configuration, nor on the currently checked out branch unless stated.
package vcs

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/oneconcern/envmon/pkg/errors"
	"go.uber.org/zap"
)

// DefaultRemote is the name of the remote set up by Clone
const DefaultRemote = "origin"

// Provider knows how to query and update a git repository
type Provider interface {
	// Path to the repository
	Path() string

	// Checkout a branch, creating it as an orphan if requested
	Checkout(ctx context.Context, branch string, orphan bool) error

	// Fetch some refspecs from a remote
	Fetch(ctx context.Context, remote string, refspecs ...string) error

	// Push a refspec to a remote, optionally forcing a non-fast-forward update
	Push(ctx context.Context, remote, refspec string, force bool) error

	// Add paths to the index, including deletions
	Add(ctx context.Context, paths ...string) error

	// Commit the index
	Commit(ctx context.Context, message string) error

	// Show the content of an object, such as "branch:path/to/file"
	Show(ctx context.Context, object string) ([]byte, error)

	// BranchHash yields the commit a local branch points at, or ErrBranchNotFound
	BranchHash(ctx context.Context, branch string) (string, error)

	// ResetBranch moves a local branch to some commit
	ResetBranch(ctx context.Context, branch, rev string) error

	// CreateBranch creates a local branch at some commit
	CreateBranch(ctx context.Context, branch, rev string) error

	// DeleteBranch deletes a local branch
	DeleteBranch(ctx context.Context, branch string) error

	// HasBranch tells if a local branch exists
	HasBranch(ctx context.Context, branch string) (bool, error)

	// BranchContainsCommit tells if commit is an ancestor of, or equal to, the tip of branch
	BranchContainsCommit(ctx context.Context, commit, branch string) (bool, error)

	// ContainsCommit tells if a commit exists in the repository
	ContainsCommit(ctx context.Context, commit string) (bool, error)
}

var _ Provider = &Git{}

// Git is a Provider backed by the git command line
type Git struct {
	gitSettings
	path string
}

// Open an existing repository
func Open(ctx context.Context, path string, opts ...Option) (*Git, error) {
	g := newGit(path, opts)
	if _, err := g.run(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, ErrNotARepository.WrapMessage("%s", path).Wrap(err)
	}
	return g, nil
}

// Init creates a new repository
func Init(ctx context.Context, path string, bare bool, opts ...Option) (*Git, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}
	g := newGit(path, opts)
	args := []string{"init", "--quiet"}
	if bare {
		args = append(args, "--bare")
	}
	if _, err := g.run(ctx, args...); err != nil {
		return nil, err
	}
	return g, nil
}

// Clone a repository into dest. The source becomes the DefaultRemote of the clone.
func Clone(ctx context.Context, url, dest string, bare bool, opts ...Option) (*Git, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	g := newGit(filepath.Dir(dest), opts)
	args := []string{"clone", "--quiet"}
	if bare {
		args = append(args, "--bare")
	}
	args = append(args, url, dest)
	if _, err := g.run(ctx, args...); err != nil {
		return nil, err
	}
	g.path = dest
	return g, nil
}

func newGit(path string, opts []Option) *Git {
	return &Git{
		gitSettings: defaultSettings(opts),
		path:        path,
	}
}

// Path to the repository
func (g *Git) Path() string {
	return g.path
}

func (g *Git) run(ctx context.Context, args ...string) ([]byte, error) {
	full := append([]string{
		"-c", "user.name=" + g.userName,
		"-c", "user.email=" + g.userEmail,
		"-c", "commit.gpgsign=false",
		"-c", "init.defaultBranch=" + g.defaultBranch,
	}, args...)
	cmd := exec.CommandContext(ctx, g.binary, full...)
	cmd.Dir = g.path
	cmd.Env = append(os.Environ(),
		"GIT_CONFIG_NOSYSTEM=1",
		"GIT_TERMINAL_PROMPT=0",
		"LC_ALL=C",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	g.l.Debug("git", zap.String("dir", g.path), zap.Strings("args", args), zap.Error(err))
	if err != nil {
		cmdErr := &CommandError{
			Args:     args,
			ExitCode: -1,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else {
			cmdErr.Stderr += err.Error()
		}
		return nil, cmdErr
	}
	return stdout.Bytes(), nil
}

func (g *Git) runTrimmed(ctx context.Context, args ...string) (string, error) {
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Checkout a branch, creating it as an orphan if requested
func (g *Git) Checkout(ctx context.Context, branch string, orphan bool) error {
	args := []string{"checkout", "--quiet"}
	if orphan {
		args = append(args, "--orphan")
	}
	_, err := g.run(ctx, append(args, branch)...)
	return err
}

// Fetch some refspecs from a remote.
//
// Fetching a branch missing on the remote yields ErrBranchNotFound.
func (g *Git) Fetch(ctx context.Context, remote string, refspecs ...string) error {
	_, err := g.run(ctx, append([]string{"fetch", "--quiet", remote}, refspecs...)...)
	if err != nil && stderrContains(err, "couldn't find remote ref") {
		return ErrBranchNotFound.WrapMessage("%s on %s", strings.Join(refspecs, " "), remote).Wrap(err)
	}
	return err
}

// Push a refspec to a remote.
//
// A non-fast-forward update refused by the remote yields ErrPushRejected.
func (g *Git) Push(ctx context.Context, remote, refspec string, force bool) error {
	args := []string{"push", "--quiet", "--porcelain"}
	if force {
		args = append(args, "--force")
	}
	_, err := g.run(ctx, append(args, remote, refspec)...)
	if err == nil {
		return nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) &&
		(strings.Contains(cmdErr.Stdout, "[rejected]") || strings.Contains(cmdErr.Stderr, "[rejected]")) {
		return ErrPushRejected.WrapMessage("%s to %s", refspec, remote).Wrap(err)
	}
	return err
}

// Add paths to the index, including deletions
func (g *Git) Add(ctx context.Context, paths ...string) error {
	_, err := g.run(ctx, append([]string{"add", "--all", "--"}, paths...)...)
	return err
}

// Commit the index
func (g *Git) Commit(ctx context.Context, message string) error {
	_, err := g.run(ctx, "commit", "--quiet", "--no-verify", "-m", message)
	return err
}

// Show the raw content of an object
func (g *Git) Show(ctx context.Context, object string) ([]byte, error) {
	out, err := g.run(ctx, "show", object)
	if err != nil {
		if exited(err, 128) {
			return nil, ErrObjectNotFound.WrapMessage("%s", object).Wrap(err)
		}
		return nil, err
	}
	return out, nil
}

// BranchHash yields the commit a local branch points at
func (g *Git) BranchHash(ctx context.Context, branch string) (string, error) {
	hash, err := g.runTrimmed(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		if exited(err, 1) {
			return "", ErrBranchNotFound.WrapMessage("%s", branch)
		}
		return "", err
	}
	return hash, nil
}

// ResetBranch moves a local branch to some commit, whatever its current position
func (g *Git) ResetBranch(ctx context.Context, branch, rev string) error {
	_, err := g.run(ctx, "branch", "--force", "--no-track", branch, rev)
	return err
}

// CreateBranch creates a local branch at some commit
func (g *Git) CreateBranch(ctx context.Context, branch, rev string) error {
	_, err := g.run(ctx, "branch", "--no-track", branch, rev)
	return err
}

// DeleteBranch deletes a local branch, merged or not
func (g *Git) DeleteBranch(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "branch", "--delete", "--force", branch)
	if err != nil && stderrContains(err, "not found") {
		return ErrBranchNotFound.WrapMessage("%s", branch).Wrap(err)
	}
	return err
}

// HasBranch tells if a local branch exists
func (g *Git) HasBranch(ctx context.Context, branch string) (bool, error) {
	_, err := g.run(ctx, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err != nil {
		if exited(err, 1) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BranchContainsCommit tells if commit is reachable from the tip of branch.
//
// An unknown commit is not contained.
func (g *Git) BranchContainsCommit(ctx context.Context, commit, branch string) (bool, error) {
	known, err := g.ContainsCommit(ctx, commit)
	if err != nil || !known {
		return false, err
	}
	_, err = g.run(ctx, "merge-base", "--is-ancestor", commit, "refs/heads/"+branch)
	if err != nil {
		if exited(err, 1) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ContainsCommit tells if a commit exists in the repository
func (g *Git) ContainsCommit(ctx context.Context, commit string) (bool, error) {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", commit+"^{commit}")
	if err != nil {
		if exited(err, 1) || exited(err, 128) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
