package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func requireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
}

// commitFile writes a file in a non-bare repository and commits it
func commitFile(t testing.TB, g *Git, name, content string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(g.Path(), name), []byte(content), 0o600))
	require.NoError(t, g.Add(ctx, name))
	require.NoError(t, g.Commit(ctx, "update "+name))
	hash, err := g.runTrimmed(ctx, "rev-parse", "HEAD")
	require.NoError(t, err)
	return hash
}

type repoFixture struct {
	upstream *Git
	work     *Git
}

func setupRepos(t testing.TB) repoFixture {
	t.Helper()
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()

	upstream, err := Init(ctx, filepath.Join(root, "upstream"), true)
	require.NoError(t, err)

	work, err := Clone(ctx, upstream.Path(), filepath.Join(root, "work"), false)
	require.NoError(t, err)
	require.NoError(t, work.Checkout(ctx, "env", true))
	return repoFixture{upstream: upstream, work: work}
}

func TestBranches(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	first := commitFile(t, f.work, "a", "1")
	second := commitFile(t, f.work, "a", "2")

	hash, err := f.work.BranchHash(ctx, "env")
	require.NoError(t, err)
	assert.Equal(t, second, hash)

	_, err = f.work.BranchHash(ctx, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchNotFound))

	require.NoError(t, f.work.CreateBranch(ctx, "old", first))
	has, err := f.work.HasBranch(ctx, "old")
	require.NoError(t, err)
	assert.True(t, has)

	contained, err := f.work.BranchContainsCommit(ctx, first, "env")
	require.NoError(t, err)
	assert.True(t, contained)

	contained, err = f.work.BranchContainsCommit(ctx, second, "old")
	require.NoError(t, err)
	assert.False(t, contained)

	contained, err = f.work.BranchContainsCommit(ctx, "0123456789012345678901234567890123456789", "env")
	require.NoError(t, err)
	assert.False(t, contained)

	require.NoError(t, f.work.ResetBranch(ctx, "old", second))
	hash, err = f.work.BranchHash(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, second, hash)

	require.NoError(t, f.work.DeleteBranch(ctx, "old"))
	has, err = f.work.HasBranch(ctx, "old")
	require.NoError(t, err)
	assert.False(t, has)

	known, err := f.work.ContainsCommit(ctx, first)
	require.NoError(t, err)
	assert.True(t, known)

	known, err = f.work.ContainsCommit(ctx, "0123456789012345678901234567890123456789")
	require.NoError(t, err)
	assert.False(t, known)
}

func TestShow(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	commitFile(t, f.work, "a", "content\n")

	b, err := f.work.Show(ctx, "env:a")
	require.NoError(t, err)
	assert.Equal(t, "content\n", string(b))

	_, err = f.work.Show(ctx, "env:missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestPushFetch(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	first := commitFile(t, f.work, "a", "1")
	require.NoError(t, f.work.Push(ctx, DefaultRemote, "env:env", false))

	hash, err := f.upstream.BranchHash(ctx, "env")
	require.NoError(t, err)
	assert.Equal(t, first, hash)

	// a second clone moves upstream ahead
	other, err := Clone(ctx, f.upstream.Path(), filepath.Join(t.TempDir(), "other"), true)
	require.NoError(t, err)
	require.NoError(t, other.Fetch(ctx, DefaultRemote, "+env:env"))
	hash, err = other.BranchHash(ctx, "env")
	require.NoError(t, err)
	assert.Equal(t, first, hash)

	second := commitFile(t, f.work, "a", "2")
	require.NoError(t, f.work.Push(ctx, DefaultRemote, "env:env", false))
	require.NoError(t, other.Fetch(ctx, DefaultRemote, "+env:env"))
	hash, err = other.BranchHash(ctx, "env")
	require.NoError(t, err)
	assert.Equal(t, second, hash)

	err = other.Fetch(ctx, DefaultRemote, "+nope:nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchNotFound))

	// rewrite history locally: upstream refuses the push unless forced
	require.NoError(t, f.work.ResetBranch(ctx, "diverged", first))
	require.NoError(t, f.work.Checkout(ctx, "diverged", false))
	commitFile(t, f.work, "b", "diverged")

	err = f.work.Push(ctx, DefaultRemote, "diverged:env", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPushRejected), "got %v", err)

	require.NoError(t, f.work.Push(ctx, DefaultRemote, "diverged:env", true))
}

func TestOpen(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	g, err := Open(ctx, f.upstream.Path())
	require.NoError(t, err)
	assert.Equal(t, f.upstream.Path(), g.Path())

	_, err = Open(ctx, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotARepository))

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 128, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Error(), "rev-parse")
}

func TestParseVersion(t *testing.T) {
	for _, toPin := range []struct {
		input     string
		expected  string
		wantError bool
	}{
		{input: "git version 2.39.2", expected: "2.39.2"},
		{input: "git version 2.39.3 (Apple Git-146)", expected: "2.39.3"},
		{input: "git version 2.41.0.windows.1", expected: "2.41.0"},
		{input: "git version 2.30", expected: "2.30.0"},
		{input: "oops", wantError: true},
	} {
		fixture := toPin
		t.Run(fixture.input, func(t *testing.T) {
			t.Parallel()
			v, err := parseVersion(fixture.input)
			if fixture.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, fixture.expected, v.String())
		})
	}
}

func TestCheckVersion(t *testing.T) {
	requireGit(t)
	require.NoError(t, CheckVersion(context.Background()))
}
