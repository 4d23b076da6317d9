package managed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func install(t testing.TB, e *Environment, ids ...string) {
	t.Helper()
	pkgs := make([]manifest.PackageToInstall, 0, len(ids))
	for _, id := range ids {
		pkgs = append(pkgs, manifest.PackageToInstall{ID: id, PkgPath: id})
	}
	_, err := e.Install(context.Background(), pkgs)
	require.NoError(t, err)
}

func TestPushPull(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	origin := f.publish(t, "")
	other := f.checkout(t, f.machine("other"), "other")

	pin := pinOf(t, other)
	assert.Equal(t, f.upstreamHash(t), pin.Rev)
	assert.False(t, pin.HasLocalRev())

	install(t, origin, "curl")
	require.NoError(t, origin.Push(ctx, false))

	pin = pinOf(t, origin)
	assert.Equal(t, f.upstreamHash(t), pin.Rev)
	assert.False(t, pin.HasLocalRev(), "pushed changes are upstream")
	assertPinned(t, origin)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Syncs("push", metrics.OutcomeSuccess)), "initial push included")

	err := origin.Push(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpToDate))

	require.NoError(t, other.Pull(ctx, false))
	assert.Contains(t, manifestOf(t, other), "curl")
	pin = pinOf(t, other)
	assert.Equal(t, f.upstreamHash(t), pin.Rev)
	assertPinned(t, other)
	assert.Len(t, historyOf(t, other), 2)

	err = other.Pull(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpToDate))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Syncs("pull", metrics.OutcomeUnchanged)))

	// changes flow back the other way
	install(t, other, "jq")
	require.NoError(t, other.Push(ctx, false))
	require.NoError(t, origin.Pull(ctx, false))
	assert.Contains(t, manifestOf(t, origin), "jq")
}

func TestPushUpToDateClearsLocalRev(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	origin := f.publish(t, "")
	install(t, origin, "curl")
	require.True(t, pinOf(t, origin).HasLocalRev())

	// another working copy of the same commit publishes it first
	copied, err := Open(ctx, f.cfg, copyWorkingCopy(t, f, origin, "copy"), f.opts...)
	require.NoError(t, err)
	require.NoError(t, copied.Push(ctx, false))

	err = origin.Push(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpToDate))

	pin := pinOf(t, origin)
	assert.Equal(t, f.upstreamHash(t), pin.Rev)
	assert.False(t, pin.HasLocalRev())
	assertPinned(t, origin)
}

func TestDivergence(t *testing.T) {
	for _, toPin := range []struct {
		name  string
		force func(t *testing.T, f fixture, origin, other *Environment)
	}{
		{
			name: "force pull",
			force: func(t *testing.T, f fixture, origin, other *Environment) {
				require.NoError(t, other.Pull(context.Background(), true))
				text := manifestOf(t, other)
				assert.Contains(t, text, "curl")
				assert.NotContains(t, text, "jq", "local changes are dropped")
				assert.False(t, pinOf(t, other).HasLocalRev())
			},
		},
		{
			name: "force push",
			force: func(t *testing.T, f fixture, origin, other *Environment) {
				require.NoError(t, other.Push(context.Background(), true))
				assert.Equal(t, branchHash(t, other), f.upstreamHash(t))
				assert.Equal(t, f.upstreamHash(t), pinOf(t, other).Rev)

				require.NoError(t, origin.Pull(context.Background(), true))
				assert.NotContains(t, manifestOf(t, origin), "curl", "upstream changes are overwritten")
			},
		},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			origin := f.publish(t, "")
			other := f.checkout(t, f.machine("other"), "other")

			install(t, origin, "curl")
			require.NoError(t, origin.Push(ctx, false))
			install(t, other, "jq")

			upstream, local, pin := f.upstreamHash(t), branchHash(t, other), pinBytes(t, other)
			assertUntouched := func() {
				assert.Equal(t, upstream, f.upstreamHash(t))
				assert.Equal(t, local, branchHash(t, other))
				assert.Equal(t, pin, pinBytes(t, other))
			}

			err := other.Push(ctx, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDiverged), "got %v", err)
			assertUntouched()

			err = other.Pull(ctx, false)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDiverged), "got %v", err)
			assertUntouched()
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Syncs("pull", metrics.OutcomeFailure)))

			fixture.force(t, f, origin, other)
		})
	}
}

func TestPushBrokenGeneration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.publish(t, "")

	// an upstream generation restricted to other systems
	require.NoError(t, e.change(ctx, func(env *core.Environment) (string, bool, error) {
		result, err := env.EditUnsafe(ctx, "version = 1\n\n[options]\nsystems = [\"aarch64-darwin\"]\n")
		require.Error(t, result.BuildErr)
		return "restricted systems", true, err
	}))
	upstream := f.upstreamHash(t)

	err := e.Push(ctx, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuildBroken))
	assert.Equal(t, upstream, f.upstreamHash(t))

	result, err := e.AddSystem(ctx)
	require.NoError(t, err)
	require.NoError(t, result.BuildErr)
	assert.Contains(t, manifestOf(t, e), testSystem)
	history := historyOf(t, e)
	assert.Equal(t, "added system "+testSystem, history[len(history)-1].Description)

	again, err := e.AddSystem(ctx)
	require.NoError(t, err)
	assert.Equal(t, "unchanged", again.Kind.String())
	assert.Len(t, historyOf(t, e), len(history))

	require.NoError(t, e.Push(ctx, false))
}

// copyWorkingCopy copies the pointer and pin of a working copy into a new directory
func copyWorkingCopy(t testing.TB, f fixture, from *Environment, project string) string {
	t.Helper()
	dir := f.dotFlox(t, project)
	for _, name := range []string{model.PointerFilename, model.PinFilename} {
		b, err := os.ReadFile(filepath.Join(from.Path(), name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o600))
	}
	return dir
}

func writePinFile(t testing.TB, dir string, pin model.PinRecord) {
	t.Helper()
	b, err := model.MarshalPinRecord(pin)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, model.PinFilename), b, 0o600))
}

func TestEnsureLocked(t *testing.T) {
	const unknown = "0123456789012345678901234567890123456789"

	t.Run("no pin", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")
		other := f.checkout(t, f.machine("other"), "other")
		assert.Equal(t, pinOf(t, origin).Rev, pinOf(t, other).Rev)
		assertPinned(t, other)
	})

	t.Run("local rev on this machine", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")
		install(t, origin, "curl")

		dir := copyWorkingCopy(t, f, origin, "copy")
		copied, err := Open(context.Background(), f.cfg, dir, f.opts...)
		require.NoError(t, err)
		assert.Equal(t, pinOf(t, origin), pinOf(t, copied))
		assertPinned(t, copied)
		assert.Contains(t, manifestOf(t, copied), "curl")
	})

	t.Run("local rev on another machine", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")
		install(t, origin, "curl")

		dir := copyWorkingCopy(t, f, origin, "copy")
		_, err := Open(context.Background(), f.machine("other"), dir, f.opts...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLocalRevDoesNotExist))
	})

	t.Run("rev pushed since last fetch", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		origin := f.publish(t, "")
		other := f.checkout(t, f.machine("other"), "other")

		install(t, origin, "curl")
		require.NoError(t, origin.Push(ctx, false))

		// the pin moves to a commit the other machine never fetched
		writePinFile(t, other.Path(), model.NewPinRecord(f.upstreamHash(t), ""))
		reopened, err := Open(ctx, f.machine("other"), other.Path(), f.opts...)
		require.NoError(t, err)
		assertPinned(t, reopened)
		assert.Contains(t, manifestOf(t, reopened), "curl")
	})

	t.Run("rev only on the working copy branch", func(t *testing.T) {
		f := setup(t)
		ctx := context.Background()
		origin := f.publish(t, "")
		first := f.upstreamHash(t)
		install(t, origin, "curl")
		require.NoError(t, origin.Push(ctx, false))
		pinned := pinOf(t, origin)
		require.False(t, pinned.HasLocalRev())

		// upstream was force reset behind the pin, and fetched since
		require.NoError(t, f.upstream.ResetBranch(ctx, testName, first))
		require.NoError(t, origin.fetch(ctx))

		reopened, err := Open(ctx, f.cfg, origin.Path(), f.opts...)
		require.NoError(t, err)
		assert.Equal(t, pinned, pinOf(t, reopened))
		assertPinned(t, reopened)
		assert.Contains(t, manifestOf(t, reopened), "curl")
	})

	t.Run("unknown rev", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")

		writePinFile(t, origin.Path(), model.NewPinRecord(unknown, ""))
		_, err := Open(context.Background(), f.cfg, origin.Path(), f.opts...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRevDoesNotExist))
	})

	t.Run("unknown local rev", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")

		writePinFile(t, origin.Path(), model.NewPinRecord(pinOf(t, origin).Rev, unknown))
		_, err := Open(context.Background(), f.cfg, origin.Path(), f.opts...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLocalRevDoesNotExist))
	})

	t.Run("invalid pin", func(t *testing.T) {
		f := setup(t)
		origin := f.publish(t, "")

		require.NoError(t, os.WriteFile(filepath.Join(origin.Path(), model.PinFilename), []byte(`{"version": 1}`), 0o600))
		_, err := Open(context.Background(), f.cfg, origin.Path(), f.opts...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidPin))
	})
}

func TestEnsureBranch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	e := f.publish(t, "")
	rev := pinOf(t, e).Rev

	t.Run("noop", func(t *testing.T) {
		before := branchHash(t, e)
		reopened, err := Open(ctx, f.cfg, e.Path(), f.opts...)
		require.NoError(t, err)
		assert.Equal(t, before, branchHash(t, reopened))
	})

	t.Run("resets branch", func(t *testing.T) {
		install(t, e, "curl")
		local := pinOf(t, e).LocalRev

		// the branch moved away from the pin, e.g. by another process
		require.NoError(t, e.Floxmeta().ResetBranch(ctx, e.Branch(), rev))
		reopened, err := Open(ctx, f.cfg, e.Path(), f.opts...)
		require.NoError(t, err)
		assert.Equal(t, local, branchHash(t, reopened))
	})

	t.Run("creates branch", func(t *testing.T) {
		require.NoError(t, e.Floxmeta().DeleteBranch(ctx, e.Branch()))
		reopened, err := Open(ctx, f.cfg, e.Path(), f.opts...)
		require.NoError(t, err)
		assertPinned(t, reopened)
	})
}
