package generations

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/oneconcern/envmon/pkg/buildenv/mocks"
	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const (
	testSystem = "x86_64-linux"
	testBranch = "default"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type genFixture struct {
	gens     *Generations
	upstream *vcs.Git
	backend  *mocks.Backend
	metrics  *metrics.M
	tempDir  string
}

func setupGenerations(t testing.TB) genFixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
	ctx := context.Background()
	root := t.TempDir()

	upstream, err := vcs.Init(ctx, filepath.Join(root, "upstream"), true)
	require.NoError(t, err)

	backend := mocks.New(testSystem)
	m := metrics.New()
	tempDir := filepath.Join(root, "tmp")
	gens, err := Init(ctx, upstream, testBranch, "default", tempDir,
		WithCoreOptions(core.WithBackend(backend), core.WithTempDir(tempDir)),
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(m),
	)
	require.NoError(t, err)
	return genFixture{gens: gens, upstream: upstream, backend: backend, metrics: m, tempDir: tempDir}
}

// newEnv creates a scratch environment with some manifest
func (f genFixture) newEnv(t testing.TB, contents string) *core.Environment {
	t.Helper()
	env, err := core.Init(filepath.Join(t.TempDir(), model.EnvDirName), contents,
		core.WithBackend(f.backend),
		core.WithTempDir(f.tempDir),
	)
	require.NoError(t, err)
	return env
}

func (f genFixture) writable(t testing.TB) *Writable {
	t.Helper()
	w, err := f.gens.Writable(context.Background(), f.tempDir)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestInitEmpty(t *testing.T) {
	f := setupGenerations(t)
	ctx := context.Background()

	m, err := f.gens.Metadata(ctx)
	require.NoError(t, err)
	_, ok := m.Current()
	assert.False(t, ok)
	assert.Empty(t, m.Generations)

	_, err = f.gens.CurrentGenManifest(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoGenerations))

	w := f.writable(t)
	_, err = w.GetCurrentGeneration(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoGenerations))

	_, err = f.gens.Manifest(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationNotFound))
}

func TestAddGeneration(t *testing.T) {
	f := setupGenerations(t)
	ctx := context.Background()

	w := f.writable(t)
	for i, contents := range []string{manifest.EmptyManifest, "version = 1\n\n[install]\ncurl = { pkg-path = \"curl\" }\n"} {
		id, err := w.AddGeneration(ctx, f.newEnv(t, contents), "change")
		require.NoError(t, err)
		assert.Equal(t, model.GenerationID(i+1), id)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.GenerationsCreated()))

	// the upstream repository holds the new generations
	upstreamView := New(f.upstream, testBranch)
	m, err := upstreamView.Metadata(ctx)
	require.NoError(t, err)
	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, model.GenerationID(2), current)
	require.NotNil(t, m.Generations[2].LastActive)

	text, err := upstreamView.CurrentGenManifest(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "curl")

	// numbers keep growing after a rollback
	require.NoError(t, w.SetCurrentGeneration(ctx, 1))
	id, err := w.AddGeneration(ctx, f.newEnv(t, ""), "after rollback")
	require.NoError(t, err)
	assert.Equal(t, model.GenerationID(3), id)
}

func TestSetCurrentGeneration(t *testing.T) {
	f := setupGenerations(t)
	ctx := context.Background()

	w := f.writable(t)
	_, err := w.AddGeneration(ctx, f.newEnv(t, ""), "init")
	require.NoError(t, err)
	_, err = w.AddGeneration(ctx, f.newEnv(t, ""), "second")
	require.NoError(t, err)

	err = w.SetCurrentGeneration(ctx, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRollbackToCurrentGeneration))

	err = w.SetCurrentGeneration(ctx, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGenerationNotFound))

	require.NoError(t, w.SetCurrentGeneration(ctx, 1))
	require.NoError(t, w.SetCurrentGeneration(ctx, 2))

	m, err := f.gens.Metadata(ctx)
	require.NoError(t, err)
	current, _ := m.Current()
	assert.Equal(t, model.GenerationID(2), current)
	assert.Len(t, m.Generations, 2, "switching never creates generations")
}

func TestRollbackAndRollForward(t *testing.T) {
	f := setupGenerations(t)
	ctx := context.Background()

	w := f.writable(t)
	_, err := w.AddGeneration(ctx, f.newEnv(t, ""), "init")
	require.NoError(t, err)

	env, err := w.GetCurrentGeneration(ctx)
	require.NoError(t, err)
	_, err = env.Install(ctx, []manifest.PackageToInstall{{ID: "curl", PkgPath: "curl"}})
	require.NoError(t, err)
	_, err = w.AddGeneration(ctx, env, "installed curl")
	require.NoError(t, err)

	history, err := f.gens.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "init", history[0].Description)
	assert.Equal(t, "installed curl", history[1].Description)
	assert.True(t, history[1].Current)

	require.NoError(t, w.SetCurrentGeneration(ctx, 1))
	text, err := f.gens.CurrentGenManifest(ctx)
	require.NoError(t, err)
	assert.NotContains(t, text, "curl")

	require.NoError(t, w.SetCurrentGeneration(ctx, 2))
	text, err = f.gens.CurrentGenManifest(ctx)
	require.NoError(t, err)
	assert.Contains(t, text, "curl")

	lock, err := f.gens.Lockfile(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "curl", lock.Packages[0].InstallID)

	none, err := f.gens.Lockfile(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none, "generation 1 was never locked")

	m, err := f.gens.Metadata(ctx)
	require.NoError(t, err)
	assert.False(t, m.Has(3))

	diff, err := f.gens.Diff(ctx, 1, 2)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- generation 1")
	assert.Contains(t, diff, `+curl = { pkg-path = "curl" }`)
}

func TestWritableIsPrivate(t *testing.T) {
	f := setupGenerations(t)
	ctx := context.Background()

	w := f.writable(t)
	_, err := w.AddGeneration(ctx, f.newEnv(t, ""), "init")
	require.NoError(t, err)

	env, err := w.GetGeneration(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Path(), "1", model.EnvDirName), env.Path())

	// changes to the checked out environment are not recorded until added as a generation
	_, err = env.Install(ctx, []manifest.PackageToInstall{{ID: "jq", PkgPath: "jq"}})
	require.NoError(t, err)
	text, err := f.gens.Manifest(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, text, "jq")

	w.Close()
	assert.NoDirExists(t, w.Path())
}
