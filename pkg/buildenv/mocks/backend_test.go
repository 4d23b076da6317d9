package mocks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/envmon/pkg/buildenv"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSystem = "x86_64-linux"

func writeManifest(t testing.TB, dir, text string) string {
	t.Helper()
	p := filepath.Join(dir, model.ManifestFilename)
	require.NoError(t, os.WriteFile(p, []byte(text), 0o600))
	return p
}

func lockTo(t testing.TB, b *Backend, manifestPath, existing string) (string, *model.Lockfile) {
	t.Helper()
	raw, err := b.Lock(context.Background(), manifestPath, existing, "")
	require.NoError(t, err)
	p := filepath.Join(filepath.Dir(manifestPath), model.LockfileFilename)
	require.NoError(t, os.WriteFile(p, raw, 0o600))
	lock, err := model.ParseLockfile(raw)
	require.NoError(t, err)
	return p, lock
}

func TestLockIsSeededByExistingLockfile(t *testing.T) {
	dir := t.TempDir()
	b := New(testSystem)
	m := writeManifest(t, dir, "version = 1\n[install]\ncurl = { pkg-path = \"curl\" }\n")

	lockPath, first := lockTo(t, b, m, "")
	require.Len(t, first.Packages, 1)

	b.Bump()
	_, seeded := lockTo(t, b, m, lockPath)
	assert.Equal(t, first.Packages, seeded.Packages, "locked packages must not move")

	_, fresh := lockTo(t, b, m, "")
	assert.NotEqual(t, first.Packages[0].Derivation, fresh.Packages[0].Derivation)
	assert.Equal(t, 3, b.CountCalls("lock"))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	b := New(testSystem)
	m := writeManifest(t, dir, "version = 1\n[install]\ncurl = { pkg-path = \"curl\" }\n")
	lockPath, _ := lockTo(t, b, m, "")

	out, err := b.Build(context.Background(), lockPath, "")
	require.NoError(t, err)
	again, err := b.Build(context.Background(), lockPath, "")
	require.NoError(t, err)
	assert.Equal(t, out, again)

	link := filepath.Join(dir, "run", "link")
	_, err = b.Build(context.Background(), lockPath, link)
	require.NoError(t, err)
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, out, target)

	b.Broken["curl"] = true
	_, err = b.Build(context.Background(), lockPath, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, buildenv.ErrBuild))
}

func TestBuildUnsupportedSystem(t *testing.T) {
	dir := t.TempDir()
	b := New(testSystem)
	m := writeManifest(t, dir, "version = 1\n[options]\nsystems = [\"aarch64-darwin\"]\n")
	lockPath, _ := lockTo(t, b, m, "")

	_, err := b.Build(context.Background(), lockPath, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support system")
}

func TestLockUnknownPackage(t *testing.T) {
	dir := t.TempDir()
	b := New(testSystem)
	b.Unknown["nope"] = true
	m := writeManifest(t, dir, "version = 1\n[install]\nnope = { pkg-path = \"nope\" }\n")

	_, err := b.Lock(context.Background(), m, "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, buildenv.ErrLock))
}
