package core

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/oneconcern/envmon/pkg/core/status"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/storage"
	"github.com/oneconcern/envmon/pkg/storage/localfs"
	storagestatus "github.com/oneconcern/envmon/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// envDir knows how to read, lock and build an environment directory
type envDir struct {
	Settings
	path  string
	store storage.Store
}

func newEnvDir(path string, s Settings) envDir {
	return envDir{
		Settings: s,
		path:     path,
		store:    storage.Instrument(s.l, localfs.NewAtomic(afero.NewBasePathFs(s.fs, path))),
	}
}

// Environment is a handle on a live environment directory.
//
// The directory is never modified in place: mutating operations run in a
// sandbox, which replaces the live directory only when it builds.
type Environment struct {
	envDir
}

// Open an existing environment directory
func Open(path string, opts ...Option) (*Environment, error) {
	s := defaultSettings(opts)
	if s.backend == nil {
		return nil, status.ErrNoBackend
	}
	dir := newEnvDir(path, s)
	has, err := dir.store.Has(context.Background(), model.ManifestFilename)
	if err != nil {
		return nil, status.ErrReadManifest.Wrap(err)
	}
	if !has {
		return nil, status.ErrNoManifest.WrapMessage("%s", path)
	}
	return &Environment{envDir: dir}, nil
}

// Init creates a new environment directory with some manifest, or an empty one
func Init(path, contents string, opts ...Option) (*Environment, error) {
	s := defaultSettings(opts)
	if contents == "" {
		contents = manifest.EmptyManifest
	}
	if _, err := manifest.Parse(contents); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(path, 0o755); err != nil {
		return nil, status.ErrWriteEnvironment.Wrap(err)
	}
	dir := newEnvDir(path, s)
	if err := storage.PutBytes(context.Background(), dir.store, model.ManifestFilename, []byte(contents), storage.NoOverWrite); err != nil {
		return nil, status.ErrWriteEnvironment.Wrap(err)
	}
	return Open(path, opts...)
}

// Path of the environment directory
func (d *envDir) Path() string {
	return d.path
}

// ManifestPath is the location of the manifest
func (d *envDir) ManifestPath() string {
	return filepath.Join(d.path, model.ManifestFilename)
}

// LockfilePath is the location of the lockfile, which may not exist
func (d *envDir) LockfilePath() string {
	return filepath.Join(d.path, model.LockfileFilename)
}

// ManifestContents yields the manifest text
func (d *envDir) ManifestContents() (string, error) {
	b, err := storage.ReadAll(context.Background(), d.store, model.ManifestFilename)
	if err != nil {
		return "", status.ErrReadManifest.Wrap(err)
	}
	return string(b), nil
}

// Manifest yields the parsed manifest
func (d *envDir) Manifest() (*manifest.Manifest, error) {
	text, err := d.ManifestContents()
	if err != nil {
		return nil, err
	}
	return manifest.Parse(text)
}

// Lockfile yields the parsed lockfile, nil if the environment was never locked
func (d *envDir) Lockfile() (*model.Lockfile, error) {
	raw, err := d.lockfileContents()
	if err != nil || raw == nil {
		return nil, err
	}
	lock, err := model.ParseLockfile(raw)
	if err != nil {
		return nil, status.ErrBadLockfile.Wrap(err)
	}
	return lock, nil
}

func (d *envDir) lockfileContents() ([]byte, error) {
	raw, err := storage.ReadAll(context.Background(), d.store, model.LockfileFilename)
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotExists) {
			return nil, nil
		}
		return nil, status.ErrBadLockfile.Wrap(err)
	}
	return raw, nil
}

// Lock resolves the manifest and writes the lockfile.
//
// Without a lockfile, resolution is seeded by the global manifest. Otherwise it is
// seeded by the existing lockfile, so that locked packages do not move.
func (d *envDir) Lock(ctx context.Context) (*model.Lockfile, error) {
	defer d.m.Since("lock", time.Now())

	existing, global := "", d.globalManifest
	has, err := d.store.Has(ctx, model.LockfileFilename)
	if err != nil {
		return nil, status.ErrBadLockfile.Wrap(err)
	}
	if has {
		existing, global = d.LockfilePath(), ""
	}

	raw, err := d.backend.Lock(ctx, d.ManifestPath(), existing, global)
	if err != nil {
		return nil, err
	}
	lock, err := model.ParseLockfile(raw)
	if err != nil {
		return nil, status.ErrBadLockfile.Wrap(err)
	}
	if err := storage.PutBytes(ctx, d.store, model.LockfileFilename, raw, storage.OverWrite); err != nil {
		return nil, status.ErrWriteEnvironment.Wrap(err)
	}
	d.l.Debug("locked environment", zap.String("path", d.path), zap.Int("packages", len(lock.Packages)))
	return lock, nil
}

// Build locks then builds the environment, yielding the output path
func (d *envDir) Build(ctx context.Context) (string, error) {
	if _, err := d.Lock(ctx); err != nil {
		return "", err
	}
	return d.buildLocked(ctx, "")
}

func (d *envDir) buildLocked(ctx context.Context, outLink string) (string, error) {
	defer d.m.Since("build", time.Now())

	storePath, err := d.backend.Build(ctx, d.LockfilePath(), outLink)
	if err != nil {
		return "", err
	}
	d.l.Debug("built environment", zap.String("path", d.path), zap.String("store_path", storePath))
	return storePath, nil
}

// Link builds the environment and atomically points a symlink at the output
func (d *envDir) Link(ctx context.Context, outLink string) (string, error) {
	if _, err := d.Lock(ctx); err != nil {
		return "", err
	}
	dir, name := filepath.Split(outLink)
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return "", status.ErrLink.Wrap(err)
	}
	staged := filepath.Join(dir, "."+name+"."+ksuid.New().String()+".link")
	storePath, err := d.buildLocked(ctx, staged)
	if err != nil {
		_ = d.fs.Remove(staged)
		return "", err
	}
	if err := d.fs.Rename(staged, outLink); err != nil {
		_ = d.fs.Remove(staged)
		return "", status.ErrLink.Wrap(err)
	}
	d.l.Debug("linked environment", zap.String("link", outLink), zap.String("store_path", storePath))
	return storePath, nil
}

// removeAll is used to clean temporary directories, which may be left behind on failure
func (d *envDir) removeAll(path string) {
	if err := d.fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		d.l.Warn("could not remove temporary directory", zap.String("path", path), zap.Error(err))
	}
}
