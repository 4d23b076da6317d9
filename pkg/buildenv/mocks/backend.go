// Package mocks provides an in-process build backend for tests.
//
// Lockfiles are derived deterministically from the manifest: each installed
// package gets a derivation computed from its pkg-path, version and the
// backend's current Revision. Bumping Revision simulates new upstream
// package versions, picked up by packages which are not locked.
package mocks

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/envmon/pkg/buildenv"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/model"
	"golang.org/x/crypto/blake2b"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ buildenv.Backend = &Backend{}

// Call records one invocation of the backend
type Call struct {
	Op   string
	Path string
}

// Backend is a deterministic buildenv.Backend
type Backend struct {
	mx sync.Mutex

	// System the backend builds for
	System string

	// Revision of the simulated package set
	Revision int

	// Broken packages (by pkg-path) fail to build
	Broken map[string]bool

	// Unknown packages (by pkg-path) fail to resolve
	Unknown map[string]bool

	// LockErr and BuildErr, when set, are returned by every call
	LockErr  error
	BuildErr error

	calls []Call
}

// New mock backend building for some system
func New(system string) *Backend {
	return &Backend{
		System:  system,
		Broken:  make(map[string]bool),
		Unknown: make(map[string]bool),
	}
}

// Calls made so far
func (b *Backend) Calls() []Call {
	b.mx.Lock()
	defer b.mx.Unlock()
	return append([]Call(nil), b.calls...)
}

// CountCalls to some operation: "lock" or "build"
func (b *Backend) CountCalls(op string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Bump the revision of the simulated package set
func (b *Backend) Bump() {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.Revision++
}

func (b *Backend) record(op, path string) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.calls = append(b.calls, Call{Op: op, Path: path})
}

func hash(parts ...string) string {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Lock the manifest, keeping locked packages from the existing lockfile when unchanged
func (b *Backend) Lock(_ context.Context, manifestPath, existingLockfile, _ string) ([]byte, error) {
	b.record("lock", manifestPath)
	if b.LockErr != nil {
		return nil, buildenv.ErrLock.Wrap(b.LockErr)
	}

	text, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, buildenv.ErrLock.Wrap(err)
	}
	m, err := manifest.Parse(string(text))
	if err != nil {
		return nil, buildenv.ErrLock.Wrap(err)
	}

	var existing map[string]map[string]model.LockedPackage
	if existingLockfile != "" {
		raw, err := os.ReadFile(existingLockfile)
		if err != nil {
			return nil, buildenv.ErrLock.Wrap(err)
		}
		previous, err := model.ParseLockfile(raw)
		if err != nil {
			return nil, buildenv.ErrLock.Wrap(err)
		}
		existing = previous.PackagesByID()
	}

	systems := m.Systems
	if len(systems) == 0 {
		systems = []string{b.System}
	}

	b.mx.Lock()
	revision := b.Revision
	b.mx.Unlock()

	rawManifest, err := json.Marshal(m)
	if err != nil {
		return nil, buildenv.ErrLock.Wrap(err)
	}
	lock := &model.Lockfile{
		LockfileVersion: 1,
		Manifest:        rawManifest,
		Packages:        []model.LockedPackage{},
	}
	for _, id := range m.InstallIDs() {
		d := m.Install[id]
		if b.Unknown[d.PkgPath] {
			return nil, buildenv.ErrLock.Wrap(fmt.Errorf("package %q not found", d.PkgPath))
		}
		for _, system := range systems {
			if previous, ok := existing[id][system]; ok && previous.AttrPath == d.PkgPath && sameVersion(previous, d) {
				previous.Group = d.PkgGroup
				lock.Packages = append(lock.Packages, previous)
				continue
			}
			version := d.Version
			if version == "" {
				version = fmt.Sprintf("1.%d", revision)
			}
			lock.Packages = append(lock.Packages, model.LockedPackage{
				InstallID:  id,
				System:     system,
				Group:      d.PkgGroup,
				AttrPath:   d.PkgPath,
				Version:    version,
				Derivation: "/nix/store/" + hash(system, d.PkgPath, version, fmt.Sprint(revision)) + "-" + id + ".drv",
				Outputs: map[string]string{
					"out": "/nix/store/" + hash("out", system, d.PkgPath, version, fmt.Sprint(revision)) + "-" + id,
				},
			})
		}
	}
	return lock.Marshal()
}

func sameVersion(locked model.LockedPackage, d manifest.Descriptor) bool {
	return d.Version == "" || d.Version == locked.Version
}

// Build a lockfile. The output path is derived from the lockfile content.
func (b *Backend) Build(_ context.Context, lockfilePath, outLink string) (string, error) {
	b.record("build", lockfilePath)
	if b.BuildErr != nil {
		return "", buildenv.ErrBuild.Wrap(b.BuildErr)
	}

	raw, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", buildenv.ErrBuild.Wrap(err)
	}
	lock, err := model.ParseLockfile(raw)
	if err != nil {
		return "", buildenv.ErrBuild.Wrap(err)
	}

	var m manifest.Manifest
	if len(lock.Manifest) > 0 {
		if err := json.Unmarshal(lock.Manifest, &m); err != nil {
			return "", buildenv.ErrBuild.Wrap(err)
		}
	}
	if !m.SupportsSystem(b.System) {
		return "", buildenv.ErrBuild.Wrap(fmt.Errorf("environment does not support system %s", b.System))
	}

	for _, p := range lock.Packages {
		if p.System == b.System && b.Broken[p.AttrPath] {
			return "", buildenv.ErrBuild.Wrap(fmt.Errorf("package %q failed to build", p.AttrPath))
		}
	}

	storePath := "/nix/store/" + hash(string(raw)) + "-environment"
	if outLink != "" {
		if err := os.MkdirAll(filepath.Dir(outLink), 0o755); err != nil {
			return "", buildenv.ErrBuild.Wrap(err)
		}
		_ = os.Remove(outLink)
		if err := os.Symlink(storePath, outLink); err != nil {
			return "", buildenv.ErrBuild.Wrap(err)
		}
	}
	return storePath, nil
}
