// Package managed keeps a working copy of an environment in sync with a shared upstream.
//
// The generations of all environments of an owner live in one bare clone of the
// owner's upstream repository, under the data directory. Each working copy gets
// its own branch in this clone, named "<name>.<hash of the working copy path>",
// while the local branch "<name>" mirrors the upstream branch.
//
// The pin record (env.lock) stored in the working copy tells which upstream
// commit the working copy is synchronized to, and which local commit it carries
// when it has changes which were not pushed yet.
//
// Working copies never merge: pushing and pulling only fast-forward, unless forced.
package managed

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oneconcern/envmon/pkg/config"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/generations"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/registry"
	"github.com/oneconcern/envmon/pkg/storage"
	"github.com/oneconcern/envmon/pkg/storage/localfs"
	"github.com/oneconcern/envmon/pkg/storage/status"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Environment is a working copy of an upstream environment
type Environment struct {
	settings
	cfg      *config.Config
	path     string
	pointer  model.ManagedPointer
	floxmeta *vcs.Git
	store    storage.Store
}

// Encode yields the stable identifier of a working copy path, used in branch names.
//
// The path must be canonical: the same directory reached through different paths
// must yield the same identifier.
func Encode(path string) string {
	sum := blake2b.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// BranchName is the working copy branch for some environment at some canonical path
func BranchName(pointer model.ManagedPointer, path string) string {
	return pointer.Name + "." + Encode(path)
}

// DecodeBranch finds the working copy directory behind a working copy branch
func DecodeBranch(cfg *config.Config, branch string) (string, error) {
	parts := strings.Split(branch, ".")
	if len(parts) != 2 || parts[1] == "" {
		return "", ErrBadBranchName.WrapMessage("%s", branch)
	}
	links, err := registry.Open(cfg.LinksDir())
	if err != nil {
		return "", ErrProjectNotFound.Wrap(err)
	}
	defer links.Close()

	link, err := links.Lookup(parts[1])
	if err != nil {
		return "", ErrProjectNotFound.WrapMessage("%s", branch).Wrap(err)
	}
	if _, err := os.Stat(link.Path); err != nil {
		return "", ErrProjectNotFound.WrapMessage("%s", link.Path).Wrap(err)
	}
	return link.Path, nil
}

// WorkingCopy is a managed environment directory opened on this machine
type WorkingCopy struct {
	Path       string
	Registered time.Time

	// Pointer is empty when the directory is gone or no longer managed
	Pointer model.ManagedPointer
}

// WorkingCopies lists the working copies registered on this machine, sorted by path
func WorkingCopies(ctx context.Context, cfg *config.Config) ([]WorkingCopy, error) {
	links, err := registry.Open(cfg.LinksDir())
	if err != nil {
		return nil, ErrReverseLink.Wrap(err)
	}
	defer links.Close()

	all, err := links.List()
	if err != nil {
		return nil, ErrReverseLink.Wrap(err)
	}
	copies := make([]WorkingCopy, 0, len(all))
	for _, link := range all {
		wc := WorkingCopy{Path: link.Path, Registered: link.Registered.Time}
		if pointer, err := ReadPointer(ctx, link.Path); err == nil {
			wc.Pointer = pointer
		}
		copies = append(copies, wc)
	}
	sort.Slice(copies, func(i, j int) bool { return copies[i].Path < copies[j].Path })
	return copies, nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrCanonicalPath.Wrap(err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", ErrCanonicalPath.Wrap(err)
	}
	return resolved, nil
}

func newStore(l *zap.Logger, path string) storage.Store {
	return storage.Instrument(l, localfs.NewAtomic(afero.NewBasePathFs(afero.NewOsFs(), path)))
}

// IsManaged tells if a directory holds a managed pointer
func IsManaged(path string) bool {
	_, err := os.Stat(filepath.Join(path, model.PointerFilename))
	return err == nil
}

// ReadPointer reads the managed pointer of a working copy
func ReadPointer(ctx context.Context, path string) (model.ManagedPointer, error) {
	raw, err := storage.ReadAll(ctx, newStore(zap.NewNop(), path), model.PointerFilename)
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return model.ManagedPointer{}, ErrNotManaged.WrapMessage("%s", path)
		}
		return model.ManagedPointer{}, ErrInvalidPointer.Wrap(err)
	}
	pointer, err := model.UnmarshalPointer(raw)
	if err != nil {
		return model.ManagedPointer{}, ErrInvalidPointer.Wrap(err)
	}
	return pointer, nil
}

func writePointer(ctx context.Context, path string, pointer model.ManagedPointer) error {
	raw, err := model.MarshalPointer(pointer)
	if err != nil {
		return ErrInvalidPointer.Wrap(err)
	}
	return storage.PutBytes(ctx, newStore(zap.NewNop(), path), model.PointerFilename, raw, storage.OverWrite)
}

// OpenFloxmeta opens the generations repository of an owner, cloning it from upstream on first use
func OpenFloxmeta(ctx context.Context, cfg *config.Config, owner string, opts ...vcs.Option) (*vcs.Git, error) {
	dir := cfg.MetaDir(owner)
	repo, err := vcs.Open(ctx, dir, opts...)
	if err == nil {
		return repo, nil
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		return nil, ErrOpenFloxmeta.Wrap(err)
	}
	repo, err = vcs.Clone(ctx, cfg.UpstreamURL(owner), dir, true, opts...)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, ErrOpenFloxmeta.Wrap(err)
	}
	return repo, nil
}

// Open the working copy at some path, as described by its managed pointer
func Open(ctx context.Context, cfg *config.Config, path string, opts ...Option) (*Environment, error) {
	s := defaultSettings(opts)
	pointer, err := ReadPointer(ctx, path)
	if err != nil {
		return nil, err
	}
	floxmeta, err := OpenFloxmeta(ctx, cfg, pointer.Owner, s.gitOptions...)
	if err != nil {
		return nil, err
	}
	return OpenWith(ctx, cfg, floxmeta, pointer, path, opts...)
}

// OpenWith opens a working copy backed by a given generations repository.
//
// Opening pins the working copy to an upstream commit if it was not yet, makes sure
// the pinned commits are available, and points the working copy branch at them.
func OpenWith(ctx context.Context, cfg *config.Config, floxmeta *vcs.Git, pointer model.ManagedPointer, path string, opts ...Option) (*Environment, error) {
	canonical, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	s := defaultSettings(opts)
	e := &Environment{
		settings: s,
		cfg:      cfg,
		path:     canonical,
		pointer:  pointer,
		floxmeta: floxmeta,
		store:    newStore(s.l, canonical),
	}

	pin, err := e.ensureLocked(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.ensureBranch(ctx, pin); err != nil {
		return nil, err
	}
	if err := e.ensureReverseLink(); err != nil {
		return nil, err
	}
	return e, nil
}

// Path of the working copy
func (e *Environment) Path() string {
	return e.path
}

// Pointer to the upstream environment
func (e *Environment) Pointer() model.ManagedPointer {
	return e.pointer
}

// Owner of the upstream environment
func (e *Environment) Owner() string {
	return e.pointer.Owner
}

// Name of the environment
func (e *Environment) Name() string {
	return e.pointer.Name
}

// Branch is the working copy branch
func (e *Environment) Branch() string {
	return BranchName(e.pointer, e.path)
}

// SyncBranch is the local branch mirroring upstream
func (e *Environment) SyncBranch() string {
	return e.pointer.Name
}

// Floxmeta is the generations repository of the owner
func (e *Environment) Floxmeta() *vcs.Git {
	return e.floxmeta
}

// OutLink is where the current generation is linked to once built
func (e *Environment) OutLink() string {
	return filepath.Join(e.cfg.RunDir(e.pointer.Owner), e.Branch())
}

// Generations of the working copy
func (e *Environment) Generations() *generations.Generations {
	return generations.New(e.floxmeta, e.Branch(), e.generationsOptions(e.cfg)...)
}

// Pin reads the pin record. The boolean is false when the working copy was never pinned.
func (e *Environment) Pin(ctx context.Context) (model.PinRecord, bool, error) {
	raw, err := storage.ReadAll(ctx, e.store, model.PinFilename)
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return model.PinRecord{}, false, nil
		}
		return model.PinRecord{}, false, ErrInvalidPin.Wrap(err)
	}
	pin, err := model.UnmarshalPinRecord(raw)
	if err != nil {
		return model.PinRecord{}, false, ErrInvalidPin.Wrap(err)
	}
	return pin, true, nil
}

// writePin pins the working copy to the tip of the sync branch and, if some local branch is
// given, to its tip as the local revision
func (e *Environment) writePin(ctx context.Context, localBranch string) (model.PinRecord, error) {
	return writePin(ctx, e.l, e.store, e.floxmeta, e.SyncBranch(), localBranch)
}

func writePin(ctx context.Context, l *zap.Logger, store storage.Store, repo vcs.Provider, syncBranch, localBranch string) (model.PinRecord, error) {
	rev, err := repo.BranchHash(ctx, syncBranch)
	if err != nil {
		return model.PinRecord{}, ErrWritePin.Wrap(err)
	}
	localRev := ""
	if localBranch != "" {
		if localRev, err = repo.BranchHash(ctx, localBranch); err != nil {
			return model.PinRecord{}, ErrWritePin.Wrap(err)
		}
	}
	pin := model.NewPinRecord(rev, localRev)
	raw, err := model.MarshalPinRecord(pin)
	if err != nil {
		return model.PinRecord{}, ErrWritePin.Wrap(err)
	}
	if err := storage.PutBytes(ctx, store, model.PinFilename, raw, storage.OverWrite); err != nil {
		return model.PinRecord{}, ErrWritePin.Wrap(err)
	}
	l.Debug("wrote pin record", zap.String("rev", pin.Rev), zap.String("local_rev", pin.LocalRev))
	return pin, nil
}

func (e *Environment) fetch(ctx context.Context) error {
	sync := e.SyncBranch()
	if err := e.floxmeta.Fetch(ctx, vcs.DefaultRemote, "+"+sync+":"+sync); err != nil {
		return ErrFetch.WrapMessage("%s", e.pointer).Wrap(err)
	}
	return nil
}

// branchContains tells if a commit is on some branch, which may not exist yet
func (e *Environment) branchContains(ctx context.Context, commit, branch string) (bool, error) {
	has, err := e.floxmeta.HasBranch(ctx, branch)
	if err != nil || !has {
		return false, wrapGit(err)
	}
	contained, err := e.floxmeta.BranchContainsCommit(ctx, commit, branch)
	return contained, wrapGit(err)
}

func wrapGit(err error) error {
	if err == nil {
		return nil
	}
	return ErrGit.Wrap(err)
}

// ensureLocked makes sure the working copy is pinned and that the pinned commits are available.
//
// A pinned local revision must already be known: it can't be fetched, since it was never pushed.
// A pinned upstream revision must be on the sync branch, possibly after fetching, or
// on the working copy branch.
func (e *Environment) ensureLocked(ctx context.Context) (model.PinRecord, error) {
	pin, ok, err := e.Pin(ctx)
	if err != nil {
		return model.PinRecord{}, err
	}

	switch {
	case !ok:
		e.l.Debug("pinning working copy to upstream", zap.String("environment", e.pointer.String()))
		if err := e.fetch(ctx); err != nil {
			return model.PinRecord{}, err
		}
		return e.writePin(ctx, "")

	case pin.HasLocalRev():
		known, err := e.floxmeta.ContainsCommit(ctx, pin.LocalRev)
		if err != nil {
			return model.PinRecord{}, wrapGit(err)
		}
		if !known {
			return model.PinRecord{}, ErrLocalRevDoesNotExist.WrapMessage("%s", pin.LocalRev)
		}
		return pin, nil

	default:
		contained, err := e.branchContains(ctx, pin.Rev, e.SyncBranch())
		if err != nil {
			return model.PinRecord{}, err
		}
		if contained {
			return pin, nil
		}
		if err := e.fetch(ctx); err != nil {
			return model.PinRecord{}, err
		}
		if contained, err = e.branchContains(ctx, pin.Rev, e.SyncBranch()); err != nil || contained {
			return pin, err
		}
		if contained, err = e.branchContains(ctx, pin.Rev, e.Branch()); err != nil || contained {
			return pin, err
		}
		return model.PinRecord{}, ErrRevDoesNotExist.WrapMessage("%s", pin.Rev)
	}
}

// ensureBranch points the working copy branch at the pinned commit, creating it if needed.
//
// The branch is reset, never merged: commits it pointed at are left to garbage collection.
func (e *Environment) ensureBranch(ctx context.Context, pin model.PinRecord) error {
	branch, current := e.Branch(), pin.Current()
	hash, err := e.floxmeta.BranchHash(ctx, branch)
	switch {
	case errors.Is(err, vcs.ErrBranchNotFound):
		return wrapGit(e.floxmeta.CreateBranch(ctx, branch, current))
	case err != nil:
		return wrapGit(err)
	case hash != current:
		e.l.Debug("resetting working copy branch", zap.String("branch", branch), zap.String("from", hash), zap.String("to", current))
		return wrapGit(e.floxmeta.ResetBranch(ctx, branch, current))
	default:
		return nil
	}
}

func (e *Environment) ensureReverseLink() error {
	links, err := registry.Open(e.cfg.LinksDir(), registry.WithLogger(e.l))
	if err != nil {
		return ErrReverseLink.Wrap(err)
	}
	defer links.Close()

	hash := Encode(e.path)
	link, err := links.Lookup(hash)
	if err == nil && link.Path == e.path {
		return nil
	}
	if err != nil && !errors.Is(err, registry.ErrLinkNotFound) {
		return ErrReverseLink.Wrap(err)
	}
	if err := links.Register(hash, e.path); err != nil {
		return ErrReverseLink.Wrap(err)
	}
	return nil
}

// Delete the working copy and its branch
func (e *Environment) Delete(ctx context.Context) error {
	if err := os.RemoveAll(e.path); err != nil {
		return ErrDeleteEnvironment.WrapMessage("%s", e.path).Wrap(err)
	}
	if err := e.floxmeta.DeleteBranch(ctx, e.Branch()); err != nil && !errors.Is(err, vcs.ErrBranchNotFound) {
		return ErrDeleteEnvironment.Wrap(err)
	}

	links, err := registry.Open(e.cfg.LinksDir(), registry.WithLogger(e.l))
	if err != nil {
		return ErrDeleteEnvironment.Wrap(err)
	}
	defer links.Close()
	if err := links.Delete(Encode(e.path)); err != nil {
		return ErrDeleteEnvironment.Wrap(err)
	}
	return nil
}
