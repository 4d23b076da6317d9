package generations

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/storage"
	"github.com/oneconcern/envmon/pkg/storage/localfs"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Writable generations live in a private clone of the generations repository.
//
// Every change is committed and pushed back to the generations repository in one step.
// A Writable must be closed to remove its clone.
type Writable struct {
	*Generations
	git    *vcs.Git
	remote string
	root   string
	fs     afero.Fs
	store  storage.Store
}

// Writable checks out the generations branch into a private clone under tempDir
func (g *Generations) Writable(ctx context.Context, tempDir string) (*Writable, error) {
	w, err := g.cloneTo(ctx, tempDir)
	if err != nil {
		return nil, err
	}
	if err := w.git.Checkout(ctx, g.branch, false); err != nil {
		w.Close()
		return nil, ErrCloneToFS.Wrap(err)
	}
	return w, nil
}

func (g *Generations) cloneTo(ctx context.Context, tempDir string) (*Writable, error) {
	root := filepath.Join(tempDir, "envmon-generations-"+ksuid.New().String())
	clone, err := vcs.Clone(ctx, g.repo.Path(), filepath.Join(root, "repo"), false, g.gitOptions...)
	if err != nil {
		_ = os.RemoveAll(root)
		return nil, ErrCloneToFS.Wrap(err)
	}
	g.l.Debug("checked out generations", zap.String("branch", g.branch), zap.String("clone", clone.Path()))
	return g.newWritable(clone, vcs.DefaultRemote, root), nil
}

func (g *Generations) newWritable(git *vcs.Git, remote, root string) *Writable {
	fs := afero.NewOsFs()
	return &Writable{
		Generations: New(git, g.branch, g.options()...),
		git:         git,
		remote:      remote,
		root:        root,
		fs:          fs,
		store:       storage.Instrument(g.l, localfs.NewAtomic(afero.NewBasePathFs(fs, git.Path()))),
	}
}

func (s settings) options() []Option {
	return []Option{
		WithCoreOptions(s.coreOptions...),
		WithGitOptions(s.gitOptions...),
		WithLogger(s.l),
		WithMetrics(s.m),
	}
}

// Init creates a new generations branch, without any generation, and pushes it to the generations repository.
//
// The branch is created in a fresh repository, so that it shares no history with other branches.
func Init(ctx context.Context, repo vcs.Provider, branch, name, tempDir string, opts ...Option) (*Generations, error) {
	g := New(repo, branch, opts...)
	root := filepath.Join(tempDir, "envmon-generations-"+ksuid.New().String())
	gitOptions := append(append([]vcs.Option{}, g.gitOptions...), vcs.WithDefaultBranch(branch))
	fresh, err := vcs.Init(ctx, filepath.Join(root, "repo"), false, gitOptions...)
	if err != nil {
		_ = os.RemoveAll(root)
		return nil, ErrInitBranch.Wrap(err)
	}
	w := g.newWritable(fresh, repo.Path(), root)
	defer w.Close()

	if err := w.writeMetadata(ctx, model.NewGenerationsMetadata()); err != nil {
		return nil, err
	}
	if err := w.commit(ctx, fmt.Sprintf("Initialize generations branch for environment '%s'", name), model.GenerationsMetadataFilename); err != nil {
		return nil, err
	}
	return g, nil
}

// Path of the private clone
func (w *Writable) Path() string {
	return w.git.Path()
}

// Close removes the private clone
func (w *Writable) Close() {
	if err := os.RemoveAll(w.root); err != nil {
		w.l.Warn("could not remove generations clone", zap.String("path", w.root), zap.Error(err))
	}
}

// GetGeneration opens the environment of a generation, inside the private clone.
//
// Changes made to this environment stay in the clone: they are only recorded by AddGeneration,
// as a new generation.
func (w *Writable) GetGeneration(ctx context.Context, id model.GenerationID) (*core.Environment, error) {
	if err := w.ensureGeneration(ctx, id); err != nil {
		return nil, err
	}
	return core.Open(filepath.Join(w.Path(), model.GetGenerationEnvDir(id)), w.coreOptions...)
}

// GetCurrentGeneration opens the environment of the current generation
func (w *Writable) GetCurrentGeneration(ctx context.Context) (*core.Environment, error) {
	m, err := w.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := m.Current()
	if !ok {
		return nil, ErrNoGenerations
	}
	return w.GetGeneration(ctx, current)
}

// AddGeneration records an environment as a new generation, which becomes the current one.
//
// The new generation number is the highest existing number plus one, so numbers are never reused
// even after switching back to an older generation.
func (w *Writable) AddGeneration(ctx context.Context, env *core.Environment, description string) (model.GenerationID, error) {
	m, err := w.Metadata(ctx)
	if err != nil {
		return 0, err
	}
	id := m.Max() + 1

	envDir := filepath.Join(w.Path(), model.GetGenerationEnvDir(id))
	if err := core.CopyDir(w.fs, env.Path(), envDir); err != nil {
		return 0, ErrCopyGeneration.Wrap(err)
	}

	m.Generations[id] = model.NewSingleGenerationMetadata(description)
	m.SetCurrent(id, model.Now())
	if err := w.writeMetadata(ctx, m); err != nil {
		return 0, err
	}

	message := fmt.Sprintf("Create generation %v\n\n%s", id, description)
	if err := w.commit(ctx, message, model.GetGenerationDir(id), model.GenerationsMetadataFilename); err != nil {
		return 0, err
	}
	w.m.GenerationCreated()
	w.l.Info("created generation", zap.String("branch", w.branch), zap.Stringer("generation", id), zap.String("description", description))
	return id, nil
}

// SetCurrentGeneration switches to an existing generation. Only the metadata changes.
func (w *Writable) SetCurrentGeneration(ctx context.Context, id model.GenerationID) error {
	m, err := w.Metadata(ctx)
	if err != nil {
		return err
	}
	if current, ok := m.Current(); ok && current == id {
		return ErrRollbackToCurrentGeneration.WrapMessage("%v", id)
	}
	if !m.Has(id) {
		return ErrGenerationNotFound.WrapMessage("%v", id)
	}

	m.SetCurrent(id, model.Now())
	if err := w.writeMetadata(ctx, m); err != nil {
		return err
	}
	return w.commit(ctx, fmt.Sprintf("Set current generation to %v", id), model.GenerationsMetadataFilename)
}

func (w *Writable) writeMetadata(ctx context.Context, m *model.GenerationsMetadata) error {
	raw, err := model.MarshalGenerationsMetadata(m)
	if err != nil {
		return ErrWriteMetadata.Wrap(err)
	}
	if err := storage.PutBytes(ctx, w.store, model.GenerationsMetadataFilename, raw, storage.OverWrite); err != nil {
		return ErrWriteMetadata.Wrap(err)
	}
	return nil
}

// commit stages some paths, commits and pushes the branch back to the generations repository
func (w *Writable) commit(ctx context.Context, message string, paths ...string) error {
	if err := w.git.Add(ctx, paths...); err != nil {
		return ErrStageChanges.Wrap(err)
	}
	if err := w.git.Commit(ctx, message); err != nil {
		return ErrCommitChanges.Wrap(err)
	}
	if err := w.git.Push(ctx, w.remote, w.branch+":"+w.branch, false); err != nil {
		return ErrCompleteTransaction.Wrap(err)
	}
	return nil
}
