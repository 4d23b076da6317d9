// Package generations stores the history of an environment as numbered generations on a git branch.
//
// Each generation is a full, immutable snapshot of an environment directory,
// stored under "<n>/env" on the branch. The metadata file at the root of the
// branch lists all generations and points at the current one.
//
// Generations are read without any checkout. Changes are made in a private,
// writable clone, committed and pushed back in one step.
package generations

import (
	"context"
	"fmt"

	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/pmezard/go-difflib/difflib"
)

// Generations is a read-only view of a generations branch
type Generations struct {
	settings
	repo   vcs.Provider
	branch string
}

// New read-only view of the generations stored on some branch
func New(repo vcs.Provider, branch string, opts ...Option) *Generations {
	return &Generations{
		settings: defaultSettings(opts),
		repo:     repo,
		branch:   branch,
	}
}

// Branch holding the generations
func (g *Generations) Branch() string {
	return g.branch
}

// Repo holding the generations branch
func (g *Generations) Repo() vcs.Provider {
	return g.repo
}

// Metadata reads the generations metadata from the tip of the branch
func (g *Generations) Metadata(ctx context.Context) (*model.GenerationsMetadata, error) {
	raw, err := g.repo.Show(ctx, model.GetMetadataObject(g.branch))
	if err != nil {
		return nil, ErrShowMetadata.Wrap(err)
	}
	m, err := model.UnmarshalGenerationsMetadata(raw)
	if err != nil {
		return nil, ErrBadMetadata.Wrap(err)
	}
	return m, nil
}

// Manifest of some generation
func (g *Generations) Manifest(ctx context.Context, id model.GenerationID) (string, error) {
	if err := g.ensureGeneration(ctx, id); err != nil {
		return "", err
	}
	raw, err := g.repo.Show(ctx, model.GetGenerationObject(g.branch, id, model.ManifestFilename))
	if err != nil {
		return "", ErrShowManifest.Wrap(err)
	}
	return string(raw), nil
}

// Lockfile of some generation, nil if the generation was never locked
func (g *Generations) Lockfile(ctx context.Context, id model.GenerationID) (*model.Lockfile, error) {
	if err := g.ensureGeneration(ctx, id); err != nil {
		return nil, err
	}
	raw, err := g.repo.Show(ctx, model.GetGenerationObject(g.branch, id, model.LockfileFilename))
	if err != nil {
		if errors.Is(err, vcs.ErrObjectNotFound) {
			return nil, nil
		}
		return nil, ErrShowManifest.Wrap(err)
	}
	lock, err := model.ParseLockfile(raw)
	if err != nil {
		return nil, ErrShowManifest.Wrap(err)
	}
	return lock, nil
}

// CurrentGenManifest is the manifest of the current generation
func (g *Generations) CurrentGenManifest(ctx context.Context) (string, error) {
	m, err := g.Metadata(ctx)
	if err != nil {
		return "", err
	}
	current, ok := m.Current()
	if !ok {
		return "", ErrNoGenerations
	}
	return g.Manifest(ctx, current)
}

func (g *Generations) ensureGeneration(ctx context.Context, id model.GenerationID) error {
	m, err := g.Metadata(ctx)
	if err != nil {
		return err
	}
	if !m.Has(id) {
		return ErrGenerationNotFound.WrapMessage("%v", id)
	}
	return nil
}

// HistoryEntry describes one generation
type HistoryEntry struct {
	ID      model.GenerationID
	Current bool
	model.SingleGenerationMetadata
}

// History lists all generations, oldest first
func (g *Generations) History(ctx context.Context) ([]HistoryEntry, error) {
	m, err := g.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	current, _ := m.Current()
	entries := make([]HistoryEntry, 0, len(m.Generations))
	for _, id := range m.IDs() {
		entries = append(entries, HistoryEntry{
			ID:                       id,
			Current:                  id == current,
			SingleGenerationMetadata: m.Generations[id],
		})
	}
	return entries, nil
}

// Diff the manifests of two generations, as a unified diff
func (g *Generations) Diff(ctx context.Context, from, to model.GenerationID) (string, error) {
	before, err := g.Manifest(ctx, from)
	if err != nil {
		return "", err
	}
	after, err := g.Manifest(ctx, to)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: fmt.Sprintf("generation %v", from),
		ToFile:   fmt.Sprintf("generation %v", to),
		Context:  3,
	})
}
