package managed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/generations"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/model"
	"go.uber.org/zap"
)

// change runs an operation against the current generation, in a private clone.
//
// When the operation reports a change, the modified environment is recorded as a new
// generation and the working copy is pinned to it.
func (e *Environment) change(ctx context.Context, apply func(*core.Environment) (description string, changed bool, err error)) error {
	w, err := e.Generations().Writable(ctx, e.cfg.TempDir)
	if err != nil {
		return err
	}
	defer w.Close()

	env, err := w.GetCurrentGeneration(ctx)
	if err != nil {
		return err
	}
	description, changed, err := apply(env)
	if err != nil || !changed {
		return err
	}
	if _, err := w.AddGeneration(ctx, env, description); err != nil {
		return err
	}
	_, err = e.writePin(ctx, e.Branch())
	return err
}

// currentGeneration runs a read-only operation against the current generation
func (e *Environment) currentGeneration(ctx context.Context, apply func(*core.Environment) error) error {
	w, err := e.Generations().Writable(ctx, e.cfg.TempDir)
	if err != nil {
		return err
	}
	defer w.Close()

	env, err := w.GetCurrentGeneration(ctx)
	if err != nil {
		return err
	}
	return apply(env)
}

func describe(verb string, ids []string) string {
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, fmt.Sprintf("%q", id))
	}
	return verb + " packages: [" + strings.Join(quoted, ", ") + "]"
}

// ManifestContents is the manifest of the current generation
func (e *Environment) ManifestContents(ctx context.Context) (string, error) {
	return e.Generations().CurrentGenManifest(ctx)
}

// Install packages, as a new generation
func (e *Environment) Install(ctx context.Context, pkgs []manifest.PackageToInstall) (result core.InstallResult, err error) {
	err = e.change(ctx, func(env *core.Environment) (string, bool, error) {
		result, err = env.Install(ctx, pkgs)
		if err != nil || result.NewManifest == nil {
			return "", false, err
		}
		ids := make([]string, 0, len(pkgs))
		seen := make(map[string]bool, len(pkgs))
		for _, pkg := range pkgs {
			if !result.AlreadyInstalled[pkg.ID] && !seen[pkg.ID] {
				ids = append(ids, pkg.ID)
			}
			seen[pkg.ID] = true
		}
		return describe("installed", ids), true, nil
	})
	return result, err
}

// Uninstall packages, as a new generation
func (e *Environment) Uninstall(ctx context.Context, packages []string) (result core.UninstallResult, err error) {
	err = e.change(ctx, func(env *core.Environment) (string, bool, error) {
		result, err = env.Uninstall(ctx, packages)
		if err != nil {
			return "", false, err
		}
		return describe("uninstalled", result.InstallIDs), true, nil
	})
	return result, err
}

// Edit replaces the manifest, as a new generation. An unchanged manifest creates no generation.
func (e *Environment) Edit(ctx context.Context, contents string) (result core.EditResult, err error) {
	err = e.change(ctx, func(env *core.Environment) (string, bool, error) {
		result, err = env.Edit(ctx, contents)
		if err != nil || result.Kind == core.Unchanged {
			return "", false, err
		}
		return "manually edited", true, nil
	})
	return result, err
}

// Upgrade packages, as a new generation. Nothing is recorded when no package changed, nor on a dry run.
func (e *Environment) Upgrade(ctx context.Context, selectors []string, dryRun bool) (result core.UpgradeResult, err error) {
	err = e.change(ctx, func(env *core.Environment) (string, bool, error) {
		result, err = env.Upgrade(ctx, selectors, dryRun)
		if err != nil || dryRun || result.Diff().Len() == 0 {
			return "", false, err
		}
		upgraded := make([]string, 0, len(result.Diff()))
		for id := range result.Diff() {
			upgraded = append(upgraded, id)
		}
		sort.Strings(upgraded)
		return describe("upgraded", upgraded), true, nil
	})
	return result, err
}

// AddSystem declares the current system as supported by the environment.
//
// This accepts an upstream generation which does not build here: the new generation is
// recorded even when it still fails to build, with the build error reported in the result.
func (e *Environment) AddSystem(ctx context.Context) (result core.EditResult, err error) {
	system := e.cfg.System
	err = e.change(ctx, func(env *core.Environment) (string, bool, error) {
		old, err := env.ManifestContents()
		if err != nil {
			return "", false, err
		}
		updated, err := manifest.AddSystem(old, system)
		if err != nil || updated == old {
			result = core.EditResult{Kind: core.Unchanged}
			return "", false, err
		}
		result, err = env.EditUnsafe(ctx, updated)
		if err != nil {
			return "", false, err
		}
		if result.BuildErr != nil {
			e.l.Warn("environment still does not build", zap.String("system", system), zap.Error(result.BuildErr))
		}
		return fmt.Sprintf("added system %s", system), true, nil
	})
	return result, err
}

// Build the current generation
func (e *Environment) Build(ctx context.Context) (storePath string, err error) {
	err = e.currentGeneration(ctx, func(env *core.Environment) error {
		storePath, err = env.Build(ctx)
		return err
	})
	return storePath, err
}

// Link builds the current generation and points the out-link of the working copy at it
func (e *Environment) Link(ctx context.Context) (storePath string, err error) {
	err = e.currentGeneration(ctx, func(env *core.Environment) error {
		storePath, err = env.Link(ctx, e.OutLink())
		return err
	})
	return storePath, err
}

// Lockfile of the current generation, nil if it was never locked
func (e *Environment) Lockfile(ctx context.Context) (*model.Lockfile, error) {
	gens := e.Generations()
	m, err := gens.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	current, ok := m.Current()
	if !ok {
		return nil, generations.ErrNoGenerations
	}
	return gens.Lockfile(ctx, current)
}

// SwitchGeneration makes an existing generation current: this is how changes are rolled back or forward.
func (e *Environment) SwitchGeneration(ctx context.Context, id model.GenerationID) error {
	w, err := e.Generations().Writable(ctx, e.cfg.TempDir)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.SetCurrentGeneration(ctx, id); err != nil {
		return err
	}
	_, err = e.writePin(ctx, e.Branch())
	return err
}
