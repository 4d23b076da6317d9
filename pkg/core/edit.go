package core

import (
	"context"

	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/metrics"
)

// EditKind classifies the outcome of an edit
type EditKind int

const (
	// Unchanged means the new manifest is identical to the previous one: nothing was done
	Unchanged EditKind = iota

	// ReActivateRequired means the hook, variables or profile changed: active shells are stale
	ReActivateRequired

	// Success means the environment was updated, active shells pick the change up
	Success
)

func (k EditKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case ReActivateRequired:
		return "re-activate required"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// EditResult is the outcome of an edit
type EditResult struct {
	Kind EditKind

	// StorePath of the built environment, empty when unchanged or when the build failed
	StorePath string

	// BuildErr is the build failure of an unsafe edit
	BuildErr error
}

// ClassifyEdit compares two manifests
func ClassifyEdit(old, updated string) (EditKind, error) {
	if old == updated {
		return Unchanged, nil
	}
	oldManifest, err := manifest.Parse(old)
	if err != nil {
		return Unchanged, err
	}
	newManifest, err := manifest.Parse(updated)
	if err != nil {
		return Unchanged, err
	}
	if manifest.ActivationChanged(oldManifest, newManifest) {
		return ReActivateRequired, nil
	}
	return Success, nil
}

// Edit replaces the manifest. The environment is updated only if the new manifest builds.
func (e *Environment) Edit(ctx context.Context, contents string) (EditResult, error) {
	return e.edit(ctx, "edit", contents, false)
}

// EditUnsafe replaces the manifest, even if the new manifest does not build.
//
// The build failure, if any, is reported in the result.
func (e *Environment) EditUnsafe(ctx context.Context, contents string) (EditResult, error) {
	return e.edit(ctx, "edit-unsafe", contents, true)
}

func (e *Environment) edit(ctx context.Context, op, contents string, unsafe bool) (EditResult, error) {
	old, err := e.ManifestContents()
	if err != nil {
		return EditResult{}, err
	}
	kind, err := ClassifyEdit(old, contents)
	if err != nil {
		return EditResult{}, err
	}
	if kind == Unchanged {
		e.m.Transaction(op, metrics.OutcomeUnchanged)
		return EditResult{Kind: Unchanged}, nil
	}

	tx, err := e.transact(ctx, op, func(sb *sandbox) error {
		return sb.writeManifest(ctx, contents)
	}, txFlow{unsafe: unsafe})
	if err != nil {
		return EditResult{}, err
	}
	return EditResult{Kind: kind, StorePath: tx.storePath, BuildErr: tx.buildErr}, nil
}
