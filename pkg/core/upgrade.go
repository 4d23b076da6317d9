package core

import (
	"context"

	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/model"
	"go.uber.org/zap"
)

// PackageChange is a package whose resolution changed
type PackageChange struct {
	Old model.LockedPackage
	New model.LockedPackage
}

// UpgradeDiff lists changed packages as install id -> system -> change
type UpgradeDiff map[string]map[string]PackageChange

// Len counts changed packages, across systems
func (d UpgradeDiff) Len() int {
	n := 0
	for _, bySystem := range d {
		n += len(bySystem)
	}
	return n
}

// UpgradeResult is the outcome of an upgrade
type UpgradeResult struct {
	Old *model.Lockfile
	New *model.Lockfile

	// StorePath of the new build, empty when nothing changed
	StorePath string

	// DryRun results were not applied to the environment
	DryRun bool
}

// Diff lists the packages whose derivation changed
func (r UpgradeResult) Diff() UpgradeDiff {
	diff := make(UpgradeDiff)
	if r.Old == nil || r.New == nil {
		return diff
	}
	before := r.Old.PackagesByID()
	for id, bySystem := range r.New.PackagesByID() {
		for system, pkg := range bySystem {
			previous, ok := before[id][system]
			if !ok || previous.Derivation == pkg.Derivation {
				continue
			}
			if diff[id] == nil {
				diff[id] = make(map[string]PackageChange)
			}
			diff[id][system] = PackageChange{Old: previous, New: pkg}
		}
	}
	return diff
}

// Upgrade re-resolves packages, designated by install id or group.
// An empty list of selectors upgrades all packages.
//
// The environment is left untouched when no package changes. A dry run builds
// the new lockfile in a sandbox, but does not apply it.
func (e *Environment) Upgrade(ctx context.Context, selectors []string, dryRun bool) (UpgradeResult, error) {
	m, err := e.Manifest()
	if err != nil {
		return UpgradeResult{}, err
	}
	if err = manifest.ValidateUpgradeSelectors(m, selectors); err != nil {
		return UpgradeResult{}, err
	}
	old, err := e.Lockfile()
	if err != nil {
		return UpgradeResult{}, err
	}

	result := UpgradeResult{Old: old, DryRun: dryRun}
	tx, err := e.transact(ctx, "upgrade", func(sb *sandbox) error {
		var err error
		if old != nil && len(selectors) > 0 {
			seed := old.Clone()
			seed.UnlockPackages(selectors)
			err = sb.writeLockfile(ctx, seed)
		} else {
			err = sb.removeLockfile(ctx)
		}
		if err != nil {
			return err
		}
		if result.New, err = sb.lock(ctx); err != nil {
			return err
		}
		if result.Diff().Len() == 0 {
			e.l.Debug("no package to upgrade", zap.Strings("selectors", selectors))
			return errSkipTransaction
		}
		return nil
	}, txFlow{dryRun: dryRun})
	if err != nil {
		return UpgradeResult{}, err
	}
	result.StorePath = tx.storePath
	return result, nil
}
