package core

import (
	"context"

	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/metrics"
)

// InstallResult is the outcome of an install
type InstallResult struct {
	// AlreadyInstalled tells for each requested install id whether it was already present
	AlreadyInstalled map[string]bool

	// NewManifest is nil when all packages were already installed: nothing was done
	NewManifest *string

	StorePath string
}

// Install packages
func (e *Environment) Install(ctx context.Context, pkgs []manifest.PackageToInstall) (InstallResult, error) {
	old, err := e.ManifestContents()
	if err != nil {
		return InstallResult{}, err
	}
	inserted, err := manifest.InsertPackages(old, pkgs)
	if err != nil {
		return InstallResult{}, err
	}
	result := InstallResult{AlreadyInstalled: inserted.AlreadyInstalled}
	if inserted.NewText == nil {
		e.m.Transaction("install", metrics.OutcomeUnchanged)
		return result, nil
	}

	tx, err := e.transact(ctx, "install", func(sb *sandbox) error {
		return sb.writeManifest(ctx, *inserted.NewText)
	}, txFlow{})
	if err != nil {
		return InstallResult{}, err
	}
	result.NewManifest = inserted.NewText
	result.StorePath = tx.storePath
	return result, nil
}

// UninstallResult is the outcome of an uninstall
type UninstallResult struct {
	// InstallIDs actually removed
	InstallIDs  []string
	NewManifest string
	StorePath   string
}

// Uninstall packages, designated by install id, pkg-path or pkg-path@version
func (e *Environment) Uninstall(ctx context.Context, packages []string) (UninstallResult, error) {
	old, err := e.ManifestContents()
	if err != nil {
		return UninstallResult{}, err
	}
	m, err := manifest.Parse(old)
	if err != nil {
		return UninstallResult{}, err
	}
	ids, err := manifest.InstallIDsToUninstall(m, packages)
	if err != nil {
		return UninstallResult{}, err
	}
	updated, err := manifest.RemovePackages(old, ids)
	if err != nil {
		return UninstallResult{}, err
	}

	tx, err := e.transact(ctx, "uninstall", func(sb *sandbox) error {
		return sb.writeManifest(ctx, updated)
	}, txFlow{})
	if err != nil {
		return UninstallResult{}, err
	}
	return UninstallResult{InstallIDs: ids, NewManifest: updated, StorePath: tx.storePath}, nil
}
