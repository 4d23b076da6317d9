package cmd

import (
	"context"
	"path/filepath"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/managed"
	"github.com/oneconcern/envmon/pkg/manifest"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/vcs"
)

var errNotManaged = errors.New("this command requires a managed environment: publish it first with push --new")

// environment is what commands do with either a path or a managed environment
type environment interface {
	ManifestContents(context.Context) (string, error)
	Install(context.Context, []manifest.PackageToInstall) (core.InstallResult, error)
	Uninstall(context.Context, []string) (core.UninstallResult, error)
	Edit(context.Context, string) (core.EditResult, error)
	Upgrade(context.Context, []string, bool) (core.UpgradeResult, error)
	Build(context.Context) (string, error)
	Link(context.Context) (string, error)
	Lockfile(context.Context) (*model.Lockfile, error)
}

var (
	_ environment = pathEnvironment{}
	_ environment = &managed.Environment{}
)

// pathEnvironment is an environment living in the project directory
type pathEnvironment struct {
	*core.Environment
	outLink string
}

func (p pathEnvironment) ManifestContents(_ context.Context) (string, error) {
	return p.Environment.ManifestContents()
}

func (p pathEnvironment) Link(ctx context.Context) (string, error) {
	return p.Environment.Link(ctx, p.outLink)
}

func (p pathEnvironment) Lockfile(_ context.Context) (*model.Lockfile, error) {
	return p.Environment.Lockfile()
}

func pathEnvDir() string {
	return filepath.Join(envmonFlags.root.dir, model.EnvDirName)
}

func coreOptions() []core.Option {
	return []core.Option{
		core.WithBackend(newBackend(cfg, logger)),
		core.WithTempDir(cfg.TempDir),
		core.WithGlobalManifest(cfg.GlobalManifest),
		core.WithLogger(logger),
		core.WithMetrics(m),
	}
}

func gitOptions() []vcs.Option {
	return []vcs.Option{vcs.WithBinary(cfg.GitBinary), vcs.WithLogger(logger)}
}

func managedOptions() []managed.Option {
	return []managed.Option{
		managed.WithBackend(newBackend(cfg, logger)),
		managed.WithGitOptions(gitOptions()...),
		managed.WithLogger(logger),
		managed.WithMetrics(m),
	}
}

func openPathEnvironment() (pathEnvironment, error) {
	env, err := core.Open(pathEnvDir(), coreOptions()...)
	if err != nil {
		return pathEnvironment{}, err
	}
	return pathEnvironment{
		Environment: env,
		outLink:     filepath.Join(envmonFlags.root.dir, "run", cfg.System),
	}, nil
}

func openManagedEnvironment(ctx context.Context) (*managed.Environment, error) {
	if !managed.IsManaged(envmonFlags.root.dir) {
		return nil, errNotManaged
	}
	if err := vcs.CheckVersion(ctx, gitOptions()...); err != nil {
		return nil, err
	}
	return managed.Open(ctx, cfg, envmonFlags.root.dir, managedOptions()...)
}

// openEnvironment opens the managed environment of the directory, if any, or its path environment
func openEnvironment(ctx context.Context) (environment, error) {
	if managed.IsManaged(envmonFlags.root.dir) {
		return openManagedEnvironment(ctx)
	}
	return openPathEnvironment()
}
