package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/managed"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push the changes of a managed environment upstream",
	Long: `Push the changes of a managed environment upstream.

The current generation must build. Unless forced, upstream changes missing locally prevent the push:
pull them first.

With --new, a project environment is published as a new upstream environment, then managed.`,
	Example: `% envmon push
✅ pushed owner/name

% envmon push --new --owner owner --name name
✅ published owner/name`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		if envmonFlags.sync.new {
			pushNew(ctx)
			return
		}
		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		err = env.Push(ctx, envmonFlags.sync.force)
		switch {
		case errors.Is(err, managed.ErrUpToDate):
			infoLogger.Printf("%s %s is up to date", warning(), env.Pointer())
		case err != nil:
			fatal("push", err)
		default:
			infoLogger.Printf("%s pushed %s", success(), env.Pointer())
		}
	},
}

func pushNew(ctx context.Context) {
	if managed.IsManaged(envmonFlags.root.dir) {
		wrapFatalln("the environment is already managed", nil)
		return
	}
	if envmonFlags.sync.owner == "" {
		wrapFatalln("--owner is required to publish a new environment", nil)
		return
	}
	name := envmonFlags.sync.name
	if name == "" {
		project, err := filepath.Abs(filepath.Dir(filepath.Clean(envmonFlags.root.dir)))
		if err != nil {
			wrapFatalln("resolve project directory", err)
			return
		}
		name = filepath.Base(project)
	}

	if err := vcs.CheckVersion(ctx, gitOptions()...); err != nil {
		wrapFatalln("git", err)
		return
	}
	env, err := core.Open(pathEnvDir(), coreOptions()...)
	if err != nil {
		wrapFatalln("open environment", err)
		return
	}
	published, err := managed.PushNew(ctx, cfg, env, envmonFlags.root.dir, envmonFlags.sync.owner, name,
		envmonFlags.sync.force, managedOptions()...)
	if err != nil {
		fatal("publish", err)
		return
	}
	// the environment now lives upstream, as generation 1
	if err = os.RemoveAll(pathEnvDir()); err != nil {
		logger.Warn("could not remove project environment", zap.String("path", pathEnvDir()), zap.Error(err))
	}
	infoLogger.Printf("%s published %s", success(), published.Pointer())
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the upstream changes of a managed environment",
	Long: `Pull the upstream changes of a managed environment.

Unless forced, local changes missing upstream prevent the pull: push them first.
With --force, local changes are dropped.

With --add-system, when the pulled environment does not build on this system, the current system
is declared as supported in a new generation.`,
	Example: `% envmon pull
✅ pulled owner/name`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		err = env.Pull(ctx, envmonFlags.sync.force)
		switch {
		case errors.Is(err, managed.ErrUpToDate):
			infoLogger.Printf("%s %s is up to date", warning(), env.Pointer())
		case err != nil:
			fatal("pull", err)
			return
		default:
			infoLogger.Printf("%s pulled %s", success(), env.Pointer())
		}

		if _, err = env.Build(ctx); err == nil {
			return
		}
		if !envmonFlags.sync.addSystem {
			infoLogger.Printf("%s %s does not build on %s: %v", warning(), env.Pointer(), cfg.System, err)
			return
		}
		result, err := env.AddSystem(ctx)
		if err != nil {
			wrapFatalln("add system", err)
			return
		}
		if result.BuildErr != nil {
			infoLogger.Printf("%s added %s, the environment still does not build: %v", warning(), cfg.System, result.BuildErr)
			return
		}
		infoLogger.Printf("%s added %s", success(), cfg.System)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a managed environment working copy",
	Long:  "Delete the working copy of a managed environment. The upstream environment is left untouched.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := newContext()
		defer cancel()

		env, err := openManagedEnvironment(ctx)
		if err != nil {
			wrapFatalln("open environment", err)
			return
		}
		if err = env.Delete(ctx); err != nil {
			wrapFatalln("delete", err)
			return
		}
		infoLogger.Printf("%s deleted %s", success(), env.Pointer())
	},
}

func init() {
	addForceFlag(pushCmd, "Overwrite upstream changes")
	addNewFlag(pushCmd)
	addOwnerFlag(pushCmd)
	addNameFlag(pushCmd)
	rootCmd.AddCommand(pushCmd)

	addForceFlag(pullCmd, "Drop local changes")
	addAddSystemFlag(pullCmd)
	rootCmd.AddCommand(pullCmd)

	rootCmd.AddCommand(deleteCmd)
}
