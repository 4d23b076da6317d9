package managed

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/oneconcern/envmon/pkg/config"
	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/generations"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/vcs"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const firstGeneration = "Add first generation"

func syncOutcome(err error) string {
	if errors.Is(err, ErrUpToDate) {
		return metrics.OutcomeUnchanged
	}
	return metrics.Outcome(err)
}

// Push publishes the working copy branch upstream, then pulls it back into the sync branch.
//
// The current generation must build. Unless forced, upstream must not have changes the
// working copy lacks: ErrDiverged is returned and nothing is modified.
func (e *Environment) Push(ctx context.Context, force bool) (err error) {
	defer func(start time.Time) {
		e.m.Since("push", start)
		e.m.Sync("push", syncOutcome(err))
	}(time.Now())

	if _, err := e.Build(ctx); err != nil {
		return ErrBuildBroken.Wrap(err)
	}
	if err := e.fetch(ctx); err != nil {
		return err
	}

	local, err := e.floxmeta.BranchHash(ctx, e.Branch())
	if err != nil {
		return wrapGit(err)
	}
	mirror, err := e.floxmeta.BranchHash(ctx, e.SyncBranch())
	if err != nil {
		return wrapGit(err)
	}
	if local == mirror {
		// upstream may have received this commit from another working copy
		if _, err := e.writePin(ctx, ""); err != nil {
			return err
		}
		return ErrUpToDate
	}
	if !force {
		consistent, err := e.floxmeta.BranchContainsCommit(ctx, mirror, e.Branch())
		if err != nil {
			return wrapGit(err)
		}
		if !consistent {
			return ErrDiverged.WrapMessage("%s", e.pointer)
		}
	}

	if err := e.floxmeta.Push(ctx, vcs.DefaultRemote, e.Branch()+":"+e.SyncBranch(), force); err != nil {
		if errors.Is(err, vcs.ErrPushRejected) {
			return ErrDiverged.WrapMessage("%s", e.pointer).Wrap(err)
		}
		return ErrPush.Wrap(err)
	}
	e.l.Info("pushed environment", zap.String("environment", e.pointer.String()), zap.String("rev", local))

	if err := e.pull(ctx, force); err != nil && !errors.Is(err, ErrUpToDate) {
		return err
	}
	return nil
}

// Pull moves the working copy to the upstream state.
//
// Unless forced, the working copy must not have changes upstream lacks: ErrDiverged is
// returned and nothing is modified. ErrUpToDate is returned when there is nothing to pull.
func (e *Environment) Pull(ctx context.Context, force bool) (err error) {
	defer func(start time.Time) {
		e.m.Since("pull", start)
		e.m.Sync("pull", syncOutcome(err))
	}(time.Now())

	return e.pull(ctx, force)
}

func (e *Environment) pull(ctx context.Context, force bool) error {
	if err := e.fetch(ctx); err != nil {
		return err
	}

	local, err := e.floxmeta.BranchHash(ctx, e.Branch())
	if err != nil {
		return wrapGit(err)
	}
	mirror, err := e.floxmeta.BranchHash(ctx, e.SyncBranch())
	if err != nil {
		return wrapGit(err)
	}
	if local == mirror {
		// the pin may still carry a local revision, which is now upstream
		if _, err := e.writePin(ctx, ""); err != nil {
			return err
		}
		return ErrUpToDate
	}
	if !force {
		consistent, err := e.floxmeta.BranchContainsCommit(ctx, local, e.SyncBranch())
		if err != nil {
			return wrapGit(err)
		}
		if !consistent {
			return ErrDiverged.WrapMessage("%s", e.pointer)
		}
	}

	refspec := "refs/heads/" + e.SyncBranch() + ":refs/heads/" + e.Branch()
	if err := e.floxmeta.Push(ctx, ".", refspec, force); err != nil {
		return wrapGit(err)
	}
	if _, err := e.writePin(ctx, ""); err != nil {
		return err
	}
	e.l.Info("pulled environment", zap.String("environment", e.pointer.String()), zap.String("rev", mirror))
	return nil
}

// PushNew publishes a plain environment as a new upstream environment, then opens it as a working copy.
//
// The environment directory env is recorded as the first generation of a new branch,
// pushed to the owner's upstream repository. The managed pointer and pin record are
// written in dir. Unless forced, an existing upstream environment with the same name
// is not overwritten: ErrDiverged is returned.
func PushNew(ctx context.Context, cfg *config.Config, env *core.Environment, dir, owner, name string, force bool, opts ...Option) (*Environment, error) {
	s := defaultSettings(opts)
	pointer := model.NewManagedPointer(owner, name)
	if err := pointer.Validate(); err != nil {
		return nil, ErrInvalidPointer.Wrap(err)
	}

	root := filepath.Join(cfg.TempDir, "envmon-push-"+ksuid.New().String())
	defer func() {
		_ = os.RemoveAll(root)
	}()
	staging, err := vcs.Init(ctx, root, true, s.gitOptions...)
	if err != nil {
		return nil, wrapGit(err)
	}

	gens, err := generations.Init(ctx, staging, name, name, cfg.TempDir, s.generationsOptions(cfg)...)
	if err != nil {
		return nil, err
	}
	w, err := gens.Writable(ctx, cfg.TempDir)
	if err != nil {
		return nil, err
	}
	_, err = w.AddGeneration(ctx, env, firstGeneration)
	w.Close()
	if err != nil {
		return nil, err
	}

	if err := staging.Push(ctx, cfg.UpstreamURL(owner), name+":"+name, force); err != nil {
		if errors.Is(err, vcs.ErrPushRejected) {
			return nil, ErrDiverged.WrapMessage("%s", pointer).Wrap(err)
		}
		return nil, ErrPush.Wrap(err)
	}
	s.m.Sync("push", metrics.OutcomeSuccess)

	if err := writePointer(ctx, dir, pointer); err != nil {
		return nil, err
	}
	if _, err := writePin(ctx, s.l, newStore(s.l, dir), staging, name, ""); err != nil {
		return nil, err
	}
	return Open(ctx, cfg, dir, opts...)
}
