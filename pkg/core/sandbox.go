package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/oneconcern/envmon/pkg/core/status"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/model"
	"github.com/oneconcern/envmon/pkg/storage"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// sandbox is a writable copy of an environment directory, private to one transaction
type sandbox struct {
	envDir
	root   string
	locked bool
}

func (e *Environment) openSandbox() (*sandbox, error) {
	root := filepath.Join(e.tempDir, "envmon-sandbox-"+ksuid.New().String())
	path := filepath.Join(root, model.EnvDirName)
	if err := e.fs.MkdirAll(root, 0o700); err != nil {
		return nil, status.ErrSandbox.Wrap(err)
	}
	if err := CopyDir(e.fs, e.path, path); err != nil {
		e.removeAll(root)
		return nil, status.ErrSandbox.Wrap(err)
	}
	e.l.Debug("opened sandbox", zap.String("env", e.path), zap.String("sandbox", path))
	return &sandbox{envDir: newEnvDir(path, e.Settings), root: root}, nil
}

func (s *sandbox) writeManifest(ctx context.Context, contents string) error {
	if err := storage.PutBytes(ctx, s.store, model.ManifestFilename, []byte(contents), storage.OverWrite); err != nil {
		return status.ErrWriteEnvironment.Wrap(err)
	}
	return nil
}

func (s *sandbox) writeLockfile(ctx context.Context, lock *model.Lockfile) error {
	raw, err := lock.Marshal()
	if err != nil {
		return status.ErrWriteEnvironment.Wrap(err)
	}
	if err := storage.PutBytes(ctx, s.store, model.LockfileFilename, raw, storage.OverWrite); err != nil {
		return status.ErrWriteEnvironment.Wrap(err)
	}
	return nil
}

func (s *sandbox) removeLockfile(ctx context.Context) error {
	if err := s.store.Delete(ctx, model.LockfileFilename); err != nil {
		return status.ErrWriteEnvironment.Wrap(err)
	}
	return nil
}

func (s *sandbox) lock(ctx context.Context) (*model.Lockfile, error) {
	lock, err := s.Lock(ctx)
	if err != nil {
		return nil, err
	}
	s.locked = true
	return lock, nil
}

func (s *sandbox) discard() {
	s.removeAll(s.root)
}

// errSkipTransaction is returned by a prepare step when the sandbox would not change the environment
var errSkipTransaction = errors.New("nothing to change")

// txFlow tunes how a sandbox is promoted
type txFlow struct {
	// unsafe sandboxes are promoted even if they fail to build
	unsafe bool

	// dryRun sandboxes are built but never promoted
	dryRun bool
}

// transaction is the outcome of a mutating operation
type transaction struct {
	storePath string

	// buildErr is only reported by unsafe transactions, which are promoted even when they don't build
	buildErr error

	// skipped when the prepare step found nothing to change
	skipped bool
}

// transact runs a mutating operation in a sandbox and replaces the live environment when the sandbox builds.
//
// A prepare step which already locked the sandbox is not locked again. It may return
// errSkipTransaction to leave the environment untouched.
func (e *Environment) transact(ctx context.Context, op string, prepare func(*sandbox) error, flow txFlow) (tx transaction, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.Outcome(err)
		if err == nil && (tx.skipped || flow.dryRun) {
			outcome = metrics.OutcomeUnchanged
		}
		e.m.Since(op, start)
		e.m.Transaction(op, outcome)
	}()

	sb, err := e.openSandbox()
	if err != nil {
		return transaction{}, err
	}
	defer sb.discard()

	if err = prepare(sb); err != nil {
		if errors.Is(err, errSkipTransaction) {
			return transaction{skipped: true}, nil
		}
		return transaction{}, err
	}

	if sb.locked {
		tx.storePath, err = sb.buildLocked(ctx, "")
	} else {
		tx.storePath, err = sb.Build(ctx)
	}
	if err != nil {
		if !flow.unsafe {
			e.l.Debug("sandbox failed to build, discarding", zap.String("op", op), zap.Error(err))
			return transaction{}, err
		}
		e.l.Warn("environment does not build, promoting anyway", zap.String("op", op), zap.Error(err))
		tx.buildErr, err = err, nil
	}
	if flow.dryRun {
		return tx, nil
	}

	if err = ReplaceDir(e.fs, e.path, sb.path); err != nil {
		return transaction{}, err
	}
	e.l.Debug("committed transaction", zap.String("op", op), zap.String("env", e.path))
	return tx, nil
}
