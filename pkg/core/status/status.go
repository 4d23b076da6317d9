// Package status exports errors produced by the core package.
package status

import (
	"github.com/oneconcern/envmon/pkg/errors"
)

var (
	// ErrPriorTransaction indicates that the backup of a previous transaction is still present
	ErrPriorTransaction = errors.New("prior transaction in progress, remove the backup directory to recover")

	// ErrBackupTransaction indicates that the live environment could not be moved aside
	ErrBackupTransaction = errors.New("failed to backup environment before replacing it")

	// ErrMoveTransaction indicates that the new environment could not be copied in place. The live environment was restored.
	ErrMoveTransaction = errors.New("failed to move the new environment in place")

	// ErrAbortTransaction indicates that restoring the live environment after a failure failed too
	ErrAbortTransaction = errors.New("failed to restore environment from backup")

	// ErrRemoveBackup indicates that the backup of a successful transaction could not be removed
	ErrRemoveBackup = errors.New("failed to remove transaction backup")

	// ErrSandbox indicates that a sandbox could not be prepared
	ErrSandbox = errors.New("failed to prepare transaction sandbox")

	// ErrNoManifest indicates a directory which is not an environment
	ErrNoManifest = errors.New("environment has no manifest")

	// ErrReadManifest indicates that the manifest could not be read
	ErrReadManifest = errors.New("failed to read manifest")

	// ErrBadLockfile indicates a lockfile which could not be parsed
	ErrBadLockfile = errors.New("invalid lockfile")

	// ErrWriteEnvironment indicates that the manifest or lockfile could not be written
	ErrWriteEnvironment = errors.New("failed to write environment file")

	// ErrLink indicates that the out-link could not be put in place
	ErrLink = errors.New("failed to link environment")

	// ErrNoBackend indicates that no build backend was configured
	ErrNoBackend = errors.New("no build backend configured")
)
