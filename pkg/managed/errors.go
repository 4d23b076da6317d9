package managed

import "github.com/oneconcern/envmon/pkg/errors"

var (
	// ErrDiverged indicates that the working copy and upstream both have changes the other lacks
	ErrDiverged = errors.New("the environment has diverged from its upstream")

	// ErrUpToDate indicates a synchronization with nothing to do
	ErrUpToDate = errors.New("the environment is already up to date")

	// ErrRevDoesNotExist indicates a pinned revision absent from upstream, even after fetching
	ErrRevDoesNotExist = errors.New("pinned revision does not exist upstream")

	// ErrLocalRevDoesNotExist indicates a pinned local revision absent from this machine
	ErrLocalRevDoesNotExist = errors.New("pinned local revision does not exist on this machine")

	// ErrBuildBroken indicates that the current generation does not build
	ErrBuildBroken = errors.New("the current generation does not build")

	// ErrNotManaged indicates a directory without a managed pointer
	ErrNotManaged = errors.New("not a managed environment")

	// ErrInvalidPointer indicates a managed pointer which could not be read
	ErrInvalidPointer = errors.New("invalid managed pointer")

	// ErrInvalidPin indicates a pin record which could not be read
	ErrInvalidPin = errors.New("invalid pin record")

	// ErrWritePin indicates that the pin record could not be written
	ErrWritePin = errors.New("could not write pin record")

	// ErrOpenFloxmeta indicates that the generations repository of an owner could not be opened nor cloned
	ErrOpenFloxmeta = errors.New("could not open generations repository")

	// ErrFetch indicates that the upstream branch could not be fetched
	ErrFetch = errors.New("could not fetch environment from upstream")

	// ErrPush indicates that the working copy branch could not be pushed
	ErrPush = errors.New("could not push environment to upstream")

	// ErrGit indicates an unexpected failure of the revision control provider
	ErrGit = errors.New("git operation failed")

	// ErrBadBranchName indicates a branch name which is not a working copy branch
	ErrBadBranchName = errors.New("not a working copy branch")

	// ErrProjectNotFound indicates that the working copy behind a branch no longer exists
	ErrProjectNotFound = errors.New("working copy not found")

	// ErrReverseLink indicates that the working copy could not be registered
	ErrReverseLink = errors.New("could not register working copy")

	// ErrCanonicalPath indicates that the working copy path could not be resolved
	ErrCanonicalPath = errors.New("could not resolve working copy path")

	// ErrDeleteEnvironment indicates that the working copy could not be deleted
	ErrDeleteEnvironment = errors.New("could not delete environment")
)
