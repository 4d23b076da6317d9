package generations

import "github.com/oneconcern/envmon/pkg/errors"

var (
	// ErrGenerationNotFound indicates a generation number absent from the metadata
	ErrGenerationNotFound = errors.New("generation not found")

	// ErrNoGenerations indicates a generations branch without any generation yet
	ErrNoGenerations = errors.New("no generations found in environment")

	// ErrRollbackToCurrentGeneration indicates an attempt to switch to the current generation
	ErrRollbackToCurrentGeneration = errors.New("generation is already the current generation")

	// ErrShowMetadata indicates that the generations metadata could not be read from the branch
	ErrShowMetadata = errors.New("could not show generations metadata file")

	// ErrBadMetadata indicates that the generations metadata could not be parsed
	ErrBadMetadata = errors.New("could not parse generations metadata")

	// ErrWriteMetadata indicates that the generations metadata could not be written
	ErrWriteMetadata = errors.New("could not write generations metadata file")

	// ErrShowManifest indicates that a generation manifest or lockfile could not be read
	ErrShowManifest = errors.New("could not show manifest file")

	// ErrCloneToFS indicates that the generations branch could not be checked out in a private clone
	ErrCloneToFS = errors.New("could not clone generations branch")

	// ErrInitBranch indicates that a new generations branch could not be created
	ErrInitBranch = errors.New("could not initialize generations branch")

	// ErrCopyGeneration indicates that an environment could not be copied into a generation folder
	ErrCopyGeneration = errors.New("could not copy environment into generation")

	// ErrStageChanges indicates that changes could not be staged
	ErrStageChanges = errors.New("could not stage changes")

	// ErrCommitChanges indicates that changes could not be committed
	ErrCommitChanges = errors.New("could not commit changes")

	// ErrCompleteTransaction indicates that the new commit could not be pushed back to the generations repository
	ErrCompleteTransaction = errors.New("could not complete transaction")
)
