package model

import (
	"fmt"
	"path"
)

const (
	// EnvDirName is the directory holding the manifest and lockfile of an environment
	EnvDirName = "env"

	// ManifestFilename is the name of the manifest inside an environment directory
	ManifestFilename = "manifest.toml"

	// LockfileFilename is the name of the lockfile inside an environment directory
	LockfileFilename = "manifest.lock"

	// PinFilename is the pin record of a managed environment, next to its env directory
	PinFilename = "env.lock"

	// PointerFilename describes the upstream of a managed environment
	PointerFilename = "env.json"

	// GenerationsMetadataFilename is the metadata index at the root of a generations branch
	GenerationsMetadataFilename = "metadata.json"

	// TransactionBackupExt is appended to an environment directory while it is being replaced
	TransactionBackupExt = ".tmp"
)

// GetGenerationDir is the folder of a generation, relative to the root of the generations branch
func GetGenerationDir(id GenerationID) string {
	return id.String()
}

// GetGenerationEnvDir is the environment directory of a generation, relative to the root of the generations branch
func GetGenerationEnvDir(id GenerationID) string {
	return path.Join(id.String(), EnvDirName)
}

// GetGenerationObject addresses a file of some generation on a branch, e.g. "main:2/env/manifest.toml"
func GetGenerationObject(branch string, id GenerationID, file string) string {
	return fmt.Sprintf("%s:%s", branch, path.Join(GetGenerationEnvDir(id), file))
}

// GetMetadataObject addresses the generations metadata on a branch
func GetMetadataObject(branch string) string {
	return fmt.Sprintf("%s:%s", branch, GenerationsMetadataFilename)
}
