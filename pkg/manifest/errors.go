package manifest

import "github.com/oneconcern/envmon/pkg/errors"

var (
	// ErrInvalidManifest indicates that some manifest text could not be parsed
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrPackageNotFound indicates that a package to uninstall or upgrade is not in the manifest
	ErrPackageNotFound = errors.New("package not found")

	// ErrMultiplePackagesMatch indicates that a package path matches several install ids
	ErrMultiplePackagesMatch = errors.New("multiple packages match")

	// ErrInvalidPackage indicates a package specification that cannot be parsed
	ErrInvalidPackage = errors.New("invalid package specification")

	// ErrPackageInGroup indicates that a package cannot be upgraded alone because it shares a group with other packages
	ErrPackageInGroup = errors.New("package is part of a group")
)
