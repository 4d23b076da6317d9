package vcs

import (
	"context"
	"strings"

	"github.com/blang/semver"
)

// MinVersion is the oldest supported git release.
//
// 2.28 introduced init.defaultBranch.
var MinVersion = semver.MustParse("2.28.0")

// Version of the git binary, from "git version 2.39.3 (Apple Git-146)"
func Version(ctx context.Context, opts ...Option) (semver.Version, error) {
	g := newGit("", opts)
	out, err := g.runTrimmed(ctx, "--version")
	if err != nil {
		return semver.Version{}, err
	}
	return parseVersion(out)
}

func parseVersion(out string) (semver.Version, error) {
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return semver.Version{}, ErrUnsupportedVersion.WrapMessage("unexpected version string %q", out)
	}
	raw := fields[2]
	// vendor suffixes such as 2.39.2.windows.1
	if parts := strings.SplitN(raw, ".", 4); len(parts) == 4 {
		raw = strings.Join(parts[:3], ".")
	}
	v, err := semver.ParseTolerant(raw)
	if err != nil {
		return semver.Version{}, ErrUnsupportedVersion.Wrap(err)
	}
	return v, nil
}

// CheckVersion ensures the git binary is recent enough
func CheckVersion(ctx context.Context, opts ...Option) error {
	v, err := Version(ctx, opts...)
	if err != nil {
		return err
	}
	if v.LT(MinVersion) {
		return ErrUnsupportedVersion.WrapMessage("git %s is older than %s", v, MinVersion)
	}
	return nil
}
