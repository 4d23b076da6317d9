package manifest

import (
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml"
)

// ToplevelGroup is the implicit group of packages declaring no pkg-group
const ToplevelGroup = "toplevel"

// PackageToInstall is a package requested for installation
type PackageToInstall struct {
	ID      string
	PkgPath string
	Version string
}

// ParsePackage parses a package specification of the form "pkg-path[@version]".
//
// The install id is the last component of the attribute path: "python3Packages.pip" installs as "pip".
func ParsePackage(spec string) (PackageToInstall, error) {
	spec = strings.TrimSpace(spec)
	pkgPath, version := spec, ""
	if at := strings.LastIndex(spec, "@"); at >= 0 {
		pkgPath, version = spec[:at], spec[at+1:]
		if version == "" {
			return PackageToInstall{}, ErrInvalidPackage.WrapMessage("%q has an empty version", spec)
		}
	}
	if pkgPath == "" || strings.HasPrefix(pkgPath, ".") || strings.HasSuffix(pkgPath, ".") {
		return PackageToInstall{}, ErrInvalidPackage.WrapMessage("%q", spec)
	}
	parts := strings.Split(pkgPath, ".")
	return PackageToInstall{
		ID:      parts[len(parts)-1],
		PkgPath: pkgPath,
		Version: version,
	}, nil
}

// InsertResult is the outcome of InsertPackages
type InsertResult struct {
	// NewText is nil when all packages were already installed
	NewText *string

	// AlreadyInstalled tells for each requested install id whether it was already present
	AlreadyInstalled map[string]bool
}

// InsertPackages adds packages to the install table of a manifest.
// An install id requested twice is inserted once, from its first occurrence.
func InsertPackages(text string, pkgs []PackageToInstall) (InsertResult, error) {
	tree, err := toml.Load(text)
	if err != nil {
		return InsertResult{}, ErrInvalidManifest.Wrap(err)
	}

	result := InsertResult{AlreadyInstalled: make(map[string]bool, len(pkgs))}
	changed := false
	for _, pkg := range pkgs {
		if _, seen := result.AlreadyInstalled[pkg.ID]; seen {
			continue
		}
		if tree.HasPath([]string{keyInstall, pkg.ID}) {
			result.AlreadyInstalled[pkg.ID] = true
			continue
		}
		result.AlreadyInstalled[pkg.ID] = false
		tree.SetPath([]string{keyInstall, pkg.ID, keyPkgPath}, pkg.PkgPath)
		if pkg.Version != "" {
			tree.SetPath([]string{keyInstall, pkg.ID, keyVersion}, pkg.Version)
		}
		changed = true
	}
	if !changed {
		return result, nil
	}

	updated, err := render(tree)
	if err != nil {
		return InsertResult{}, err
	}
	result.NewText = &updated
	return result, nil
}

// RemovePackages removes install ids from a manifest.
func RemovePackages(text string, ids []string) (string, error) {
	tree, err := toml.Load(text)
	if err != nil {
		return "", ErrInvalidManifest.Wrap(err)
	}
	install, ok := tree.Get(keyInstall).(*toml.Tree)
	if !ok {
		return "", ErrPackageNotFound.WrapMessage("%s", strings.Join(ids, ", "))
	}
	for _, id := range ids {
		if !install.HasPath([]string{id}) {
			return "", ErrPackageNotFound.WrapMessage("%s", id)
		}
		if err := install.Delete(id); err != nil {
			return "", ErrInvalidManifest.Wrap(err)
		}
	}
	return render(tree)
}

// InstallIDsToUninstall resolves uninstall requests into install ids.
//
// A request matches an install id first, then a pkg-path, then a pkg-path@version.
// A pkg-path installed under several ids is ambiguous. Each install id is yielded once.
func InstallIDsToUninstall(m *Manifest, requests []string) ([]string, error) {
	ids := make([]string, 0, len(requests))
	seen := make(map[string]struct{}, len(requests))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, request := range requests {
		if _, ok := m.Install[request]; ok {
			add(request)
			continue
		}

		pkgPath, version := request, ""
		if at := strings.LastIndex(request, "@"); at >= 0 {
			pkgPath, version = request[:at], request[at+1:]
		}

		var matches []string
		for _, id := range m.InstallIDs() {
			d := m.Install[id]
			if d.PkgPath != pkgPath {
				continue
			}
			if version != "" && d.Version != version {
				continue
			}
			matches = append(matches, id)
		}
		switch len(matches) {
		case 0:
			return nil, ErrPackageNotFound.WrapMessage("no package installed with id or pkg-path %q", request)
		case 1:
			add(matches[0])
		default:
			return nil, ErrMultiplePackagesMatch.WrapMessage("%q is installed as %s, specify an install id", request, strings.Join(matches, ", "))
		}
	}
	return ids, nil
}

// ValidateUpgradeSelectors checks that each selector is an install id, a group name or the toplevel group.
//
// A package belonging to a non-default group shared with other packages
// cannot be upgraded on its own: its whole group must be.
func ValidateUpgradeSelectors(m *Manifest, selectors []string) error {
	groups := m.Groups()
	members := make(map[string][]string)
	for id, group := range groups {
		members[group] = append(members[group], id)
	}

	for _, selector := range selectors {
		if selector == ToplevelGroup {
			continue
		}
		if _, isGroup := members[selector]; isGroup {
			continue
		}
		group, isID := groups[selector]
		if !isID {
			return ErrPackageNotFound.WrapMessage("%q is neither an install id nor a group", selector)
		}
		if group != ToplevelGroup && len(members[group]) > 1 {
			others := make([]string, 0, len(members[group])-1)
			for _, id := range members[group] {
				if id != selector {
					others = append(others, id)
				}
			}
			sort.Strings(others)
			return ErrPackageInGroup.WrapMessage("%q is in group %q with %s: upgrade the group instead", selector, group, strings.Join(others, ", "))
		}
	}
	return nil
}

// AddSystem appends a system to options.systems, when the manifest restricts systems.
//
// It returns the text unchanged when the system is already supported.
func AddSystem(text, system string) (string, error) {
	tree, err := toml.Load(text)
	if err != nil {
		return "", ErrInvalidManifest.Wrap(err)
	}
	m, err := fromTree(tree)
	if err != nil {
		return "", err
	}
	if m.SupportsSystem(system) {
		return text, nil
	}
	systems := make([]interface{}, 0, len(m.Systems)+1)
	for _, s := range m.Systems {
		systems = append(systems, s)
	}
	systems = append(systems, system)
	tree.SetPath([]string{keyOptions, keySystems}, systems)
	return render(tree)
}

func render(tree *toml.Tree) (string, error) {
	text, err := tree.ToTomlString()
	if err != nil {
		return "", ErrInvalidManifest.Wrap(err)
	}
	return text, nil
}
