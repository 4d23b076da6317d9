// Package manifest parses and edits the declarative manifest of an environment.
//
// A manifest is a TOML document:
//
//	version = 1
//
//	[install]
//	curl.pkg-path = "curl"
//	hello = { pkg-path = "hello", version = "2.12", pkg-group = "tools" }
//
//	[vars]
//	GREETING = "hi"
//
//	[hook]
//	on-activate = "echo $GREETING"
//
//	[profile]
//	common = "alias ll='ls -l'"
//
//	[options]
//	systems = ["x86_64-linux", "aarch64-darwin"]
//
// Only the parts of the manifest envmon reasons about are typed. Edits are
// performed on the TOML tree and rendered back as text.
package manifest

import (
	"reflect"
	"sort"

	toml "github.com/pelletier/go-toml"
)

const (
	// CurrentVersion of the manifest schema
	CurrentVersion = 1

	// EmptyManifest is the text of a freshly initialized environment
	EmptyManifest = "version = 1\n"

	keyInstall  = "install"
	keyVars     = "vars"
	keyHook     = "hook"
	keyProfile  = "profile"
	keyOptions  = "options"
	keySystems  = "systems"
	keyPkgPath  = "pkg-path"
	keyVersion  = "version"
	keyPkgGroup = "pkg-group"
)

// Descriptor describes one installed package
type Descriptor struct {
	PkgPath  string
	Version  string
	PkgGroup string
}

// Manifest is the typed view of a manifest
type Manifest struct {
	Version int
	Install map[string]Descriptor
	Vars    map[string]string
	Hook    map[string]string
	Profile map[string]string
	Systems []string
}

// Parse manifest text
func Parse(text string) (*Manifest, error) {
	tree, err := toml.Load(text)
	if err != nil {
		return nil, ErrInvalidManifest.Wrap(err)
	}
	return fromTree(tree)
}

func fromTree(tree *toml.Tree) (*Manifest, error) {
	m := &Manifest{
		Install: make(map[string]Descriptor),
	}

	if v, ok := tree.Get(keyVersion).(int64); ok {
		m.Version = int(v)
	}

	if install, ok := tree.Get(keyInstall).(*toml.Tree); ok {
		for _, id := range install.Keys() {
			pkg, isTable := install.GetPath([]string{id}).(*toml.Tree)
			if !isTable {
				return nil, ErrInvalidManifest.WrapMessage("install.%s is not a table", id)
			}
			d := Descriptor{
				PkgPath:  stringAt(pkg, keyPkgPath),
				Version:  stringAt(pkg, keyVersion),
				PkgGroup: stringAt(pkg, keyPkgGroup),
			}
			if d.PkgPath == "" {
				return nil, ErrInvalidManifest.WrapMessage("install.%s has no %s", id, keyPkgPath)
			}
			m.Install[id] = d
		}
	}

	var err error
	if m.Vars, err = stringTable(tree, keyVars); err != nil {
		return nil, err
	}
	if m.Hook, err = stringTable(tree, keyHook); err != nil {
		return nil, err
	}
	if m.Profile, err = stringTable(tree, keyProfile); err != nil {
		return nil, err
	}

	if systems, ok := tree.GetPath([]string{keyOptions, keySystems}).([]interface{}); ok {
		for _, s := range systems {
			system, isString := s.(string)
			if !isString {
				return nil, ErrInvalidManifest.WrapMessage("%s.%s must be a list of strings", keyOptions, keySystems)
			}
			m.Systems = append(m.Systems, system)
		}
	}
	return m, nil
}

func stringAt(tree *toml.Tree, key string) string {
	s, _ := tree.GetPath([]string{key}).(string)
	return s
}

func stringTable(tree *toml.Tree, key string) (map[string]string, error) {
	raw := tree.GetPath([]string{key})
	if raw == nil {
		return nil, nil
	}
	table, ok := raw.(*toml.Tree)
	if !ok {
		return nil, ErrInvalidManifest.WrapMessage("%s must be a table", key)
	}
	values := make(map[string]string, len(table.Keys()))
	for _, k := range table.Keys() {
		s, isString := table.GetPath([]string{k}).(string)
		if !isString {
			return nil, ErrInvalidManifest.WrapMessage("%s.%s must be a string", key, k)
		}
		values[k] = s
	}
	return values, nil
}

// InstallIDs yields the sorted install ids of the manifest
func (m *Manifest) InstallIDs() []string {
	ids := make([]string, 0, len(m.Install))
	for id := range m.Install {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Groups yields the group name of each install id, packages without a group belonging to the toplevel group
func (m *Manifest) Groups() map[string]string {
	groups := make(map[string]string, len(m.Install))
	for id, d := range m.Install {
		groups[id] = d.Group()
	}
	return groups
}

// Group of a package, defaulting to the toplevel group
func (d Descriptor) Group() string {
	if d.PkgGroup == "" {
		return ToplevelGroup
	}
	return d.PkgGroup
}

// SupportsSystem tells if the manifest may be built on some system.
//
// A manifest listing no system supports all of them.
func (m *Manifest) SupportsSystem(system string) bool {
	if len(m.Systems) == 0 {
		return true
	}
	for _, s := range m.Systems {
		if s == system {
			return true
		}
	}
	return false
}

// ActivationChanged tells if two manifests differ in a way that requires
// re-activating an environment: hook, variables or profile scripts.
func ActivationChanged(old, updated *Manifest) bool {
	return !equalTables(old.Hook, updated.Hook) ||
		!equalTables(old.Vars, updated.Vars) ||
		!equalTables(old.Profile, updated.Profile)
}

func equalTables(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
