package model

import (
	jsoniter "github.com/json-iterator/go"
)

// ToplevelGroup is the implicit group of packages declaring no group
const ToplevelGroup = "toplevel"

// Lockfile is the resolution of a manifest, as produced by the build backend.
//
// Only the fields envmon reasons about are modeled: the backend owns the format.
type Lockfile struct {
	LockfileVersion int                 `json:"lockfile-version"`
	Manifest        jsoniter.RawMessage `json:"manifest,omitempty"`
	Packages        []LockedPackage     `json:"packages"`
}

// LockedPackage is a package resolved for a given system
type LockedPackage struct {
	InstallID  string            `json:"install_id"`
	System     string            `json:"system"`
	Group      string            `json:"group,omitempty"`
	AttrPath   string            `json:"attr_path,omitempty"`
	Version    string            `json:"version,omitempty"`
	Derivation string            `json:"derivation,omitempty"`
	Outputs    map[string]string `json:"outputs,omitempty"`
}

// GroupName yields the group of a package, defaulting to the toplevel group
func (p LockedPackage) GroupName() string {
	if p.Group == "" {
		return ToplevelGroup
	}
	return p.Group
}

// ParseLockfile reads a lockfile
func ParseLockfile(b []byte) (*Lockfile, error) {
	var l Lockfile
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// Marshal renders the lockfile as indented JSON
func (l *Lockfile) Marshal() ([]byte, error) {
	return marshalIndent(l)
}

// Clone performs a deep copy of the lockfile
func (l *Lockfile) Clone() *Lockfile {
	c := &Lockfile{
		LockfileVersion: l.LockfileVersion,
		Manifest:        append(jsoniter.RawMessage(nil), l.Manifest...),
		Packages:        make([]LockedPackage, 0, len(l.Packages)),
	}
	for _, p := range l.Packages {
		cp := p
		if p.Outputs != nil {
			cp.Outputs = make(map[string]string, len(p.Outputs))
			for k, v := range p.Outputs {
				cp.Outputs[k] = v
			}
		}
		c.Packages = append(c.Packages, cp)
	}
	return c
}

// UnlockPackages removes the packages matching some install ids or groups,
// so that a subsequent resolution seeded with this lockfile re-resolves them.
func (l *Lockfile) UnlockPackages(groupsOrIDs []string) {
	if len(groupsOrIDs) == 0 {
		return
	}
	selected := make(map[string]struct{}, len(groupsOrIDs))
	for _, id := range groupsOrIDs {
		selected[id] = struct{}{}
	}
	kept := l.Packages[:0]
	for _, p := range l.Packages {
		_, byID := selected[p.InstallID]
		_, byGroup := selected[p.GroupName()]
		if byID || byGroup {
			continue
		}
		kept = append(kept, p)
	}
	l.Packages = kept
}

// PackagesByID indexes locked packages as install_id -> system -> package
func (l *Lockfile) PackagesByID() map[string]map[string]LockedPackage {
	index := make(map[string]map[string]LockedPackage)
	if l == nil {
		return index
	}
	for _, p := range l.Packages {
		bySystem, ok := index[p.InstallID]
		if !ok {
			bySystem = make(map[string]LockedPackage)
			index[p.InstallID] = bySystem
		}
		if _, exists := bySystem[p.System]; !exists {
			bySystem[p.System] = p
		}
	}
	return index
}
