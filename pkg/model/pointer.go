package model

import (
	"fmt"
	"unicode"
)

const (
	// CurrentPointerVersion is the schema version of the managed pointer
	CurrentPointerVersion = 1
)

// ManagedPointer identifies the upstream environment a working copy is linked to
type ManagedPointer struct {
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// NewManagedPointer builds a pointer to an upstream environment
func NewManagedPointer(owner, name string) ManagedPointer {
	return ManagedPointer{Owner: owner, Name: name, Version: CurrentPointerVersion}
}

func (p ManagedPointer) String() string {
	return p.Owner + "/" + p.Name
}

// Validate the pointer.
//
// Names end up in branch names, which are dot-separated: dots are not allowed.
func (p ManagedPointer) Validate() error {
	if err := validateName("owner", p.Owner); err != nil {
		return err
	}
	if err := validateName("environment", p.Name); err != nil {
		return err
	}
	if p.Version != CurrentPointerVersion {
		return fmt.Errorf("unsupported pointer version: %d", p.Version)
	}
	return nil
}

// ValidateEnvironmentName checks that some name may be used for an environment
func ValidateEnvironmentName(name string) error {
	return validateName("environment", name)
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("empty field: %s name is empty", kind)
	}
	for _, c := range name {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !unicode.Is(unicode.Hyphen, c) && c != '_' {
			return fmt.Errorf("invalid name: %s name:%s contains unsupported character %q",
				kind, name, string(c))
		}
	}
	return nil
}

// MarshalPointer serializes a pointer
func MarshalPointer(p ManagedPointer) ([]byte, error) {
	return marshalIndent(p)
}

// UnmarshalPointer parses and validates a pointer
func UnmarshalPointer(b []byte) (ManagedPointer, error) {
	var p ManagedPointer
	if err := json.Unmarshal(b, &p); err != nil {
		return ManagedPointer{}, err
	}
	if err := p.Validate(); err != nil {
		return ManagedPointer{}, err
	}
	return p, nil
}
