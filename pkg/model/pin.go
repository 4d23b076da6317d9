package model

import (
	"fmt"
)

const (
	// CurrentPinVersion is the schema version of the pin record
	CurrentPinVersion = 1
)

// PinRecord tells which commit of the shared upstream history a working copy is
// synchronized to (Rev), and the working copy's own not-yet-pushed commit, if any (LocalRev).
type PinRecord struct {
	Rev      string `json:"rev"`
	LocalRev string `json:"local_rev,omitempty"`
	Version  int    `json:"version"`
}

// NewPinRecord builds a pin record. localRev is dropped when equal to rev.
func NewPinRecord(rev, localRev string) PinRecord {
	if localRev == rev {
		localRev = ""
	}
	return PinRecord{
		Rev:      rev,
		LocalRev: localRev,
		Version:  CurrentPinVersion,
	}
}

// Current is the commit the working copy branch must point at
func (p PinRecord) Current() string {
	if p.LocalRev != "" {
		return p.LocalRev
	}
	return p.Rev
}

// HasLocalRev tells if the working copy carries commits not yet pushed upstream
func (p PinRecord) HasLocalRev() bool {
	return p.LocalRev != ""
}

// Validate the pin record
func (p PinRecord) Validate() error {
	if p.Rev == "" {
		return fmt.Errorf("empty field: rev is empty")
	}
	if p.Version != CurrentPinVersion {
		return fmt.Errorf("unsupported version: %d, expected %d", p.Version, CurrentPinVersion)
	}
	return nil
}

// MarshalPinRecord serializes a pin record
func MarshalPinRecord(p PinRecord) ([]byte, error) {
	return marshalIndent(p)
}

// UnmarshalPinRecord parses and validates a pin record
func UnmarshalPinRecord(b []byte) (PinRecord, error) {
	var p PinRecord
	if err := json.Unmarshal(b, &p); err != nil {
		return PinRecord{}, err
	}
	if err := p.Validate(); err != nil {
		return PinRecord{}, err
	}
	return p, nil
}
