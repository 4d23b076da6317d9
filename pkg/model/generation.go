package model

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	// CurrentGenerationsVersion is the schema version of the generations metadata
	CurrentGenerationsVersion = 1
)

// GenerationID is the number of a generation. Valid ids start at 1.
type GenerationID uint64

// ParseGenerationID parses a decimal generation number
func ParseGenerationID(s string) (GenerationID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid generation %q: generations start at 1", s)
	}
	return GenerationID(n), nil
}

func (g GenerationID) String() string {
	return strconv.FormatUint(uint64(g), 10)
}

// MarshalText renders the id as a decimal string, which is also used for map keys
func (g GenerationID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses a decimal string
func (g *GenerationID) UnmarshalText(b []byte) error {
	id, err := ParseGenerationID(string(b))
	if err != nil {
		return err
	}
	*g = id
	return nil
}

// MarshalJSON renders the id as a JSON string
func (g GenerationID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(g.String())), nil
}

// UnmarshalJSON accepts both "2" and 2
func (g *GenerationID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	return g.UnmarshalText([]byte(s))
}

// Timestamp is serialized as unix seconds
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to the second, which is the resolution of the serialized form
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: time.Unix(t.Unix(), 0).UTC()}
}

// Now yields the current time as a Timestamp
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, t.Unix(), 10), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	secs, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unix timestamp %s: %w", string(b), err)
	}
	*t = Timestamp{Time: time.Unix(secs, 0).UTC()}
	return nil
}

// SingleGenerationMetadata describes one generation
type SingleGenerationMetadata struct {
	// Created is the time the generation was committed
	Created Timestamp `json:"created"`

	// LastActive is the last time this generation was made current, nil if never
	LastActive *Timestamp `json:"lastActive"`

	// Description of the change from the previous generation
	Description string `json:"description"`
}

// NewSingleGenerationMetadata builds the metadata for a generation created now
func NewSingleGenerationMetadata(description string) SingleGenerationMetadata {
	return SingleGenerationMetadata{
		Created:     Now(),
		Description: description,
	}
}

// GenerationsMetadata is the index of all generations of an environment.
//
// Entries must match one-to-one the generation folders on the branch.
type GenerationsMetadata struct {
	// CurrentGen is nil until a first generation is added
	CurrentGen  *GenerationID                             `json:"currentGen"`
	Generations map[GenerationID]SingleGenerationMetadata `json:"generations"`
	Version     int                                       `json:"version"`
}

// NewGenerationsMetadata builds an empty index
func NewGenerationsMetadata() *GenerationsMetadata {
	return &GenerationsMetadata{
		Generations: make(map[GenerationID]SingleGenerationMetadata),
		Version:     CurrentGenerationsVersion,
	}
}

// Current yields the current generation, if any
func (m *GenerationsMetadata) Current() (GenerationID, bool) {
	if m.CurrentGen == nil {
		return 0, false
	}
	return *m.CurrentGen, true
}

// Has some generation?
func (m *GenerationsMetadata) Has(id GenerationID) bool {
	_, ok := m.Generations[id]
	return ok
}

// Max is the highest generation number, 0 when there are no generations
func (m *GenerationsMetadata) Max() GenerationID {
	var highest GenerationID
	for id := range m.Generations {
		if id > highest {
			highest = id
		}
	}
	return highest
}

// IDs yields all generation numbers in ascending order
func (m *GenerationsMetadata) IDs() []GenerationID {
	ids := make([]GenerationID, 0, len(m.Generations))
	for id := range m.Generations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetCurrent points the index at a generation and records it as active now
func (m *GenerationsMetadata) SetCurrent(id GenerationID, at Timestamp) {
	gen := m.Generations[id]
	gen.LastActive = &at
	m.Generations[id] = gen
	current := id
	m.CurrentGen = &current
}

// MarshalGenerationsMetadata serializes the index
func MarshalGenerationsMetadata(m *GenerationsMetadata) ([]byte, error) {
	return marshalIndent(m)
}

// UnmarshalGenerationsMetadata parses the index
func UnmarshalGenerationsMetadata(b []byte) (*GenerationsMetadata, error) {
	m := NewGenerationsMetadata()
	if err := json.Unmarshal(b, m); err != nil {
		return nil, err
	}
	if m.Generations == nil {
		m.Generations = make(map[GenerationID]SingleGenerationMetadata)
	}
	if m.CurrentGen != nil && !m.Has(*m.CurrentGen) {
		return nil, fmt.Errorf("current generation %v is not listed in generations", *m.CurrentGen)
	}
	return m, nil
}
