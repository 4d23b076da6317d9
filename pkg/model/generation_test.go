package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenerationID(t *testing.T) {
	for _, toPin := range []struct {
		input     string
		expected  GenerationID
		wantError bool
	}{
		{input: "1", expected: 1},
		{input: "42", expected: 42},
		{input: "0", wantError: true},
		{input: "-1", wantError: true},
		{input: "latest", wantError: true},
	} {
		fixture := toPin
		t.Run(fixture.input, func(t *testing.T) {
			t.Parallel()
			id, err := ParseGenerationID(fixture.input)
			if fixture.wantError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, fixture.expected, id)
		})
	}
}

func TestGenerationsMetadataFormat(t *testing.T) {
	// format as persisted on generation branches
	const raw = `{
  "currentGen": "2",
  "generations": {
    "1": {"created": 1700000000, "lastActive": 1700000000, "description": "init"},
    "2": {"created": 1700000100, "lastActive": null, "description": "installed curl"}
  },
  "version": 1
}`
	m, err := UnmarshalGenerationsMetadata([]byte(raw))
	require.NoError(t, err)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, GenerationID(2), current)
	assert.Equal(t, []GenerationID{1, 2}, m.IDs())
	assert.Equal(t, GenerationID(2), m.Max())
	assert.Equal(t, "installed curl", m.Generations[2].Description)
	assert.Nil(t, m.Generations[2].LastActive)
	require.NotNil(t, m.Generations[1].LastActive)
	assert.Equal(t, int64(1700000000), m.Generations[1].LastActive.Unix())

	b, err := MarshalGenerationsMetadata(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"currentGen": "2"`)
	assert.Contains(t, string(b), `"lastActive": null`)

	back, err := UnmarshalGenerationsMetadata(b)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestGenerationsMetadataEmpty(t *testing.T) {
	m := NewGenerationsMetadata()
	_, ok := m.Current()
	assert.False(t, ok)
	assert.Equal(t, GenerationID(0), m.Max())

	b, err := MarshalGenerationsMetadata(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"currentGen": null`)

	back, err := UnmarshalGenerationsMetadata(b)
	require.NoError(t, err)
	assert.Empty(t, back.Generations)
}

func TestGenerationsMetadataDanglingCurrent(t *testing.T) {
	_, err := UnmarshalGenerationsMetadata([]byte(`{"currentGen":"3","generations":{},"version":1}`))
	require.Error(t, err)
}

func TestSetCurrent(t *testing.T) {
	m := NewGenerationsMetadata()
	m.Generations[1] = NewSingleGenerationMetadata("init")
	m.Generations[2] = NewSingleGenerationMetadata("installed curl")

	at := NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 600, time.UTC))
	m.SetCurrent(1, at)

	current, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, GenerationID(1), current)
	require.NotNil(t, m.Generations[1].LastActive)
	assert.True(t, at.Equal(m.Generations[1].LastActive.Time))
	assert.Nil(t, m.Generations[2].LastActive)
	assert.Equal(t, "init", m.Generations[1].Description)
}
