package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("generation not found")
	cause := fmt.Errorf("exit status 128")

	wrapped := sentinel.Wrap(cause)
	require.NotSame(t, sentinel, wrapped)
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not mutate the sentinel")
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
	assert.Equal(t, "generation not found: exit status 128", wrapped.Error())

	other := New("generation not found")
	assert.False(t, Is(wrapped, other))

	again := wrapped.Wrap(cause)
	assert.True(t, Is(again, sentinel))
}

func TestWrapMessage(t *testing.T) {
	sentinel := New("prior transaction in progress")
	e := sentinel.WrapMessage("delete %s to discard", "/tmp/env.tmp")
	assert.Equal(t, "prior transaction in progress: delete /tmp/env.tmp to discard", e.Error())
	assert.True(t, Is(e, sentinel))

	var target *Error
	require.True(t, As(fmt.Errorf("outer: %w", e), &target))
	assert.Equal(t, e, target)
}
