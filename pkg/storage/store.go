// Copyright © 2018 One Concern

package storage

import (
	"bytes"
	"context"
	"io"
)

// NewKey tells Put whether an existing object may be replaced
type NewKey bool

const (
	// OverWrite replaces any existing object
	OverWrite NewKey = false

	// NoOverWrite fails if the object already exists
	NoOverWrite NewKey = true
)

// Store implementations know how to write entries to a K/V model.
//
// Keys are slash-separated relative paths. Implementations are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader, NewKey) error
	Delete(context.Context, string) error
}

// ReadAll fetches a whole object
func ReadAll(ctx context.Context, store Store, key string) ([]byte, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// PutBytes writes a whole object
func PutBytes(ctx context.Context, store Store, key string, content []byte, newKey NewKey) error {
	return store.Put(ctx, key, bytes.NewReader(content), newKey)
}
