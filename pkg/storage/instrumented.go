// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Instrument decorates a store with debug logging of every operation
func Instrument(logger *zap.Logger, store Store) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store: store,
		l:     logger.With(zap.String("store", store.String())),
	}
}

type instrumentedStore struct {
	store Store
	l     *zap.Logger
}

func (i *instrumentedStore) Has(ctx context.Context, key string) (bool, error) {
	has, err := i.store.Has(ctx, key)
	i.l.Debug("storage has", zap.String("key", key), zap.Bool("has", has), zap.Error(err))
	return has, err
}

func (i *instrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rdr, err := i.store.Get(ctx, key)
	i.l.Debug("storage get", zap.String("key", key), zap.Error(err))
	return rdr, err
}

func (i *instrumentedStore) Put(ctx context.Context, key string, rdr io.Reader, newKey NewKey) error {
	err := i.store.Put(ctx, key, rdr, newKey)
	i.l.Debug("storage put", zap.String("key", key), zap.Bool("exclusive", bool(newKey)), zap.Error(err))
	return err
}

func (i *instrumentedStore) Delete(ctx context.Context, key string) error {
	err := i.store.Delete(ctx, key)
	i.l.Debug("storage delete", zap.String("key", key), zap.Error(err))
	return err
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}
