// Copyright © 2018 One Concern

// Package localfs implements a store on top of an afero file system.
//
// Puts are atomic: objects are first written to a staging file next to their
// final location, then renamed into place. Readers never observe a partially
// written object, and a failed put leaves the previous object untouched.
package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/oneconcern/envmon/pkg/storage"
	"github.com/oneconcern/envmon/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

const stageExt = ".stage"

// NewAtomic creates a local file system backed store with atomic Puts
func NewAtomic(fs afero.Fs) storage.Store {
	return &localFS{fs: fs}
}

type localFS struct {
	fs afero.Fs
}

func stageKey(key string) string {
	dir, file := path.Split(key)
	return path.Join(dir, "."+file+"."+ksuid.New().String()+stageExt)
}

func isStageKey(key string) bool {
	file := path.Base(key)
	return strings.HasPrefix(file, ".") && strings.HasSuffix(file, stageExt)
}

func validKey(key string) error {
	if key == "" || isStageKey(key) {
		return status.ErrInvalidResource.WrapMessage("key %q conflicts with put staging names", key)
	}
	return nil
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}
	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("%s", key)
	}
	return l.fs.Open(key)
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, newKey storage.NewKey) error {
	if err := validKey(key); err != nil {
		return err
	}
	if newKey == storage.NoOverWrite {
		has, err := l.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("%s", key)
		}
	}
	staged := stageKey(key)
	if err := l.write(staged, source); err != nil {
		_ = l.fs.Remove(staged)
		return err
	}
	if err := l.fs.Rename(staged, key); err != nil {
		_ = l.fs.Remove(staged)
		return fmt.Errorf("renaming staged record for %q: %v", key, err)
	}
	return nil
}

func (l *localFS) write(key string, source io.Reader) error {
	if dir := path.Dir(key); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensuring directories for %q: %v", key, err)
		}
	}
	target, err := l.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create record for %q: %v", key, err)
	}
	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return fmt.Errorf("write record for %q: %v", key, err)
	}
	if err = target.Sync(); err != nil {
		_ = target.Close()
		return fmt.Errorf("sync record for %q: %v", key, err)
	}
	return target.Close()
}

func (l *localFS) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %q: %v", key, err)
	}
	return nil
}

func (l *localFS) String() string {
	if bfs, ok := l.fs.(*afero.BasePathFs); ok {
		if p, err := bfs.RealPath(""); err == nil {
			return "localfs@" + p
		}
	}
	return "localfs"
}
