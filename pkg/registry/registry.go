// Package registry maps working-copy hashes back to the directories they were computed from.
//
// Working-copy branches are named after a hash of the working copy path. The
// registry is the reverse index, kept in a badger database under the data
// directory.
package registry

import (
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/envmon/pkg/errors"
	"github.com/oneconcern/envmon/pkg/model"
	"go.uber.org/zap"
)

var (
	linkPref = [5]byte{'l', 'i', 'n', 'k', ':'}

	// ErrLinkNotFound indicates a hash which was never registered
	ErrLinkNotFound = errors.New("no working copy registered for this hash")

	// ErrEmptyHash indicates an attempt to register or look up an empty hash
	ErrEmptyHash = errors.New("hash is required")

	// ErrOpenRegistry indicates that the registry database could not be opened
	ErrOpenRegistry = errors.New("could not open links registry")
)

// Link records the working copy behind a hash
type Link struct {
	Path       string          `json:"path"`
	Registered model.Timestamp `json:"registered"`
}

// Registry of reverse links
type Registry struct {
	db    *badger.DB
	l     *zap.Logger
	close sync.Once
}

// Option for the registry
type Option func(*badger.Options, **zap.Logger)

// WithLogger routes badger's own logging to a zap logger
func WithLogger(l *zap.Logger) Option {
	return func(_ *badger.Options, target **zap.Logger) {
		if l != nil {
			*target = l
		}
	}
}

// InMemory keeps the registry in memory only
func InMemory() Option {
	return func(o *badger.Options, _ **zap.Logger) {
		*o = o.WithDir("").WithValueDir("").WithInMemory(true)
	}
}

// Open the registry stored in some directory, creating it if needed
func Open(dir string, opts ...Option) (*Registry, error) {
	bopts := badger.DefaultOptions(dir).WithSyncWrites(true)
	l := zap.NewNop()
	for _, apply := range opts {
		apply(&bopts, &l)
	}
	bopts = bopts.WithLogger(badgerLogger{l.Sugar()})

	if !bopts.InMemory {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, ErrOpenRegistry.Wrap(err)
		}
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, ErrOpenRegistry.Wrap(err)
	}
	return &Registry{db: db, l: l}, nil
}

// Close the registry database
func (r *Registry) Close() error {
	var err error
	r.close.Do(func() {
		err = r.db.Close()
	})
	return err
}

func linkKey(hash string) []byte {
	return append(linkPref[:], hash...)
}

func rewriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrLinkNotFound
	case errors.Is(err, badger.ErrEmptyKey):
		return ErrEmptyHash
	default:
		return err
	}
}

// Register the working copy behind some hash. Registering again replaces the previous link.
func (r *Registry) Register(hash, path string) error {
	if hash == "" {
		return ErrEmptyHash
	}
	data, err := jsoniter.Marshal(Link{Path: path, Registered: model.Now()})
	if err != nil {
		return err
	}
	r.l.Debug("registering reverse link", zap.String("hash", hash), zap.String("path", path))
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(linkKey(hash), data)
	})
}

// Lookup the working copy behind some hash
func (r *Registry) Lookup(hash string) (Link, error) {
	if hash == "" {
		return Link{}, ErrEmptyHash
	}
	var link Link
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(linkKey(hash))
		if err != nil {
			return rewriteError(err)
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return jsoniter.Unmarshal(data, &link)
	})
	if err != nil {
		return Link{}, err
	}
	return link, nil
}

// Delete the link for some hash. Deleting an unknown hash is not an error.
func (r *Registry) Delete(hash string) error {
	if hash == "" {
		return ErrEmptyHash
	}
	return rewriteError(r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(linkKey(hash))
	}))
}

// List all registered links, by hash
func (r *Registry) List() (map[string]Link, error) {
	links := make(map[string]Link)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := linkPref[:]
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var link Link
			if err := jsoniter.Unmarshal(data, &link); err != nil {
				return err
			}
			links[string(item.Key()[len(prefix):])] = link
		}
		return nil
	})
	return links, err
}

type badgerLogger struct {
	*zap.SugaredLogger
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.Warnf(format, args...)
}
