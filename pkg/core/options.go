package core

import (
	"os"

	"github.com/oneconcern/envmon/pkg/buildenv"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Option sets options for environments
type Option func(*Settings)

// Settings defines how environments are accessed and built
type Settings struct {
	fs             afero.Fs
	backend        buildenv.Backend
	globalManifest string
	tempDir        string
	l              *zap.Logger
	m              *metrics.M
}

// WithFs sets the file system environments live on. It defaults to the OS file system.
//
// The build backend runs as a separate process: it only sees the OS file system.
func WithFs(fs afero.Fs) Option {
	return func(s *Settings) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithBackend sets the backend locking and building environments
func WithBackend(backend buildenv.Backend) Option {
	return func(s *Settings) {
		s.backend = backend
	}
}

// WithGlobalManifest sets the default resolution base used when an environment has no lockfile yet
func WithGlobalManifest(path string) Option {
	return func(s *Settings) {
		s.globalManifest = path
	}
}

// WithTempDir sets the directory where transaction sandboxes are created. It defaults to os.TempDir().
func WithTempDir(dir string) Option {
	return func(s *Settings) {
		if dir != "" {
			s.tempDir = dir
		}
	}
}

// WithLogger sets a logger. Transaction steps are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.l = l
		}
	}
}

// WithMetrics enables metrics collection
func WithMetrics(m *metrics.M) Option {
	return func(s *Settings) {
		s.m = m
	}
}

func defaultSettings(opts []Option) Settings {
	s := Settings{
		fs:      afero.NewOsFs(),
		tempDir: os.TempDir(),
		l:       zap.NewNop(),
	}
	for _, apply := range opts {
		apply(&s)
	}
	return s
}

// Options yields options reproducing these settings
func (s Settings) Options() []Option {
	return []Option{
		WithFs(s.fs),
		WithBackend(s.backend),
		WithGlobalManifest(s.globalManifest),
		WithTempDir(s.tempDir),
		WithLogger(s.l),
		WithMetrics(s.m),
	}
}
