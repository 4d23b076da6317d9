package managed

import (
	"github.com/oneconcern/envmon/pkg/buildenv"
	"github.com/oneconcern/envmon/pkg/config"
	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/generations"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/vcs"
	"go.uber.org/zap"
)

// Option for managed environments
type Option func(*settings)

type settings struct {
	backend    buildenv.Backend
	gitOptions []vcs.Option
	l          *zap.Logger
	m          *metrics.M
}

// WithBackend sets the backend locking and building generations
func WithBackend(backend buildenv.Backend) Option {
	return func(s *settings) {
		s.backend = backend
	}
}

// WithGitOptions sets the options of the generations repository
func WithGitOptions(opts ...vcs.Option) Option {
	return func(s *settings) {
		s.gitOptions = append(s.gitOptions, opts...)
	}
}

// WithLogger sets a logger
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// WithMetrics enables metrics collection
func WithMetrics(m *metrics.M) Option {
	return func(s *settings) {
		s.m = m
	}
}

func defaultSettings(opts []Option) settings {
	s := settings{
		l: zap.NewNop(),
	}
	for _, apply := range opts {
		apply(&s)
	}
	return s
}

func (s settings) coreOptions(cfg *config.Config) []core.Option {
	return []core.Option{
		core.WithBackend(s.backend),
		core.WithTempDir(cfg.TempDir),
		core.WithGlobalManifest(cfg.GlobalManifest),
		core.WithLogger(s.l),
		core.WithMetrics(s.m),
	}
}

func (s settings) generationsOptions(cfg *config.Config) []generations.Option {
	return []generations.Option{
		generations.WithCoreOptions(s.coreOptions(cfg)...),
		generations.WithGitOptions(s.gitOptions...),
		generations.WithLogger(s.l),
		generations.WithMetrics(s.m),
	}
}

func (s settings) options() []Option {
	return []Option{
		WithBackend(s.backend),
		WithGitOptions(s.gitOptions...),
		WithLogger(s.l),
		WithMetrics(s.m),
	}
}
