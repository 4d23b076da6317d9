package generations

import (
	"github.com/oneconcern/envmon/pkg/core"
	"github.com/oneconcern/envmon/pkg/metrics"
	"github.com/oneconcern/envmon/pkg/vcs"
	"go.uber.org/zap"
)

// Option for generations
type Option func(*settings)

type settings struct {
	coreOptions []core.Option
	gitOptions  []vcs.Option
	l           *zap.Logger
	m           *metrics.M
}

// WithCoreOptions sets the options used to open the environments of generations
func WithCoreOptions(opts ...core.Option) Option {
	return func(s *settings) {
		s.coreOptions = append(s.coreOptions, opts...)
	}
}

// WithGitOptions sets the options of private clones
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
