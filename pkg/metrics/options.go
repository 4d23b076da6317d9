package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines some options to the metrics initialization
type Option func(*settings)

// WithNamespace defines the prefix of all metric names. The default is "envmon".
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		if namespace != "" {
			s.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered with. The default is a private registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *settings) {
		if registry != nil {
			s.registry = registry
		}
	}
}

type settings struct {
	namespace string
	registry  *prometheus.Registry
}

func newSettings(opts ...Option) *settings {
	s := &settings{
		namespace: "envmon",
	}
	for _, apply := range opts {
		apply(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	return s
}
