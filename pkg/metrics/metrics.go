// Package metrics collects counters about environment transactions and synchronization.
//
// Metrics are registered on a prometheus registry. Long running processes may
// serve this registry. The CLI writes it to a textfile, for collection by a
// node exporter.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels a successful operation
	OutcomeSuccess = "success"

	// OutcomeFailure labels a failed operation
	OutcomeFailure = "failure"

	// OutcomeUnchanged labels an operation which did not need to change anything
	OutcomeUnchanged = "unchanged"
)

// M holds the metrics of envmon.
//
// A nil *M is valid and records nothing.
type M struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	generations  prometheus.Counter
	syncs        *prometheus.CounterVec
	durations    *prometheus.HistogramVec
}

// New builds and registers a new set of metrics
func New(opts ...Option) *M {
	s := newSettings(opts...)
	m := &M{
		registry: s.registry,
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "transactions_total",
			Help:      "Environment transactions, by operation and outcome.",
		}, []string{"op", "outcome"}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "generations_created_total",
			Help:      "Generations committed.",
		}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      "sync_total",
			Help:      "Push and pull operations, by operation and outcome.",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations, including builds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"op"}),
	}
	s.registry.MustRegister(m.transactions, m.generations, m.syncs, m.durations)
	return m
}

// Registry the metrics are registered with
func (m *M) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Transaction records the outcome of an environment transaction
func (m *M) Transaction(op, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(op, outcome).Inc()
}

// GenerationCreated records a new generation
func (m *M) GenerationCreated() {
	if m == nil {
		return
	}
	m.generations.Inc()
}

// GenerationsCreated is the counter of generations, for inspection
func (m *M) GenerationsCreated() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.generations
}

// Syncs is the counter of push or pull operations with some outcome, for inspection
func (m *M) Syncs(op, outcome string) prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.syncs.WithLabelValues(op, outcome)
}

// Sync records the outcome of a push or a pull
func (m *M) Sync(op, outcome string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(op, outcome).Inc()
}

// Since feeds the duration of some operation from its start time
func (m *M) Since(op string, start time.Time) {
	if m == nil {
		return
	}
	m.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Outcome of an operation, from its error
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// WriteToTextfile dumps all metrics to a file, in the prometheus text format
func (m *M) WriteToTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
