// Package metrics records session lifecycle counters and exports them as a
// node-exporter textfile.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/session"
)

const namespace = "parley"

// Metrics groups the Prometheus instruments fed by session.Observer.
type Metrics struct {
	registry *prometheus.Registry

	Sessions        *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	Transitions     *prometheus.CounterVec
	TokenFetches    *prometheus.CounterVec
}

var _ session.Observer = (*Metrics)(nil)

// New registers all instruments on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished voice sessions by outcome.",
		}, []string{"outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall time from Start to the terminal transition.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34},
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Session state transitions.",
		}, []string{"from", "to"}),
		TokenFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_fetches_total",
			Help:      "Session token lookups by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the private registry for export and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveTransition(from, to fsm.State) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) ObserveOutcome(outcome session.Outcome, elapsed time.Duration) {
	m.Sessions.WithLabelValues(string(outcome)).Inc()
	m.SessionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTokenFetch(result session.TokenFetchResult) {
	m.TokenFetches.WithLabelValues(string(result)).Inc()
}

// WriteTextfile writes the current values atomically to path.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %q: %w", path, err)
	}
	return nil
}
