// Package metrics exposes Prometheus collectors for the vault.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/starford/doclife/internal/registry"
)

// Metrics provides observability for the document registry and lifecycle.
type Metrics struct {
	// Registered documents by category and by location
	Documents           *prometheus.GaugeVec
	DocumentsByLocation *prometheus.GaugeVec

	// Open violations by rule
	Violations *prometheus.GaugeVec

	// Lifecycle moves by kind: "archive", "supersede", "rename"
	Moves *prometheus.CounterVec

	// Full-vault lint pass duration
	LintDuration prometheus.Histogram
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Documents: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doclife_documents",
			Help: "Registered documents by category",
		}, []string{"category"}),

		DocumentsByLocation: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doclife_documents_by_location",
			Help: "Registered documents by location",
		}, []string{"location"}),

		Violations: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "doclife_violations",
			Help: "Open policy violations by rule",
		}, []string{"rule"}),

		Moves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doclife_lifecycle_moves_total",
			Help: "Documents moved by the lifecycle",
		}, []string{"kind"}),

		LintDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "doclife_lint_duration_seconds",
			Help:    "Duration of a full vault lint pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveSummary replaces the gauges with the counts in s.
func (m *Metrics) ObserveSummary(s *registry.Summary) {
	if m == nil || s == nil {
		return
	}
	m.Documents.Reset()
	for k, n := range s.ByCategory {
		m.Documents.WithLabelValues(k).Set(float64(n))
	}
	m.DocumentsByLocation.Reset()
	for k, n := range s.ByLocation {
		m.DocumentsByLocation.WithLabelValues(k).Set(float64(n))
	}
	m.Violations.Reset()
	for k, n := range s.ByRule {
		m.Violations.WithLabelValues(k).Set(float64(n))
	}
}

// IncrementMoves records n lifecycle moves of kind.
func (m *Metrics) IncrementMoves(kind string, n int) {
	if m != nil && n > 0 {
		m.Moves.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveLint records the duration of a full lint pass.
func (m *Metrics) ObserveLint(d time.Duration) {
	if m != nil {
		m.LintDuration.Observe(d.Seconds())
	}
}
