package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/doclife/internal/registry"
)

func TestObserveSummary(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSummary(&registry.Summary{
		ByCategory: map[string]int{"exempt": 3, "timestamped": 5},
		ByLocation: map[string]int{"active": 6, "archive": 2},
		ByRule:     map[string]int{"header-missing": 2},
	})
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Documents.WithLabelValues("exempt")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsByLocation.WithLabelValues("archive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Violations.WithLabelValues("header-missing")))

	// A later summary drops rules that are no longer violated.
	m.ObserveSummary(&registry.Summary{ByRule: map[string]int{}})
	assert.Equal(t, 0, testutil.CollectAndCount(m.Violations))
}

func TestMovesAndLint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementMoves("archive", 2)
	m.IncrementMoves("archive", 0)
	m.ObserveLint(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Moves.WithLabelValues("archive")))
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSummary(&registry.Summary{})
	m.IncrementMoves("archive", 1)
	m.ObserveLint(time.Second)
}
