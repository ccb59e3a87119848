package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestDiscardMetricsNeverPanics(t *testing.T) {
	c := Discard.Counter(SeriesProducedMessages)
	c.Inc()
	c.Add(3)
	g := Discard.Gauge(SeriesProducers)
	g.Inc()
	g.Dec()
	g.Set(2)
}

func TestPrometheusMetricsRegistersOncePerName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	c1 := m.Counter(SeriesProducedMessages, "topic", "orders")
	c1.Add(2)
	c2 := m.Counter(SeriesProducedMessages, "topic", "orders")
	c2.Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.EqualValues(t, 3, families[0].Metric[0].Counter.GetValue())
}

func TestPrometheusMetricsDistinctLabelValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)

	m.Gauge(SeriesConsumers, "group", "g1").Set(1)
	m.Gauge(SeriesConsumers, "group", "g2").Set(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].Metric, 2)
}
