package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics builds Counter/Gauge series lazily keyed by name and
// label values, registering each distinct name exactly once against reg.
type PrometheusMetrics struct {
	reg prometheus.Registerer

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics returns a Metrics backed by reg. Pass
// prometheus.DefaultRegisterer to publish on the default /metrics handler.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		reg:      reg,
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

func (m *PrometheusMetrics) Counter(name string, labels ...string) Counter {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelNames(labels))
		m.reg.MustRegister(vec)
		m.counters[name] = vec
	}
	m.mu.Unlock()
	return vec.WithLabelValues(labelValues(labels)...)
}

func (m *PrometheusMetrics) Gauge(name string, labels ...string) Gauge {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelNames(labels))
		m.reg.MustRegister(vec)
		m.gauges[name] = vec
	}
	m.mu.Unlock()
	return vec.WithLabelValues(labelValues(labels)...)
}

// labels is supplied as alternating name/value pairs (e.g. "topic",
// "orders"); labelNames/labelValues split that flat list for the two
// distinct calls prometheus's API wants (registration-time names, lookup-
// time values).
func labelNames(labels []string) []string {
	names := make([]string, 0, len(labels)/2)
	for i := 0; i < len(labels); i += 2 {
		names = append(names, labels[i])
	}
	return names
}

func labelValues(labels []string) []string {
	values := make([]string, 0, len(labels)/2)
	for i := 1; i < len(labels); i += 2 {
		values = append(values, labels[i])
	}
	return values
}
