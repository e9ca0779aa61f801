package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory backs MetricFactory with Prometheus collectors. Dotted
// names such as "streams.route.created" become "streams_route_created_total".
// Asking twice for the same name returns the same collector.
type PrometheusFactory struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

// NewPrometheusFactory registers collectors on reg, or on a fresh registry
// when reg is nil.
func NewPrometheusFactory(reg *prometheus.Registry) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &PrometheusFactory{
		registry:   reg,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// Registry returns the registry collectors are registered on, for use as a
// scrape endpoint.
func (f *PrometheusFactory) Registry() *prometheus.Registry { return f.registry }

// Counter implements MetricFactory.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricName(name) + "_total",
		Help: "Count of " + name,
	})
	f.registry.MustRegister(c)
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory. Buckets span 1 to roughly 10^9 so the
// same layout fits both token amounts and millisecond latencies.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricName(name),
		Help:    "Distribution of " + name,
		Buckets: prometheus.ExponentialBuckets(1, 4, 16),
	})
	f.registry.MustRegister(h)
	f.histograms[name] = h
	return h
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
