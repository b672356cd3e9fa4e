// Package metrics wraps prometheus collectors behind named lookups so
// components never register collectors themselves. Each Metrics instance
// owns a dedicated registry, which keeps test constructions isolated.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type MetricName string

const (
	ScanTotal        MetricName = "scan_total"
	ScanCacheServed  MetricName = "scan_cache_served"
	ScanDuration     MetricName = "scan_duration_seconds"
	TokensDiscovered MetricName = "tokens_discovered"

	CacheHit    MetricName = "cache_hit"
	CacheMiss   MetricName = "cache_miss"
	CacheWarmup MetricName = "cache_warmup"

	ChainFetchError MetricName = "chain_fetch_error"

	EnrichRetry   MetricName = "enrich_retry"
	EnrichFailure MetricName = "enrich_failure"

	BatchExecution MetricName = "batch_execution"
)

// Metrics is the process metric manager.
type Metrics struct {
	registry    *prometheus.Registry
	counters    map[MetricName]prometheus.Counter
	counterVecs map[MetricName]*prometheus.CounterVec
	gauges      map[MetricName]prometheus.Gauge
}

// NewMetrics creates a Metrics instance with every pipeline collector
// registered on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		counters:    make(map[MetricName]prometheus.Counter),
		counterVecs: make(map[MetricName]*prometheus.CounterVec),
		gauges:      make(map[MetricName]prometheus.Gauge),
	}

	counters := map[MetricName]string{
		ScanTotal:       "Total number of scans started",
		ScanCacheServed: "Total number of scans served from cache",
		CacheHit:        "Total number of scan cache hits",
		CacheMiss:       "Total number of scan cache misses",
		CacheWarmup:     "Total number of cache entries populated by warmup",
		EnrichRetry:     "Total number of security enrichment retries",
		EnrichFailure:   "Total number of tokens whose enrichment failed after retries",
	}
	for name, help := range counters {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sweepnode",
			Name:      string(name),
			Help:      help,
		})
		m.registry.MustRegister(counter)
		m.counters[name] = counter
	}

	counterVecs := map[MetricName]struct {
		help   string
		labels []string
	}{
		ChainFetchError: {"Total number of balance fetch failures by chain", []string{"chain"}},
		BatchExecution:  {"Total number of batch executions by action and outcome", []string{"action", "outcome"}},
	}
	for name, def := range counterVecs {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sweepnode",
			Name:      string(name),
			Help:      def.help,
		}, def.labels)
		m.registry.MustRegister(vec)
		m.counterVecs[name] = vec
	}

	gauges := map[MetricName]string{
		ScanDuration:     "Wall clock duration of the last scan in seconds",
		TokensDiscovered: "Number of tokens discovered by the last scan",
	}
	for name, help := range gauges {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sweepnode",
			Name:      string(name),
			Help:      help,
		})
		m.registry.MustRegister(gauge)
		m.gauges[name] = gauge
	}

	return m
}

// GetCounter returns the named counter.
func (m *Metrics) GetCounter(name MetricName) prometheus.Counter {
	return m.counters[name]
}

// GetCounterVec returns the named counter vec.
func (m *Metrics) GetCounterVec(name MetricName) *prometheus.CounterVec {
	return m.counterVecs[name]
}

// GetGauge returns the named gauge.
func (m *Metrics) GetGauge(name MetricName) prometheus.Gauge {
	return m.gauges[name]
}

// Registry exposes the underlying registry for scrape handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
