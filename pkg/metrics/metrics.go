// Package metrics defines how cache activity is exported to monitoring
// systems. The cache talks to a single Exporter; Prometheus, OpenTelemetry
// and plain timing sinks are provided, and MultiExporter fans out to several.
package metrics

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Stats is the read-only view of cache counters an exporter consumes
type Stats interface {
	Hits() int64
	Misses() int64
	Sets() int64
	Evictions() int64
	Compressions() int64
	Invalidations() int64
	KeyCount() int64
	MemoryUsage() int64
	HitRate() float64
}

// Labels are key/value pairs attached to exported metrics
type Labels map[string]string

// Operation names a cache operation for timing metrics
type Operation string

const (
	OperationGet          Operation = "get"
	OperationSet          Operation = "set"
	OperationDelete       Operation = "delete"
	OperationInvalidate   Operation = "invalidate"
	OperationEvict        Operation = "evict"
	OperationCleanup      Operation = "cleanup"
	OperationFunctionCall Operation = "function_call"
	OperationPersist      Operation = "persist"
	OperationRestore      Operation = "restore"
)

// Result is the outcome of a fetch-through call
type Result string

const (
	ResultHit   Result = "hit"
	ResultMiss  Result = "miss"
	ResultError Result = "error"
)

// ResultLabel is the label key carrying a Result
const ResultLabel = "result"

// Exporter receives cache metrics
type Exporter interface {
	// ExportStats publishes a point-in-time view of the cache counters
	ExportStats(stats Stats, labels Labels) error

	// RecordCacheOperation records the duration of a single operation
	RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error

	IncrementCounter(name string, labels Labels) error
	RecordHistogram(name string, value float64, labels Labels) error
	SetGauge(name string, value float64, labels Labels) error

	// Close releases exporter resources
	Close() error
}

// Config holds exporter settings
type Config struct {
	Enabled                bool
	Namespace              string
	Labels                 Labels
	ReportingInterval      time.Duration
	IncludeDetailedTimings bool
}

// NewDefaultConfig returns an enabled config reporting every 30 seconds
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		Namespace:         "invcache",
		Labels:            make(Labels),
		ReportingInterval: 30 * time.Second,
	}
}

// WithNamespace sets the metric name prefix
func (c *Config) WithNamespace(namespace string) *Config {
	c.Namespace = namespace
	return c
}

// WithLabels merges labels into the constant labels
func (c *Config) WithLabels(labels Labels) *Config {
	if c.Labels == nil {
		c.Labels = make(Labels)
	}
	for k, v := range labels {
		c.Labels[k] = v
	}
	return c
}

// WithReportingInterval sets how often stats are exported
func (c *Config) WithReportingInterval(interval time.Duration) *Config {
	c.ReportingInterval = interval
	return c
}

// WithDetailedTimings enables per-operation duration histograms
func (c *Config) WithDetailedTimings(enabled bool) *Config {
	c.IncludeDetailedTimings = enabled
	return c
}

// MetricNames holds the fully qualified metric names
type MetricNames struct {
	CacheHitsTotal          string
	CacheMissesTotal        string
	CacheSetsTotal          string
	CacheEvictionsTotal     string
	CacheCompressionsTotal  string
	CacheInvalidationsTotal string
	CacheOperationsTotal    string
	CacheErrorsTotal        string
	CacheOperationDuration  string
	CacheKeysCount          string
	CacheMemoryUsage        string
	CacheHitRate            string
}

// DefaultMetricNames returns metric names under the invcache namespace
func DefaultMetricNames() MetricNames {
	return NewMetricNames("invcache")
}

// NewMetricNames returns metric names under namespace
func NewMetricNames(namespace string) MetricNames {
	name := func(suffix string) string {
		if namespace == "" {
			return suffix
		}
		return namespace + "_" + suffix
	}

	return MetricNames{
		CacheHitsTotal:          name("hits_total"),
		CacheMissesTotal:        name("misses_total"),
		CacheSetsTotal:          name("sets_total"),
		CacheEvictionsTotal:     name("evictions_total"),
		CacheCompressionsTotal:  name("compressions_total"),
		CacheInvalidationsTotal: name("invalidations_total"),
		CacheOperationsTotal:    name("operations_total"),
		CacheErrorsTotal:        name("errors_total"),
		CacheOperationDuration:  name("operation_duration_seconds"),
		CacheKeysCount:          name("keys_count"),
		CacheMemoryUsage:        name("memory_usage_bytes"),
		CacheHitRate:            name("hit_rate"),
	}
}

// NoOpExporter discards everything
type NoOpExporter struct{}

// NewNoOpExporter creates an exporter that does nothing
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (n *NoOpExporter) ExportStats(Stats, Labels) error { return nil }

func (n *NoOpExporter) RecordCacheOperation(Operation, time.Duration, Labels) error { return nil }

func (n *NoOpExporter) IncrementCounter(string, Labels) error { return nil }

func (n *NoOpExporter) RecordHistogram(string, float64, Labels) error { return nil }

func (n *NoOpExporter) SetGauge(string, float64, Labels) error { return nil }

func (n *NoOpExporter) Close() error { return nil }

// MultiExporter forwards every call to all of its exporters
type MultiExporter struct {
	exporters []Exporter
}

// NewMultiExporter creates an exporter fanning out to exporters
func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

func (m *MultiExporter) each(fn func(Exporter) error) error {
	var errs []error
	for _, e := range m.exporters {
		if err := fn(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiExporter) ExportStats(stats Stats, labels Labels) error {
	return m.each(func(e Exporter) error { return e.ExportStats(stats, labels) })
}

func (m *MultiExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordCacheOperation(operation, duration, labels) })
}

func (m *MultiExporter) IncrementCounter(name string, labels Labels) error {
	return m.each(func(e Exporter) error { return e.IncrementCounter(name, labels) })
}

func (m *MultiExporter) RecordHistogram(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.RecordHistogram(name, value, labels) })
}

func (m *MultiExporter) SetGauge(name string, value float64, labels Labels) error {
	return m.each(func(e Exporter) error { return e.SetGauge(name, value, labels) })
}

func (m *MultiExporter) Close() error {
	return m.each(func(e Exporter) error { return e.Close() })
}

// counterCursor turns the cache's cumulative counters into deltas for
// monotonic counter instruments. A drop below the last seen value means the
// cache was cleared, so the new value is taken as the delta.
type counterCursor struct {
	last map[string]int64
}

func newCounterCursor() *counterCursor {
	return &counterCursor{last: make(map[string]int64)}
}

func (c *counterCursor) delta(series string, current int64) int64 {
	prev := c.last[series]
	c.last[series] = current
	if current < prev {
		return current
	}
	return current - prev
}

// seriesKey identifies a label set independent of map order
func seriesKey(labels Labels) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}
