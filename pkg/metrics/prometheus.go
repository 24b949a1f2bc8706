package metrics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusConfig configures the Prometheus exporter
type PrometheusConfig struct {
	// Registry receives the collectors. Defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// LabelNames are the label keys every series carries. Values are taken
	// from the Labels passed to each call; missing ones are left empty.
	LabelNames []string
}

// PrometheusExporter exports cache metrics as Prometheus collectors
type PrometheusExporter struct {
	config     *Config
	names      MetricNames
	registry   prometheus.Registerer
	labelNames []string

	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	sets          *prometheus.CounterVec
	evictions     *prometheus.CounterVec
	compressions  *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	operations    *prometheus.CounterVec
	errors        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	keys          *prometheus.GaugeVec
	memory        *prometheus.GaugeVec
	hitRate       *prometheus.GaugeVec

	mu         sync.Mutex
	cursor     *counterCursor
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	collectors []prometheus.Collector
}

// NewPrometheusExporter creates and registers the cache collectors
func NewPrometheusExporter(config *Config, promConfig *PrometheusConfig) (*PrometheusExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if promConfig == nil {
		promConfig = &PrometheusConfig{}
	}

	registry := promConfig.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	labelNames := promConfig.LabelNames
	if len(labelNames) == 0 {
		labelNames = []string{"cache_name"}
	}

	p := &PrometheusExporter{
		config:     config,
		names:      NewMetricNames(config.Namespace),
		registry:   registry,
		labelNames: labelNames,
		cursor:     newCounterCursor(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	withOperation := append(append([]string{}, labelNames...), "operation", ResultLabel)

	p.hits = p.counterVec(p.names.CacheHitsTotal, "Total number of cache hits", labelNames)
	p.misses = p.counterVec(p.names.CacheMissesTotal, "Total number of cache misses", labelNames)
	p.sets = p.counterVec(p.names.CacheSetsTotal, "Total number of cache writes", labelNames)
	p.evictions = p.counterVec(p.names.CacheEvictionsTotal, "Total number of evicted entries", labelNames)
	p.compressions = p.counterVec(p.names.CacheCompressionsTotal, "Total number of compressed writes", labelNames)
	p.invalidations = p.counterVec(p.names.CacheInvalidationsTotal, "Total number of invalidated entries", labelNames)
	p.operations = p.counterVec(p.names.CacheOperationsTotal, "Total number of cache operations", withOperation)
	p.errors = p.counterVec(p.names.CacheErrorsTotal, "Total number of failed cache operations", withOperation)
	p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    p.names.CacheOperationDuration,
		Help:    "Duration of cache operations in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, withOperation)
	p.keys = p.gaugeVec(p.names.CacheKeysCount, "Number of entries in the cache", labelNames)
	p.memory = p.gaugeVec(p.names.CacheMemoryUsage, "Approximate bytes held by cache entries", labelNames)
	p.hitRate = p.gaugeVec(p.names.CacheHitRate, "Ratio of hits to lookups", labelNames)

	p.collectors = []prometheus.Collector{
		p.hits, p.misses, p.sets, p.evictions, p.compressions, p.invalidations,
		p.operations, p.errors, p.duration, p.keys, p.memory, p.hitRate,
	}

	for i, c := range p.collectors {
		if err := registry.Register(c); err != nil {
			for _, registered := range p.collectors[:i] {
				registry.Unregister(registered)
			}
			return nil, fmt.Errorf("failed to register prometheus collector: %w", err)
		}
	}

	return p, nil
}

func (p *PrometheusExporter) counterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
}

func (p *PrometheusExporter) gaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labels)
}

// values projects labels onto the exporter's label names
func (p *PrometheusExporter) values(labels Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(p.labelNames))
	for _, name := range p.labelNames {
		out[name] = labels[name]
	}
	return out
}

// ExportStats publishes counters as deltas and gauges as current values
func (p *PrometheusExporter) ExportStats(stats Stats, labels Labels) error {
	values := p.values(labels)
	series := seriesKey(Labels(values))

	p.mu.Lock()
	defer p.mu.Unlock()

	add := func(vec *prometheus.CounterVec, name string, current int64) {
		if d := p.cursor.delta(series+name, current); d > 0 {
			vec.With(values).Add(float64(d))
		}
	}

	add(p.hits, "hits", stats.Hits())
	add(p.misses, "misses", stats.Misses())
	add(p.sets, "sets", stats.Sets())
	add(p.evictions, "evictions", stats.Evictions())
	add(p.compressions, "compressions", stats.Compressions())
	add(p.invalidations, "invalidations", stats.Invalidations())

	p.keys.With(values).Set(float64(stats.KeyCount()))
	p.memory.With(values).Set(float64(stats.MemoryUsage()))
	p.hitRate.With(values).Set(stats.HitRate())

	return nil
}

// RecordCacheOperation counts the operation and observes its duration
func (p *PrometheusExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	values := p.values(labels)
	values["operation"] = string(operation)
	values[ResultLabel] = labels[ResultLabel]

	p.operations.With(values).Inc()
	if labels[ResultLabel] == string(ResultError) {
		p.errors.With(values).Inc()
	}
	p.duration.With(values).Observe(duration.Seconds())
	return nil
}

// IncrementCounter increments a counter registered on first use
func (p *PrometheusExporter) IncrementCounter(name string, labels Labels) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.counters[name]
	if !ok {
		vec = p.counterVec(name, name, p.labelNames)
		if err := p.register(vec); err != nil {
			return err
		}
		p.counters[name] = vec
	}
	vec.With(p.values(labels)).Inc()
	return nil
}

// RecordHistogram observes value on a histogram registered on first use
func (p *PrometheusExporter) RecordHistogram(name string, value float64, labels Labels) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name}, p.labelNames)
		if err := p.register(vec); err != nil {
			return err
		}
		p.histograms[name] = vec
	}
	vec.With(p.values(labels)).Observe(value)
	return nil
}

// SetGauge sets a gauge registered on first use
func (p *PrometheusExporter) SetGauge(name string, value float64, labels Labels) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	vec, ok := p.gauges[name]
	if !ok {
		vec = p.gaugeVec(name, name, p.labelNames)
		if err := p.register(vec); err != nil {
			return err
		}
		p.gauges[name] = vec
	}
	vec.With(p.values(labels)).Set(value)
	return nil
}

func (p *PrometheusExporter) register(c prometheus.Collector) error {
	if err := p.registry.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return fmt.Errorf("metric already registered by another collector: %w", err)
		}
		return fmt.Errorf("failed to register metric: %w", err)
	}
	p.collectors = append(p.collectors, c)
	return nil
}

// Close unregisters every collector
func (p *PrometheusExporter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.collectors {
		p.registry.Unregister(c)
	}
	p.collectors = nil
	return nil
}
