package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the meter name used when no meter is supplied
const InstrumentationName = "github.com/vnykmshr/invcache-go/pkg/metrics"

// OTelExporter records cache metrics through an OpenTelemetry meter
type OTelExporter struct {
	config *Config
	names  MetricNames
	meter  metric.Meter

	stats    map[string]metric.Int64Counter
	ops      metric.Int64Counter
	errs     metric.Int64Counter
	duration metric.Float64Histogram
	keys     metric.Int64Gauge
	memory   metric.Int64Gauge
	hitRate  metric.Float64Gauge

	mu         sync.Mutex
	cursor     *counterCursor
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewOTelExporter creates the cache instruments on meter. A nil meter uses
// the global meter provider.
func NewOTelExporter(config *Config, meter metric.Meter) (*OTelExporter, error) {
	if config == nil {
		config = NewDefaultConfig()
	}
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(InstrumentationName)
	}

	o := &OTelExporter{
		config:     config,
		names:      NewMetricNames(config.Namespace),
		meter:      meter,
		stats:      make(map[string]metric.Int64Counter),
		cursor:     newCounterCursor(),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}

	counters := map[string]string{
		"hits":          o.names.CacheHitsTotal,
		"misses":        o.names.CacheMissesTotal,
		"sets":          o.names.CacheSetsTotal,
		"evictions":     o.names.CacheEvictionsTotal,
		"compressions":  o.names.CacheCompressionsTotal,
		"invalidations": o.names.CacheInvalidationsTotal,
	}
	for key, name := range counters {
		c, err := meter.Int64Counter(name)
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
		}
		o.stats[key] = c
	}

	var err error
	if o.ops, err = meter.Int64Counter(o.names.CacheOperationsTotal); err != nil {
		return nil, fmt.Errorf("failed to create operations counter: %w", err)
	}
	if o.errs, err = meter.Int64Counter(o.names.CacheErrorsTotal); err != nil {
		return nil, fmt.Errorf("failed to create errors counter: %w", err)
	}
	if o.duration, err = meter.Float64Histogram(o.names.CacheOperationDuration, metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	if o.keys, err = meter.Int64Gauge(o.names.CacheKeysCount); err != nil {
		return nil, fmt.Errorf("failed to create keys gauge: %w", err)
	}
	if o.memory, err = meter.Int64Gauge(o.names.CacheMemoryUsage, metric.WithUnit("By")); err != nil {
		return nil, fmt.Errorf("failed to create memory gauge: %w", err)
	}
	if o.hitRate, err = meter.Float64Gauge(o.names.CacheHitRate); err != nil {
		return nil, fmt.Errorf("failed to create hit rate gauge: %w", err)
	}

	return o, nil
}

func attributes(labels Labels) metric.MeasurementOption {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, labels[k]))
	}
	return metric.WithAttributes(attrs...)
}

// ExportStats adds counter deltas and records gauges
func (o *OTelExporter) ExportStats(stats Stats, labels Labels) error {
	ctx := context.Background()
	attrs := attributes(labels)
	series := seriesKey(labels)

	current := map[string]int64{
		"hits":          stats.Hits(),
		"misses":        stats.Misses(),
		"sets":          stats.Sets(),
		"evictions":     stats.Evictions(),
		"compressions":  stats.Compressions(),
		"invalidations": stats.Invalidations(),
	}

	o.mu.Lock()
	for key, value := range current {
		if d := o.cursor.delta(series+key, value); d > 0 {
			o.stats[key].Add(ctx, d, attrs)
		}
	}
	o.mu.Unlock()

	o.keys.Record(ctx, stats.KeyCount(), attrs)
	o.memory.Record(ctx, stats.MemoryUsage(), attrs)
	o.hitRate.Record(ctx, stats.HitRate(), attrs)
	return nil
}

// RecordCacheOperation counts the operation and records its duration
func (o *OTelExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	ctx := context.Background()

	withOp := make(Labels, len(labels)+1)
	for k, v := range labels {
		withOp[k] = v
	}
	withOp["operation"] = string(operation)
	attrs := attributes(withOp)

	o.ops.Add(ctx, 1, attrs)
	if labels[ResultLabel] == string(ResultError) {
		o.errs.Add(ctx, 1, attrs)
	}
	o.duration.Record(ctx, duration.Seconds(), attrs)
	return nil
}

// IncrementCounter adds one to a counter created on first use
func (o *OTelExporter) IncrementCounter(name string, labels Labels) error {
	o.mu.Lock()
	c, ok := o.counters[name]
	if !ok {
		var err error
		if c, err = o.meter.Int64Counter(name); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("failed to create counter %s: %w", name, err)
		}
		o.counters[name] = c
	}
	o.mu.Unlock()

	c.Add(context.Background(), 1, attributes(labels))
	return nil
}

// RecordHistogram records value on a histogram created on first use
func (o *OTelExporter) RecordHistogram(name string, value float64, labels Labels) error {
	o.mu.Lock()
	h, ok := o.histograms[name]
	if !ok {
		var err error
		if h, err = o.meter.Float64Histogram(name); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("failed to create histogram %s: %w", name, err)
		}
		o.histograms[name] = h
	}
	o.mu.Unlock()

	h.Record(context.Background(), value, attributes(labels))
	return nil
}

// SetGauge records value on a gauge created on first use
func (o *OTelExporter) SetGauge(name string, value float64, labels Labels) error {
	o.mu.Lock()
	g, ok := o.gauges[name]
	if !ok {
		var err error
		if g, err = o.meter.Float64Gauge(name); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("failed to create gauge %s: %w", name, err)
		}
		o.gauges[name] = g
	}
	o.mu.Unlock()

	g.Record(context.Background(), value, attributes(labels))
	return nil
}

// Close is a no-op; the meter provider owns the instruments
func (o *OTelExporter) Close() error {
	return nil
}
