package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestPrometheusExporter(t *testing.T) (*PrometheusExporter, *prometheus.Registry) {
	t.Helper()

	registry := prometheus.NewRegistry()
	exporter, err := NewPrometheusExporter(NewDefaultConfig(), &PrometheusConfig{Registry: registry})
	if err != nil {
		t.Fatalf("NewPrometheusExporter failed: %v", err)
	}
	return exporter, registry
}

func TestPrometheusExportStats(t *testing.T) {
	exporter, _ := newTestPrometheusExporter(t)
	labels := Labels{"cache_name": "users"}

	stats := &mockStats{hits: 8, misses: 2, sets: 5, evictions: 1, keyCount: 4, memoryUsage: 2048, hitRate: 0.8}
	if err := exporter.ExportStats(stats, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}

	if got := testutil.ToFloat64(exporter.hits.WithLabelValues("users")); got != 8 {
		t.Errorf("Expected 8 hits, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.keys.WithLabelValues("users")); got != 4 {
		t.Errorf("Expected 4 keys, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.memory.WithLabelValues("users")); got != 2048 {
		t.Errorf("Expected 2048 bytes, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.hitRate.WithLabelValues("users")); got != 0.8 {
		t.Errorf("Expected hit rate 0.8, got %v", got)
	}

	// Second export only adds the difference
	stats.hits = 11
	if err := exporter.ExportStats(stats, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}
	if got := testutil.ToFloat64(exporter.hits.WithLabelValues("users")); got != 11 {
		t.Errorf("Expected 11 hits after delta, got %v", got)
	}

	// A cleared cache restarts from zero without decreasing the counter
	stats.hits = 2
	if err := exporter.ExportStats(stats, labels); err != nil {
		t.Fatalf("ExportStats failed: %v", err)
	}
	if got := testutil.ToFloat64(exporter.hits.WithLabelValues("users")); got != 13 {
		t.Errorf("Expected 13 hits after reset, got %v", got)
	}
}

func TestPrometheusRecordCacheOperation(t *testing.T) {
	exporter, _ := newTestPrometheusExporter(t)

	labels := Labels{"cache_name": "users", ResultLabel: string(ResultError)}
	if err := exporter.RecordCacheOperation(OperationFunctionCall, 3*time.Millisecond, labels); err != nil {
		t.Fatalf("RecordCacheOperation failed: %v", err)
	}

	ops := exporter.operations.WithLabelValues("users", string(OperationFunctionCall), string(ResultError))
	if got := testutil.ToFloat64(ops); got != 1 {
		t.Errorf("Expected 1 operation, got %v", got)
	}
	errs := exporter.errors.WithLabelValues("users", string(OperationFunctionCall), string(ResultError))
	if got := testutil.ToFloat64(errs); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}
}

func TestPrometheusDynamicMetrics(t *testing.T) {
	exporter, registry := newTestPrometheusExporter(t)
	labels := Labels{"cache_name": "users"}

	if err := exporter.IncrementCounter("custom_total", labels); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if err := exporter.IncrementCounter("custom_total", labels); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if err := exporter.SetGauge("custom_gauge", 7, labels); err != nil {
		t.Fatalf("SetGauge failed: %v", err)
	}
	if err := exporter.RecordHistogram("custom_seconds", 0.5, labels); err != nil {
		t.Fatalf("RecordHistogram failed: %v", err)
	}

	if got := testutil.ToFloat64(exporter.counters["custom_total"].WithLabelValues("users")); got != 2 {
		t.Errorf("Expected custom counter 2, got %v", got)
	}
	if got := testutil.ToFloat64(exporter.gauges["custom_gauge"].WithLabelValues("users")); got != 7 {
		t.Errorf("Expected custom gauge 7, got %v", got)
	}

	count, err := testutil.GatherAndCount(registry, "custom_seconds")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}
}

func TestPrometheusCloseUnregisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	promConfig := &PrometheusConfig{Registry: registry}

	first, err := NewPrometheusExporter(NewDefaultConfig(), promConfig)
	if err != nil {
		t.Fatalf("NewPrometheusExporter failed: %v", err)
	}

	if _, err := NewPrometheusExporter(NewDefaultConfig(), promConfig); err == nil {
		t.Fatal("Expected duplicate registration to fail")
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := NewPrometheusExporter(NewDefaultConfig(), promConfig); err != nil {
		t.Fatalf("Expected registration after Close to succeed: %v", err)
	}
}
