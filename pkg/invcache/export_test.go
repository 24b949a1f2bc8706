package invcache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/invcache-go/internal/eviction"
	"github.com/vnykmshr/invcache-go/pkg/compression"
	"github.com/vnykmshr/invcache-go/pkg/metrics"
)

func TestExport(t *testing.T) {
	config, clock := clockedConfig(5, time.Minute)
	cache := newTestCache[string](t, config.WithEvictionType(eviction.LRUList))

	_ = cache.Set("b", "2", WithTags("t"), WithDependencies("/b"))
	_ = cache.Set("a", "1", WithTTL(time.Second))
	cache.Get("a")
	clock.Advance(2 * time.Second)

	export := cache.Export()

	if len(export.Entries) != 2 || export.Entries[0].Key != "a" || export.Entries[1].Key != "b" {
		t.Fatalf("Expected entries sorted by key, got %+v", export.Entries)
	}

	a := export.Entries[0]
	if !a.Expired || a.Remaining != 0 || a.AccessCount != 1 || a.Value != "1" {
		t.Errorf("Unexpected export of a: %+v", a)
	}
	if !cache.Has("b") || cache.Has("a") {
		t.Error("Export must not remove or touch entries")
	}

	if got := export.TagIndex["t"]; len(got) != 1 || got[0] != "b" {
		t.Errorf("Unexpected tag index %v", export.TagIndex)
	}
	if got := export.DependencyIndex["/b"]; len(got) != 1 || got[0] != "b" {
		t.Errorf("Unexpected dependency index %v", export.DependencyIndex)
	}

	if export.TagCount != 1 || export.DependencyCount != 1 {
		t.Errorf("Expected one tag and one dependency, got %d/%d", export.TagCount, export.DependencyCount)
	}

	if export.Metrics.Hits != 1 || export.Metrics.Size != 2 || export.Metrics.MaxSize != 5 {
		t.Errorf("Unexpected metrics %+v", export.Metrics)
	}

	want := ExportedConfig{
		MaxEntries:           5,
		DefaultTTL:           time.Minute,
		EvictionType:         eviction.LRUList,
		CompressionEnabled:   true,
		CompressionAlgorithm: compression.CompressorGzip,
		CompressionMinSize:   compression.DefaultMinSize,
	}
	if export.Config != want {
		t.Errorf("Expected config %+v, got %+v", want, export.Config)
	}
}

func TestMetricsReporterExportsStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter, err := metrics.NewPrometheusExporter(metrics.NewDefaultConfig(), &metrics.PrometheusConfig{Registry: registry})
	if err != nil {
		t.Fatalf("NewPrometheusExporter failed: %v", err)
	}

	config := NewDefaultConfig().WithMetrics(&MetricsConfig{
		Enabled:           true,
		Exporter:          exporter,
		CacheName:         "users",
		ReportingInterval: TestMetricsReportInterval,
	})
	cache, err := New[string](config)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	_ = cache.Set("k", "v")
	cache.Get("k")
	cache.Get("missing")

	deadline := time.Now().Add(2 * time.Second)
	for {
		count, err := testutil.GatherAndCount(registry, "invcache_hits_total")
		if err != nil {
			t.Fatalf("GatherAndCount failed: %v", err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Reporter never exported stats")
		}
		time.Sleep(TestMetricsReportInterval)
	}

	ops, err := testutil.GatherAndCount(registry, "invcache_operations_total")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if ops == 0 {
		t.Error("Expected per-operation counters to be recorded")
	}

	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestStatsImplementsMetricsStats(t *testing.T) {
	var _ metrics.Stats = (*Stats)(nil)

	s := &Stats{}
	s.hits.Add(1)
	s.misses.Add(3)
	if s.HitRate() != 0.25 || s.Total() != 4 {
		t.Errorf("Expected hit rate 0.25 over 4 reads, got %v over %d", s.HitRate(), s.Total())
	}

	saved := s.counters()
	s.reset()
	if s.Total() != 0 {
		t.Fatal("reset should zero the counters")
	}
	s.restore(saved)
	if s.Hits() != 1 || s.Misses() != 3 {
		t.Error("restore should bring back persisted counters")
	}
}
