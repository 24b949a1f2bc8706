package metrics

import (
	"time"
)

// Sink is a minimal performance recorder that only understands named
// durations in milliseconds.
type Sink interface {
	RecordMetric(name string, durationMs float64)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(name string, durationMs float64)

// RecordMetric calls f
func (f SinkFunc) RecordMetric(name string, durationMs float64) {
	f(name, durationMs)
}

// SinkExporter forwards operation timings to a Sink as "cache-<operation>"
// or "cache-<result>" for fetch-through calls. Counters and gauges have no
// representation in a Sink and are dropped.
type SinkExporter struct {
	sink Sink
}

// NewSinkExporter creates an exporter writing to sink
func NewSinkExporter(sink Sink) *SinkExporter {
	return &SinkExporter{sink: sink}
}

func (s *SinkExporter) ExportStats(Stats, Labels) error { return nil }

// RecordCacheOperation reports the duration in milliseconds
func (s *SinkExporter) RecordCacheOperation(operation Operation, duration time.Duration, labels Labels) error {
	name := "cache-" + string(operation)
	if result := labels[ResultLabel]; result != "" && operation == OperationFunctionCall {
		name = "cache-" + result
	}
	s.sink.RecordMetric(name, float64(duration)/float64(time.Millisecond))
	return nil
}

func (s *SinkExporter) IncrementCounter(string, Labels) error { return nil }

// RecordHistogram passes value through as a duration in milliseconds
func (s *SinkExporter) RecordHistogram(name string, value float64, _ Labels) error {
	s.sink.RecordMetric(name, value)
	return nil
}

func (s *SinkExporter) SetGauge(string, float64, Labels) error { return nil }

func (s *SinkExporter) Close() error { return nil }
