package observe

import (
	"context"
	"sync"
	"time"

	"github.com/eventfold/eventstore-go/eventstore"
)

// DurationRecord is a captured RecordDuration call.
type DurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// CounterRecord is a captured IncrementCounter call.
type CounterRecord struct {
	Metric string
	Labels map[string]string
}

// ValueRecord is a captured RecordValue call.
type ValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// MetricsCollectorSpy captures metrics calls for inspection in tests.
// It implements eventstore.ContextualMetricsCollector, so the engine's
// context-aware code paths are exercised as well.
type MetricsCollectorSpy struct {
	durations []DurationRecord
	counters  []CounterRecord
	values    []ValueRecord
	mu        sync.Mutex
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		durations: make([]DurationRecord, 0),
		counters:  make([]CounterRecord, 0),
		values:    make([]ValueRecord, 0),
	}
}

var _ eventstore.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)

// RecordDuration implements the eventstore.MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = append(s.durations, DurationRecord{Metric: metric, Duration: duration, Labels: copyLabels(labels)})
}

// IncrementCounter implements the eventstore.MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = append(s.counters, CounterRecord{Metric: metric, Labels: copyLabels(labels)})
}

// RecordValue implements the eventstore.MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, ValueRecord{Metric: metric, Value: value, Labels: copyLabels(labels)})
}

// RecordDurationContext implements the eventstore.ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDurationContext(
	_ context.Context, metric string, duration time.Duration, labels map[string]string,
) {
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements the eventstore.ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements the eventstore.ContextualMetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValueContext(
	_ context.Context, metric string, value float64, labels map[string]string,
) {
	s.RecordValue(metric, value, labels)
}

// Durations returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) Durations() []DurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]DurationRecord, len(s.durations))
	copy(records, s.durations)

	return records
}

// Counters returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) Counters() []CounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]CounterRecord, len(s.counters))
	copy(records, s.counters)

	return records
}

// Values returns a copy of all captured value records.
func (s *MetricsCollectorSpy) Values() []ValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]ValueRecord, len(s.values))
	copy(records, s.values)

	return records
}

// CountersFor returns all captured counter records for the given metric name.
func (s *MetricsCollectorSpy) CountersFor(metric string) []CounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []CounterRecord
	for _, record := range s.counters {
		if record.Metric == metric {
			matching = append(matching, record)
		}
	}

	return matching
}

// Reset discards all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations = s.durations[:0]
	s.counters = s.counters[:0]
	s.values = s.values[:0]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}

	labelsCopy := make(map[string]string, len(labels))
	for k, v := range labels {
		labelsCopy[k] = v
	}

	return labelsCopy
}
