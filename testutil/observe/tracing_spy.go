package observe

import (
	"context"
	"sync"

	"github.com/eventfold/eventstore-go/eventstore"
)

// SpanContextSpy implements eventstore.SpanContext and records status and attribute updates.
type SpanContextSpy struct {
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements the eventstore.SpanContext interface.
func (c *SpanContextSpy) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// AddAttribute implements the eventstore.SpanContext interface.
func (c *SpanContextSpy) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// Status returns the status last set on the span.
func (c *SpanContextSpy) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Attributes returns a copy of all attributes set on the span.
func (c *SpanContextSpy) Attributes() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return copyLabels(c.attributes)
}

// SpanRecord is a captured span lifecycle for inspection in tests.
type SpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
}

// TracingCollectorSpy captures span lifecycles for inspection in tests.
type TracingCollectorSpy struct {
	spans map[*SpanContextSpy]*SpanRecord
	order []*SpanContextSpy
	mu    sync.Mutex
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{spans: make(map[*SpanContextSpy]*SpanRecord)}
}

var _ eventstore.TracingCollector = (*TracingCollectorSpy)(nil)

// StartSpan implements the eventstore.TracingCollector interface.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context, name string, attrs map[string]string,
) (context.Context, eventstore.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spanCtx := &SpanContextSpy{}
	s.spans[spanCtx] = &SpanRecord{Name: name, StartAttributes: copyLabels(attrs)}
	s.order = append(s.order, spanCtx)

	return ctx, spanCtx
}

// FinishSpan implements the eventstore.TracingCollector interface.
func (s *TracingCollectorSpy) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	spy, ok := spanCtx.(*SpanContextSpy)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.spans[spy]
	if !ok {
		return
	}

	record.Status = status
	record.EndAttributes = copyLabels(attrs)
	record.Finished = true
}

// Spans returns a copy of all captured span records in start order.
func (s *TracingCollectorSpy) Spans() []SpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpanRecord, 0, len(s.order))
	for _, spanCtx := range s.order {
		records = append(records, *s.spans[spanCtx])
	}

	return records
}

// SpansWithName returns all captured span records with the given name.
func (s *TracingCollectorSpy) SpansWithName(name string) []SpanRecord {
	var matching []SpanRecord
	for _, record := range s.Spans() {
		if record.Name == name {
			matching = append(matching, record)
		}
	}

	return matching
}

// Reset discards all captured spans.
func (s *TracingCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spans = make(map[*SpanContextSpy]*SpanRecord)
	s.order = nil
}
