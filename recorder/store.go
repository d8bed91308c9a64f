package recorder

import (
	"context"
	"sync"
	"time"
)

// Store defines the durable storage operations for telemetry entities.
//
// Close operations return (nil, nil) for unknown or already-closed IDs so
// the public API can treat misuse as a silent no-op.
type Store interface {
	CreateTrace(ctx context.Context, trace *Trace) error
	// CloseTrace stamps the end time and returns the closed trace, or
	// (nil, nil) when the ID is unknown or the trace already ended.
	CloseTrace(ctx context.Context, id string, end time.Time) (*Trace, error)
	GetTrace(ctx context.Context, id string) (*Trace, error)

	CreateSpan(ctx context.Context, span *Span) error
	// CloseSpan stamps end time, status, and merged attributes, derives
	// the duration, and returns the closed span, or (nil, nil) when the
	// ID is unknown or the span already ended.
	CloseSpan(ctx context.Context, id string, end time.Time, status SpanStatus, attrs map[string]string) (*Span, error)
	GetSpan(ctx context.Context, id string) (*Span, error)

	CreateEvent(ctx context.Context, event *Event) error
	CreateMetric(ctx context.Context, metric *Metric) error
	CreateLog(ctx context.Context, rec *LogRecord) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	traces  map[string]*Trace
	spans   map[string]*Span
	events  []*Event
	metrics []*Metric
	logs    []*LogRecord
}

// NewMemoryStore creates a new in-memory telemetry store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces: make(map[string]*Trace),
		spans:  make(map[string]*Span),
	}
}

func (s *MemoryStore) CreateTrace(ctx context.Context, trace *Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *trace
	s.traces[trace.ID] = &cp
	return nil
}

func (s *MemoryStore) CloseTrace(ctx context.Context, id string, end time.Time) (*Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trace, ok := s.traces[id]
	if !ok || trace.EndTime != nil {
		return nil, nil
	}
	trace.EndTime = &end
	cp := *trace
	return &cp, nil
}

func (s *MemoryStore) GetTrace(ctx context.Context, id string) (*Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trace, ok := s.traces[id]
	if !ok {
		return nil, nil
	}
	cp := *trace
	return &cp, nil
}

func (s *MemoryStore) CreateSpan(ctx context.Context, span *Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *span
	cp.Attributes = copyAttributes(span.Attributes)
	s.spans[span.ID] = &cp
	return nil
}

func (s *MemoryStore) CloseSpan(ctx context.Context, id string, end time.Time, status SpanStatus, attrs map[string]string) (*Span, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span, ok := s.spans[id]
	if !ok || span.EndTime != nil {
		return nil, nil
	}
	span.EndTime = &end
	span.Duration = end.Sub(span.StartTime)
	span.Status = status
	span.Attributes = mergeAttributes(span.Attributes, attrs)

	cp := *span
	cp.Attributes = copyAttributes(span.Attributes)
	return &cp, nil
}

func (s *MemoryStore) GetSpan(ctx context.Context, id string) (*Span, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	span, ok := s.spans[id]
	if !ok {
		return nil, nil
	}
	cp := *span
	cp.Attributes = copyAttributes(span.Attributes)
	return &cp, nil
}

func (s *MemoryStore) CreateEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	cp.Attributes = copyAttributes(event.Attributes)
	s.events = append(s.events, &cp)
	return nil
}

func (s *MemoryStore) CreateMetric(ctx context.Context, metric *Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *metric
	cp.Attributes = copyAttributes(metric.Attributes)
	s.metrics = append(s.metrics, &cp)
	return nil
}

func (s *MemoryStore) CreateLog(ctx context.Context, rec *LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	cp.Attributes = copyAttributes(rec.Attributes)
	s.logs = append(s.logs, &cp)
	return nil
}

// Events returns a copy of all recorded events (for development/testing).
func (s *MemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	for i, e := range s.events {
		out[i] = *e
	}
	return out
}

// Metrics returns a copy of all recorded metrics (for development/testing).
func (s *MemoryStore) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metric, len(s.metrics))
	for i, m := range s.metrics {
		out[i] = *m
	}
	return out
}

// Logs returns a copy of all recorded log records (for development/testing).
func (s *MemoryStore) Logs() []LogRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogRecord, len(s.logs))
	for i, l := range s.logs {
		out[i] = *l
	}
	return out
}

func copyAttributes(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// Ensure implementation satisfies the interface
var _ Store = (*MemoryStore)(nil)
