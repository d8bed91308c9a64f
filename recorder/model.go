// Package recorder is the producer side of the telemetry pipeline: it
// records traces, spans, events, metrics, and log records into durable
// storage and hands completed units to the delivery path.
package recorder

import "time"

// SpanStatus represents the outcome of a span.
type SpanStatus int

const (
	// StatusUnset means the span closed without an explicit outcome.
	StatusUnset SpanStatus = iota
	// StatusOK means the span's work succeeded.
	StatusOK
	// StatusError means the span's work failed.
	StatusError
)

func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// Trace is one logical end-to-end operation.
type Trace struct {
	ID        string
	Name      string
	Service   string
	TenantID  string
	StartTime time.Time
	EndTime   *time.Time // nil until the trace is closed
}

// Span is one unit of work inside a trace. ParentSpanID, when set, must
// reference a span with the same trace ID.
type Span struct {
	ID           string
	TraceID      string
	ParentSpanID string
	Name         string
	StartTime    time.Time
	EndTime      *time.Time
	Duration     time.Duration // derived at close
	Status       SpanStatus
	TenantID     string
	Attributes   map[string]string
}

// Event is a timestamped annotation on an open span.
type Event struct {
	ID         string
	SpanID     string
	TraceID    string
	Name       string
	Time       time.Time
	Attributes map[string]string
}

// Metric is a numeric measurement, optionally correlated to a trace/span.
type Metric struct {
	ID         string
	Name       string
	Value      float64
	Unit       string
	Time       time.Time
	TraceID    string
	SpanID     string
	Attributes map[string]string
}

// LogRecord is a structured message, optionally correlated to a trace/span.
type LogRecord struct {
	ID         string
	Severity   string
	Message    string
	Time       time.Time
	TraceID    string
	SpanID     string
	Attributes map[string]string
}

// mergeAttributes overlays src onto dst, last write wins. Either side may
// be nil.
func mergeAttributes(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
