// Package bridge translates generic telemetry envelopes into
// protocol-correct wire JSON and delivers them to a collector over HTTP.
package bridge

// Envelope kinds.
const (
	KindTrace  = "trace"
	KindSpan   = "span"
	KindEvent  = "event"
	KindMetric = "metric"
	KindLog    = "log"
)

// Signals (one collector endpoint each).
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
	SignalLogs    = "logs"
)

// Span status values carried in envelopes.
const (
	StatusUnset = "UNSET"
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// Envelope is the generic, protocol-agnostic JSON form of one telemetry
// entity. Producers marshal it; the bridge extracts it back (see Extractor)
// and renders the wire payload.
type Envelope struct {
	Kind     string `json:"kind"`
	TenantID string `json:"tenant_id,omitempty"`

	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	ParentSpanID string `json:"parent_span_id,omitempty"`

	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`

	StartTimeUnixNano int64 `json:"start_time_unix_nano,omitempty"`
	EndTimeUnixNano   int64 `json:"end_time_unix_nano,omitempty"`
	TimeUnixNano      int64 `json:"time_unix_nano,omitempty"`

	Severity string  `json:"severity,omitempty"`
	Message  string  `json:"message,omitempty"`
	Value    float64 `json:"value,omitempty"`
	Unit     string  `json:"unit,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// Signal returns the collector signal an envelope kind is routed to.
// Events have no standalone wire entity in the protocol, so they travel
// as trace-correlated log records.
func (e *Envelope) Signal() string {
	switch e.Kind {
	case KindTrace, KindSpan:
		return SignalTraces
	case KindMetric:
		return SignalMetrics
	default:
		return SignalLogs
	}
}

// statusCode maps an envelope status to the wire protocol status code.
func statusCode(status string) int {
	switch status {
	case StatusOK:
		return 1
	case StatusError:
		return 2
	default:
		return 0
	}
}

// severityNumber maps a severity level to the wire protocol severity number.
func severityNumber(severity string) int {
	switch severity {
	case "TRACE":
		return 1
	case "DEBUG":
		return 5
	case "INFO":
		return 9
	case "WARN":
		return 13
	case "ERROR":
		return 17
	case "FATAL":
		return 21
	default:
		return 0
	}
}
