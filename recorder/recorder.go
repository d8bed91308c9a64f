package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/instantcocoa/beacon/bridge"
	"github.com/instantcocoa/beacon/diag"
	"github.com/instantcocoa/beacon/pkg/config"
	"github.com/instantcocoa/beacon/pkg/ident"
	"github.com/instantcocoa/beacon/queue"
)

// Enqueuer is the async delivery path: completed envelopes go to the
// durable queue for the background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload []byte) (string, error)
}

// Exporter is the sync delivery path: completed envelopes go straight to
// the collector, blocking the caller for the duration of the HTTP call.
type Exporter interface {
	Export(ctx context.Context, payload []byte) error
}

// Config holds recorder settings.
type Config struct {
	ServiceName string
	TenantID    string
	Mode        config.DeliveryMode
}

// Recorder is the producer-facing API. Every operation absorbs internal
// failures into the diagnostics sink: no telemetry fault ever reaches the
// caller's control flow, and no business error is ever intercepted.
type Recorder struct {
	store    Store
	sink     diag.Sink
	logger   *slog.Logger
	cfg      Config
	enqueuer Enqueuer
	exporter Exporter
	letters  queue.DeadLetterStore
}

// New creates a recorder. Wire a delivery path with WithQueue (async mode)
// or WithExporter (sync mode) before recording.
func New(store Store, sink diag.Sink, logger *slog.Logger, cfg Config) *Recorder {
	if cfg.Mode == "" {
		cfg.Mode = config.DeliveryAsync
	}
	if sink == nil {
		sink = diag.NewSlogSink(logger)
	}
	return &Recorder{
		store:  store,
		sink:   sink,
		logger: logger.With("component", "recorder"),
		cfg:    cfg,
	}
}

// WithQueue sets the async delivery path.
func (r *Recorder) WithQueue(q Enqueuer) *Recorder {
	r.enqueuer = q
	return r
}

// WithExporter sets the sync delivery path. Failed sync deliveries have no
// retry path and go straight to the dead-letter store.
func (r *Recorder) WithExporter(exp Exporter, letters queue.DeadLetterStore) *Recorder {
	r.exporter = exp
	r.letters = letters
	return r
}

// StartTrace begins a new trace and makes it current in ac. Returns the
// new trace ID.
func (r *Recorder) StartTrace(ctx context.Context, ac *ActiveContext, operation string) string {
	traceID := ident.NewTraceID()
	trace := &Trace{
		ID:        traceID,
		Name:      operation,
		Service:   r.cfg.ServiceName,
		TenantID:  r.cfg.TenantID,
		StartTime: time.Now().UTC(),
	}
	if err := r.store.CreateTrace(ctx, trace); err != nil {
		r.diagnose(ctx, "failed to create trace", err, traceID, "")
	}
	ac.SetCurrent(traceID, "")
	return traceID
}

// EndTrace closes a trace. An empty traceID closes the context's current
// trace. Unknown or already-closed traces are silent no-ops. The completed
// trace ships as a root span covering the whole operation.
func (r *Recorder) EndTrace(ctx context.Context, ac *ActiveContext, traceID string) {
	if traceID == "" {
		traceID = ac.CurrentTrace()
	}
	if traceID == "" {
		return
	}

	trace, err := r.store.CloseTrace(ctx, traceID, time.Now().UTC())
	if err != nil {
		r.diagnose(ctx, "failed to close trace", err, traceID, "")
		return
	}
	if trace == nil {
		return
	}

	if ac.CurrentTrace() == traceID {
		ac.Clear()
	}

	r.dispatch(ctx, &bridge.Envelope{
		Kind:              bridge.KindTrace,
		TenantID:          trace.TenantID,
		TraceID:           trace.ID,
		SpanID:            ident.NewSpanID(),
		Name:              trace.Name,
		StartTimeUnixNano: trace.StartTime.UnixNano(),
		EndTimeUnixNano:   trace.EndTime.UnixNano(),
	})
}

// StartSpan begins a span and makes it current in ac. Empty parentSpanID
// and traceID fall back to the context's current span and trace. Returns
// the new span ID.
func (r *Recorder) StartSpan(ctx context.Context, ac *ActiveContext, operation, parentSpanID, traceID string) string {
	if parentSpanID == "" {
		parentSpanID = ac.CurrentSpan()
	}
	if traceID == "" {
		traceID = ac.CurrentTrace()
	}
	if traceID == "" {
		// Orphan span: keep the trace invariant intact and flag the misuse.
		traceID = ident.NewTraceID()
		r.diagnose(ctx, "span started with no active trace", nil, traceID, "")
	}

	if parentSpanID != "" {
		parent, err := r.store.GetSpan(ctx, parentSpanID)
		if err != nil {
			r.diagnose(ctx, "failed to look up parent span", err, traceID, parentSpanID)
			parentSpanID = ""
		} else if parent == nil || parent.TraceID != traceID {
			r.diagnose(ctx, "parent span does not belong to trace", nil, traceID, parentSpanID)
			parentSpanID = ""
		}
	}

	spanID := ident.NewSpanID()
	span := &Span{
		ID:           spanID,
		TraceID:      traceID,
		ParentSpanID: parentSpanID,
		Name:         operation,
		StartTime:    time.Now().UTC(),
		Status:       StatusUnset,
		TenantID:     r.cfg.TenantID,
	}
	if err := r.store.CreateSpan(ctx, span); err != nil {
		r.diagnose(ctx, "failed to create span", err, traceID, spanID)
	}
	ac.push(spanID)
	return spanID
}

// EndSpan closes a span with the given status and attributes (merged
// last-write-wins over those set at start). Unknown or already-closed IDs
// are silent no-ops.
func (r *Recorder) EndSpan(ctx context.Context, ac *ActiveContext, spanID string, status SpanStatus, attrs map[string]string) {
	if spanID == "" {
		return
	}

	span, err := r.store.CloseSpan(ctx, spanID, time.Now().UTC(), status, attrs)
	if err != nil {
		r.diagnose(ctx, "failed to close span", err, "", spanID)
		return
	}
	if span == nil {
		return
	}

	ac.pop(spanID)

	env := &bridge.Envelope{
		Kind:              bridge.KindSpan,
		TenantID:          span.TenantID,
		TraceID:           span.TraceID,
		SpanID:            span.ID,
		ParentSpanID:      span.ParentSpanID,
		Name:              span.Name,
		StartTimeUnixNano: span.StartTime.UnixNano(),
		EndTimeUnixNano:   span.EndTime.UnixNano(),
		Attributes:        span.Attributes,
	}
	if span.Status != StatusUnset {
		env.Status = span.Status.String()
	}
	r.dispatch(ctx, env)
}

// AddEvent records a timestamped annotation on an open span. Unknown or
// closed spans are silent no-ops.
func (r *Recorder) AddEvent(ctx context.Context, spanID, name string, attrs map[string]string) {
	if spanID == "" {
		return
	}

	span, err := r.store.GetSpan(ctx, spanID)
	if err != nil {
		r.diagnose(ctx, "failed to look up span for event", err, "", spanID)
		return
	}
	if span == nil || span.EndTime != nil {
		return
	}

	event := &Event{
		ID:         uuid.NewString(),
		SpanID:     span.ID,
		TraceID:    span.TraceID,
		Name:       name,
		Time:       time.Now().UTC(),
		Attributes: attrs,
	}
	if err := r.store.CreateEvent(ctx, event); err != nil {
		r.diagnose(ctx, "failed to create event", err, span.TraceID, spanID)
		return
	}

	r.dispatch(ctx, &bridge.Envelope{
		Kind:         bridge.KindEvent,
		TenantID:     r.cfg.TenantID,
		TraceID:      event.TraceID,
		SpanID:       event.SpanID,
		Name:         event.Name,
		TimeUnixNano: event.Time.UnixNano(),
		Attributes:   event.Attributes,
	})
}

// LogMetric records a numeric measurement. When correlate is true the
// metric carries the context's current trace and span IDs.
func (r *Recorder) LogMetric(ctx context.Context, ac *ActiveContext, name string, value float64, unit string, attrs map[string]string, correlate bool) {
	metric := &Metric{
		ID:         uuid.NewString(),
		Name:       name,
		Value:      value,
		Unit:       unit,
		Time:       time.Now().UTC(),
		Attributes: attrs,
	}
	if correlate {
		metric.TraceID = ac.CurrentTrace()
		metric.SpanID = ac.CurrentSpan()
	}
	if err := r.store.CreateMetric(ctx, metric); err != nil {
		r.diagnose(ctx, "failed to create metric", err, metric.TraceID, metric.SpanID)
		return
	}

	r.dispatch(ctx, &bridge.Envelope{
		Kind:         bridge.KindMetric,
		TenantID:     r.cfg.TenantID,
		TraceID:      metric.TraceID,
		SpanID:       metric.SpanID,
		Name:         metric.Name,
		Value:        metric.Value,
		Unit:         metric.Unit,
		TimeUnixNano: metric.Time.UnixNano(),
		Attributes:   metric.Attributes,
	})
}

// LogMessage records a structured log message correlated to the context's
// current trace and span, when any.
func (r *Recorder) LogMessage(ctx context.Context, ac *ActiveContext, severity, text string, attrs map[string]string) {
	rec := &LogRecord{
		ID:         uuid.NewString(),
		Severity:   severity,
		Message:    text,
		Time:       time.Now().UTC(),
		TraceID:    ac.CurrentTrace(),
		SpanID:     ac.CurrentSpan(),
		Attributes: attrs,
	}
	if err := r.store.CreateLog(ctx, rec); err != nil {
		r.diagnose(ctx, "failed to create log record", err, rec.TraceID, rec.SpanID)
		return
	}

	r.dispatch(ctx, &bridge.Envelope{
		Kind:         bridge.KindLog,
		TenantID:     r.cfg.TenantID,
		TraceID:      rec.TraceID,
		SpanID:       rec.SpanID,
		Severity:     rec.Severity,
		Message:      rec.Message,
		TimeUnixNano: rec.Time.UnixNano(),
		Attributes:   rec.Attributes,
	})
}

// dispatch ships one completed envelope down the configured delivery path.
// All failures end in the diagnostics sink; none propagate.
func (r *Recorder) dispatch(ctx context.Context, env *bridge.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		r.diagnose(ctx, "failed to serialize envelope", err, env.TraceID, env.SpanID)
		return
	}

	if r.cfg.Mode == config.DeliverySync {
		r.dispatchSync(ctx, env, payload)
		return
	}

	if r.enqueuer == nil {
		r.diagnose(ctx, "no delivery queue configured", nil, env.TraceID, env.SpanID)
		return
	}
	if _, err := r.enqueuer.Enqueue(ctx, env.Kind, payload); err != nil {
		r.diagnose(ctx, "failed to enqueue envelope", err, env.TraceID, env.SpanID)
	}
}

// dispatchSync delivers inline. A failed sync delivery has no retry path,
// so the payload is snapshotted to the dead-letter store.
func (r *Recorder) dispatchSync(ctx context.Context, env *bridge.Envelope, payload []byte) {
	if r.exporter == nil {
		r.diagnose(ctx, "no exporter configured", nil, env.TraceID, env.SpanID)
		return
	}

	err := r.exporter.Export(ctx, payload)
	if err == nil {
		return
	}
	r.diagnose(ctx, "synchronous delivery failed", err, env.TraceID, env.SpanID)

	if r.letters == nil {
		return
	}
	status := 0
	var derr *bridge.DeliveryError
	if errors.As(err, &derr) {
		status = derr.StatusCode
	}
	dl := queue.DeadLetter{
		ExportedAt: time.Now().UTC(),
		HTTPStatus: status,
		Kind:       env.Kind,
		Payload:    payload,
		Error:      err.Error(),
		RetryCount: 1,
	}
	if err := r.letters.Record(ctx, dl); err != nil {
		r.diagnose(ctx, "failed to record dead letter", err, env.TraceID, env.SpanID)
	}
}

// diagnose routes one internal failure to the diagnostics sink.
func (r *Recorder) diagnose(ctx context.Context, msg string, err error, traceID, spanID string) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	r.sink.RecordError(ctx, diag.Record{
		Message: msg,
		Module:  "recorder",
		TraceID: traceID,
		SpanID:  spanID,
	})
}
