// Package diag provides the out-of-band error channel for internal
// telemetry failures.
//
// Diagnostic records persist independently of whatever transaction the
// caller is inside: sinks hold their own commit path, so a caller rollback
// cannot erase evidence. Recording is best-effort and never returns an
// error to telemetry code.
package diag

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one diagnostic error entry.
type Record struct {
	ID      string
	Time    time.Time
	Message string
	Code    string
	Module  string
	TraceID string
	SpanID  string
}

// Sink accepts diagnostic records.
type Sink interface {
	RecordError(ctx context.Context, rec Record)
}

// stamp fills in the generated fields.
func stamp(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
}

// MemorySink stores records in memory (for development/testing).
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates a new in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) RecordError(ctx context.Context, rec Record) {
	stamp(&rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records returns a copy of all recorded entries.
func (s *MemorySink) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// SlogSink writes diagnostic records to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink backed by the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger.With("component", "diag")}
}

func (s *SlogSink) RecordError(ctx context.Context, rec Record) {
	stamp(&rec)
	s.logger.ErrorContext(ctx, rec.Message,
		"code", rec.Code,
		"module", rec.Module,
		"trace_id", rec.TraceID,
		"span_id", rec.SpanID,
	)
}

// PostgresSink persists records through its own database handle. The
// handle must not be shared with caller transactions: each insert commits
// on its own, so it survives a caller rollback.
type PostgresSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSink creates a PostgreSQL-backed sink.
func NewPostgresSink(db *sql.DB, logger *slog.Logger) *PostgresSink {
	return &PostgresSink{db: db, logger: logger.With("component", "diag")}
}

func (s *PostgresSink) RecordError(ctx context.Context, rec Record) {
	stamp(&rec)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostic_errors (id, recorded_at, message, code, module, trace_id, span_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Time, rec.Message, rec.Code, rec.Module,
		nullable(rec.TraceID), nullable(rec.SpanID))
	if err != nil {
		// The diagnostics channel is the last resort; a failed insert can
		// only go to the process log.
		s.logger.ErrorContext(ctx, "failed to persist diagnostic record",
			"error", err,
			"message", rec.Message,
			"module", rec.Module,
		)
	}
}

// TeeSink fans one record out to several sinks.
type TeeSink []Sink

func (t TeeSink) RecordError(ctx context.Context, rec Record) {
	for _, s := range t {
		s.RecordError(ctx, rec)
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Ensure implementations satisfy the interface
var (
	_ Sink = (*MemorySink)(nil)
	_ Sink = (*SlogSink)(nil)
	_ Sink = (*PostgresSink)(nil)
	_ Sink = (TeeSink)(nil)
)
