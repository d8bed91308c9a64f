package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore is a PostgreSQL-backed implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL telemetry store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateTrace(ctx context.Context, trace *Trace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO traces (id, name, service, tenant_id, start_time)
		VALUES ($1, $2, $3, $4, $5)
	`, trace.ID, trace.Name, trace.Service, trace.TenantID, trace.StartTime)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseTrace(ctx context.Context, id string, end time.Time) (*Trace, error) {
	var trace Trace
	var endTime sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE traces
		SET end_time = $2
		WHERE id = $1 AND end_time IS NULL
		RETURNING id, name, service, tenant_id, start_time, end_time
	`, id, end).Scan(&trace.ID, &trace.Name, &trace.Service, &trace.TenantID,
		&trace.StartTime, &endTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close trace: %w", err)
	}
	if endTime.Valid {
		trace.EndTime = &endTime.Time
	}
	return &trace, nil
}

func (s *PostgresStore) GetTrace(ctx context.Context, id string) (*Trace, error) {
	var trace Trace
	var endTime sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, service, tenant_id, start_time, end_time
		FROM traces WHERE id = $1
	`, id).Scan(&trace.ID, &trace.Name, &trace.Service, &trace.TenantID,
		&trace.StartTime, &endTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	if endTime.Valid {
		trace.EndTime = &endTime.Time
	}
	return &trace, nil
}

func (s *PostgresStore) CreateSpan(ctx context.Context, span *Span) error {
	attrs, err := marshalAttributes(span.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO spans (id, trace_id, parent_span_id, name, start_time, status, tenant_id, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, span.ID, span.TraceID, nullable(span.ParentSpanID), span.Name,
		span.StartTime, int(span.Status), span.TenantID, attrs)
	if err != nil {
		return fmt.Errorf("failed to create span: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseSpan(ctx context.Context, id string, end time.Time, status SpanStatus, attrs map[string]string) (*Span, error) {
	merged, err := marshalAttributes(attrs)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE spans
		SET end_time = $2,
		    duration_ns = (EXTRACT(EPOCH FROM ($2::timestamptz - start_time)) * 1e9)::BIGINT,
		    status = $3,
		    attributes = COALESCE(attributes, '{}'::jsonb) || $4::jsonb
		WHERE id = $1 AND end_time IS NULL
		RETURNING id, trace_id, parent_span_id, name, start_time, end_time, duration_ns, status, tenant_id, attributes
	`, id, end, int(status), merged)

	span, err := scanSpan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close span: %w", err)
	}
	return span, nil
}

func (s *PostgresStore) GetSpan(ctx context.Context, id string) (*Span, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trace_id, parent_span_id, name, start_time, end_time, duration_ns, status, tenant_id, attributes
		FROM spans WHERE id = $1
	`, id)

	span, err := scanSpan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get span: %w", err)
	}
	return span, nil
}

func scanSpan(row *sql.Row) (*Span, error) {
	var (
		span       Span
		parent     sql.NullString
		endTime    sql.NullTime
		durationNs sql.NullInt64
		status     int
		attrs      []byte
	)
	err := row.Scan(&span.ID, &span.TraceID, &parent, &span.Name, &span.StartTime,
		&endTime, &durationNs, &status, &span.TenantID, &attrs)
	if err != nil {
		return nil, err
	}
	span.ParentSpanID = parent.String
	if endTime.Valid {
		span.EndTime = &endTime.Time
	}
	if durationNs.Valid {
		span.Duration = time.Duration(durationNs.Int64)
	}
	span.Status = SpanStatus(status)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &span.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode span attributes: %w", err)
		}
	}
	return &span, nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *Event) error {
	attrs, err := marshalAttributes(event.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO span_events (id, span_id, trace_id, name, time, attributes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.SpanID, event.TraceID, event.Name, event.Time, attrs)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateMetric(ctx context.Context, metric *Metric) error {
	attrs, err := marshalAttributes(metric.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO metrics (id, name, value, unit, time, trace_id, span_id, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, metric.ID, metric.Name, metric.Value, metric.Unit, metric.Time,
		nullable(metric.TraceID), nullable(metric.SpanID), attrs)
	if err != nil {
		return fmt.Errorf("failed to create metric: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateLog(ctx context.Context, rec *LogRecord) error {
	attrs, err := marshalAttributes(rec.Attributes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO log_records (id, severity, message, time, trace_id, span_id, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.Severity, rec.Message, rec.Time,
		nullable(rec.TraceID), nullable(rec.SpanID), attrs)
	if err != nil {
		return fmt.Errorf("failed to create log record: %w", err)
	}
	return nil
}

func marshalAttributes(attrs map[string]string) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attributes: %w", err)
	}
	return data, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Ensure implementation satisfies the interface
var _ Store = (*PostgresStore)(nil)
