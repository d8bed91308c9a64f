package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore is a PostgreSQL-backed implementation of Store.
//
// ClaimBatch uses FOR UPDATE SKIP LOCKED plus a claim timestamp so that
// several worker processes can poll the same queue without handing the
// same entry to two of them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL queue store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Enqueue(ctx context.Context, kind string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_queue (id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, id, kind, payload, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue entry: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE delivery_queue
		SET claimed_at = NOW()
		WHERE id IN (
			SELECT id FROM delivery_queue
			WHERE processed = FALSE
			  AND dead_lettered = FALSE
			  AND attempt_count < $1
			  AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $2))
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, created_at, attempt_count, last_attempt_at, last_error
	`, maxAttempts, claimTTL.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}
	defer rows.Close()

	var batch []Entry
	for rows.Next() {
		var (
			entry         Entry
			lastAttemptAt sql.NullTime
			lastError     sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.Kind, &entry.Payload, &entry.CreatedAt,
			&entry.Attempts, &lastAttemptAt, &lastError); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		if lastAttemptAt.Valid {
			entry.LastAttemptAt = &lastAttemptAt.Time
		}
		entry.LastError = lastError.String
		batch = append(batch, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed batch: %w", err)
	}

	return batch, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE delivery_queue
		SET processed = TRUE, processed_at = NOW(), claimed_at = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry processed: %w", err)
	}
	return requireRow(result, id)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, errText string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE delivery_queue
		SET attempt_count = attempt_count + 1,
		    last_attempt_at = NOW(),
		    last_error = $2,
		    claimed_at = NULL
		WHERE id = $1
		RETURNING attempt_count
	`, id, errText).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("queue entry not found: %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to mark entry failed: %w", err)
	}
	return attempts, nil
}

func (s *PostgresStore) MarkDeadLettered(ctx context.Context, id string, remove bool) error {
	var (
		result sql.Result
		err    error
	)
	if remove {
		result, err = s.db.ExecContext(ctx, `DELETE FROM delivery_queue WHERE id = $1`, id)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE delivery_queue
			SET dead_lettered = TRUE, claimed_at = NULL
			WHERE id = $1
		`, id)
	}
	if err != nil {
		return fmt.Errorf("failed to dead-letter entry: %w", err)
	}
	return requireRow(result, id)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Entry, error) {
	var (
		entry         Entry
		processedAt   sql.NullTime
		lastAttemptAt sql.NullTime
		lastError     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, payload, created_at, processed, processed_at,
		       attempt_count, last_attempt_at, last_error, dead_lettered
		FROM delivery_queue
		WHERE id = $1
	`, id).Scan(&entry.ID, &entry.Kind, &entry.Payload, &entry.CreatedAt,
		&entry.Processed, &processedAt, &entry.Attempts, &lastAttemptAt,
		&lastError, &entry.DeadLettered)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	if processedAt.Valid {
		entry.ProcessedAt = &processedAt.Time
	}
	if lastAttemptAt.Valid {
		entry.LastAttemptAt = &lastAttemptAt.Time
	}
	entry.LastError = lastError.String
	return &entry, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT processed AND NOT dead_lettered),
			COUNT(*) FILTER (WHERE processed),
			COUNT(*) FILTER (WHERE dead_lettered)
		FROM delivery_queue
	`).Scan(&stats.Pending, &stats.Processed, &stats.DeadLettered)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return stats, nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("queue entry not found: %s", id)
	}
	return nil
}

// PostgresDeadLetterStore is a PostgreSQL-backed implementation of
// DeadLetterStore.
type PostgresDeadLetterStore struct {
	db *sql.DB
}

// NewPostgresDeadLetterStore creates a new PostgreSQL dead-letter store.
func NewPostgresDeadLetterStore(db *sql.DB) *PostgresDeadLetterStore {
	return &PostgresDeadLetterStore{db: db}
}

func (s *PostgresDeadLetterStore) Record(ctx context.Context, dl DeadLetter) error {
	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.ExportedAt.IsZero() {
		dl.ExportedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, exported_at, http_status, kind, payload, error, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, dl.ID, dl.ExportedAt, dl.HTTPStatus, dl.Kind, dl.Payload, dl.Error, dl.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to record dead letter: %w", err)
	}
	return nil
}

func (s *PostgresDeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, exported_at, http_status, kind, payload, error, retry_count
		FROM dead_letters
		ORDER BY exported_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.ID, &dl.ExportedAt, &dl.HTTPStatus, &dl.Kind,
			&dl.Payload, &dl.Error, &dl.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}
	return letters, nil
}

func (s *PostgresDeadLetterStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return count, nil
}

// Ensure implementations satisfy interfaces
var (
	_ Store           = (*PostgresStore)(nil)
	_ DeadLetterStore = (*PostgresDeadLetterStore)(nil)
)
