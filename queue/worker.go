package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/instantcocoa/beacon/bridge"
	"github.com/instantcocoa/beacon/diag"
	"github.com/instantcocoa/beacon/pkg/cache"
	"github.com/instantcocoa/beacon/pkg/config"
)

// Exporter delivers one serialized envelope to the collector.
type Exporter interface {
	Export(ctx context.Context, payload []byte) error
}

// WorkerConfig holds worker settings.
type WorkerConfig struct {
	BatchSize        int
	MaxAttempts      int
	PollInterval     time.Duration
	DeadLetterPolicy config.DeadLetterPolicy

	// Lease, when set, is acquired before each batch so that only one
	// process drains the queue at a time. Counters, when set, tracks
	// delivered/dead-lettered totals across processes.
	Lease    *cache.Lease
	Counters *cache.Client
}

// Worker polls the queue at a fixed interval and drives envelopes through
// the exporter, retrying failures until MaxAttempts and then dead-lettering
// them.
type Worker struct {
	store    Store
	letters  DeadLetterStore
	exporter Exporter
	sink     diag.Sink
	logger   *slog.Logger
	cfg      WorkerConfig
}

// NewWorker creates a new delivery worker.
func NewWorker(store Store, letters DeadLetterStore, exporter Exporter, sink diag.Sink, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DeadLetterPolicy == "" {
		cfg.DeadLetterPolicy = config.DeadLetterFlag
	}
	if sink == nil {
		sink = diag.NewSlogSink(logger)
	}
	return &Worker{
		store:    store,
		letters:  letters,
		exporter: exporter,
		sink:     sink,
		logger:   logger.With("component", "queue-worker"),
		cfg:      cfg,
	}
}

// Run polls until the context is cancelled. The interval is fixed; failed
// entries simply wait for a later tick rather than backing off per entry.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "delivery worker started",
		"batch_size", w.cfg.BatchSize,
		"max_attempts", w.cfg.MaxAttempts,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.runOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "batch run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "delivery worker stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runOnce wraps one batch in the cross-process lease when configured.
func (w *Worker) runOnce(ctx context.Context) error {
	if w.cfg.Lease != nil {
		ok, err := w.cfg.Lease.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire worker lease: %w", err)
		}
		if !ok {
			w.logger.DebugContext(ctx, "worker lease held elsewhere, skipping tick")
			return nil
		}
		defer func() {
			if err := w.cfg.Lease.Release(ctx); err != nil {
				w.logger.WarnContext(ctx, "failed to release worker lease", "error", err)
			}
		}()
	}

	_, err := w.ProcessBatch(ctx)
	return err
}

// BatchResult reports what one batch did.
type BatchResult struct {
	Claimed      int
	Delivered    int
	Failed       int
	DeadLettered int
}

// ProcessBatch claims up to BatchSize entries and attempts delivery for
// each. Entries that fail stay queued for the next tick; entries on their
// final attempt are dead-lettered per the configured policy.
func (w *Worker) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	batch, err := w.store.ClaimBatch(ctx, w.cfg.BatchSize, w.cfg.MaxAttempts)
	if err != nil {
		return res, fmt.Errorf("failed to claim batch: %w", err)
	}
	res.Claimed = len(batch)
	if len(batch) == 0 {
		return res, nil
	}

	for _, entry := range batch {
		if err := w.processEntry(ctx, entry, &res); err != nil {
			w.logger.ErrorContext(ctx, "failed to update queue entry",
				"entry_id", entry.ID, "error", err)
		}
	}

	w.logger.InfoContext(ctx, "batch processed",
		"claimed", res.Claimed,
		"delivered", res.Delivered,
		"failed", res.Failed,
		"dead_lettered", res.DeadLettered,
	)
	return res, nil
}

func (w *Worker) processEntry(ctx context.Context, entry Entry, res *BatchResult) error {
	exportErr := w.exporter.Export(ctx, entry.Payload)
	if exportErr == nil {
		res.Delivered++
		w.count(ctx, "delivered")
		return w.store.MarkProcessed(ctx, entry.ID)
	}

	attempts, err := w.store.MarkFailed(ctx, entry.ID, exportErr.Error())
	if err != nil {
		return err
	}

	w.logger.WarnContext(ctx, "delivery attempt failed",
		"entry_id", entry.ID,
		"kind", entry.Kind,
		"attempt", attempts,
		"max_attempts", w.cfg.MaxAttempts,
		"error", exportErr,
	)

	if attempts < w.cfg.MaxAttempts {
		res.Failed++
		return nil
	}

	return w.deadLetter(ctx, entry, attempts, exportErr, res)
}

func (w *Worker) deadLetter(ctx context.Context, entry Entry, attempts int, exportErr error, res *BatchResult) error {
	status := 0
	var derr *bridge.DeliveryError
	if errors.As(exportErr, &derr) {
		status = derr.StatusCode
	}

	dl := DeadLetter{
		ExportedAt: time.Now().UTC(),
		HTTPStatus: status,
		Kind:       entry.Kind,
		Payload:    entry.Payload,
		Error:      exportErr.Error(),
		RetryCount: attempts,
	}
	if err := w.letters.Record(ctx, dl); err != nil {
		// Leave the entry in place; the drain command can re-drive it.
		return fmt.Errorf("failed to record dead letter: %w", err)
	}

	remove := w.cfg.DeadLetterPolicy == config.DeadLetterDelete
	if err := w.store.MarkDeadLettered(ctx, entry.ID, remove); err != nil {
		return err
	}

	res.DeadLettered++
	w.count(ctx, "dead_lettered")
	w.sink.RecordError(ctx, diag.Record{
		Message: fmt.Sprintf("envelope dead-lettered after %d attempts: %s", attempts, exportErr),
		Code:    fmt.Sprintf("HTTP_%d", status),
		Module:  "queue",
	})
	return nil
}

func (w *Worker) count(ctx context.Context, outcome string) {
	if w.cfg.Counters == nil {
		return
	}
	if _, err := w.cfg.Counters.Incr(ctx, "worker:"+outcome); err != nil {
		w.logger.DebugContext(ctx, "failed to increment counter", "outcome", outcome, "error", err)
	}
}
