package queue

import (
	"context"
	"testing"
)

func TestMemoryStore_EnqueueAndClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Enqueue(ctx, "span", []byte(`{"kind":"span"}`))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}

	batch, err := store.ClaimBatch(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("ClaimBatch() returned %d entries, want 1", len(batch))
	}
	if batch[0].ID != id || batch[0].Kind != "span" {
		t.Errorf("claimed entry = %+v", batch[0])
	}
}

func TestMemoryStore_ClaimExclusivity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		if _, err := store.Enqueue(ctx, "metric", []byte(`{}`)); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	first, err := store.ClaimBatch(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("first claim = %d entries, want 3", len(first))
	}

	second, err := store.ClaimBatch(ctx, 10, 3)
	if err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second claim = %d entries, want 0 while first claim is live", len(second))
	}
}

func TestMemoryStore_MarkFailedReleasesClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, _ := store.Enqueue(ctx, "log", []byte(`{}`))
	if _, err := store.ClaimBatch(ctx, 1, 3); err != nil {
		t.Fatalf("ClaimBatch() error = %v", err)
	}

	attempts, err := store.MarkFailed(ctx, id, "connection refused")
	if err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}

	batch, _ := store.ClaimBatch(ctx, 1, 3)
	if len(batch) != 1 {
		t.Fatalf("entry not reclaimable after MarkFailed")
	}
	if batch[0].Attempts != 1 || batch[0].LastError != "connection refused" {
		t.Errorf("reclaimed entry = %+v", batch[0])
	}
}

func TestMemoryStore_ExhaustedEntriesNotClaimed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, _ := store.Enqueue(ctx, "span", []byte(`{}`))
	for i := 0; i < 3; i++ {
		if _, err := store.ClaimBatch(ctx, 1, 3); err != nil {
			t.Fatalf("ClaimBatch() error = %v", err)
		}
		if _, err := store.MarkFailed(ctx, id, "boom"); err != nil {
			t.Fatalf("MarkFailed() error = %v", err)
		}
	}

	batch, _ := store.ClaimBatch(ctx, 1, 3)
	if len(batch) != 0 {
		t.Errorf("entry with %d attempts claimed against max 3", 3)
	}
}

func TestMemoryStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, _ := store.Enqueue(ctx, "span", []byte(`{}`))
	store.ClaimBatch(ctx, 1, 3)
	if err := store.MarkProcessed(ctx, id); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}

	entry, _ := store.Get(ctx, id)
	if entry == nil || !entry.Processed || entry.ProcessedAt == nil {
		t.Errorf("entry after MarkProcessed = %+v", entry)
	}

	stats, _ := store.Stats(ctx)
	if stats.Processed != 1 || stats.Pending != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestMemoryStore_MarkDeadLettered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	flagged, _ := store.Enqueue(ctx, "span", []byte(`{}`))
	if err := store.MarkDeadLettered(ctx, flagged, false); err != nil {
		t.Fatalf("MarkDeadLettered(flag) error = %v", err)
	}
	entry, _ := store.Get(ctx, flagged)
	if entry == nil || !entry.DeadLettered {
		t.Errorf("flagged entry = %+v", entry)
	}

	removed, _ := store.Enqueue(ctx, "span", []byte(`{}`))
	if err := store.MarkDeadLettered(ctx, removed, true); err != nil {
		t.Fatalf("MarkDeadLettered(remove) error = %v", err)
	}
	entry, _ = store.Get(ctx, removed)
	if entry != nil {
		t.Errorf("removed entry still present: %+v", entry)
	}

	stats, _ := store.Stats(ctx)
	if stats.DeadLettered != 1 {
		t.Errorf("Stats() = %+v, want 1 dead-lettered", stats)
	}
}

func TestMemoryStore_MissingEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.MarkProcessed(ctx, "nope"); err == nil {
		t.Error("MarkProcessed() expected error for unknown id")
	}
	if _, err := store.MarkFailed(ctx, "nope", "x"); err == nil {
		t.Error("MarkFailed() expected error for unknown id")
	}
	entry, err := store.Get(ctx, "nope")
	if err != nil || entry != nil {
		t.Errorf("Get(unknown) = %v, %v", entry, err)
	}
}

func TestMemoryDeadLetterStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadLetterStore()

	for i := 0; i < 3; i++ {
		err := store.Record(ctx, DeadLetter{
			HTTPStatus: 503,
			Kind:       "span",
			Payload:    []byte(`{}`),
			Error:      "overloaded",
			RetryCount: 3,
		})
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil || count != 3 {
		t.Fatalf("Count() = %d, %v, want 3", count, err)
	}

	letters, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(letters) != 2 {
		t.Fatalf("List(2) = %d letters", len(letters))
	}
	if letters[0].ID == "" || letters[0].ExportedAt.IsZero() {
		t.Error("dead letter was not stamped")
	}
}
