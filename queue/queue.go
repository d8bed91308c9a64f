// Package queue implements the durable, at-least-once delivery queue for
// telemetry envelopes.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// claimTTL bounds how long a claimed entry stays invisible to other worker
// runs. A worker that dies mid-batch releases its entries after this long.
const claimTTL = 60 * time.Second

// Entry is one durable work item: a serialized envelope awaiting delivery.
type Entry struct {
	ID            string
	Kind          string
	Payload       []byte
	CreatedAt     time.Time
	Processed     bool
	ProcessedAt   *time.Time
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
	DeadLettered  bool
}

// DeadLetter is the terminal snapshot of a delivery that exhausted retries.
type DeadLetter struct {
	ID         string
	ExportedAt time.Time
	HTTPStatus int
	Kind       string
	Payload    []byte
	Error      string
	RetryCount int
}

// Stats summarizes queue state for operators.
type Stats struct {
	Pending      int `json:"pending"`
	Processed    int `json:"processed"`
	DeadLettered int `json:"dead_lettered"`
}

// Store defines the durable queue operations.
//
// ClaimBatch must be safe under concurrent worker runs: two overlapping
// calls never return the same entry while its claim is live.
type Store interface {
	Enqueue(ctx context.Context, kind string, payload []byte) (string, error)
	ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]Entry, error)
	MarkProcessed(ctx context.Context, id string) error
	// MarkFailed records one failed attempt and returns the new attempt count.
	MarkFailed(ctx context.Context, id, errText string) (int, error)
	// MarkDeadLettered flags the entry terminal; remove deletes it instead.
	MarkDeadLettered(ctx context.Context, id string, remove bool) error
	Get(ctx context.Context, id string) (*Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

// DeadLetterStore persists terminal failure snapshots.
type DeadLetterStore interface {
	Record(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context, limit int) ([]DeadLetter, error)
	Count(ctx context.Context) (int, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*Entry
	claims  map[string]time.Time
}

// NewMemoryStore creates a new in-memory queue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		claims:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) Enqueue(ctx context.Context, kind string, payload []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now().UTC(),
	}
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)

	return entry.ID, nil
}

func (s *MemoryStore) ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var batch []Entry
	for _, id := range s.order {
		if len(batch) >= limit {
			break
		}
		entry := s.entries[id]
		if entry == nil || entry.Processed || entry.DeadLettered || entry.Attempts >= maxAttempts {
			continue
		}
		if claimed, ok := s.claims[id]; ok && now.Sub(claimed) < claimTTL {
			continue
		}
		s.claims[id] = now
		batch = append(batch, *entry)
	}

	return batch, nil
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("queue entry not found: %s", id)
	}

	now := time.Now().UTC()
	entry.Processed = true
	entry.ProcessedAt = &now
	delete(s.claims, id)

	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id, errText string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return 0, fmt.Errorf("queue entry not found: %s", id)
	}

	now := time.Now().UTC()
	entry.Attempts++
	entry.LastAttemptAt = &now
	entry.LastError = errText
	delete(s.claims, id)

	return entry.Attempts, nil
}

func (s *MemoryStore) MarkDeadLettered(ctx context.Context, id string, remove bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("queue entry not found: %s", id)
	}

	delete(s.claims, id)
	if remove {
		delete(s.entries, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return nil
	}

	entry.DeadLettered = true
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	cp := *entry
	cp.Payload = append([]byte(nil), entry.Payload...)
	return &cp, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	for _, entry := range s.entries {
		switch {
		case entry.Processed:
			stats.Processed++
		case entry.DeadLettered:
			stats.DeadLettered++
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

// MemoryDeadLetterStore is an in-memory implementation of DeadLetterStore.
type MemoryDeadLetterStore struct {
	mu      sync.RWMutex
	letters []DeadLetter
}

// NewMemoryDeadLetterStore creates a new in-memory dead-letter store.
func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{}
}

func (s *MemoryDeadLetterStore) Record(ctx context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dl.ID == "" {
		dl.ID = uuid.NewString()
	}
	if dl.ExportedAt.IsZero() {
		dl.ExportedAt = time.Now().UTC()
	}
	dl.Payload = append([]byte(nil), dl.Payload...)
	s.letters = append(s.letters, dl)

	return nil
}

func (s *MemoryDeadLetterStore) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.letters)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]DeadLetter, n)
	// Newest first.
	for i := 0; i < n; i++ {
		out[i] = s.letters[len(s.letters)-1-i]
	}
	return out, nil
}

func (s *MemoryDeadLetterStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.letters), nil
}

// Ensure implementations satisfy interfaces
var (
	_ Store           = (*MemoryStore)(nil)
	_ DeadLetterStore = (*MemoryDeadLetterStore)(nil)
)
