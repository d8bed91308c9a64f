package diag

import (
	"context"
	"sync"
	"testing"
)

func TestMemorySink_RecordError(t *testing.T) {
	sink := NewMemorySink()
	sink.RecordError(context.Background(), Record{
		Message: "delivery failed",
		Code:    "HTTP_503",
		Module:  "bridge",
		TraceID: "0123456789abcdef0123456789abcdef",
	})

	records := sink.Records()
	if len(records) != 1 {
		t.Fatalf("Records() count = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.Message != "delivery failed" {
		t.Errorf("Message = %q", rec.Message)
	}
	if rec.ID == "" {
		t.Error("ID was not stamped")
	}
	if rec.Time.IsZero() {
		t.Error("Time was not stamped")
	}
}

func TestMemorySink_ConcurrentWriters(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sink.RecordError(ctx, Record{Message: "m", Module: "queue"})
			}
		}()
	}
	wg.Wait()

	if got := len(sink.Records()); got != 1000 {
		t.Errorf("Records() count = %d, want 1000", got)
	}
}

func TestTeeSink(t *testing.T) {
	a := NewMemorySink()
	b := NewMemorySink()
	tee := TeeSink{a, b}

	tee.RecordError(context.Background(), Record{Message: "fan-out", Module: "recorder"})

	if len(a.Records()) != 1 || len(b.Records()) != 1 {
		t.Errorf("tee fan-out = %d/%d records, want 1/1", len(a.Records()), len(b.Records()))
	}
}
