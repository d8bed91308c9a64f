package bridge

import (
	"encoding/json"
	"reflect"
	"testing"
)

func spanEnvelope() *Envelope {
	return &Envelope{
		Kind:              KindSpan,
		TenantID:          "acme",
		TraceID:           "0123456789abcdef0123456789abcdef",
		SpanID:            "00f067aa0ba902b7",
		ParentSpanID:      "53995c3f42cd8ad8",
		Name:              "charge_card",
		Status:            StatusOK,
		StartTimeUnixNano: 1700000000000000000,
		EndTimeUnixNano:   1700000000150000000,
		Attributes: map[string]string{
			"payment.method": "visa",
			"order.id":       "ord-123",
		},
	}
}

func TestNativeExtractor_RoundTrip(t *testing.T) {
	want := spanEnvelope()
	payload, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	got, err := NativeExtractor{}.Extract(payload)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestPatternExtractor_MatchesNative(t *testing.T) {
	envelopes := []*Envelope{
		spanEnvelope(),
		{
			Kind:         KindMetric,
			Name:         "checkout.latency",
			Value:        123.5,
			Unit:         "ms",
			TimeUnixNano: 1700000000000000000,
			TraceID:      "0123456789abcdef0123456789abcdef",
			Attributes:   map[string]string{"region": "us-east-1"},
		},
		{
			Kind:         KindLog,
			Severity:     "ERROR",
			Message:      "payment declined",
			TimeUnixNano: 1700000000000000000,
		},
		{
			Kind:         KindEvent,
			SpanID:       "00f067aa0ba902b7",
			TraceID:      "0123456789abcdef0123456789abcdef",
			Name:         "cache.miss",
			TimeUnixNano: 1700000000000000000,
		},
	}

	for _, env := range envelopes {
		payload, err := json.Marshal(env)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		native, err := NativeExtractor{}.Extract(payload)
		if err != nil {
			t.Fatalf("native Extract(%s) error = %v", env.Kind, err)
		}
		pattern, err := PatternExtractor{}.Extract(payload)
		if err != nil {
			t.Fatalf("pattern Extract(%s) error = %v", env.Kind, err)
		}

		if !reflect.DeepEqual(native, pattern) {
			t.Errorf("kind %s: native = %+v, pattern = %+v", env.Kind, native, pattern)
		}
	}
}

func TestPatternExtractor_EscapedStrings(t *testing.T) {
	env := &Envelope{
		Kind:    KindLog,
		Message: "line1\nline2 \"quoted\" back\\slash\ttab",
		Attributes: map[string]string{
			"path":    `C:\temp\file.txt`,
			"note":    "has \"quotes\"",
			"unicode": "héllo \u2028 world",
		},
	}
	payload, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	native, err := NativeExtractor{}.Extract(payload)
	if err != nil {
		t.Fatalf("native Extract() error = %v", err)
	}
	pattern, err := PatternExtractor{}.Extract(payload)
	if err != nil {
		t.Fatalf("pattern Extract() error = %v", err)
	}

	if native.Message != env.Message {
		t.Errorf("native message = %q, want %q", native.Message, env.Message)
	}
	if !reflect.DeepEqual(native, pattern) {
		t.Errorf("native = %+v\npattern = %+v", native, pattern)
	}
}

func TestExtract_MissingKind(t *testing.T) {
	payload := []byte(`{"name":"orphan"}`)

	if _, err := (NativeExtractor{}).Extract(payload); err == nil {
		t.Error("native Extract() expected error for missing kind")
	}
	if _, err := (PatternExtractor{}).Extract(payload); err == nil {
		t.Error("pattern Extract() expected error for missing kind")
	}
}

func TestNativeExtractor_MalformedJSON(t *testing.T) {
	if _, err := (NativeExtractor{}).Extract([]byte(`{"kind":"span"`)); err == nil {
		t.Error("Extract() expected error for malformed JSON")
	}
}

func TestNewExtractor(t *testing.T) {
	if _, ok := NewExtractor("pattern").(PatternExtractor); !ok {
		t.Error(`NewExtractor("pattern") did not return a PatternExtractor`)
	}
	if _, ok := NewExtractor("native").(NativeExtractor); !ok {
		t.Error(`NewExtractor("native") did not return a NativeExtractor`)
	}
	if _, ok := NewExtractor("").(NativeExtractor); !ok {
		t.Error(`NewExtractor("") did not default to NativeExtractor`)
	}
}

func TestUnescapeJSON_Surrogates(t *testing.T) {
	got, err := unescapeJSON(`emoji \ud83d\ude00 end`)
	if err != nil {
		t.Fatalf("unescapeJSON() error = %v", err)
	}
	if got != "emoji \U0001F600 end" {
		t.Errorf("unescapeJSON() = %q", got)
	}
}

func TestUnescapeJSON_Truncated(t *testing.T) {
	if _, err := unescapeJSON(`bad \u12`); err == nil {
		t.Error("unescapeJSON() expected error for truncated unicode escape")
	}
	if _, err := unescapeJSON(`bad \`); err == nil {
		t.Error("unescapeJSON() expected error for trailing backslash")
	}
}
