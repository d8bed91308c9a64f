package bridge

import (
	"encoding/json"
	"strings"
	"testing"
)

var testResource = Resource{
	ServiceName:    "orders",
	ServiceVersion: "1.2.0",
	Environment:    "production",
	TenantID:       "default",
}

func buildForTest(t *testing.T, env *Envelope) []byte {
	t.Helper()
	buf := newAdaptiveBuffer(DefaultBufferThreshold)
	buildWire(buf, env, testResource)
	if !json.Valid(buf.Bytes()) {
		t.Fatalf("buildWire produced invalid JSON: %s", buf.Bytes())
	}
	return buf.Bytes()
}

// wirePayload mirrors the wire shape for assertions.
type wirePayload struct {
	ResourceSpans []struct {
		Resource struct {
			Attributes []wireKV `json:"attributes"`
		} `json:"resource"`
		ScopeSpans []struct {
			Scope struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"scope"`
			Spans []struct {
				TraceID           string   `json:"traceId"`
				SpanID            string   `json:"spanId"`
				ParentSpanID      string   `json:"parentSpanId"`
				Name              string   `json:"name"`
				StartTimeUnixNano string   `json:"startTimeUnixNano"`
				EndTimeUnixNano   string   `json:"endTimeUnixNano"`
				Attributes        []wireKV `json:"attributes"`
				Status            struct {
					Code int `json:"code"`
				} `json:"status"`
			} `json:"spans"`
		} `json:"scopeSpans"`
	} `json:"resourceSpans"`
}

type wireKV struct {
	Key   string `json:"key"`
	Value struct {
		StringValue string `json:"stringValue"`
	} `json:"value"`
}

func kvMap(kvs []wireKV) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value.StringValue
	}
	return m
}

func TestBuildSpanPayload_RoundTrip(t *testing.T) {
	env := spanEnvelope()
	body := buildForTest(t, env)

	var wire wirePayload
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("Unmarshal wire payload: %v", err)
	}

	if len(wire.ResourceSpans) != 1 || len(wire.ResourceSpans[0].ScopeSpans) != 1 {
		t.Fatalf("unexpected wire structure: %s", body)
	}
	span := wire.ResourceSpans[0].ScopeSpans[0].Spans[0]

	if span.TraceID != env.TraceID {
		t.Errorf("traceId = %q, want %q", span.TraceID, env.TraceID)
	}
	if span.SpanID != env.SpanID {
		t.Errorf("spanId = %q, want %q", span.SpanID, env.SpanID)
	}
	if span.ParentSpanID != env.ParentSpanID {
		t.Errorf("parentSpanId = %q, want %q", span.ParentSpanID, env.ParentSpanID)
	}
	if span.Name != env.Name {
		t.Errorf("name = %q, want %q", span.Name, env.Name)
	}
	if span.Status.Code != 1 {
		t.Errorf("status.code = %d, want 1 (OK)", span.Status.Code)
	}
	if span.StartTimeUnixNano != "1700000000000000000" {
		t.Errorf("startTimeUnixNano = %q", span.StartTimeUnixNano)
	}
	if span.EndTimeUnixNano != "1700000000150000000" {
		t.Errorf("endTimeUnixNano = %q", span.EndTimeUnixNano)
	}

	attrs := kvMap(span.Attributes)
	if attrs["payment.method"] != "visa" || attrs["order.id"] != "ord-123" {
		t.Errorf("span attributes = %v", attrs)
	}

	res := kvMap(wire.ResourceSpans[0].Resource.Attributes)
	if res["service.name"] != "orders" {
		t.Errorf("service.name = %q", res["service.name"])
	}
	if res["service.version"] != "1.2.0" {
		t.Errorf("service.version = %q", res["service.version"])
	}
	if res["deployment.environment"] != "production" {
		t.Errorf("deployment.environment = %q", res["deployment.environment"])
	}
	// Envelope tenant overrides the resource default.
	if res["tenant.id"] != "acme" {
		t.Errorf("tenant.id = %q, want %q", res["tenant.id"], "acme")
	}
}

func TestBuildSpanPayload_StatusMapping(t *testing.T) {
	cases := []struct {
		status string
		code   int
	}{
		{StatusOK, 1},
		{StatusError, 2},
		{StatusUnset, 0},
		{"", 0},
	}

	for _, c := range cases {
		env := spanEnvelope()
		env.Status = c.status
		body := buildForTest(t, env)

		var wire wirePayload
		if err := json.Unmarshal(body, &wire); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		got := wire.ResourceSpans[0].ScopeSpans[0].Spans[0].Status.Code
		if got != c.code {
			t.Errorf("status %q mapped to code %d, want %d", c.status, got, c.code)
		}
	}
}

func TestBuildSpanPayload_NoParent(t *testing.T) {
	env := spanEnvelope()
	env.ParentSpanID = ""
	body := buildForTest(t, env)

	if strings.Contains(string(body), "parentSpanId") {
		t.Errorf("root span payload should omit parentSpanId: %s", body)
	}
}

func TestBuildMetricPayload(t *testing.T) {
	env := &Envelope{
		Kind:         KindMetric,
		Name:         "checkout.latency",
		Value:        42.25,
		Unit:         "ms",
		TimeUnixNano: 1700000000000000000,
		TraceID:      "0123456789abcdef0123456789abcdef",
		SpanID:       "00f067aa0ba902b7",
		Attributes:   map[string]string{"region": "us-east-1"},
	}
	body := buildForTest(t, env)

	var wire struct {
		ResourceMetrics []struct {
			ScopeMetrics []struct {
				Metrics []struct {
					Name  string `json:"name"`
					Unit  string `json:"unit"`
					Gauge struct {
						DataPoints []struct {
							TimeUnixNano string   `json:"timeUnixNano"`
							AsDouble     float64  `json:"asDouble"`
							Attributes   []wireKV `json:"attributes"`
							Exemplars    []struct {
								TraceID string `json:"traceId"`
								SpanID  string `json:"spanId"`
							} `json:"exemplars"`
						} `json:"dataPoints"`
					} `json:"gauge"`
				} `json:"metrics"`
			} `json:"scopeMetrics"`
		} `json:"resourceMetrics"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	metric := wire.ResourceMetrics[0].ScopeMetrics[0].Metrics[0]
	if metric.Name != "checkout.latency" || metric.Unit != "ms" {
		t.Errorf("metric = %q unit %q", metric.Name, metric.Unit)
	}
	dp := metric.Gauge.DataPoints[0]
	if dp.AsDouble != 42.25 {
		t.Errorf("asDouble = %v, want 42.25", dp.AsDouble)
	}
	if len(dp.Exemplars) != 1 || dp.Exemplars[0].TraceID != env.TraceID || dp.Exemplars[0].SpanID != env.SpanID {
		t.Errorf("exemplar correlation missing: %+v", dp.Exemplars)
	}
}

func TestBuildLogPayload(t *testing.T) {
	env := &Envelope{
		Kind:         KindLog,
		Severity:     "ERROR",
		Message:      "payment declined",
		TimeUnixNano: 1700000000000000000,
		TraceID:      "0123456789abcdef0123456789abcdef",
		SpanID:       "00f067aa0ba902b7",
	}
	body := buildForTest(t, env)

	var wire struct {
		ResourceLogs []struct {
			ScopeLogs []struct {
				LogRecords []struct {
					SeverityText   string `json:"severityText"`
					SeverityNumber int    `json:"severityNumber"`
					Body           struct {
						StringValue string `json:"stringValue"`
					} `json:"body"`
					TraceID string `json:"traceId"`
					SpanID  string `json:"spanId"`
				} `json:"logRecords"`
			} `json:"scopeLogs"`
		} `json:"resourceLogs"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	rec := wire.ResourceLogs[0].ScopeLogs[0].LogRecords[0]
	if rec.SeverityText != "ERROR" || rec.SeverityNumber != 17 {
		t.Errorf("severity = %q/%d, want ERROR/17", rec.SeverityText, rec.SeverityNumber)
	}
	if rec.Body.StringValue != "payment declined" {
		t.Errorf("body = %q", rec.Body.StringValue)
	}
	if rec.TraceID != env.TraceID || rec.SpanID != env.SpanID {
		t.Errorf("correlation = %q/%q", rec.TraceID, rec.SpanID)
	}
}

func TestBuildEventPayload_ShipsAsLogRecord(t *testing.T) {
	env := &Envelope{
		Kind:         KindEvent,
		Name:         "cache.miss",
		TimeUnixNano: 1700000000000000000,
		TraceID:      "0123456789abcdef0123456789abcdef",
		SpanID:       "00f067aa0ba902b7",
		Attributes:   map[string]string{"key": "user:42"},
	}
	body := buildForTest(t, env)

	s := string(body)
	if !strings.Contains(s, `"resourceLogs"`) {
		t.Fatalf("event payload not routed to logs: %s", s)
	}
	if !strings.Contains(s, `"stringValue":"cache.miss"`) {
		t.Errorf("event name missing from body: %s", s)
	}
	if !strings.Contains(s, env.SpanID) {
		t.Errorf("event payload missing span correlation: %s", s)
	}
}

func TestWriteString_Escaping(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain`, `"plain"`},
		{`with "quotes"`, `"with \"quotes\""`},
		{`back\slash`, `"back\\slash"`},
		{"line1\nline2", `"line1\nline2"`},
		{"tab\there", `"tab\there"`},
		{"bell\x07", "\"bell\\u0007\""},
		{"nul\x00end", "\"nul\\u0000end\""},
	}

	for _, c := range cases {
		buf := newAdaptiveBuffer(1024)
		writeString(buf, c.in)
		if got := string(buf.Bytes()); got != c.want {
			t.Errorf("writeString(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestWriteString_OutputIsValidJSON(t *testing.T) {
	hostile := []string{
		"quote\" backslash\\ newline\n tab\t",
		"control\x01\x02\x1f chars",
		"unicode héllo \U0001F600",
	}
	for _, s := range hostile {
		buf := newAdaptiveBuffer(1024)
		writeString(buf, s)

		var decoded string
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("writeString(%q) produced invalid JSON %s: %v", s, buf.Bytes(), err)
		}
		if decoded != s {
			t.Errorf("writeString(%q) round-trip = %q", s, decoded)
		}
	}
}

func TestBuildWire_AttributesDeterministic(t *testing.T) {
	env := spanEnvelope()
	first := buildForTest(t, env)
	for i := 0; i < 5; i++ {
		if got := buildForTest(t, env); string(got) != string(first) {
			t.Fatal("buildWire output differs across runs for identical input")
		}
	}
}
