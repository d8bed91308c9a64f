package bridge

import (
	"sort"
	"strconv"
)

// Resource identifies the producing service; stamped onto every payload.
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TenantID       string
}

// scopeName is the instrumentation scope reported on the wire.
const scopeName = "github.com/instantcocoa/beacon"

// buildWire renders one envelope into protocol wire JSON inside an
// adaptive buffer. Tenant from the envelope overrides the resource default.
func buildWire(buf *adaptiveBuffer, env *Envelope, res Resource) {
	if env.TenantID != "" {
		res.TenantID = env.TenantID
	}

	switch env.Signal() {
	case SignalTraces:
		buildSpanPayload(buf, env, res)
	case SignalMetrics:
		buildMetricPayload(buf, env, res)
	default:
		buildLogPayload(buf, env, res)
	}
}

func buildSpanPayload(buf *adaptiveBuffer, env *Envelope, res Resource) {
	buf.WriteString(`{"resourceSpans":[{`)
	writeResource(buf, res)
	buf.WriteString(`,"scopeSpans":[{`)
	writeScope(buf, res)
	buf.WriteString(`,"spans":[{`)

	buf.WriteString(`"traceId":`)
	writeString(buf, env.TraceID)
	buf.WriteString(`,"spanId":`)
	writeString(buf, env.SpanID)
	if env.ParentSpanID != "" {
		buf.WriteString(`,"parentSpanId":`)
		writeString(buf, env.ParentSpanID)
	}
	buf.WriteString(`,"name":`)
	writeString(buf, env.Name)
	buf.WriteString(`,"kind":1`)
	buf.WriteString(`,"startTimeUnixNano":`)
	writeNano(buf, env.StartTimeUnixNano)
	buf.WriteString(`,"endTimeUnixNano":`)
	writeNano(buf, env.EndTimeUnixNano)
	if len(env.Attributes) > 0 {
		buf.WriteString(`,"attributes":`)
		writeAttributes(buf, env.Attributes)
	}
	buf.WriteString(`,"status":{"code":`)
	buf.WriteString(strconv.Itoa(statusCode(env.Status)))
	buf.WriteString(`}`)

	buf.WriteString(`}]}]}]}`)
}

func buildMetricPayload(buf *adaptiveBuffer, env *Envelope, res Resource) {
	buf.WriteString(`{"resourceMetrics":[{`)
	writeResource(buf, res)
	buf.WriteString(`,"scopeMetrics":[{`)
	writeScope(buf, res)
	buf.WriteString(`,"metrics":[{`)

	buf.WriteString(`"name":`)
	writeString(buf, env.Name)
	if env.Unit != "" {
		buf.WriteString(`,"unit":`)
		writeString(buf, env.Unit)
	}
	buf.WriteString(`,"gauge":{"dataPoints":[{`)
	buf.WriteString(`"timeUnixNano":`)
	writeNano(buf, env.TimeUnixNano)
	buf.WriteString(`,"asDouble":`)
	buf.WriteString(strconv.FormatFloat(env.Value, 'g', -1, 64))
	if len(env.Attributes) > 0 {
		buf.WriteString(`,"attributes":`)
		writeAttributes(buf, env.Attributes)
	}
	if env.TraceID != "" {
		// Exemplar carries the trace correlation for metrics.
		buf.WriteString(`,"exemplars":[{"timeUnixNano":`)
		writeNano(buf, env.TimeUnixNano)
		buf.WriteString(`,"asDouble":`)
		buf.WriteString(strconv.FormatFloat(env.Value, 'g', -1, 64))
		buf.WriteString(`,"traceId":`)
		writeString(buf, env.TraceID)
		if env.SpanID != "" {
			buf.WriteString(`,"spanId":`)
			writeString(buf, env.SpanID)
		}
		buf.WriteString(`}]`)
	}
	buf.WriteString(`}]}`)

	buf.WriteString(`}]}]}]}`)
}

func buildLogPayload(buf *adaptiveBuffer, env *Envelope, res Resource) {
	body := env.Message
	severity := env.Severity
	if env.Kind == KindEvent {
		// Events have no standalone wire entity; they ship as
		// trace-correlated log records named after the event.
		body = env.Name
		if severity == "" {
			severity = "INFO"
		}
	}

	buf.WriteString(`{"resourceLogs":[{`)
	writeResource(buf, res)
	buf.WriteString(`,"scopeLogs":[{`)
	writeScope(buf, res)
	buf.WriteString(`,"logRecords":[{`)

	buf.WriteString(`"timeUnixNano":`)
	writeNano(buf, env.TimeUnixNano)
	if severity != "" {
		buf.WriteString(`,"severityText":`)
		writeString(buf, severity)
		buf.WriteString(`,"severityNumber":`)
		buf.WriteString(strconv.Itoa(severityNumber(severity)))
	}
	buf.WriteString(`,"body":{"stringValue":`)
	writeString(buf, body)
	buf.WriteString(`}`)
	if len(env.Attributes) > 0 {
		buf.WriteString(`,"attributes":`)
		writeAttributes(buf, env.Attributes)
	}
	if env.TraceID != "" {
		buf.WriteString(`,"traceId":`)
		writeString(buf, env.TraceID)
	}
	if env.SpanID != "" {
		buf.WriteString(`,"spanId":`)
		writeString(buf, env.SpanID)
	}

	buf.WriteString(`}]}]}]}`)
}

func writeResource(buf *adaptiveBuffer, res Resource) {
	buf.WriteString(`"resource":{"attributes":[`)
	writeKV(buf, "service.name", res.ServiceName)
	buf.WriteByte(',')
	writeKV(buf, "service.version", res.ServiceVersion)
	buf.WriteByte(',')
	writeKV(buf, "deployment.environment", res.Environment)
	if res.TenantID != "" {
		buf.WriteByte(',')
		writeKV(buf, "tenant.id", res.TenantID)
	}
	buf.WriteString(`]}`)
}

func writeScope(buf *adaptiveBuffer, res Resource) {
	buf.WriteString(`"scope":{"name":`)
	writeString(buf, scopeName)
	buf.WriteString(`,"version":`)
	writeString(buf, res.ServiceVersion)
	buf.WriteString(`}`)
}

// writeAttributes renders an attribute set as a wire key-value list.
// Keys are sorted so payload bytes are deterministic.
func writeAttributes(buf *adaptiveBuffer, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKV(buf, k, attrs[k])
	}
	buf.WriteByte(']')
}

func writeKV(buf *adaptiveBuffer, key, value string) {
	buf.WriteString(`{"key":`)
	writeString(buf, key)
	buf.WriteString(`,"value":{"stringValue":`)
	writeString(buf, value)
	buf.WriteString(`}}`)
}

// writeNano renders a nanosecond timestamp as a string, per the wire
// protocol's 64-bit integer JSON mapping.
func writeNano(buf *adaptiveBuffer, nanos int64) {
	buf.WriteByte('"')
	buf.WriteString(strconv.FormatInt(nanos, 10))
	buf.WriteByte('"')
}

const hexDigits = "0123456789abcdef"

// writeString writes a JSON string literal, escaping quotes, backslashes,
// and control characters.
func writeString(buf *adaptiveBuffer, s string) {
	buf.WriteByte('"')
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '"' && c != '\\' && c >= 0x20 {
			continue
		}
		buf.WriteString(s[start:i])
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	buf.WriteString(s[start:])
	buf.WriteByte('"')
}
