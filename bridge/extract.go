package bridge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Extractor reads an Envelope back out of its generic JSON form.
//
// Two strategies exist: NativeExtractor uses the structured JSON decoder;
// PatternExtractor uses regex-based extraction for hosts without structured
// JSON support. Both must produce identical values for any well-formed
// envelope. The strategy is chosen once from configuration, not per call.
type Extractor interface {
	Extract(payload []byte) (*Envelope, error)
}

// NativeExtractor decodes envelopes with encoding/json.
type NativeExtractor struct{}

func (NativeExtractor) Extract(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope missing kind")
	}
	return &env, nil
}

// PatternExtractor recovers envelope fields with regular expressions.
type PatternExtractor struct{}

var (
	// A JSON string literal: any run of non-quote, non-backslash chars or
	// backslash escapes.
	jsonString = `"((?:[^"\\]|\\.)*)"`

	stringFieldRe = map[string]*regexp.Regexp{}
	numberFieldRe = map[string]*regexp.Regexp{}

	attrsObjectRe = regexp.MustCompile(`"attributes"\s*:\s*\{((?:[^{}"]|"(?:[^"\\]|\\.)*")*)\}`)
	attrsPairRe   = regexp.MustCompile(jsonString + `\s*:\s*` + jsonString)
)

func init() {
	for _, f := range []string{
		"kind", "tenant_id", "trace_id", "span_id", "parent_span_id",
		"name", "status", "severity", "message", "unit",
	} {
		stringFieldRe[f] = regexp.MustCompile(`"` + f + `"\s*:\s*` + jsonString)
	}
	for _, f := range []string{
		"start_time_unix_nano", "end_time_unix_nano", "time_unix_nano", "value",
	} {
		numberFieldRe[f] = regexp.MustCompile(`"` + f + `"\s*:\s*(-?[0-9][0-9.eE+\-]*)`)
	}
}

func (PatternExtractor) Extract(payload []byte) (*Envelope, error) {
	s := string(payload)

	str := func(field string) (string, error) {
		m := stringFieldRe[field].FindStringSubmatch(s)
		if m == nil {
			return "", nil
		}
		return unescapeJSON(m[1])
	}
	num := func(field string) (float64, error) {
		m := numberFieldRe[field].FindStringSubmatch(s)
		if m == nil {
			return 0, nil
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("bad numeric field %s: %w", field, err)
		}
		return v, nil
	}
	// Nanosecond timestamps exceed float64 precision; parse them as integers.
	nano := func(field string) (int64, error) {
		m := numberFieldRe[field].FindStringSubmatch(s)
		if m == nil {
			return 0, nil
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad timestamp field %s: %w", field, err)
		}
		return v, nil
	}

	env := &Envelope{}
	var err error
	if env.Kind, err = str("kind"); err != nil {
		return nil, err
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("envelope missing kind")
	}
	if env.TenantID, err = str("tenant_id"); err != nil {
		return nil, err
	}
	if env.TraceID, err = str("trace_id"); err != nil {
		return nil, err
	}
	if env.SpanID, err = str("span_id"); err != nil {
		return nil, err
	}
	if env.ParentSpanID, err = str("parent_span_id"); err != nil {
		return nil, err
	}
	if env.Name, err = str("name"); err != nil {
		return nil, err
	}
	if env.Status, err = str("status"); err != nil {
		return nil, err
	}
	if env.Severity, err = str("severity"); err != nil {
		return nil, err
	}
	if env.Message, err = str("message"); err != nil {
		return nil, err
	}
	if env.Unit, err = str("unit"); err != nil {
		return nil, err
	}

	if env.StartTimeUnixNano, err = nano("start_time_unix_nano"); err != nil {
		return nil, err
	}
	if env.EndTimeUnixNano, err = nano("end_time_unix_nano"); err != nil {
		return nil, err
	}
	if env.TimeUnixNano, err = nano("time_unix_nano"); err != nil {
		return nil, err
	}

	if env.Value, err = num("value"); err != nil {
		return nil, err
	}

	if m := attrsObjectRe.FindStringSubmatch(s); m != nil {
		attrs := make(map[string]string)
		for _, pair := range attrsPairRe.FindAllStringSubmatch(m[1], -1) {
			key, err := unescapeJSON(pair[1])
			if err != nil {
				return nil, err
			}
			val, err := unescapeJSON(pair[2])
			if err != nil {
				return nil, err
			}
			attrs[key] = val
		}
		if len(attrs) > 0 {
			env.Attributes = attrs
		}
	}

	return env, nil
}

// NewExtractor returns the extractor for a parse mode string
// ("native" or "pattern").
func NewExtractor(mode string) Extractor {
	if mode == "pattern" {
		return PatternExtractor{}
	}
	return NativeExtractor{}
}

// unescapeJSON resolves backslash escapes inside a JSON string literal body.
func unescapeJSON(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("truncated escape sequence")
		}
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			if i+4 >= len(s) {
				return "", fmt.Errorf("truncated unicode escape")
			}
			hi, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad unicode escape: %w", err)
			}
			i += 4
			r := rune(hi)
			if utf16.IsSurrogate(r) && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				lo, err := strconv.ParseUint(s[i+3:i+7], 16, 32)
				if err == nil {
					if combined := utf16.DecodeRune(r, rune(lo)); combined != 0xFFFD {
						r = combined
						i += 6
					}
				}
			}
			b.WriteRune(r)
		default:
			return "", fmt.Errorf("unknown escape sequence \\%c", s[i])
		}
	}
	return b.String(), nil
}
