package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultBufferThreshold is the payload size above which construction
	// and transport switch to the growable/chunked path.
	DefaultBufferThreshold = 32 * 1024
	// DefaultChunkSize is the body chunk size used for chunked transfer.
	DefaultChunkSize = 8 * 1024
)

// HTTPDoer abstracts the HTTP client so tests can substitute a double.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds exporter configuration.
type Config struct {
	Resource Resource

	TracesURL  string
	MetricsURL string
	LogsURL    string

	Timeout         time.Duration
	BufferThreshold int
	ChunkSize       int

	// ParseMode selects the envelope extraction strategy: "native" or "pattern".
	ParseMode string
}

// Exporter is the protocol bridge: it extracts generic envelopes and
// delivers wire payloads to the configured collector endpoints.
//
// Delivery failures are returned as *DeliveryError values; the exporter
// never panics and never writes to the caller's stores.
type Exporter struct {
	cfg       Config
	client    HTTPDoer
	extractor Extractor
	logger    *slog.Logger
}

// New creates an exporter. A nil client gets a default http.Client with the
// configured timeout.
func New(cfg Config, client HTTPDoer, logger *slog.Logger) *Exporter {
	if cfg.BufferThreshold <= 0 {
		cfg.BufferThreshold = DefaultBufferThreshold
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		cfg:       cfg,
		client:    client,
		extractor: NewExtractor(cfg.ParseMode),
		logger:    logger.With("component", "bridge"),
	}
}

// DeliveryError describes a failed delivery attempt.
type DeliveryError struct {
	Signal     string
	StatusCode int // 0 for transport-level failures
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery to %s failed: collector returned %d", e.Signal, e.StatusCode)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.Signal, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Export extracts one generic envelope and delivers it to the collector.
func (e *Exporter) Export(ctx context.Context, payload []byte) error {
	env, err := e.extractor.Extract(payload)
	if err != nil {
		return &DeliveryError{Signal: "unknown", Err: fmt.Errorf("envelope extraction: %w", err)}
	}

	signal := env.Signal()
	buf := newAdaptiveBuffer(e.cfg.BufferThreshold)
	buildWire(buf, env, e.cfg.Resource)

	e.logger.DebugContext(ctx, "built wire payload",
		"kind", env.Kind,
		"signal", signal,
		"bytes", buf.Len(),
		"chunked", buf.Grown(),
	)

	return e.deliver(ctx, signal, buf.Bytes(), buf.Grown())
}

func (e *Exporter) signalURL(signal string) string {
	switch signal {
	case SignalTraces:
		return e.cfg.TracesURL
	case SignalMetrics:
		return e.cfg.MetricsURL
	default:
		return e.cfg.LogsURL
	}
}

// deliver posts one wire payload. Small bodies go in a single write with
// Content-Length; bodies that outgrew the fixed buffer stream with chunked
// transfer encoding in fixed-size chunks.
func (e *Exporter) deliver(ctx context.Context, signal string, body []byte, chunked bool) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	url := e.signalURL(signal)
	if url == "" {
		return &DeliveryError{Signal: signal, Err: fmt.Errorf("no endpoint configured for %s", signal)}
	}

	var reader io.Reader
	if chunked {
		reader = &chunkReader{data: body, chunkSize: e.cfg.ChunkSize}
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return &DeliveryError{Signal: signal, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if chunked {
		// Forces Transfer-Encoding: chunked instead of one buffered body.
		req.ContentLength = -1
	} else {
		req.ContentLength = int64(len(body))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return &DeliveryError{Signal: signal, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Signal: signal, StatusCode: resp.StatusCode}
	}

	return nil
}

// chunkReader yields the body in fixed-size segments so the transport
// writes bounded chunks instead of one large allocation.
type chunkReader struct {
	data      []byte
	chunkSize int
	off       int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if remaining := len(r.data) - r.off; n > remaining {
		n = remaining
	}
	copy(p, r.data[r.off:r.off+n])
	r.off += n
	return n, nil
}
