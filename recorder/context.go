package recorder

import "sync"

// ActiveContext holds the currently active trace and span for one logical
// unit of work (a session or request). It is never shared across sessions:
// each unit of work creates its own instance and passes it explicitly.
//
// Open spans form a stack so that closing a nested span restores its
// parent as the current span.
type ActiveContext struct {
	mu      sync.Mutex
	traceID string
	spans   []string // open span IDs, innermost last
}

// NewActiveContext creates an empty context.
func NewActiveContext() *ActiveContext {
	return &ActiveContext{}
}

// SetCurrent replaces the active trace and span. Any previously tracked
// span stack is discarded.
func (c *ActiveContext) SetCurrent(traceID, spanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traceID = traceID
	c.spans = c.spans[:0]
	if spanID != "" {
		c.spans = append(c.spans, spanID)
	}
}

// CurrentTrace returns the active trace ID, or "" when none.
func (c *ActiveContext) CurrentTrace() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.traceID
}

// CurrentSpan returns the most recently opened, still-open span ID, or ""
// when none.
func (c *ActiveContext) CurrentSpan() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.spans) == 0 {
		return ""
	}
	return c.spans[len(c.spans)-1]
}

// Clear resets to empty. Called at the end of a logical unit of work.
func (c *ActiveContext) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traceID = ""
	c.spans = c.spans[:0]
}

// push records a newly opened span as current.
func (c *ActiveContext) push(spanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spans = append(c.spans, spanID)
}

// pop removes a closed span from the stack wherever it sits; closing the
// innermost span restores its parent as current.
func (c *ActiveContext) pop(spanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.spans) - 1; i >= 0; i-- {
		if c.spans[i] == spanID {
			c.spans = append(c.spans[:i], c.spans[i+1:]...)
			return
		}
	}
}
