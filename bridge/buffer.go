package bridge

import "bytes"

// adaptiveBuffer builds payloads with a size-adaptive strategy: writes land
// in a single fixed-capacity buffer until the threshold is crossed, then
// construction migrates to a growable buffer. The transport uses Grown() to
// decide between simple and chunked transfer. The switch never truncates:
// bytes already written are carried into the growable buffer.
type adaptiveBuffer struct {
	threshold int
	fixed     []byte
	grown     *bytes.Buffer
}

func newAdaptiveBuffer(threshold int) *adaptiveBuffer {
	return &adaptiveBuffer{
		threshold: threshold,
		fixed:     make([]byte, 0, threshold),
	}
}

func (b *adaptiveBuffer) grow() {
	b.grown = bytes.NewBuffer(make([]byte, 0, b.threshold*2))
	b.grown.Write(b.fixed)
	b.fixed = nil
}

func (b *adaptiveBuffer) Write(p []byte) (int, error) {
	if b.grown == nil {
		if len(b.fixed)+len(p) <= b.threshold {
			b.fixed = append(b.fixed, p...)
			return len(p), nil
		}
		b.grow()
	}
	return b.grown.Write(p)
}

func (b *adaptiveBuffer) WriteString(s string) {
	if b.grown == nil {
		if len(b.fixed)+len(s) <= b.threshold {
			b.fixed = append(b.fixed, s...)
			return
		}
		b.grow()
	}
	b.grown.WriteString(s)
}

func (b *adaptiveBuffer) WriteByte(c byte) error {
	if b.grown == nil {
		if len(b.fixed) < b.threshold {
			b.fixed = append(b.fixed, c)
			return nil
		}
		b.grow()
	}
	return b.grown.WriteByte(c)
}

func (b *adaptiveBuffer) Len() int {
	if b.grown != nil {
		return b.grown.Len()
	}
	return len(b.fixed)
}

func (b *adaptiveBuffer) Bytes() []byte {
	if b.grown != nil {
		return b.grown.Bytes()
	}
	return b.fixed
}

// Grown reports whether the payload outgrew the fixed buffer.
func (b *adaptiveBuffer) Grown() bool {
	return b.grown != nil
}
