package bridge

import (
	"bytes"
	"testing"
)

func TestAdaptiveBuffer_StaysFixedAtThreshold(t *testing.T) {
	buf := newAdaptiveBuffer(16)
	buf.WriteString("0123456789abcdef") // exactly 16 bytes

	if buf.Grown() {
		t.Error("buffer grew at exactly the threshold")
	}
	if buf.Len() != 16 {
		t.Errorf("Len() = %d, want 16", buf.Len())
	}
}

func TestAdaptiveBuffer_GrowsPastThreshold(t *testing.T) {
	buf := newAdaptiveBuffer(16)
	buf.WriteString("0123456789abcdef")
	buf.WriteByte('!') // threshold+1

	if !buf.Grown() {
		t.Error("buffer did not grow past the threshold")
	}
	if got := string(buf.Bytes()); got != "0123456789abcdef!" {
		t.Errorf("Bytes() = %q, switch truncated data", got)
	}
}

func TestAdaptiveBuffer_IdenticalContentEitherPath(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 100) // 800 bytes

	small := newAdaptiveBuffer(10000)
	small.Write(payload)
	large := newAdaptiveBuffer(100)
	large.Write(payload)

	if small.Grown() {
		t.Error("small-threshold check: buffer under threshold grew")
	}
	if !large.Grown() {
		t.Error("large payload did not trigger growth")
	}
	if !bytes.Equal(small.Bytes(), large.Bytes()) {
		t.Error("fixed and grown paths produced different bytes")
	}
}

func TestAdaptiveBuffer_MixedWrites(t *testing.T) {
	buf := newAdaptiveBuffer(8)
	buf.WriteString("abc")
	buf.WriteByte('d')
	buf.Write([]byte("efghij")) // crosses threshold mid-write

	if !buf.Grown() {
		t.Error("buffer did not grow")
	}
	if got := string(buf.Bytes()); got != "abcdefghij" {
		t.Errorf("Bytes() = %q, want %q", got, "abcdefghij")
	}
}
