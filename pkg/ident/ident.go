// Package ident generates wire-format trace and span identifiers.
package ident

import (
	"crypto/rand"
	"encoding/hex"
)

const (
	// TraceIDLength is the hex length of a 128-bit trace identifier.
	TraceIDLength = 32
	// SpanIDLength is the hex length of a 64-bit span identifier.
	SpanIDLength = 16
)

// NewTraceID returns a random 128-bit identifier as 32 lowercase hex chars.
func NewTraceID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// NewSpanID returns a random 64-bit identifier as 16 lowercase hex chars.
func NewSpanID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// ValidTraceID reports whether s is a well-formed trace identifier.
func ValidTraceID(s string) bool {
	return validHex(s, TraceIDLength)
}

// ValidSpanID reports whether s is a well-formed span identifier.
func ValidSpanID(s string) bool {
	return validHex(s, SpanIDLength)
}

func validHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
