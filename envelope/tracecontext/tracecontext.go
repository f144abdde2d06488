// Package tracecontext implements W3C trace-context injection and
// extraction into the string header maps carried by envelope.Envelope.
//
// Unlike the teacher's AMQP-specific carrier (which delegates straight to
// the global otel TextMapPropagator), this package hand-rolls the W3C
// traceparent grammar so the fabric's Envelope layer has no compile-time
// dependency on an OpenTelemetry SDK being configured. The package has
// no conversion to or from OpenTelemetry span contexts.
package tracecontext

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Context is a remote trace context extracted from a traceparent header.
type Context struct {
	TraceID    string // 32 hex chars
	SpanID     string // 16 hex chars
	Sampled    bool
	TraceState string
}

// New generates a fresh root Context with a random trace id and span id.
// Sampled defaults to true; callers that want an unsampled context should
// set Sampled = false after construction.
func New() Context {
	return Context{
		TraceID: randomHex(16),
		SpanID:  randomHex(8),
		Sampled: true,
	}
}

// ChildSpan returns a copy of c with a freshly generated span id, keeping
// the same trace id — the shape a producer uses when it wants its publish
// span to appear as a child of an inbound request's trace.
func (c Context) ChildSpan() Context {
	c.SpanID = randomHex(8)
	return c
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is an environment-level fault with no
		// sensible typed-error recovery here; fall back to a strongly
		// fixed-format zero value rather than panic mid-publish.
		return hex.EncodeToString(make([]byte, n))
	}
	return hex.EncodeToString(buf)
}

// Inject writes the W3C traceparent (and, if set, tracestate) headers for
// c into headers. The format is exactly
// "00-<32 hex trace id>-<16 hex span id>-<01|00>".
func Inject(c Context, headers map[string]string) {
	flags := "00"
	if c.Sampled {
		flags = "01"
	}
	headers["traceparent"] = fmt.Sprintf("00-%s-%s-%s", c.TraceID, c.SpanID, flags)
	if c.TraceState != "" {
		headers["tracestate"] = c.TraceState
	}
}

// Extract parses the traceparent/tracestate headers. Any deviation from
// the exact version-00, 32/16/2 hex-length grammar silently yields
// ok=false rather than surfacing an error to the caller, per the spec's
// "no context" fallback.
func Extract(headers map[string]string) (ctx Context, ok bool) {
	raw, present := headers["traceparent"]
	if !present {
		return Context{}, false
	}

	parts := splitTraceparent(raw)
	if len(parts) != 4 {
		return Context{}, false
	}

	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	if version != "00" {
		return Context{}, false
	}
	if len(traceID) != 32 || !isHex(traceID) {
		return Context{}, false
	}
	if len(spanID) != 16 || !isHex(spanID) {
		return Context{}, false
	}
	if len(flags) != 2 || !isHex(flags) {
		return Context{}, false
	}

	return Context{
		TraceID:    traceID,
		SpanID:     spanID,
		Sampled:    flags == "01",
		TraceState: headers["tracestate"],
	}, true
}

func splitTraceparent(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
