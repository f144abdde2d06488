// Package envelope defines the immutable message envelope that every
// agent publishes and receives across the fabric, plus the canonical
// JSON encoding used for typed payloads.
package envelope

import (
	"time"

	"github.com/google/uuid"
)

// Reserved header names. All other headers are opaque and carried
// verbatim by every transport.
const (
	HeaderContentTrust = "content-trust"
	HeaderToolProvider = "tool-provider"
	HeaderTimeoutMS    = "timeout-ms"
	HeaderTraceparent  = "traceparent"
	HeaderTracestate   = "tracestate"
)

// Trust levels recognized under HeaderContentTrust.
const (
	TrustSystem     = "system"
	TrustToolOutput = "tool-output"
	TrustUser       = "user"
)

// Envelope is the immutable framing record around every message. Once
// constructed it must never be mutated; "adding a header" produces a new
// Envelope via WithHeaderCopy.
type Envelope struct {
	MessageID     string
	MessageType   string
	CorrelationID string
	ReplyTo       string
	Source        string
	Destination   string
	Timestamp     time.Time
	Body          []byte
	Headers       map[string]string
}

// Option configures an Envelope at construction time.
type Option func(*Envelope)

// WithCorrelationID sets the correlation id carried by the envelope.
func WithCorrelationID(id string) Option {
	return func(e *Envelope) { e.CorrelationID = id }
}

// WithReplyTo sets the reply-to topic. The caller is responsible for
// ensuring the topic is syntactically valid; New does not validate it
// since an invalid ReplyTo is a caller bug, not a data condition other
// code should branch on.
func WithReplyTo(topic string) Option {
	return func(e *Envelope) { e.ReplyTo = topic }
}

// WithDestination sets a routing hint consumed by the receiving agent.
func WithDestination(dest string) Option {
	return func(e *Envelope) { e.Destination = dest }
}

// WithHeaders seeds the envelope's header map. Later calls to WithHeaders
// or WithHeader on a fresh Option chain merge on top of what was seeded.
func WithHeaders(headers map[string]string) Option {
	return func(e *Envelope) {
		for k, v := range headers {
			e.Headers[k] = v
		}
	}
}

// WithHeader sets a single header.
func WithHeader(key, value string) Option {
	return func(e *Envelope) { e.Headers[key] = value }
}

// WithMessageID overrides the generated message id. Mostly useful in
// tests that assert on a literal id.
func WithMessageID(id string) Option {
	return func(e *Envelope) { e.MessageID = id }
}

// WithTimestamp overrides the generated timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(e *Envelope) { e.Timestamp = ts }
}

// New constructs an Envelope. messageType, source and body are always
// required by the caller; message_id and timestamp are generated when
// not supplied through an Option.
func New(messageType, source string, body []byte, opts ...Option) *Envelope {
	e := &Envelope{
		MessageID:   uuid.NewString(),
		MessageType: messageType,
		Source:      source,
		Timestamp:   time.Now().UTC(),
		Body:        body,
		Headers:     make(map[string]string),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// WithHeaderCopy returns a new Envelope identical to e except for one
// additional (or overwritten) header. It never mutates e, matching the
// invariant that envelopes are immutable after creation.
func (e *Envelope) WithHeaderCopy(key, value string) *Envelope {
	clone := e.clone()
	clone.Headers[key] = value
	return clone
}

// WithReplyToCopy returns a new Envelope with ReplyTo set, leaving e
// untouched.
func (e *Envelope) WithReplyToCopy(topic string) *Envelope {
	clone := e.clone()
	clone.ReplyTo = topic
	return clone
}

// WithCorrelationIDCopy returns a new Envelope with CorrelationID set,
// leaving e untouched.
func (e *Envelope) WithCorrelationIDCopy(id string) *Envelope {
	clone := e.clone()
	clone.CorrelationID = id
	return clone
}

// Header returns the header value and whether it was present.
func (e *Envelope) Header(key string) (string, bool) {
	v, ok := e.Headers[key]
	return v, ok
}

func (e *Envelope) clone() *Envelope {
	headers := make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		headers[k] = v
	}

	return &Envelope{
		MessageID:     e.MessageID,
		MessageType:   e.MessageType,
		CorrelationID: e.CorrelationID,
		ReplyTo:       e.ReplyTo,
		Source:        e.Source,
		Destination:   e.Destination,
		Timestamp:     e.Timestamp,
		Body:          e.Body,
		Headers:       headers,
	}
}
