package dispatch

import (
	"context"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
)

// Kind distinguishes a fire-and-forget handler from an invocation-style
// one whose classified failure is published back to reply_to rather
// than merely logged, per spec.md §4.6 step 5.
type Kind int

const (
	// FireAndForget handlers never reply; a classified failure is logged
	// and reported to the transport as Retry (or DeadLetter when the
	// classification is non-retryable).
	FireAndForget Kind = iota
	// Invocation handlers publish a classified error to the envelope's
	// reply_to on failure.
	Invocation
)

// HandlerContext carries everything a handler needs beyond its typed
// payload: the raw envelope, the host's publisher (for replies or
// side-effect publishes), and the agent's own identity.
type HandlerContext struct {
	Envelope  *envelope.Envelope
	Publisher broker.Publisher
	AgentName string
}

// HandlerFunc is the type-erased handler shape stored in the Host's
// registry. RegisterTyped wraps a caller's typed function into this
// shape; the wrapper decodes the payload first, so the caller's typed
// function only runs once the payload has decoded successfully.
type HandlerFunc func(ctx context.Context, hc *HandlerContext) ([]byte, error)

// registration pairs a HandlerFunc with the Kind that governs how its
// failure is surfaced.
type registration struct {
	kind Kind
	fn   HandlerFunc
}
