// Package correlation turns the fabric's stateless publish/subscribe
// into awaitable request/reply interactions with streaming progress,
// grounded on the teacher's event_dispatcher.go handler-table idiom
// applied to a completion-per-correlation-id table instead of a
// type-per-handler table.
package correlation

import (
	"context"

	"github.com/JailtonJunior94/fabric/envelope"
)

// ProgressSink receives every intermediate (is_final=false) reply for a
// pending request. It is never called for the final reply; that value
// is returned from Send/SendHistory instead.
type ProgressSink func(ctx context.Context, env *envelope.Envelope)

// Display receives replies whose correlation id matches no pending
// entry — either because none was ever registered, or because the
// entry already resolved (timeout, cancellation, or an earlier final
// reply). Injected rather than constructed internally so the proxy
// never depends on a concrete UI/CLI front-end.
type Display interface {
	Unsolicited(ctx context.Context, env *envelope.Envelope)
}

// replyPayload is decoded out of every inbound reply body to read the
// is_final flag; any other payload fields are left for the caller to
// decode again from the returned envelope.
type replyPayload struct {
	IsFinal bool `json:"is_final"`
}
