// Package dispatch implements the Host composition root (C6): it owns
// an agent's identity, its broker handles, a message-type → handler
// registry, and the set of topics it subscribes to, grounded on the
// teacher's pkg/events event_dispatcher.go (single RWMutex-guarded map,
// snapshot-then-invoke to avoid holding the lock across handler calls).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
)

// SubscriptionSpec is one (topic_pattern, subscription_name) pair the
// Host declares interest in at Start.
type SubscriptionSpec struct {
	TopicPattern     string
	SubscriptionName string
}

// Host is the composition root described in spec.md §4.6.
type Host struct {
	agentName     string
	pub           broker.Publisher
	sub           broker.Subscriber
	o11y          observability.Observability
	subscriptions []SubscriptionSpec

	mu       sync.RWMutex
	handlers map[string]registration

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
	liveSubs       []broker.Subscription
	started        bool
}

// New creates a Host. Register handlers with RegisterTyped before
// calling Start.
func New(agentName string, pub broker.Publisher, sub broker.Subscriber, subscriptions []SubscriptionSpec, o11y observability.Observability) *Host {
	return &Host{
		agentName:     agentName,
		pub:           pub,
		sub:           sub,
		o11y:          o11y,
		subscriptions: subscriptions,
		handlers:      make(map[string]registration),
	}
}

// RegisterTyped registers fn for messageType, decoding every delivered
// envelope's body into T before fn runs (spec.md §4.6 step 2: malformed
// decode is dead-lettered before the handler ever sees it).
func RegisterTyped[T any](h *Host, messageType string, kind Kind, fn func(ctx context.Context, hc *HandlerContext, payload T) ([]byte, error)) error {
	if messageType == "" {
		return ErrMessageTypeEmpty
	}
	if fn == nil {
		return ErrHandlerNil
	}

	wrapped := func(ctx context.Context, hc *HandlerContext) ([]byte, error) {
		payload, err := envelope.DecodePayload[T](hc.Envelope)
		if err != nil {
			return nil, err
		}
		return fn(ctx, hc, payload)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.handlers[messageType]; exists {
		return ErrAlreadyRegistered
	}
	h.handlers[messageType] = registration{kind: kind, fn: wrapped}
	return nil
}

// Start subscribes to every configured SubscriptionSpec, routing
// deliveries through Dispatch. Start must be called at most once.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return fmt.Errorf("dispatch: host already started")
	}
	h.started = true
	h.shutdownCtx, h.shutdownCancel = context.WithCancel(ctx)
	h.mu.Unlock()

	for _, spec := range h.subscriptions {
		sub, err := h.sub.Subscribe(h.shutdownCtx, spec.TopicPattern, spec.SubscriptionName, h.Dispatch)
		if err != nil {
			_ = h.Shutdown(context.Background())
			return fmt.Errorf("dispatch: subscribe %q: %w", spec.TopicPattern, err)
		}
		h.mu.Lock()
		h.liveSubs = append(h.liveSubs, sub)
		h.mu.Unlock()
	}

	return nil
}

// Dispatch is the broker.Handler bound to every Host subscription. It
// implements spec.md §4.6's six-step dispatch algorithm.
func (h *Host) Dispatch(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
	h.mu.RLock()
	reg, ok := h.handlers[env.MessageType]
	h.mu.RUnlock()

	if !ok {
		h.o11y.Logger().Warn(ctx, "dispatch: no handler registered",
			observability.String("message_type", env.MessageType),
			observability.String("message_id", env.MessageID))
		return broker.DeadLetter
	}

	hc := &HandlerContext{Envelope: env, Publisher: h.pub, AgentName: h.agentName}

	reply, err := h.invoke(ctx, reg.fn, hc)

	if ctx.Err() != nil {
		// Host shutdown (or subscription-lifetime cancellation) fired
		// while the handler was running: propagate, never convert to a
		// reply.
		return broker.Retry
	}

	if err != nil {
		return h.handleFailure(ctx, reg.kind, env, err)
	}

	if reg.kind == Invocation && reply != nil && env.ReplyTo != "" {
		replyEnv := envelope.New(env.MessageType+".reply", h.agentName, reply,
			envelope.WithCorrelationID(env.CorrelationID))
		if pubErr := h.pub.Publish(ctx, env.ReplyTo, replyEnv); pubErr != nil {
			h.o11y.Logger().Error(ctx, "dispatch: failed to publish reply", observability.Error(pubErr))
		}
	}

	return broker.Ack
}

func (h *Host) invoke(ctx context.Context, fn HandlerFunc, hc *HandlerContext) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrInvalidArguments, r)
		}
	}()
	return fn(ctx, hc)
}

func (h *Host) handleFailure(ctx context.Context, kind Kind, env *envelope.Envelope, err error) broker.MessageResult {
	if errors.Is(err, envelope.ErrMalformedPayload) {
		h.o11y.Logger().Warn(ctx, "dispatch: malformed payload",
			observability.String("message_id", env.MessageID), observability.Error(err))
		return broker.DeadLetter
	}

	classification := Classify(err)

	if kind == Invocation && env.ReplyTo != "" {
		h.publishClassifiedError(ctx, env, classification, err)
		return broker.Ack
	}

	h.o11y.Logger().Error(ctx, "dispatch: handler failed",
		observability.String("message_type", env.MessageType),
		observability.String("code", classification.Code),
		observability.Error(err))

	if classification.IsRetryable {
		return broker.Retry
	}
	return broker.DeadLetter
}

// classifiedErrorPayload is the generic typed-error shape published to
// reply_to for invocation-style handlers (C7/C8 use richer, more
// specific error bodies on top of this shape).
type classifiedErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable bool   `json:"is_retryable"`
	IsFinal     bool   `json:"is_final"`
}

func (h *Host) publishClassifiedError(ctx context.Context, env *envelope.Envelope, c Classification, cause error) {
	body, encErr := envelope.Encode(classifiedErrorPayload{
		Code:        c.Code,
		Message:     cause.Error(),
		IsRetryable: c.IsRetryable,
		IsFinal:     true,
	})
	if encErr != nil {
		h.o11y.Logger().Error(ctx, "dispatch: failed to encode classified error", observability.Error(encErr))
		return
	}

	replyEnv := envelope.New(env.MessageType+".error", h.agentName, body,
		envelope.WithCorrelationID(env.CorrelationID))
	if pubErr := h.pub.Publish(ctx, env.ReplyTo, replyEnv); pubErr != nil {
		h.o11y.Logger().Error(ctx, "dispatch: failed to publish classified error", observability.Error(pubErr))
	}
}

// Shutdown cancels every in-flight handler invocation and disposes
// every subscription, draining in-flight work. Shutdown is idempotent.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	cancel := h.shutdownCancel
	subs := h.liveSubs
	h.liveSubs = nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var firstErr error
	for _, sub := range subs {
		if err := sub.Dispose(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
