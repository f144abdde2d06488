package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
)

// Config holds the recognized tool router options (spec.md §6):
// default_result_topic and max_timeout_ms.
type Config struct {
	InvokeTopic        string
	SubscriptionName   string
	DefaultResultTopic string
	MaxTimeoutMS       int64
}

// Router is C7: it looks up an Executor by tool_name in its Registry and
// invokes it under a deadline bounded by both the invocation's
// timeout-ms header and cfg.MaxTimeoutMS, publishing a typed Result or
// ErrorReply to reply_to (or DefaultResultTopic as a fallback).
type Router struct {
	cfg      Config
	registry *Registry
	pub      broker.Publisher
	sub      broker.Subscriber
	o11y     observability.Observability

	invocations observability.Counter
	duration    observability.Histogram

	liveSub broker.Subscription
}

// NewRouter creates a Router bound to registry.
func NewRouter(cfg Config, registry *Registry, pub broker.Publisher, sub broker.Subscriber, o11y observability.Observability) *Router {
	if cfg.InvokeTopic == "" {
		cfg.InvokeTopic = "tool.invoke"
	}
	if cfg.MaxTimeoutMS <= 0 {
		cfg.MaxTimeoutMS = 30_000
	}

	metrics := o11y.Metrics()
	return &Router{
		cfg:         cfg,
		registry:    registry,
		pub:         pub,
		sub:         sub,
		o11y:        o11y,
		invocations: metrics.Counter("tool_invocations_total", "Count of tool invocations by tool name", "1"),
		duration:    metrics.Histogram("tool_invocation_duration_ms", "Tool invocation duration by tool name", "ms"),
	}
}

// Start subscribes to cfg.InvokeTopic.
func (r *Router) Start(ctx context.Context) error {
	sub, err := r.sub.Subscribe(ctx, r.cfg.InvokeTopic, r.cfg.SubscriptionName, r.handle)
	if err != nil {
		return fmt.Errorf("tool: subscribe %q: %w", r.cfg.InvokeTopic, err)
	}
	r.liveSub = sub
	return nil
}

// Shutdown disposes the router's subscription.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.liveSub == nil {
		return nil
	}
	return r.liveSub.Dispose(ctx)
}

func (r *Router) handle(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
	req, err := envelope.DecodePayload[Request](env)
	if err != nil {
		r.o11y.Logger().Warn(ctx, "tool: malformed invoke payload",
			observability.String("message_id", env.MessageID), observability.Error(err))
		return broker.DeadLetter
	}

	replyTopic := env.ReplyTo
	if replyTopic == "" {
		replyTopic = r.cfg.DefaultResultTopic
	}
	if replyTopic == "" {
		r.o11y.Logger().Warn(ctx, "tool: no reply topic available", observability.String("tool_call_id", req.ToolCallID))
		return broker.DeadLetter
	}

	reg, ok := r.registry.Lookup(req.ToolName)
	if !ok {
		r.publishError(ctx, env.CorrelationID, replyTopic, req, CodeToolNotFound, "tool not registered")
		return broker.Ack
	}

	timeout := r.resolveTimeout(env)
	invokeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	output, execErr := reg.Executor.Execute(invokeCtx, req)
	elapsed := time.Since(start)

	fields := []observability.Field{observability.String("tool_name", req.ToolName)}
	r.invocations.Add(ctx, 1, fields...)
	r.duration.Record(ctx, float64(elapsed.Milliseconds()), fields...)

	if execErr != nil {
		if invokeCtx.Err() != nil {
			r.publishError(ctx, env.CorrelationID, replyTopic, req, CodeTimeout, "tool invocation timed out")
			return broker.Ack
		}
		code := classify(execErr)
		r.publishError(ctx, env.CorrelationID, replyTopic, req, code, execErr.Error())
		return broker.Ack
	}

	r.publishResult(ctx, env.CorrelationID, replyTopic, req, output)
	return broker.Ack
}

func (r *Router) resolveTimeout(env *envelope.Envelope) time.Duration {
	ceiling := time.Duration(r.cfg.MaxTimeoutMS) * time.Millisecond
	headerMS, ok := env.Header(envelope.HeaderTimeoutMS)
	if !ok {
		return ceiling
	}
	var ms int64
	if _, err := fmt.Sscanf(headerMS, "%d", &ms); err != nil || ms <= 0 {
		return ceiling
	}
	requested := time.Duration(ms) * time.Millisecond
	if requested < ceiling {
		return requested
	}
	return ceiling
}

func (r *Router) publishResult(ctx context.Context, correlationID, replyTopic string, req Request, output []byte) {
	body, err := envelope.Encode(Result{
		ToolCallID: req.ToolCallID,
		ToolName:   req.ToolName,
		Content:    output,
		IsError:    false,
		IsFinal:    true,
	})
	if err != nil {
		r.o11y.Logger().Error(ctx, "tool: failed to encode result", observability.Error(err))
		return
	}
	r.publish(ctx, correlationID, replyTopic, body)
}

func (r *Router) publishError(ctx context.Context, correlationID, replyTopic string, req Request, code ErrorCode, message string) {
	body, err := envelope.Encode(ErrorReply{
		ToolCallID:  req.ToolCallID,
		ToolName:    req.ToolName,
		Code:        string(code),
		Message:     message,
		IsRetryable: code.Retryable(),
		IsFinal:     true,
	})
	if err != nil {
		r.o11y.Logger().Error(ctx, "tool: failed to encode error reply", observability.Error(err))
		return
	}
	r.publish(ctx, correlationID, replyTopic, body)
}

func (r *Router) publish(ctx context.Context, correlationID, replyTopic string, body []byte) {
	replyEnv := envelope.New("tool.result", "tool-router", body, envelope.WithCorrelationID(correlationID))
	if err := r.pub.Publish(ctx, replyTopic, replyEnv); err != nil {
		r.o11y.Logger().Error(ctx, "tool: failed to publish reply", observability.Error(err))
	}
}
