package correlation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	"github.com/google/uuid"
)

// Config holds the recognized correlation proxy options (spec.md §6):
// proxy_id and default_reply_timeout.
type Config struct {
	ProxyID             string
	ReplyTopic          string
	HistoryReplyTopic   string
	DefaultReplyTimeout time.Duration
}

// Proxy transforms stateless publish/subscribe into request/reply with
// streaming progress. It subscribes to a well-known reply topic under a
// subscription name that includes its own proxy id so that only this
// proxy instance's replies land on it, per spec.md §4.5.
type Proxy struct {
	cfg     Config
	selfID  string
	pub     broker.Publisher
	sub     broker.Subscriber
	display Display
	o11y    observability.Observability

	pending        *table
	historyPending *table

	replySub    broker.Subscription
	historyOnce sync.Once
	historySub  broker.Subscription
	historyErr  error

	mu     sync.Mutex
	closed bool
}

// New creates a Proxy and immediately subscribes to cfg.ReplyTopic under
// subscription name "<ReplyTopic>.<ProxyID>". The history-response
// subscription is established lazily by the first SendHistory call.
func New(ctx context.Context, selfID string, cfg Config, pub broker.Publisher, sub broker.Subscriber, display Display, o11y observability.Observability) (*Proxy, error) {
	if cfg.ReplyTopic == "" {
		return nil, fmt.Errorf("correlation: reply topic is required")
	}
	if cfg.DefaultReplyTimeout <= 0 {
		cfg.DefaultReplyTimeout = 30 * time.Second
	}

	p := &Proxy{
		cfg:            cfg,
		selfID:         selfID,
		pub:            pub,
		sub:            sub,
		display:        display,
		o11y:           o11y,
		pending:        newTable(),
		historyPending: newTable(),
	}

	replySub, err := sub.Subscribe(ctx, cfg.ReplyTopic, replySubscriptionName(cfg), p.onReply)
	if err != nil {
		return nil, fmt.Errorf("correlation: subscribe reply topic: %w", err)
	}
	p.replySub = replySub

	return p, nil
}

func replySubscriptionName(cfg Config) string {
	return fmt.Sprintf("%s.%s", cfg.ReplyTopic, cfg.ProxyID)
}

func historySubscriptionName(cfg Config) string {
	return fmt.Sprintf("%s.%s", cfg.HistoryReplyTopic, cfg.ProxyID)
}

// SendOption configures one Send/SendHistory call.
type SendOption func(*sendOptions)

type sendOptions struct {
	progress    ProgressSink
	timeout     time.Duration
	destination string
}

// WithProgress registers a sink invoked for every non-final reply.
func WithProgress(sink ProgressSink) SendOption {
	return func(o *sendOptions) { o.progress = sink }
}

// WithTimeout overrides the proxy's default reply timeout for one call.
func WithTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = d }
}

// WithDestination sets the envelope's routing-hint destination.
func WithDestination(dest string) SendOption {
	return func(o *sendOptions) { o.destination = dest }
}

// Send publishes body as messageType on topic, awaits the final reply
// correlated to a freshly minted correlation id, and returns it. See
// spec.md §4.5 for the exact five-step algorithm this implements.
func (p *Proxy) Send(ctx context.Context, topic, messageType string, body []byte, opts ...SendOption) (*envelope.Envelope, error) {
	return p.send(ctx, p.pending, p.cfg.ReplyTopic, topic, messageType, body, opts...)
}

// SendHistory is structurally identical to Send but correlates replies
// on the proxy's history-response topic, lazily subscribing to it on
// first use under a sync.Once-guarded initializer — the Go equivalent
// of spec.md §4.5's "double-checked locking under a single-writer
// guard".
func (p *Proxy) SendHistory(ctx context.Context, topic, messageType string, body []byte, opts ...SendOption) (*envelope.Envelope, error) {
	if err := p.ensureHistorySubscription(ctx); err != nil {
		return nil, err
	}
	return p.send(ctx, p.historyPending, p.cfg.HistoryReplyTopic, topic, messageType, body, opts...)
}

func (p *Proxy) ensureHistorySubscription(ctx context.Context) error {
	p.historyOnce.Do(func() {
		if p.cfg.HistoryReplyTopic == "" {
			p.historyErr = fmt.Errorf("correlation: history reply topic is not configured")
			return
		}
		sub, err := p.sub.Subscribe(ctx, p.cfg.HistoryReplyTopic, historySubscriptionName(p.cfg), p.onHistoryReply)
		if err != nil {
			p.historyErr = fmt.Errorf("correlation: subscribe history reply topic: %w", err)
			return
		}
		p.historySub = sub
	})
	return p.historyErr
}

func (p *Proxy) send(ctx context.Context, tbl *table, replyTopic, topic, messageType string, body []byte, opts ...SendOption) (*envelope.Envelope, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	o := sendOptions{timeout: p.cfg.DefaultReplyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	correlationID := uuid.NewString()
	e := tbl.insert(correlationID, o.progress)

	envOpts := []envelope.Option{
		envelope.WithCorrelationID(correlationID),
		envelope.WithReplyTo(replyTopic),
	}
	if o.destination != "" {
		envOpts = append(envOpts, envelope.WithDestination(o.destination))
	}
	env := envelope.New(messageType, p.selfID, body, envOpts...)

	if err := p.pub.Publish(ctx, topic, env); err != nil {
		tbl.remove(correlationID)
		e.cancel()
		return nil, fmt.Errorf("correlation: publish: %w", err)
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()

	select {
	case reply, ok := <-e.done:
		if !ok || reply == nil {
			return nil, ErrClosed
		}
		return reply, nil
	case <-timer.C:
		tbl.remove(correlationID)
		return nil, ErrTimeout
	case <-ctx.Done():
		tbl.remove(correlationID)
		return nil, ctx.Err()
	}
}

func (p *Proxy) onReply(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
	p.route(ctx, p.pending, env)
	return broker.Ack
}

func (p *Proxy) onHistoryReply(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
	p.route(ctx, p.historyPending, env)
	return broker.Ack
}

func (p *Proxy) route(ctx context.Context, tbl *table, env *envelope.Envelope) {
	if env.CorrelationID == "" {
		p.display.Unsolicited(ctx, env)
		return
	}

	payload, err := envelope.DecodePayload[replyPayload](env)
	if err != nil {
		p.o11y.Logger().Warn(ctx, "correlation: malformed reply payload, treating as final",
			observability.String("message_id", env.MessageID), observability.Error(err))
		payload.IsFinal = true
	}

	if payload.IsFinal {
		if tbl.removeAndResolve(env.CorrelationID, env) {
			return
		}
		p.display.Unsolicited(ctx, env)
		return
	}

	if tbl.forwardProgress(ctx, env.CorrelationID, env) {
		return
	}
	p.display.Unsolicited(ctx, env)
}

// Dispose cancels every outstanding pending request (so callers observe
// cancellation rather than hanging) and disposes the proxy's
// subscriptions. Dispose is idempotent.
func (p *Proxy) Dispose(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.cancelAll()
	p.historyPending.cancelAll()

	var err error
	if p.replySub != nil {
		if e := p.replySub.Dispose(ctx); e != nil {
			err = e
		}
	}
	if p.historySub != nil {
		if e := p.historySub.Dispose(ctx); e != nil {
			err = e
		}
	}
	return err
}
