// Package inproc implements broker.Publisher/broker.Subscriber over an
// in-memory bus for tests and single-process deployments. It mirrors the
// semantics of broker/amqp without a broker dependency: the same
// MessageResult contract, the same wildcard topic matching, and a retry
// cap after which a Retry is treated as a DeadLetter and logged.
package inproc

import (
	"context"
	"sync"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
)

// DefaultMaxRetries matches spec.md Scenario 4: a handler that always
// returns Retry is invoked 1+DefaultMaxRetries times before the message
// is discarded.
const DefaultMaxRetries = 3

// Bus is a process-local message bus. The zero value is not usable; use
// New.
type Bus struct {
	o11y observability.Observability

	maxRetries int

	mu   sync.Mutex
	subs []*subscription

	closed   bool
	closedMu sync.RWMutex
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(b *Bus) { b.maxRetries = n }
}

// New creates an in-process Bus. o11y may be noop.NewProvider() (see
// observability/noop) in tests that don't care about log/trace output.
func New(o11y observability.Observability, opts ...Option) *Bus {
	b := &Bus{
		o11y:       o11y,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// envelopeDelivery carries an in-flight delivery plus its retry count
// through the bus's internal channel.
type envelopeDelivery struct {
	env        *envelope.Envelope
	retryCount int
}

type subscription struct {
	bus              *Bus
	topicPattern     string
	subscriptionName string
	handler          broker.Handler

	ch     chan envelopeDelivery
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc
}

// Publish delivers env to every live subscription whose pattern matches
// topic. Each subscription's channel holds up to 64 pending deliveries;
// when one is full, Publish waits until that subscriber takes a
// delivery, the subscription is disposed, or ctx is done. The capacity
// is fixed and has no option to change it.
func (b *Bus) Publish(ctx context.Context, topic string, env *envelope.Envelope) error {
	b.closedMu.RLock()
	closed := b.closed
	b.closedMu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	b.mu.Lock()
	// Snapshot before fan-out so delivery never holds the lock across a
	// handler call.
	matches := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if broker.Match(s.topicPattern, topic) {
			matches = append(matches, s)
		}
	}
	b.mu.Unlock()

	for _, s := range matches {
		select {
		case s.ch <- envelopeDelivery{env: env}:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Subscribe registers a durable (for the lifetime of the process)
// consumer group. Two subscriptions with the same subscriptionName form
// a competing-consumer group in the sense that both receive the message
// independently — the in-process bus does not load-balance within a
// group, matching its documented "same as fan-out" simplicity; real
// competing-consumer balancing is a property the AMQP transport provides
// via the broker's single queue.
func (b *Bus) Subscribe(ctx context.Context, topicPattern, subscriptionName string, handler broker.Handler) (broker.Subscription, error) {
	if !broker.Valid(topicPattern) {
		return nil, ErrInvalidTopicPattern
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &subscription{
		bus:              b,
		topicPattern:     topicPattern,
		subscriptionName: subscriptionName,
		handler:          handler,
		ch:               make(chan envelopeDelivery, 64),
		done:             make(chan struct{}),
		cancel:           cancel,
	}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go s.pump(subCtx)

	return s, nil
}

// Close disposes every live subscription and marks the bus unusable for
// further publishes.
func (b *Bus) Close() error {
	b.closedMu.Lock()
	b.closed = true
	b.closedMu.Unlock()

	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Dispose(context.Background())
	}
	return nil
}

func (s *subscription) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-s.ch:
			if !ok {
				return
			}
			s.handle(ctx, delivery)
		}
	}
}

func (s *subscription) handle(ctx context.Context, delivery envelopeDelivery) {
	result := s.invoke(ctx, delivery.env)

	switch result {
	case broker.Ack:
		return
	case broker.DeadLetter:
		s.bus.o11y.Logger().Warn(ctx, "message dead-lettered",
			observability.String("message_id", delivery.env.MessageID),
			observability.String("subscription", s.subscriptionName),
		)
		return
	case broker.Retry:
		if delivery.retryCount >= s.bus.maxRetries {
			s.bus.o11y.Logger().Warn(ctx, "retry cap exceeded, dead-lettering",
				observability.String("message_id", delivery.env.MessageID),
				observability.String("subscription", s.subscriptionName),
				observability.Int("retries", delivery.retryCount),
			)
			return
		}

		next := envelopeDelivery{env: delivery.env, retryCount: delivery.retryCount + 1}
		select {
		case s.ch <- next:
		case <-s.done:
		case <-ctx.Done():
		}
	}
}

// invoke calls the handler, converting a panic into a Retry the same way
// the spec treats an unhandled handler exception.
func (s *subscription) invoke(ctx context.Context, env *envelope.Envelope) (result broker.MessageResult) {
	defer func() {
		if r := recover(); r != nil {
			s.bus.o11y.Logger().Error(ctx, "handler panicked",
				observability.String("message_id", env.MessageID),
				observability.Any("panic", r),
			)
			result = broker.Retry
		}
	}()

	return s.handler(ctx, env)
}

// Dispose idempotently unregisters this subscription's consumer and
// cancels its pump goroutine. It does not wait for the pump to exit: a
// handler call already running finishes after Dispose returns, and a
// delivery already queued can still reach the handler if the pump
// picks it up before it sees the cancellation.
func (s *subscription) Dispose(ctx context.Context) error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		for i, sub := range s.bus.subs {
			if sub == s {
				s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
				break
			}
		}
		s.bus.mu.Unlock()

		close(s.done)
		s.cancel()
	})
	return nil
}
