// Package amqp implements broker.Publisher and broker.Subscriber over
// RabbitMQ (AMQP 0-9-1), grounded on the teacher's pkg/messaging/rabbitmq
// client/connection/consumer/producer split. It owns one process-wide
// connection, a dedicated channel per publisher and per subscription,
// and a durable topic-exchange + dead-letter-exchange topology per
// spec.md §4.3.
package amqp

import (
	"context"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
)

// Transport is a broker.Publisher, broker.Subscriber and
// broker.HealthChecker backed by a single AMQP connection.
type Transport struct {
	cfg  Config
	cm   *connectionManager
	o11y observability.Observability

	mu            sync.Mutex
	pub           *publisher
	subscriptions []*subscription
	closed        bool
}

var (
	_ broker.Publisher      = (*Transport)(nil)
	_ broker.Subscriber     = (*Transport)(nil)
	_ broker.HealthChecker  = (*Transport)(nil)
)

// New dials the broker with strategy, declares the topic/DLX topology,
// and opens a dedicated publisher channel. The returned Transport is
// ready for Publish immediately; Subscribe opens one further channel per
// call.
func New(ctx context.Context, cfg Config, strategy ConnectionStrategy, o11y observability.Observability) (*Transport, error) {
	if strategy == nil {
		return nil, ErrInvalidStrategy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cm := newConnectionManager(cfg, strategy, o11y)
	if err := cm.connect(ctx); err != nil {
		return nil, err
	}

	pub, err := newPublisher(cfg, cm, o11y)
	if err != nil {
		_ = cm.close(ctx)
		return nil, err
	}

	return &Transport{cfg: cfg, cm: cm, o11y: o11y, pub: pub}, nil
}

// Publish routes env through the topic exchange, routing key = topic.
func (t *Transport) Publish(ctx context.Context, topic string, env *envelope.Envelope) error {
	if !broker.Valid(topic) {
		return fmt.Errorf("amqp: invalid topic %q: %w", topic, broker.ErrInvalidTopic)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	return t.pub.Publish(ctx, topic, env)
}

// Subscribe registers a durable consumer group; see broker.Subscriber.
func (t *Transport) Subscribe(ctx context.Context, topicPattern, subscriptionName string, handler broker.Handler) (broker.Subscription, error) {
	if !broker.Valid(topicPattern) {
		return nil, fmt.Errorf("amqp: invalid topic pattern %q: %w", topicPattern, broker.ErrInvalidTopic)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTransportClosed
	}

	sub, err := t.subscribe(ctx, topicPattern, subscriptionName, handler)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.subscriptions = append(t.subscriptions, sub)
	t.mu.Unlock()

	return sub, nil
}

// Ping reports broker connection liveness without sending any message.
func (t *Transport) Ping(ctx context.Context) error {
	if !t.cm.healthy() {
		return ErrNoConnection
	}
	return nil
}

// Close disposes every open subscription, closes the publisher channel,
// and tears down the connection. Close is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subscriptions
	t.subscriptions = nil
	t.mu.Unlock()

	ctx := context.Background()
	for _, sub := range subs {
		_ = sub.Dispose(ctx)
	}
	_ = t.pub.Close()
	return t.cm.close(ctx)
}
