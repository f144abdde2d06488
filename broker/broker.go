// Package broker defines the transport-agnostic publish/subscribe
// abstraction every fabric transport (broker/amqp, broker/inproc,
// broker/kafka) implements. Callers compose against Publisher and
// Subscriber only; correlation.Proxy, dispatch.Host, tool.Router and
// a2a.Host never import a concrete transport package directly.
package broker

import (
	"context"

	"github.com/JailtonJunior94/fabric/envelope"
)

// Publisher delivers an envelope to every distinct subscription whose
// pattern matches topic, at-least-once. Order between distinct topics is
// unspecified; order within one (topic, subscription) tuple is
// best-effort FIFO when a single connection/bus is used.
type Publisher interface {
	Publish(ctx context.Context, topic string, env *envelope.Envelope) error
	Close() error
}

// Handler processes one delivered envelope and returns the disposition
// the transport should apply.
type Handler func(ctx context.Context, env *envelope.Envelope) MessageResult

// Subscriber registers durable consumer groups against a topic pattern.
type Subscriber interface {
	// Subscribe registers a durable consumer group named subscriptionName
	// against topicPattern. Two subscriptions sharing a name on the same
	// topic form a competing-consumer group; different names each
	// receive every matching message (fan-out).
	Subscribe(ctx context.Context, topicPattern, subscriptionName string, handler Handler) (Subscription, error)
}

// Subscription is the handle returned by Subscribe. Dispose must
// idempotently unregister the broker-side consumer and drain in-flight
// work before returning.
type Subscription interface {
	Dispose(ctx context.Context) error
}

// HealthChecker is implemented by transports that can report liveness
// independent of publish/subscribe traffic. Not every transport needs
// one (broker/inproc is always "healthy"), so callers type-assert for it
// rather than requiring it on Publisher/Subscriber.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// MessageResult is the ack contract a Handler returns for one delivery.
type MessageResult int

const (
	// Ack acknowledges the delivery; it is removed from the queue.
	Ack MessageResult = iota
	// Retry negatively acknowledges with requeue.
	Retry
	// DeadLetter negatively acknowledges without requeue. The AMQP
	// transport routes it to the dead-letter exchange; the in-process
	// transport discards it with a warning.
	DeadLetter
)

func (r MessageResult) String() string {
	switch r {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead-letter"
	default:
		return "unknown"
	}
}
