package kafka

import "errors"

var (
	// ErrTransportClosed indicates the transport has been closed.
	ErrTransportClosed = errors.New("kafka: transport is closed")

	// ErrWildcardUnsupported indicates Subscribe was called with a
	// pattern containing `*` or `#`. Kafka topics are flat; the fabric
	// wildcard grammar only has meaning against AMQP's topic exchange
	// and the in-process bus, so broker/kafka only accepts literal
	// topic names as patterns.
	ErrWildcardUnsupported = errors.New("kafka: wildcard subscription patterns are not supported")

	// ErrMaxRetriesExceeded indicates a write failed after exhausting
	// the configured retry budget.
	ErrMaxRetriesExceeded = errors.New("kafka: max retries exceeded")
)
