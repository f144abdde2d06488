package amqp

import "errors"

var (
	// ErrTransportClosed indicates the transport has been closed.
	ErrTransportClosed = errors.New("amqp: transport is closed")

	// ErrNoConnection indicates no active connection is available.
	ErrNoConnection = errors.New("amqp: no active connection")

	// ErrReconnecting indicates the transport is mid-reconnect.
	ErrReconnecting = errors.New("amqp: reconnecting")

	// ErrMissingURL indicates CloudStrategy was used without a URL.
	ErrMissingURL = errors.New("amqp: connection URL is required")

	// ErrInvalidStrategy indicates New was called without a
	// ConnectionStrategy.
	ErrInvalidStrategy = errors.New("amqp: connection strategy is required")

	// ErrPublishNotConfirmed indicates the broker nacked a publisher
	// confirm.
	ErrPublishNotConfirmed = errors.New("amqp: publish not confirmed by broker")
)
