package dispatch

import "errors"

var (
	// ErrNoHandler indicates no handler is registered for an envelope's
	// message type.
	ErrNoHandler = errors.New("dispatch: no handler registered for message type")

	// ErrTimeout is returned (or wrapped) by a handler to request the
	// "timeout" classification (retryable).
	ErrTimeout = errors.New("dispatch: handler timed out")

	// ErrInvalidArguments is returned (or wrapped) by a handler to
	// request the "invalid_arguments" classification (non-retryable).
	ErrInvalidArguments = errors.New("dispatch: invalid arguments")

	// ErrAlreadyRegistered indicates RegisterTyped was called twice for
	// the same message type.
	ErrAlreadyRegistered = errors.New("dispatch: message type already registered")

	// ErrHandlerNil indicates RegisterTyped was called with a nil handler.
	ErrHandlerNil = errors.New("dispatch: handler cannot be nil")

	// ErrMessageTypeEmpty indicates RegisterTyped was called with an
	// empty message type.
	ErrMessageTypeEmpty = errors.New("dispatch: message type cannot be empty")
)
