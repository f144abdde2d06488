package dispatch

import (
	"context"
	"errors"
)

// Classification is the §7 handler-fault taxonomy every non-nil handler
// error is reduced to before it is logged or turned into a reply.
type Classification struct {
	Code        string
	IsRetryable bool
}

// Handler fault codes, spec.md §7 kind 3.
const (
	CodeTimeout          = "timeout"
	CodeInvalidArguments = "invalid_arguments"
	CodeExecutionFailed  = "execution_failed"
)

// Classify reduces a handler's returned error to a Classification:
// timeout (retryable), invalid_arguments (non-retryable), everything
// else falls through to execution_failed (non-retryable).
func Classify(err error) Classification {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Classification{Code: CodeTimeout, IsRetryable: true}
	case errors.Is(err, ErrInvalidArguments):
		return Classification{Code: CodeInvalidArguments, IsRetryable: false}
	default:
		return Classification{Code: CodeExecutionFailed, IsRetryable: false}
	}
}
