package tool

import (
	"context"
	"errors"
)

// classify reduces an executor's returned error to an ErrorCode, beyond
// the tool_not_found/timeout cases the Router handles before the
// executor ever runs.
func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrInvalidArguments):
		return CodeInvalidArguments
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	default:
		return CodeExecutionFailed
	}
}
