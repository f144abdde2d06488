package tool

import "errors"

var (
	// ErrDuplicateTool indicates Register was called twice for the same
	// tool name.
	ErrDuplicateTool = errors.New("tool: duplicate tool name")

	// ErrNoReplyTopic indicates an invocation envelope carried no
	// reply_to and the router has no default_result_topic configured to
	// fall back to.
	ErrNoReplyTopic = errors.New("tool: no reply_to and no default result topic configured")

	// Sentinel errors an Executor returns to steer classification beyond
	// the generic execution_failed fallback.
	ErrInvalidArguments = errors.New("tool: invalid arguments")
	ErrRateLimited       = errors.New("tool: rate limited")
	ErrUnauthorized      = errors.New("tool: unauthorized")
)
