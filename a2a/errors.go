package a2a

import "errors"

var (
	// ErrTaskNotFound indicates a status/cancel request named an unknown
	// task id.
	ErrTaskNotFound = errors.New("a2a: task not found")

	// ErrTaskNotCancelable indicates Cancel was requested for a task
	// already in a terminal state.
	ErrTaskNotCancelable = errors.New("a2a: task is not cancelable")

	// ErrSkillNotSupported indicates a request named a skill this agent
	// does not implement.
	ErrSkillNotSupported = errors.New("a2a: skill not supported")

	// ErrInvalidRequest indicates a malformed or incomplete
	// AgentTaskRequest.
	ErrInvalidRequest = errors.New("a2a: invalid request")
)
