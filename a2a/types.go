// Package a2a implements the agent-to-agent task protocol (C8): AgentCard
// discovery announce/deregister and a long-running task state machine
// (Submitted → Working → Completed/Cancelled/Failed) built directly on
// the broker abstraction, the way tool.Router specializes C6 for a
// single request/response shape — a2a.Host specializes it for a
// request/stream/terminal-result shape instead.
package a2a

import "encoding/json"

// State is a task's position in its lifecycle.
type State string

const (
	StateSubmitted State = "submitted"
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Skill describes one capability an agent advertises, richer than a flat
// string list per SPEC_FULL.md's SUPPLEMENTED FEATURES #2 (grounded on
// the goadesign-goa-ai AgentCard skill shape).
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	InputModes  []string `json:"input_modes,omitempty"`
	OutputModes []string `json:"output_modes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// AgentCard is published to discovery.announce on start and, with
// IsDeregistering set, on graceful stop.
type AgentCard struct {
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Version         string  `json:"version"`
	Skills          []Skill `json:"skills"`
	IsDeregistering bool    `json:"is_deregistering"`
}

// Task is the in-memory record of one unit of long-running work (spec.md
// §3 "A2A task").
type Task struct {
	TaskID        string
	ContextID     string
	Skill         string
	State         State
	LatestMessage json.RawMessage
}

// Request is the AgentTaskRequest payload published to
// agent.task.<target>.
type Request struct {
	TaskID    string          `json:"task_id"`
	ContextID string          `json:"context_id,omitempty"`
	Skill     string          `json:"skill"`
	Message   json.RawMessage `json:"message"`
}

// StatusUpdate is an AgentTaskStatusUpdate, published once per Working
// transition a handler reports via TaskContext.ReportWorking.
type StatusUpdate struct {
	TaskID  string          `json:"task_id"`
	State   State           `json:"state"`
	Message json.RawMessage `json:"message,omitempty"`
	IsFinal bool            `json:"is_final"`
}

// Result is an AgentTaskResult, the terminal success/cancel payload.
type Result struct {
	TaskID  string          `json:"task_id"`
	State   State           `json:"state"`
	Message json.RawMessage `json:"message,omitempty"`
	IsFinal bool            `json:"is_final"`
}

// ErrorCode enumerates AgentTaskError codes (spec.md §4.8).
type ErrorCode string

const (
	CodeTaskNotFound      ErrorCode = "task_not_found"
	CodeTaskNotCancelable ErrorCode = "task_not_cancelable"
	CodeSkillNotSupported ErrorCode = "skill_not_supported"
	CodeExecutionFailed   ErrorCode = "execution_failed"
	CodeInvalidRequest    ErrorCode = "invalid_request"
)

// Error is an AgentTaskError, the terminal failure payload.
type Error struct {
	TaskID      string `json:"task_id"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable bool   `json:"is_retryable"`
	IsFinal     bool   `json:"is_final"`
}
