package a2a

import (
	"context"
	"fmt"
	"sync"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
)

// SkillHandler processes one task for the skill it is registered under.
// It reports intermediate progress through tc.ReportWorking and returns
// the terminal message body, or an error which the Host classifies into
// an AgentTaskError.
type SkillHandler func(ctx context.Context, tc *TaskContext, req Request) ([]byte, error)

// Store is the narrow persistence surface a2a/store.Store satisfies.
// Declared here, not imported, so the core a2a package never depends on
// a database driver: a Host with a nil Store simply keeps tasks
// in-memory (spec.md names no persistence requirement; the durable
// outbox is a supplemented feature a Host may opt into).
type Store interface {
	SaveTask(ctx context.Context, t Task) error
	CompleteTask(ctx context.Context, taskID string, state State, eventType string, payload []byte) error
}

// Config holds the recognized a2a.Host options (spec.md §6): the task
// topic this agent listens on, the discovery announce topic, and the
// card this agent advertises.
type Config struct {
	AgentName        string
	TaskTopic        string
	SubscriptionName string
	AnnounceTopic    string
	Card             AgentCard

	// Store, when non-nil, receives the Submitted record of each accepted
	// task and its terminal Completed or Failed outcome, so tasks still
	// open after a crash can be found with store.Store.ListIncomplete
	// (SPEC_FULL.md's durable-task-outbox supplement, D2). The Working
	// transition and Cancel are kept in memory only.
	Store Store
}

// Host is C8: it announces an AgentCard on start, accepts AgentTaskRequest
// messages on TaskTopic, tracks each as a Task through its state machine,
// and dispatches to the SkillHandler registered for the requested skill.
type Host struct {
	cfg  Config
	pub  broker.Publisher
	sub  broker.Subscriber
	o11y observability.Observability

	mu      sync.RWMutex
	skills  map[string]SkillHandler
	tasks   map[string]*Task
	liveSub broker.Subscription
}

// New creates a Host. Skills must be registered via RegisterSkill before
// Start.
func New(cfg Config, pub broker.Publisher, sub broker.Subscriber, o11y observability.Observability) *Host {
	if cfg.TaskTopic == "" {
		cfg.TaskTopic = fmt.Sprintf("agent.task.%s", cfg.AgentName)
	}
	if cfg.AnnounceTopic == "" {
		cfg.AnnounceTopic = "discovery.announce"
	}
	return &Host{
		cfg:    cfg,
		pub:    pub,
		sub:    sub,
		o11y:   o11y,
		skills: make(map[string]SkillHandler),
		tasks:  make(map[string]*Task),
	}
}

// TaskTopic returns the topic this Host subscribes to for task requests.
func (h *Host) TaskTopic() string {
	return h.cfg.TaskTopic
}

// RegisterSkill binds a handler to a skill name. Registering the same
// name twice is a caller bug and returns an error rather than silently
// overwriting the first handler.
func (h *Host) RegisterSkill(name string, handler SkillHandler) error {
	if handler == nil {
		return fmt.Errorf("a2a: nil handler for skill %q", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.skills[name]; exists {
		return fmt.Errorf("a2a: skill %q already registered", name)
	}
	h.skills[name] = handler
	return nil
}

// Start subscribes to cfg.TaskTopic and publishes the agent's AgentCard
// to the discovery topic.
func (h *Host) Start(ctx context.Context) error {
	sub, err := h.sub.Subscribe(ctx, h.cfg.TaskTopic, h.cfg.SubscriptionName, h.handle)
	if err != nil {
		return fmt.Errorf("a2a: subscribe %q: %w", h.cfg.TaskTopic, err)
	}
	h.liveSub = sub

	return h.announce(ctx, false)
}

// Shutdown publishes a deregistering AgentCard and disposes the task
// subscription.
func (h *Host) Shutdown(ctx context.Context) error {
	if err := h.announce(ctx, true); err != nil {
		h.o11y.Logger().Warn(ctx, "a2a: deregister announce failed", observability.Error(err))
	}
	if h.liveSub == nil {
		return nil
	}
	return h.liveSub.Dispose(ctx)
}

func (h *Host) announce(ctx context.Context, deregistering bool) error {
	card := h.cfg.Card
	card.Name = h.cfg.AgentName
	card.IsDeregistering = deregistering

	body, err := envelope.Encode(card)
	if err != nil {
		return fmt.Errorf("a2a: encode agent card: %w", err)
	}
	env := envelope.New("agent.card", h.cfg.AgentName, body)
	return h.pub.Publish(ctx, h.cfg.AnnounceTopic, env)
}

func (h *Host) handle(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
	req, err := envelope.DecodePayload[Request](env)
	if err != nil {
		h.o11y.Logger().Warn(ctx, "a2a: malformed task request",
			observability.String("message_id", env.MessageID), observability.Error(err))
		return broker.DeadLetter
	}
	if req.TaskID == "" || req.Skill == "" {
		h.publishError(ctx, env, req, CodeInvalidRequest, ErrInvalidRequest.Error(), false)
		return broker.Ack
	}

	h.mu.RLock()
	handler, ok := h.skills[req.Skill]
	h.mu.RUnlock()
	if !ok {
		h.publishError(ctx, env, req, CodeSkillNotSupported, ErrSkillNotSupported.Error(), false)
		return broker.Ack
	}

	task := &Task{TaskID: req.TaskID, ContextID: req.ContextID, Skill: req.Skill, State: StateSubmitted, LatestMessage: req.Message}
	h.putTask(task)
	h.persist(ctx, *task)

	tc := &TaskContext{host: h, env: env, taskID: req.TaskID}
	h.setState(req.TaskID, StateWorking)

	output, execErr := h.invoke(ctx, handler, tc, req)
	if execErr != nil {
		if ctx.Err() != nil {
			return broker.Retry
		}
		h.setState(req.TaskID, StateFailed)
		h.completeInStore(ctx, req.TaskID, StateFailed, "task.failed", []byte(execErr.Error()))
		h.publishError(ctx, env, req, CodeExecutionFailed, execErr.Error(), false)
		return broker.Ack
	}

	h.setState(req.TaskID, StateCompleted)
	h.completeInStore(ctx, req.TaskID, StateCompleted, "task.completed", output)
	h.publishResult(ctx, env, req, output)
	return broker.Ack
}

func (h *Host) invoke(ctx context.Context, handler SkillHandler, tc *TaskContext, req Request) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("a2a: skill handler panicked: %v", r)
		}
	}()
	return handler(ctx, tc, req)
}

func (h *Host) putTask(t *Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tasks[t.TaskID] = t
}

func (h *Host) setState(taskID string, state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.tasks[taskID]; ok {
		t.State = state
	}
}

func (h *Host) persist(ctx context.Context, t Task) {
	if h.cfg.Store == nil {
		return
	}
	if err := h.cfg.Store.SaveTask(ctx, t); err != nil {
		h.o11y.Logger().Warn(ctx, "a2a: failed to persist task", observability.String("task_id", t.TaskID), observability.Error(err))
	}
}

func (h *Host) completeInStore(ctx context.Context, taskID string, state State, eventType string, payload []byte) {
	if h.cfg.Store == nil {
		return
	}
	if err := h.cfg.Store.CompleteTask(ctx, taskID, state, eventType, payload); err != nil {
		h.o11y.Logger().Warn(ctx, "a2a: failed to record task completion", observability.String("task_id", taskID), observability.Error(err))
	}
}

// Task returns the in-memory record for taskID, or ErrTaskNotFound.
func (h *Host) Task(taskID string) (Task, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tasks[taskID]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return *t, nil
}

// Cancel transitions a non-terminal task to Cancelled. It does not
// interrupt a handler already running; it only marks the record so a
// subsequent status query reports the cancellation (spec.md §4.8 leaves
// interrupting an in-flight handler as an Open Question, decided in
// DESIGN.md in favor of cooperative-only cancellation).
func (h *Host) Cancel(taskID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	switch t.State {
	case StateCompleted, StateCancelled, StateFailed:
		return ErrTaskNotCancelable
	}
	t.State = StateCancelled
	return nil
}

func (h *Host) publishResult(ctx context.Context, reqEnv *envelope.Envelope, req Request, message []byte) {
	body, err := envelope.Encode(Result{TaskID: req.TaskID, State: StateCompleted, Message: message, IsFinal: true})
	if err != nil {
		h.o11y.Logger().Error(ctx, "a2a: failed to encode result", observability.Error(err))
		return
	}
	h.reply(ctx, reqEnv, "agent.task.result", body)
}

func (h *Host) publishError(ctx context.Context, reqEnv *envelope.Envelope, req Request, code ErrorCode, message string, retryable bool) {
	body, err := envelope.Encode(Error{TaskID: req.TaskID, Code: string(code), Message: message, IsRetryable: retryable, IsFinal: true})
	if err != nil {
		h.o11y.Logger().Error(ctx, "a2a: failed to encode error", observability.Error(err))
		return
	}
	h.reply(ctx, reqEnv, "agent.task.error", body)
}

func (h *Host) reply(ctx context.Context, reqEnv *envelope.Envelope, messageType string, body []byte) {
	if reqEnv.ReplyTo == "" {
		h.o11y.Logger().Warn(ctx, "a2a: no reply_to on task request", observability.String("message_id", reqEnv.MessageID))
		return
	}
	replyEnv := envelope.New(messageType, h.cfg.AgentName, body, envelope.WithCorrelationID(reqEnv.CorrelationID))
	if err := h.pub.Publish(ctx, reqEnv.ReplyTo, replyEnv); err != nil {
		h.o11y.Logger().Error(ctx, "a2a: failed to publish reply", observability.Error(err))
	}
}

// TaskContext lets a SkillHandler stream AgentTaskStatusUpdate messages
// while it works.
type TaskContext struct {
	host   *Host
	env    *envelope.Envelope
	taskID string
}

// ReportWorking publishes a non-final status update carrying message.
func (tc *TaskContext) ReportWorking(ctx context.Context, message []byte) error {
	body, err := envelope.Encode(StatusUpdate{TaskID: tc.taskID, State: StateWorking, Message: message, IsFinal: false})
	if err != nil {
		return fmt.Errorf("a2a: encode status update: %w", err)
	}
	if tc.env.ReplyTo == "" {
		return nil
	}
	update := envelope.New("agent.task.status", tc.host.cfg.AgentName, body, envelope.WithCorrelationID(tc.env.CorrelationID))
	return tc.host.pub.Publish(ctx, tc.env.ReplyTo, update)
}
