package a2a_test

import (
	"context"
	"testing"
	"time"

	"github.com/JailtonJunior94/fabric/a2a"
	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/broker/inproc"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability/noop"
	"github.com/stretchr/testify/require"
)

func TestHost_SuccessfulTask(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := a2a.New(a2a.Config{AgentName: "worker"}, bus, bus, noop.NewProvider())
	require.NoError(t, host.RegisterSkill("echo", func(ctx context.Context, tc *a2a.TaskContext, req a2a.Request) ([]byte, error) {
		require.NoError(t, tc.ReportWorking(ctx, []byte(`{"progress":1}`)))
		return req.Message, nil
	}))
	require.NoError(t, host.Start(ctx))
	defer host.Shutdown(ctx)

	updates := make(chan a2a.StatusUpdate, 1)
	results := make(chan a2a.Result, 1)
	_, err := bus.Subscribe(ctx, "caller.inbox", "caller", func(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
		switch env.MessageType {
		case "agent.task.status":
			update, decErr := envelope.DecodePayload[a2a.StatusUpdate](env)
			require.NoError(t, decErr)
			updates <- update
		case "agent.task.result":
			result, decErr := envelope.DecodePayload[a2a.Result](env)
			require.NoError(t, decErr)
			results <- result
		}
		return broker.Ack
	})
	require.NoError(t, err)

	body, err := envelope.Encode(a2a.Request{TaskID: "task-1", Skill: "echo", Message: []byte(`{"x":1}`)})
	require.NoError(t, err)
	req := envelope.New("agent.task.request", "caller", body, envelope.WithReplyTo("caller.inbox"))
	require.NoError(t, bus.Publish(ctx, host.TaskTopic(), req))

	select {
	case u := <-updates:
		require.Equal(t, "task-1", u.TaskID)
		require.Equal(t, a2a.StateWorking, u.State)
	case <-time.After(time.Second):
		t.Fatal("no status update received within 1s")
	}

	select {
	case r := <-results:
		require.Equal(t, "task-1", r.TaskID)
		require.Equal(t, a2a.StateCompleted, r.State)
		require.True(t, r.IsFinal)
		require.JSONEq(t, `{"x":1}`, string(r.Message))
	case <-time.After(time.Second):
		t.Fatal("no result received within 1s")
	}

	task, err := host.Task("task-1")
	require.NoError(t, err)
	require.Equal(t, a2a.StateCompleted, task.State)
}

func TestHost_SkillNotSupported(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := a2a.New(a2a.Config{AgentName: "worker"}, bus, bus, noop.NewProvider())
	require.NoError(t, host.Start(ctx))
	defer host.Shutdown(ctx)

	errs := make(chan a2a.Error, 1)
	_, err := bus.Subscribe(ctx, "caller.inbox", "caller", func(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
		reply, decErr := envelope.DecodePayload[a2a.Error](env)
		require.NoError(t, decErr)
		errs <- reply
		return broker.Ack
	})
	require.NoError(t, err)

	body, err := envelope.Encode(a2a.Request{TaskID: "task-2", Skill: "missing"})
	require.NoError(t, err)
	req := envelope.New("agent.task.request", "caller", body, envelope.WithReplyTo("caller.inbox"))
	require.NoError(t, bus.Publish(ctx, host.TaskTopic(), req))

	select {
	case e := <-errs:
		require.Equal(t, string(a2a.CodeSkillNotSupported), e.Code)
		require.False(t, e.IsRetryable)
	case <-time.After(time.Second):
		t.Fatal("no error reply received within 1s")
	}
}

func TestHost_CancelTerminalTaskFails(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := a2a.New(a2a.Config{AgentName: "worker"}, bus, bus, noop.NewProvider())
	require.NoError(t, host.RegisterSkill("echo", func(ctx context.Context, tc *a2a.TaskContext, req a2a.Request) ([]byte, error) {
		return req.Message, nil
	}))
	require.NoError(t, host.Start(ctx))
	defer host.Shutdown(ctx)

	done := make(chan struct{})
	_, err := bus.Subscribe(ctx, "caller.inbox", "caller", func(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
		if env.MessageType == "agent.task.result" {
			close(done)
		}
		return broker.Ack
	})
	require.NoError(t, err)

	body, err := envelope.Encode(a2a.Request{TaskID: "task-3", Skill: "echo", Message: []byte(`{}`)})
	require.NoError(t, err)
	req := envelope.New("agent.task.request", "caller", body, envelope.WithReplyTo("caller.inbox"))
	require.NoError(t, bus.Publish(ctx, host.TaskTopic(), req))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}

	require.ErrorIs(t, host.Cancel("task-3"), a2a.ErrTaskNotCancelable)
	require.ErrorIs(t, host.Cancel("no-such-task"), a2a.ErrTaskNotFound)
}

func TestHost_RegisterSkillDuplicate(t *testing.T) {
	host := a2a.New(a2a.Config{AgentName: "worker"}, nil, nil, noop.NewProvider())
	handler := func(ctx context.Context, tc *a2a.TaskContext, req a2a.Request) ([]byte, error) { return nil, nil }

	require.NoError(t, host.RegisterSkill("echo", handler))
	require.Error(t, host.RegisterSkill("echo", handler))
}
