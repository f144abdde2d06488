package dispatch_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/broker/inproc"
	"github.com/JailtonJunior94/fabric/dispatch"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability/noop"
	"github.com/stretchr/testify/require"
)

type pingRequest struct {
	Name string `json:"name"`
}

func TestHost_DispatchSuccess(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := dispatch.New("agent-a", bus, bus, []dispatch.SubscriptionSpec{
		{TopicPattern: "agent.ping", SubscriptionName: "agent-a.ping"},
	}, noop.NewProvider())

	seen := make(chan string, 1)
	err := dispatch.RegisterTyped(host, "ping", dispatch.FireAndForget,
		func(ctx context.Context, hc *dispatch.HandlerContext, payload pingRequest) ([]byte, error) {
			seen <- payload.Name
			return nil, nil
		})
	require.NoError(t, err)
	require.NoError(t, host.Start(ctx))
	defer host.Shutdown(ctx)

	body, err := envelope.Encode(pingRequest{Name: "world"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "agent.ping", envelope.New("ping", "tester", body)))

	select {
	case name := <-seen:
		require.Equal(t, "world", name)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestHost_NoHandlerDeadLetters(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := dispatch.New("agent-a", bus, bus, nil, noop.NewProvider())

	result := host.Dispatch(ctx, envelope.New("unknown.type", "tester", []byte(`{}`)))
	require.Equal(t, "dead-letter", result.String())
}

type classifiedErrorPayload struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	IsRetryable bool   `json:"is_retryable"`
	IsFinal     bool   `json:"is_final"`
}

func TestHost_InvocationErrorPublishesClassifiedReply(t *testing.T) {
	ctx := context.Background()
	bus := inproc.New(noop.NewProvider())

	host := dispatch.New("agent-a", bus, bus, []dispatch.SubscriptionSpec{
		{TopicPattern: "tool.invoke", SubscriptionName: "agent-a.tool"},
	}, noop.NewProvider())

	err := dispatch.RegisterTyped(host, "invoke", dispatch.Invocation,
		func(ctx context.Context, hc *dispatch.HandlerContext, payload pingRequest) ([]byte, error) {
			return nil, errors.New("boom")
		})
	require.NoError(t, err)
	require.NoError(t, host.Start(ctx))
	defer host.Shutdown(ctx)

	received := make(chan classifiedErrorPayload, 1)
	_, err = bus.Subscribe(ctx, "tool.result.caller", "caller", func(ctx context.Context, env *envelope.Envelope) broker.MessageResult {
		p, decErr := envelope.DecodePayload[classifiedErrorPayload](env)
		require.NoError(t, decErr)
		received <- p
		return broker.Ack
	})
	require.NoError(t, err)

	body, _ := envelope.Encode(pingRequest{Name: "x"})
	req := envelope.New("invoke", "caller", body, envelope.WithReplyTo("tool.result.caller"), envelope.WithCorrelationID("c1"))
	require.NoError(t, bus.Publish(ctx, "tool.invoke", req))

	select {
	case p := <-received:
		require.Equal(t, dispatch.CodeExecutionFailed, p.Code)
		require.False(t, p.IsRetryable)
		require.True(t, p.IsFinal)
	case <-time.After(time.Second):
		t.Fatal("classified error reply was not published")
	}
}
