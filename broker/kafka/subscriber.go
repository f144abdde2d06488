package kafka

import (
	"context"
	"sync"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// subscription is the Subscription handle for one Kafka reader.
type subscription struct {
	transport *Transport
	topic     string
	handler   broker.Handler
	reader    *kafkago.Reader

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// pump fetches messages one at a time and translates the handler's
// MessageResult into a commit decision. Kafka has no broker-side
// redelivery/dead-letter primitive like AMQP's Nack, so the
// translation is: Ack commits the offset; Retry leaves it uncommitted
// (the same message is refetched after a reader restart, at the cost of
// also redelivering anything already read past it in the same
// partition, an accepted Kafka at-least-once tradeoff); DeadLetter
// commits the offset and republishes the message to topic+DLQSuffix so
// it is not lost.
func (s *subscription) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.transport.o11y.Logger().Warn(ctx, "kafka fetch failed", observability.Error(err))
			continue
		}

		s.handleMessage(ctx, msg)
	}
}

func (s *subscription) handleMessage(ctx context.Context, msg kafkago.Message) {
	env := messageToEnvelope(msg)

	handlerCtx, cancel := context.WithCancel(ctx)
	result := s.invoke(handlerCtx, env)
	cancel()

	switch result {
	case broker.Ack:
		s.commit(ctx, msg)
	case broker.Retry:
		s.transport.o11y.Logger().Warn(ctx, "kafka handler requested retry, offset left uncommitted",
			observability.String("topic", msg.Topic), observability.Int64("offset", msg.Offset))
	case broker.DeadLetter:
		s.deadLetter(ctx, msg, env)
		s.commit(ctx, msg)
	}
}

func (s *subscription) invoke(ctx context.Context, env *envelope.Envelope) (result broker.MessageResult) {
	defer func() {
		if r := recover(); r != nil {
			s.transport.o11y.Logger().Error(ctx, "handler panicked",
				observability.String("message_id", env.MessageID), observability.Any("panic", r))
			result = broker.Retry
		}
	}()
	return s.handler(ctx, env)
}

func (s *subscription) commit(ctx context.Context, msg kafkago.Message) {
	if err := s.reader.CommitMessages(ctx, msg); err != nil {
		s.transport.o11y.Logger().Warn(ctx, "kafka commit failed", observability.Error(err))
	}
}

func (s *subscription) deadLetter(ctx context.Context, msg kafkago.Message, env *envelope.Envelope) {
	if s.transport.cfg.DLQSuffix == "" {
		s.transport.o11y.Logger().Warn(ctx, "kafka message dead-lettered with no DLQ configured, discarding",
			observability.String("message_id", env.MessageID))
		return
	}
	dlqTopic := s.topic + s.transport.cfg.DLQSuffix
	if err := s.transport.Publish(ctx, dlqTopic, env); err != nil {
		s.transport.o11y.Logger().Error(ctx, "kafka dead-letter publish failed", observability.Error(err))
	}
}

// Dispose idempotently stops the pump and closes the reader.
func (s *subscription) Dispose(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		err = s.reader.Close()
	})
	return err
}
