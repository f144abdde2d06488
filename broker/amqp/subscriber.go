package amqp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// subscription is the Subscription handle for one AMQP consumer. Each
// subscription owns its own channel, exclusive to the consuming role.
type subscription struct {
	transport        *Transport
	topicPattern     string
	subscriptionName string
	handler          broker.Handler

	mu      sync.Mutex
	ch      *amqp.Channel
	queue   amqp.Queue
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (t *Transport) subscribe(ctx context.Context, topicPattern, subscriptionName string, handler broker.Handler) (*subscription, error) {
	s := &subscription{
		transport:        t,
		topicPattern:     topicPattern,
		subscriptionName: subscriptionName,
		handler:          handler,
		done:             make(chan struct{}),
	}

	if err := s.openChannelAndConsume(ctx); err != nil {
		return nil, err
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.pump(pumpCtx)

	return s, nil
}

func (s *subscription) openChannelAndConsume(ctx context.Context) error {
	ch, err := s.transport.cm.channel()
	if err != nil {
		return err
	}
	if err := declareTopology(ch, s.transport.cfg); err != nil {
		_ = ch.Close()
		return err
	}
	queue, err := declareSubscriptionQueue(ch, s.transport.cfg, s.topicPattern, s.subscriptionName)
	if err != nil {
		_ = ch.Close()
		return err
	}
	logTopology(ctx, s.transport.o11y, s.transport.cfg, queue, s.topicPattern, s.subscriptionName)

	if err := ch.Qos(s.transport.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("amqp: set qos: %w", err)
	}

	s.mu.Lock()
	s.ch = ch
	s.queue = queue
	s.mu.Unlock()

	return nil
}

// pump is the cooperative delivery loop described in spec.md §4.3: await
// delivery, reconstruct envelope, invoke handler under a
// subscription-scoped cancellation signal, translate MessageResult into
// an ack/nack, and on channel fault abandon in-flight work and recover.
func (s *subscription) pump(ctx context.Context) {
	for {
		s.mu.Lock()
		ch := s.ch
		consumerName := s.subscriptionName + "-consumer"
		queueName := s.queue.Name
		s.mu.Unlock()

		deliveries, err := ch.Consume(queueName, consumerName, false, false, false, false, nil)
		if err != nil {
			s.transport.o11y.Logger().Warn(ctx, "amqp consume setup failed, retrying",
				observability.Error(err))
			if !s.waitBeforeRecover(ctx) {
				return
			}
			continue
		}

		chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

		if !s.drain(ctx, deliveries, chClosed) {
			return
		}

		// Channel faulted: abandon in-flight work (the broker redelivers
		// unacked messages), open a fresh channel, re-declare topology,
		// resume.
		if !s.recover(ctx) {
			return
		}
	}
}

func (s *subscription) drain(ctx context.Context, deliveries <-chan amqp.Delivery, chClosed <-chan *amqp.Error) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case <-s.done:
			return false
		case <-chClosed:
			return true
		case d, ok := <-deliveries:
			if !ok {
				return true
			}
			s.handleDelivery(ctx, d)
		}
	}
}

func (s *subscription) handleDelivery(ctx context.Context, d amqp.Delivery) {
	env := reconstructEnvelope(d)

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := s.invoke(handlerCtx, env)

	switch result {
	case broker.Ack:
		if err := d.Ack(false); err != nil {
			s.transport.o11y.Logger().Warn(ctx, "amqp ack failed", observability.Error(err))
		}
	case broker.Retry:
		if err := d.Nack(false, true); err != nil {
			s.transport.o11y.Logger().Warn(ctx, "amqp nack-requeue failed", observability.Error(err))
		}
	case broker.DeadLetter:
		if err := d.Nack(false, false); err != nil {
			s.transport.o11y.Logger().Warn(ctx, "amqp nack-deadletter failed", observability.Error(err))
		}
	}
}

func (s *subscription) invoke(ctx context.Context, env *envelope.Envelope) (result broker.MessageResult) {
	defer func() {
		if r := recover(); r != nil {
			s.transport.o11y.Logger().Error(ctx, "handler panicked",
				observability.String("message_id", env.MessageID),
				observability.Any("panic", r))
			result = broker.Retry
		}
	}()
	return s.handler(ctx, env)
}

func (s *subscription) waitBeforeRecover(ctx context.Context) bool {
	select {
	case <-time.After(time.Second):
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

func (s *subscription) recover(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	default:
	}

	if err := s.openChannelAndConsume(ctx); err != nil {
		s.transport.o11y.Logger().Warn(ctx, "amqp subscription recovery failed, retrying", observability.Error(err))
		return s.waitBeforeRecover(ctx)
	}
	return true
}

// Dispose idempotently stops the pump and closes the consumer's
// channel. It does not wait for the pump to exit: a handler call
// already running finishes after Dispose returns, and a delivery already
// buffered can still reach the handler if the pump picks it up before
// it sees the stop signal.
func (s *subscription) Dispose(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Lock()
		if s.ch != nil {
			err = s.ch.Close()
		}
		s.mu.Unlock()
	})
	return err
}

func reconstructEnvelope(d amqp.Delivery) *envelope.Envelope {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		headers[k] = fmt.Sprintf("%v", v)
	}

	messageType := headers["message_type"]
	delete(headers, "message_type")
	source := headers["source"]
	delete(headers, "source")
	correlationID := headers["correlation_id"]
	delete(headers, "correlation_id")
	replyTo := headers["reply_to"]
	delete(headers, "reply_to")
	destination := headers["destination"]
	delete(headers, "destination")
	messageID := headers["message_id"]
	delete(headers, "message_id")
	if messageID == "" {
		messageID = d.MessageId
	}

	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &envelope.Envelope{
		MessageID:     messageID,
		MessageType:   messageType,
		CorrelationID: correlationID,
		ReplyTo:       replyTo,
		Source:        source,
		Destination:   destination,
		Timestamp:     ts,
		Body:          d.Body,
		Headers:       headers,
	}
}
