package amqp

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publisher owns its own channel, exclusive to the producing role and
// never shared with a subscriber's consuming channel, per spec.md §5.
type publisher struct {
	cfg  Config
	cm   *connectionManager
	o11y observability.Observability

	ch *amqp.Channel
}

func newPublisher(cfg Config, cm *connectionManager, o11y observability.Observability) (*publisher, error) {
	ch, err := cm.channel()
	if err != nil {
		return nil, err
	}
	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp: enable publisher confirms: %w", err)
	}

	return &publisher{cfg: cfg, cm: cm, o11y: o11y, ch: ch}, nil
}

// Publish converts env into an amqp.Publishing and routes it through the
// topic exchange with routing key = topic. Delivery is at-least-once per
// the broker's own guarantees; publisher confirms catch the case where
// the broker never received the message at all.
func (p *publisher) Publish(ctx context.Context, topic string, env *envelope.Envelope) error {
	headers := amqp.Table{
		"message_id":     env.MessageID,
		"message_type":   env.MessageType,
		"source":         env.Source,
		"correlation_id": env.CorrelationID,
		"reply_to":       env.ReplyTo,
		"destination":    env.Destination,
	}
	for k, v := range env.Headers {
		headers[k] = v
	}
	if _, ok := env.Headers[envelope.HeaderTraceparent]; !ok {
		traceHeaders := make(map[string]string)
		injectTraceHeaders(traceHeaders)
		for k, v := range traceHeaders {
			headers[k] = v
		}
	}

	confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.cfg.ExchangeName, topic, false, false, amqp.Publishing{
		MessageId:     env.MessageID,
		CorrelationId: env.CorrelationID,
		Timestamp:     env.Timestamp,
		Body:          env.Body,
		Headers:       headers,
	})
	if err != nil {
		return fmt.Errorf("amqp: publish to %q: %w", topic, err)
	}

	if confirmation != nil {
		ok, err := confirmation.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("amqp: publish confirm: %w", err)
		}
		if !ok {
			return ErrPublishNotConfirmed
		}
	}

	return nil
}

func (p *publisher) Close() error {
	return p.ch.Close()
}
