package amqp

import (
	"context"
	"fmt"

	"github.com/JailtonJunior94/fabric/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology declares the durable topic exchange E and the durable
// topic dead-letter exchange E_dlx, idempotently (AMQP exchange.declare
// is itself idempotent for matching parameters).
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.ExchangeName, "topic", cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare exchange %q: %w", cfg.ExchangeName, err)
	}
	if err := ch.ExchangeDeclare(cfg.DLXName, "topic", cfg.Durable, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp: declare dlx %q: %w", cfg.DLXName, err)
	}
	return nil
}

// declareSubscriptionQueue declares Q(name), binds it to E with routing
// key pattern (AMQP's `*`/`#` bindings are exactly the spec's wildcard
// grammar, so no character mapping is needed), and sets
// x-dead-letter-exchange so a Nack(requeue=false) routes to E_dlx with
// the original routing key preserved.
func declareSubscriptionQueue(ch *amqp.Channel, cfg Config, pattern, subscriptionName string) (amqp.Queue, error) {
	queueName := fmt.Sprintf("%s.%s", subscriptionName, sanitizeQueueSuffix(pattern))

	args := amqp.Table{
		"x-dead-letter-exchange": cfg.DLXName,
	}

	queue, err := ch.QueueDeclare(queueName, cfg.Durable, false, false, false, args)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("amqp: declare queue %q: %w", queueName, err)
	}

	if err := ch.QueueBind(queue.Name, pattern, cfg.ExchangeName, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("amqp: bind queue %q to %q: %w", queue.Name, pattern, err)
	}

	// Dead-letter queue for inspection/replay, bound with the same
	// pattern under E_dlx.
	dlqName := queue.Name + ".dlq"
	if _, err := ch.QueueDeclare(dlqName, cfg.Durable, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("amqp: declare dlq %q: %w", dlqName, err)
	}
	if err := ch.QueueBind(dlqName, pattern, cfg.DLXName, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("amqp: bind dlq %q: %w", dlqName, err)
	}

	return queue, nil
}

func sanitizeQueueSuffix(pattern string) string {
	out := make([]byte, len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == '*' {
			c = '_'
		} else if c == '#' {
			c = '~'
		}
		out[i] = c
	}
	return string(out)
}

func logTopology(ctx context.Context, o11y observability.Observability, cfg Config, queue amqp.Queue, pattern, subscriptionName string) {
	o11y.Logger().Info(ctx, "amqp queue declared and bound",
		observability.String("queue", queue.Name),
		observability.String("pattern", pattern),
		observability.String("subscription", subscriptionName),
		observability.String("exchange", cfg.ExchangeName),
	)
}
