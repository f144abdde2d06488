// Package kafka implements broker.Publisher and broker.Subscriber over
// Kafka (segmentio/kafka-go), grounded on the teacher's
// pkg/messaging/kafka new_producer.go/new_consumer.go pair. It is wired
// in as the A2A task-status side channel (spec.md §7 SUPPLEMENTED
// FEATURES): status updates for long-running tasks fan out to any
// number of independent consumer groups without the publishing agent
// needing to know who is watching, which AMQP's competing-consumer
// queues model less naturally than Kafka's partitioned log.
//
// Kafka topics are flat, so Subscribe only accepts literal topic names;
// broker.Valid patterns containing `*` or `#` are rejected with
// ErrWildcardUnsupported.
package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// Transport is a broker.Publisher and broker.Subscriber backed by Kafka.
// A single Transport may own many topic writers (one per distinct topic
// published to) and many subscriptions (one reader each).
type Transport struct {
	cfg  Config
	o11y observability.Observability

	mu      sync.Mutex
	writers map[string]*kafkago.Writer
	subs    []*subscription
	closed  bool
}

var (
	_ broker.Publisher  = (*Transport)(nil)
	_ broker.Subscriber = (*Transport)(nil)
)

// New validates cfg and returns a ready Transport. Kafka writers and
// readers are opened lazily, per topic, on first Publish/Subscribe.
func New(cfg Config, o11y observability.Observability) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg, o11y: o11y, writers: make(map[string]*kafkago.Writer)}, nil
}

func (t *Transport) writerFor(topic string) *kafkago.Writer {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.writers[topic]; ok {
		return w
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(t.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchSize:    t.cfg.ProducerBatchSize,
		BatchTimeout: t.cfg.ProducerBatchTimeout,
		MaxAttempts:  t.cfg.ProducerMaxAttempts,
		Async:        t.cfg.ProducerAsync,
		WriteTimeout: 10 * time.Second,
	}
	t.writers[topic] = w
	return w
}

// Publish writes env to the Kafka topic named topic, retrying transient
// write failures with exponential backoff per the teacher's
// writeWithRetry.
func (t *Transport) Publish(ctx context.Context, topic string, env *envelope.Envelope) error {
	if !broker.Valid(topic) {
		return fmt.Errorf("kafka: invalid topic %q: %w", topic, broker.ErrInvalidTopic)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	msg := envelopeToMessage(topic, env)
	return t.writeWithRetry(ctx, t.writerFor(topic), msg)
}

func (t *Transport) writeWithRetry(ctx context.Context, w *kafkago.Writer, msg kafkago.Message) error {
	var lastErr error
	backoff := t.cfg.RetryBackoff

	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
			backoff = calculateBackoff(backoff, t.cfg.MaxRetryBackoff)
		}

		if err := w.WriteMessages(ctx, msg); err != nil {
			lastErr = err
			t.o11y.Logger().Warn(ctx, "kafka write attempt failed",
				observability.Int("attempt", attempt), observability.Error(err))
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Subscribe opens a dedicated kafka.Reader for topicPattern under the
// consumer group subscriptionName. Two subscriptions sharing a
// subscriptionName on the same topic share the Kafka consumer group and
// split partitions between them (competing consumers); distinct names
// each form their own group and each receive every message (fan-out),
// matching broker.Subscriber's contract.
func (t *Transport) Subscribe(ctx context.Context, topicPattern, subscriptionName string, handler broker.Handler) (broker.Subscription, error) {
	if strings.ContainsAny(topicPattern, "*#") {
		return nil, ErrWildcardUnsupported
	}
	if !broker.Valid(topicPattern) {
		return nil, fmt.Errorf("kafka: invalid topic %q: %w", topicPattern, broker.ErrInvalidTopic)
	}
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return nil, ErrTransportClosed
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        t.cfg.Brokers,
		GroupID:        subscriptionName,
		GroupTopics:    []string{topicPattern},
		MinBytes:       t.cfg.MinBytes,
		MaxBytes:       t.cfg.MaxBytes,
		CommitInterval: t.cfg.CommitInterval,
		MaxWait:        t.cfg.MaxWait,
	})

	sub := &subscription{
		transport: t,
		topic:     topicPattern,
		handler:   handler,
		reader:    reader,
		done:      make(chan struct{}),
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel
	go sub.pump(pumpCtx)

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	return sub, nil
}

// Close closes every open subscription reader and topic writer. Close is
// idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := t.subs
	t.subs = nil
	writers := t.writers
	t.writers = nil
	t.mu.Unlock()

	ctx := context.Background()
	for _, sub := range subs {
		_ = sub.Dispose(ctx)
	}
	for _, w := range writers {
		_ = w.Close()
	}
	return nil
}

func envelopeToMessage(topic string, env *envelope.Envelope) kafkago.Message {
	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(env.CorrelationID),
		Value: env.Body,
		Time:  env.Timestamp,
	}

	headers := map[string]string{
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
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}

	return msg
}

func messageToEnvelope(msg kafkago.Message) *envelope.Envelope {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
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

	ts := msg.Time
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
		Body:          msg.Value,
		Headers:       headers,
	}
}
