package kafka

import (
	"errors"
	"time"
)

// Config holds every recognized Kafka transport option (spec.md §6),
// used for the A2A task-status side channel (D1): brokers, consumer
// group id, and the producer/consumer tuning knobs the teacher's
// kafka.config carries.
type Config struct {
	Brokers []string
	GroupID string

	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration
	MaxWait        time.Duration

	ProducerBatchSize    int
	ProducerBatchTimeout time.Duration
	ProducerMaxAttempts  int
	ProducerAsync        bool

	MaxRetries      int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	// DLQSuffix, when non-empty, is appended to a topic name to form the
	// topic a DeadLetter disposition is re-published to.
	DLQSuffix string
}

// DefaultConfig returns production-safe defaults.
func DefaultConfig() Config {
	return Config{
		MinBytes:             1,
		MaxBytes:             10e6,
		CommitInterval:       time.Second,
		MaxWait:              time.Second,
		ProducerBatchSize:    100,
		ProducerBatchTimeout: 10 * time.Millisecond,
		ProducerMaxAttempts:  3,
		MaxRetries:           3,
		RetryBackoff:         200 * time.Millisecond,
		MaxRetryBackoff:      5 * time.Second,
		DLQSuffix:            ".dlq",
	}
}

// Validate returns a descriptive error for any invalid configuration.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if c.GroupID == "" {
		return errors.New("kafka: consumer group id is required")
	}
	if c.MaxRetries < 0 {
		return errors.New("kafka: max retries must be >= 0")
	}
	return nil
}

func calculateBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
