package amqp

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnectionStrategy decouples dial configuration from the connection
// manager, following the teacher's rabbitmq.ConnectionStrategy Strategy
// pattern.
type ConnectionStrategy interface {
	Dial(cfg Config) (*amqp.Connection, error)
	Name() string
}

// PlainStrategy dials amqp:// without TLS, suitable for local/dev
// brokers.
type PlainStrategy struct{}

func (PlainStrategy) Dial(cfg Config) (*amqp.Connection, error) {
	url := cfg.URL
	if url == "" {
		url = fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.VirtualHost)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("amqp: plain strategy dial: %w", err)
	}
	return conn, nil
}

func (PlainStrategy) Name() string { return "plain" }

// CloudStrategy dials amqps:// using a full connection URL, the
// teacher's recommended default for CloudAMQP/Kubernetes deployments.
type CloudStrategy struct {
	URL string
}

func (s CloudStrategy) Dial(cfg Config) (*amqp.Connection, error) {
	url := s.URL
	if url == "" {
		url = cfg.URL
	}
	if url == "" {
		return nil, ErrMissingURL
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(cfg.ConnectionTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("amqp: cloud strategy dial: %w", err)
	}
	return conn, nil
}

func (CloudStrategy) Name() string { return "cloud" }
