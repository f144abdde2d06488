package amqp

import (
	"errors"
	"time"
)

// Config holds every recognized AMQP transport option (spec.md §6):
// host, port, virtual_host, user, password, exchange_name, dlx_name,
// durable, prefetch, plus the reconnection/backoff knobs the teacher's
// rabbitmq.Config carries.
type Config struct {
	Host         string
	Port         int
	VirtualHost  string
	User         string
	Password     string
	ExchangeName string
	DLXName      string
	Durable      bool
	Prefetch     int

	// URL, when set, overrides Host/Port/VirtualHost/User/Password (the
	// teacher's CloudStrategy shape for CloudAMQP/Kubernetes secrets).
	URL string

	ConnectionTimeout        time.Duration
	ReconnectInitialInterval time.Duration
	ReconnectMaxInterval     time.Duration
	ReconnectTimeout         time.Duration

	ServiceName string
}

// DefaultConfig returns production-safe defaults, mirroring the teacher's
// rabbitmq.DefaultConfig.
func DefaultConfig() Config {
	return Config{
		Port:                     5672,
		VirtualHost:              "/",
		ExchangeName:             "fabric.topic",
		DLXName:                  "fabric.topic.dlx",
		Durable:                  true,
		Prefetch:                 10,
		ConnectionTimeout:        30 * time.Second,
		ReconnectInitialInterval: time.Second,
		ReconnectMaxInterval:     30 * time.Second,
		ReconnectTimeout:         5 * time.Minute,
		ServiceName:              "fabric-agent",
	}
}

// Validate returns a descriptive error for any invalid combination of
// fields, following the teacher's fail-fast Config.Validate idiom.
func (c Config) Validate() error {
	if c.URL == "" && c.Host == "" {
		return errors.New("amqp: either URL or Host is required")
	}
	if c.ExchangeName == "" {
		return errors.New("amqp: exchange name is required")
	}
	if c.DLXName == "" {
		return errors.New("amqp: dlx name is required")
	}
	if c.Prefetch < 1 {
		return errors.New("amqp: prefetch must be >= 1")
	}
	if c.ConnectionTimeout <= 0 {
		return errors.New("amqp: connection timeout must be positive")
	}
	if c.ReconnectInitialInterval <= 0 {
		return errors.New("amqp: reconnect initial interval must be positive")
	}
	if c.ReconnectMaxInterval < c.ReconnectInitialInterval {
		return errors.New("amqp: reconnect max interval must be >= initial interval")
	}
	return nil
}
