// Package config loads the fabric's YAML configuration file into the
// recognized per-component option sets from spec.md §6, grounded on the
// teacher pack's tenzoki-agen cellorg config loader: read the whole
// file, unmarshal into a struct tree, then apply defaults and validate.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root document. Load requires AgentName and at least one
// transport (amqp.host or kafka.brokers); every other section is
// optional. Load fills some zero values itself (AMQP exchange "fabric",
// DLX "fabric.dlx", prefetch 10, tool max timeout 30000 ms, dispatcher
// agent name); other zero-valued fields are passed on as they are.
type Config struct {
	AgentName string `yaml:"agent_name"`

	AMQP        AMQPConfig        `yaml:"amqp"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Tool        ToolConfig        `yaml:"tool"`
}

// AMQPConfig mirrors spec.md §6's recognized AMQP transport options.
type AMQPConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	VirtualHost  string `yaml:"virtual_host"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	ExchangeName string `yaml:"exchange_name"`
	DLXName      string `yaml:"dlx_name"`
	Durable      bool   `yaml:"durable"`
	Prefetch     int    `yaml:"prefetch"`
}

// KafkaConfig covers the options broker/kafka.Config recognizes
// (SPEC_FULL.md's domain-stack expansion; spec.md §6 only specifies
// AMQP, so Kafka inherits broker/kafka's own defaults where zero).
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	GroupID    string   `yaml:"group_id"`
	DLQSuffix  string   `yaml:"dlq_suffix"`
	MaxRetries int      `yaml:"max_retries"`
}

// PostgresConfig covers the a2a/store connection options.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// CorrelationConfig mirrors spec.md §6's correlation proxy options.
type CorrelationConfig struct {
	ProxyID             string `yaml:"proxy_id"`
	DefaultReplyTimeout string `yaml:"default_reply_timeout"`
}

// DispatcherConfig mirrors spec.md §6's dispatcher host options.
type DispatcherConfig struct {
	AgentName     string   `yaml:"agent_name"`
	Subscriptions []string `yaml:"subscriptions"`
}

// ToolConfig mirrors spec.md §6's tool router options.
type ToolConfig struct {
	DefaultResultTopic string `yaml:"default_result_topic"`
	MaxTimeoutMS       int64  `yaml:"max_timeout_ms"`
}

// Load reads filename, parses it as YAML, applies defaults, and
// validates required fields.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AMQP.ExchangeName == "" {
		c.AMQP.ExchangeName = "fabric"
	}
	if c.AMQP.DLXName == "" {
		c.AMQP.DLXName = "fabric.dlx"
	}
	if c.AMQP.Prefetch <= 0 {
		c.AMQP.Prefetch = 10
	}
	if c.Tool.MaxTimeoutMS <= 0 {
		c.Tool.MaxTimeoutMS = 30_000
	}
	if c.Dispatcher.AgentName == "" {
		c.Dispatcher.AgentName = c.AgentName
	}
}

func (c *Config) validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("agent_name is required")
	}
	if c.AMQP.Host == "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one of amqp.host or kafka.brokers must be set")
	}
	return nil
}
