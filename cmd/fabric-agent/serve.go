package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JailtonJunior94/fabric/a2a"
	"github.com/JailtonJunior94/fabric/a2a/store"
	"github.com/JailtonJunior94/fabric/broker"
	"github.com/JailtonJunior94/fabric/broker/amqp"
	"github.com/JailtonJunior94/fabric/broker/kafka"
	"github.com/JailtonJunior94/fabric/config"
	"github.com/JailtonJunior94/fabric/correlation"
	"github.com/JailtonJunior94/fabric/dispatch"
	"github.com/JailtonJunior94/fabric/envelope"
	"github.com/JailtonJunior94/fabric/observability"
	"github.com/JailtonJunior94/fabric/observability/otel"
	"github.com/JailtonJunior94/fabric/tool"
	"github.com/spf13/cobra"
)

var configPath string

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "fabric-agent.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent and block until terminated",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	o11y, err := newObservability(ctx, cfg.AgentName)
	if err != nil {
		return fmt.Errorf("fabric-agent: observability: %w", err)
	}

	var pub broker.Publisher
	var sub broker.Subscriber
	var closeTransport func() error

	switch {
	case cfg.AMQP.Host != "":
		amqpCfg := amqp.DefaultConfig()
		amqpCfg.Host = cfg.AMQP.Host
		if cfg.AMQP.Port != 0 {
			amqpCfg.Port = cfg.AMQP.Port
		}
		if cfg.AMQP.VirtualHost != "" {
			amqpCfg.VirtualHost = cfg.AMQP.VirtualHost
		}
		amqpCfg.User = cfg.AMQP.User
		amqpCfg.Password = cfg.AMQP.Password
		if cfg.AMQP.ExchangeName != "" {
			amqpCfg.ExchangeName = cfg.AMQP.ExchangeName
		}
		if cfg.AMQP.DLXName != "" {
			amqpCfg.DLXName = cfg.AMQP.DLXName
		}
		amqpCfg.Durable = cfg.AMQP.Durable
		if cfg.AMQP.Prefetch != 0 {
			amqpCfg.Prefetch = cfg.AMQP.Prefetch
		}

		transport, err := amqp.New(ctx, amqpCfg, amqp.PlainStrategy{}, o11y)
		if err != nil {
			return fmt.Errorf("fabric-agent: amqp transport: %w", err)
		}
		pub, sub, closeTransport = transport, transport, transport.Close

	case len(cfg.Kafka.Brokers) > 0:
		kafkaCfg := kafka.DefaultConfig()
		kafkaCfg.Brokers = cfg.Kafka.Brokers
		kafkaCfg.GroupID = cfg.Kafka.GroupID
		if cfg.Kafka.DLQSuffix != "" {
			kafkaCfg.DLQSuffix = cfg.Kafka.DLQSuffix
		}
		if cfg.Kafka.MaxRetries != 0 {
			kafkaCfg.MaxRetries = cfg.Kafka.MaxRetries
		}

		transport, err := kafka.New(kafkaCfg, o11y)
		if err != nil {
			return fmt.Errorf("fabric-agent: kafka transport: %w", err)
		}
		pub, sub, closeTransport = transport, transport, transport.Close

	default:
		return fmt.Errorf("fabric-agent: no transport configured")
	}
	defer closeTransport()

	var taskStore *store.Store
	if cfg.Postgres.DSN != "" {
		storeCfg := store.DefaultConfig(cfg.Postgres.DSN)
		if cfg.Postgres.MaxConns != 0 {
			storeCfg.MaxConns = cfg.Postgres.MaxConns
		}
		if cfg.Postgres.MinConns != 0 {
			storeCfg.MinConns = cfg.Postgres.MinConns
		}
		taskStore, err = store.Open(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("fabric-agent: task store: %w", err)
		}
		defer taskStore.Shutdown(context.Background())
	}

	subscriptions := make([]dispatch.SubscriptionSpec, 0, len(cfg.Dispatcher.Subscriptions))
	for _, raw := range cfg.Dispatcher.Subscriptions {
		topic, subName, ok := strings.Cut(raw, "|")
		if !ok {
			return fmt.Errorf("fabric-agent: malformed subscription entry %q, want topic|subscription_name", raw)
		}
		subscriptions = append(subscriptions, dispatch.SubscriptionSpec{TopicPattern: topic, SubscriptionName: subName})
	}
	host := dispatch.New(cfg.Dispatcher.AgentName, pub, sub, subscriptions, o11y)
	if err := host.Start(ctx); err != nil {
		return fmt.Errorf("fabric-agent: dispatch host: %w", err)
	}
	defer host.Shutdown(context.Background())

	registry := tool.NewRegistry()
	router := tool.NewRouter(tool.Config{
		DefaultResultTopic: cfg.Tool.DefaultResultTopic,
		MaxTimeoutMS:       cfg.Tool.MaxTimeoutMS,
		SubscriptionName:   cfg.AgentName + ".tool-router",
	}, registry, pub, sub, o11y)
	if err := router.Start(ctx); err != nil {
		return fmt.Errorf("fabric-agent: tool router: %w", err)
	}
	defer router.Shutdown(context.Background())

	if cfg.Correlation.ProxyID != "" {
		replyTimeout := 30 * time.Second
		if cfg.Correlation.DefaultReplyTimeout != "" {
			if d, err := time.ParseDuration(cfg.Correlation.DefaultReplyTimeout); err == nil {
				replyTimeout = d
			}
		}
		proxy, err := correlation.New(ctx, cfg.Correlation.ProxyID, correlation.Config{
			ProxyID:             cfg.Correlation.ProxyID,
			ReplyTopic:          fmt.Sprintf("tool.result.%s", cfg.AgentName),
			DefaultReplyTimeout: replyTimeout,
		}, pub, sub, logDisplay{o11y}, o11y)
		if err != nil {
			return fmt.Errorf("fabric-agent: correlation proxy: %w", err)
		}
		defer proxy.Dispose(context.Background())
	}

	a2aCfg := a2a.Config{AgentName: cfg.AgentName}
	if taskStore != nil {
		a2aCfg.Store = taskStore
	}
	a2aHost := a2a.New(a2aCfg, pub, sub, o11y)
	if err := a2aHost.Start(ctx); err != nil {
		return fmt.Errorf("fabric-agent: a2a host: %w", err)
	}
	defer a2aHost.Shutdown(context.Background())

	o11y.Logger().Info(ctx, "fabric-agent: running", observability.String("agent_name", cfg.AgentName))
	<-ctx.Done()
	o11y.Logger().Info(ctx, "fabric-agent: shutting down")
	return nil
}

func newObservability(ctx context.Context, serviceName string) (observability.Observability, error) {
	return otel.NewProvider(ctx, otel.DefaultConfig(serviceName))
}

// logDisplay routes unsolicited replies to structured logging instead of
// a UI front-end, per spec.md §9's "inject the display collaborator"
// design note.
type logDisplay struct {
	o11y observability.Observability
}

func (d logDisplay) Unsolicited(ctx context.Context, env *envelope.Envelope) {
	d.o11y.Logger().Warn(ctx, "correlation: unsolicited reply",
		observability.String("message_id", env.MessageID),
		observability.String("correlation_id", env.CorrelationID))
}
