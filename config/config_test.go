package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JailtonJunior94/fabric/config"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fabric-agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
agent_name: worker
amqp:
  host: localhost
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "worker", cfg.AgentName)
	require.Equal(t, "fabric", cfg.AMQP.ExchangeName)
	require.Equal(t, "fabric.dlx", cfg.AMQP.DLXName)
	require.Equal(t, 10, cfg.AMQP.Prefetch)
	require.Equal(t, int64(30_000), cfg.Tool.MaxTimeoutMS)
	require.Equal(t, "worker", cfg.Dispatcher.AgentName)
}

func TestLoad_PreservesExplicitValues(t *testing.T) {
	path := writeTemp(t, `
agent_name: worker
amqp:
  host: localhost
  exchange_name: custom
  prefetch: 50
tool:
  max_timeout_ms: 5000
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom", cfg.AMQP.ExchangeName)
	require.Equal(t, 50, cfg.AMQP.Prefetch)
	require.Equal(t, int64(5000), cfg.Tool.MaxTimeoutMS)
}

func TestLoad_MissingAgentName(t *testing.T) {
	path := writeTemp(t, `
amqp:
  host: localhost
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_NoTransportConfigured(t *testing.T) {
	path := writeTemp(t, `
agent_name: worker
`)

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_KafkaSatisfiesTransportRequirement(t *testing.T) {
	path := writeTemp(t, `
agent_name: worker
kafka:
  brokers: ["localhost:9092"]
  group_id: workers
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
