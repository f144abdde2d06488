package kafka_test

import (
	"testing"

	"github.com/JailtonJunior94/fabric/broker/kafka"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsInvalidWithoutBrokers(t *testing.T) {
	cfg := kafka.DefaultConfig()
	require.Error(t, cfg.Validate())
}

func TestDefaultConfig_ValidWithBrokersAndGroup(t *testing.T) {
	cfg := kafka.DefaultConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.GroupID = "workers"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsNegativeMaxRetries(t *testing.T) {
	cfg := kafka.DefaultConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.GroupID = "workers"
	cfg.MaxRetries = -1
	require.Error(t, cfg.Validate())
}
