package amqp_test

import (
	"testing"

	"github.com/JailtonJunior94/fabric/broker/amqp"
	"github.com/stretchr/testify/require"
)

func TestPlainStrategy_Name(t *testing.T) {
	require.Equal(t, "plain", amqp.PlainStrategy{}.Name())
}

func TestCloudStrategy_Name(t *testing.T) {
	require.Equal(t, "cloud", amqp.CloudStrategy{}.Name())
}

func TestCloudStrategy_DialMissingURL(t *testing.T) {
	cfg := amqp.DefaultConfig()
	cfg.Host = "localhost"

	_, err := (amqp.CloudStrategy{}).Dial(cfg)
	require.ErrorIs(t, err, amqp.ErrMissingURL)
}
