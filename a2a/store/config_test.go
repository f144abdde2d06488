package store_test

import (
	"testing"
	"time"

	"github.com/JailtonJunior94/fabric/a2a/store"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := store.DefaultConfig("postgres://fabric@localhost/fabric")

	require.Equal(t, "postgres://fabric@localhost/fabric", cfg.DSN)
	require.Equal(t, int32(25), cfg.MaxConns)
	require.Equal(t, int32(5), cfg.MinConns)
	require.Equal(t, 10*time.Minute, cfg.MaxConnLifetime)
	require.Equal(t, 3*time.Minute, cfg.MaxConnIdleTime)
	require.Equal(t, time.Minute, cfg.HealthCheckPeriod)
}

func TestErrNotFound_IsDistinctSentinel(t *testing.T) {
	require.EqualError(t, store.ErrNotFound, "store: task not found")
}
