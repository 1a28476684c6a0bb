package ceresdb

import (
	"testing"

	"github.com/mrrtree/ceresdb-client-go/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsDuplicateID(t *testing.T) {
	cfg := config.Default()
	cfg.ClusterAddress = config.Endpoint{Host: "cluster.local", Port: 8831}
	cfg.Database = "test_db"
	cfg.GcPeriodSeconds = 0

	c, err := Init("dup-client", cfg)
	require.NoError(t, err)
	defer c.ShutdownGracefully("dup-client")

	assert.Panics(t, func() {
		_, _ = Init("dup-client", cfg)
	})
}

func TestInitRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	_, err := Init("invalid-client", cfg)
	assert.Error(t, err)
}

func TestShutdownGracefullyIsIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.ClusterAddress = config.Endpoint{Host: "cluster.local", Port: 8831}
	cfg.Database = "test_db"
	cfg.GcPeriodSeconds = 0

	c, err := Init("idempotent-client", cfg)
	require.NoError(t, err)

	c.ShutdownGracefully("idempotent-client")
	c.ShutdownGracefully("idempotent-client")

	_, ok := Lookup("idempotent-client")
	assert.False(t, ok)
}
