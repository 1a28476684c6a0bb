package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestUnmarshalYAMLAppliesDefaults(t *testing.T) {
	var c Config
	err := yaml.Unmarshal([]byte(`
cluster_address:
  host: 127.0.0.1
  port: 8831
database: test_db
`), &c)
	require.NoError(t, err)

	assert.Equal(t, 1, c.WriteMaxRetries)
	assert.Equal(t, 1, c.ReadMaxRetries)
	assert.Equal(t, 10_000, c.MaxCachedSize)
	assert.Equal(t, 60, c.GcPeriodSeconds)
	assert.Equal(t, LimitKindVegas, c.RpcOptions.LimitKind)
	assert.True(t, c.RpcOptions.BlockOnLimit)
}

func TestUnmarshalYAMLOverridesDefaults(t *testing.T) {
	var c Config
	err := yaml.Unmarshal([]byte(`
cluster_address:
  host: 127.0.0.1
  port: 8831
database: test_db
write_max_retries: 5
rpc_options:
  limit_kind: gradient
  block_on_limit: false
`), &c)
	require.NoError(t, err)

	assert.Equal(t, 5, c.WriteMaxRetries)
	assert.Equal(t, LimitKindGradient, c.RpcOptions.LimitKind)
	assert.False(t, c.RpcOptions.BlockOnLimit)
}

func TestValidateRejectsMissingDatabase(t *testing.T) {
	c := Default()
	c.ClusterAddress = Endpoint{Host: "127.0.0.1", Port: 8831}
	err := c.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsDirectModeWithoutClusterAddress(t *testing.T) {
	c := Default()
	c.Database = "test_db"
	err := c.Validate()
	assert.Error(t, err)
}

func TestValidateAllowsProxyModeWithoutClusterAddress(t *testing.T) {
	c := Default()
	c.Database = "test_db"
	c.RouteMode = RouteModeProxy
	err := c.Validate()
	assert.NoError(t, err)
}
