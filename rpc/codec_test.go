package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJsonCodecRoundTrips(t *testing.T) {
	c := jsonCodec{}
	req := &RouteRequest{Database: "db", Tables: []string{"t1", "t2"}}

	data, err := c.Marshal(req)
	require.NoError(t, err)

	out := &RouteRequest{}
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, req.Database, out.Database)
	assert.Equal(t, req.Tables, out.Tables)
}

func TestJsonCodecName(t *testing.T) {
	assert.Equal(t, "json", jsonCodec{}.Name())
}
