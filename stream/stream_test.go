package stream

import (
	"context"
	"testing"

	"github.com/mrrtree/ceresdb-client-go/config"
	"github.com/mrrtree/ceresdb-client-go/limiter"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter() *limiter.Limiter {
	return limiter.New(config.RpcOptions{BlockOnLimit: true, InitialLimit: 10})
}

func TestWriteAndFlushThenCompletedAggregates(t *testing.T) {
	fake := rpctest.New()
	endpoint := model.NewEndpoint("10.0.0.1", 8831)

	w, err := Open(context.Background(), fake, endpoint, "test_db", newTestLimiter(), model.RequestContext{Database: "test_db"})
	require.NoError(t, err)

	err = w.WriteAndFlush(context.Background(), []model.Point{
		{Table: "t1", TimestampMs: 1, Tags: map[string]model.Value{}, Fields: map[string]model.Value{}},
	})
	require.NoError(t, err)

	result := w.Completed(context.Background())
	require.True(t, result.IsOk())
	ok, _ := result.Unwrap()
	assert.Equal(t, uint64(1), ok.Success)
	assert.True(t, w.IsClosed())
}

func TestWriteAfterCompletedPanics(t *testing.T) {
	fake := rpctest.New()
	endpoint := model.NewEndpoint("10.0.0.1", 8831)

	w, err := Open(context.Background(), fake, endpoint, "test_db", newTestLimiter(), model.RequestContext{Database: "test_db"})
	require.NoError(t, err)

	w.Completed(context.Background())

	assert.Panics(t, func() {
		_ = w.Write([]model.Point{{Table: "t1", Tags: map[string]model.Value{}, Fields: map[string]model.Value{}}})
	})
}

func TestWriteBuffersWithoutSendingUntilFlush(t *testing.T) {
	fake := rpctest.New()
	endpoint := model.NewEndpoint("10.0.0.1", 8831)

	w, err := Open(context.Background(), fake, endpoint, "test_db", newTestLimiter(), model.RequestContext{Database: "test_db"})
	require.NoError(t, err)

	err = w.Write([]model.Point{{Table: "t1", Tags: map[string]model.Value{}, Fields: map[string]model.Value{}}})
	require.NoError(t, err)
	assert.Empty(t, fake.Calls())

	err = w.Flush(context.Background())
	require.NoError(t, err)
	assert.Len(t, fake.Calls(), 1)
}
