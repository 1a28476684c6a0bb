package dispatch

import (
	"context"
	"testing"

	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/router"
	"github.com/mrrtree/ceresdb-client-go/rpc"
	"github.com/mrrtree/ceresdb-client-go/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	hostA = model.NewEndpoint("10.0.0.1", 8831)
	hostB = model.NewEndpoint("10.0.0.2", 8831)
)

func newTestRouter(fake *rpctest.Fake, routes map[string]model.Endpoint) *router.Resolver {
	cache := router.NewCache(100)
	now := int64(1)
	for table, ep := range routes {
		cache.Put(router.NewRoute(table, ep, now))
	}
	return router.NewResolver(fake, cache, hostA, "test_db", model.Tenant{})
}

func TestWriteHappyPathAggregatesAcrossEndpoints(t *testing.T) {
	fake := rpctest.New()
	fake.OnUnary("/ceresdb.WriteService/Write", func(endpoint model.Endpoint, method string, req any) (any, error) {
		wr := req.(*rpc.WriteRequest)
		return &rpc.WriteResponse{Success: uint64(len(wr.Points))}, nil
	})

	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA, "t2": hostB})
	d := NewWriteDispatcher(fake, tr, "test_db", 1, false)

	req := model.WriteRequest{Points: []model.Point{
		{Table: "t1", TimestampMs: 1, Tags: map[string]model.Value{}, Fields: map[string]model.Value{}},
		{Table: "t2", TimestampMs: 2, Tags: map[string]model.Value{}, Fields: map[string]model.Value{}},
	}}

	result := d.Write(context.Background(), model.RequestContext{Database: "test_db"}, req)
	require.True(t, result.IsOk())
	ok, _ := result.Unwrap()
	assert.Equal(t, uint64(2), ok.Success)
}

func TestWriteRetriesInvalidRouteThenSucceeds(t *testing.T) {
	fake := rpctest.New()
	attempt := 0
	fake.OnUnary("/ceresdb.WriteService/Write", func(endpoint model.Endpoint, method string, req any) (any, error) {
		attempt++
		if attempt == 1 {
			return &rpc.WriteResponse{Header: rpc.Header{Code: 1 /* CodeInvalidRoute */}}, nil
		}
		wr := req.(*rpc.WriteRequest)
		return &rpc.WriteResponse{Success: uint64(len(wr.Points))}, nil
	})

	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA})
	d := NewWriteDispatcher(fake, tr, "test_db", 2, false)

	req := model.WriteRequest{Points: []model.Point{
		{Table: "t1", TimestampMs: 1, Tags: map[string]model.Value{}, Fields: map[string]model.Value{}},
	}}

	result := d.Write(context.Background(), model.RequestContext{Database: "test_db"}, req)
	require.True(t, result.IsOk())
	ok, _ := result.Unwrap()
	assert.Equal(t, uint64(1), ok.Success)
	assert.GreaterOrEqual(t, attempt, 2)
}

func TestWriteSurfacesNonRetriableWithFailedPoints(t *testing.T) {
	fake := rpctest.New()
	fake.OnUnary("/ceresdb.WriteService/Write", func(endpoint model.Endpoint, method string, req any) (any, error) {
		return &rpc.WriteResponse{Header: rpc.Header{Code: 5 /* CodeServerError */, Msg: "boom"}}, nil
	})

	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA})
	d := NewWriteDispatcher(fake, tr, "test_db", 1, false)

	req := model.WriteRequest{Points: []model.Point{
		{Table: "t1", TimestampMs: 1, Tags: map[string]model.Value{}, Fields: map[string]model.Value{}},
	}}

	result := d.Write(context.Background(), model.RequestContext{Database: "test_db"}, req)
	require.False(t, result.IsOk())
	_, err := result.Unwrap()
	require.NotNil(t, err)
	assert.Len(t, err.FailedPoints, 1)
}
