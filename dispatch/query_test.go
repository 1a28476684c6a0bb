package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/rpc"
	"github.com/mrrtree/ceresdb-client-go/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanTablesExtractsFromAndJoin(t *testing.T) {
	tables := scanTables("SELECT a.x FROM machine_table a JOIN sensor_table b ON a.id = b.id")
	assert.Equal(t, []string{"machine_table", "sensor_table"}, tables)
}

func TestQueryRejectsCrossEndpointTablesWithoutRpc(t *testing.T) {
	fake := rpctest.New()
	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA, "t2": hostB})
	d := NewQueryDispatcher(fake, tr, "test_db", 1)

	result := d.Query(context.Background(), model.RequestContext{Database: "test_db"}, model.SqlQueryRequest{SQL: "select * from t1, t2", ForTables: []string{"t1", "t2"}})
	require.False(t, result.IsOk())
	_, err := result.Unwrap()
	require.NotNil(t, err)
	assert.Empty(t, fake.Calls())
}

func TestQueryUnaryHappyPath(t *testing.T) {
	fake := rpctest.New()
	fake.OnUnary(queryMethod, func(endpoint model.Endpoint, method string, req any) (any, error) {
		return &rpc.SqlQueryResponse{Rows: []rpc.WireRow{
			{Columns: []rpc.WireColumn{{Name: "x", Value: rpc.EncodeValue(model.Int64Value(42))}}},
		}}, nil
	})

	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA})
	d := NewQueryDispatcher(fake, tr, "test_db", 1)

	result := d.Query(context.Background(), model.RequestContext{Database: "test_db"}, model.SqlQueryRequest{SQL: "select x from t1", ForTables: []string{"t1"}})
	require.True(t, result.IsOk())
	ok, _ := result.Unwrap()
	require.Len(t, ok.Rows, 1)
	v, found := ok.Rows[0].Get("x")
	require.True(t, found)
	n, _ := v.AsInt64()
	assert.Equal(t, int64(42), n)
}

func TestBlockingStreamSqlQueryIteratesRows(t *testing.T) {
	fake := rpctest.New()
	fake.OnServerStream(streamQueryMethod, []any{
		&rpc.SqlQueryResponse{Rows: []rpc.WireRow{{Columns: []rpc.WireColumn{{Name: "x", Value: rpc.EncodeValue(model.Int64Value(1))}}}}},
		&rpc.SqlQueryResponse{Rows: []rpc.WireRow{{Columns: []rpc.WireColumn{{Name: "x", Value: rpc.EncodeValue(model.Int64Value(2))}}}}},
	})

	tr := newTestRouter(fake, map[string]model.Endpoint{"t1": hostA})
	d := NewQueryDispatcher(fake, tr, "test_db", 1)

	it, err := d.BlockingStreamSqlQuery(context.Background(), model.RequestContext{Database: "test_db"}, model.SqlQueryRequest{SQL: "select x from t1", ForTables: []string{"t1"}}, time.Second)
	require.NoError(t, err)

	var got []int64
	for {
		hasNext, err := it.HasNext(context.Background())
		require.NoError(t, err)
		if !hasNext {
			break
		}
		v, _ := it.Next().Get("x")
		n, _ := v.AsInt64()
		got = append(got, n)
	}
	assert.Equal(t, []int64{1, 2}, got)
}
