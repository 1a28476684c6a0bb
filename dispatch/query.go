package dispatch

import (
	"context"
	"time"

	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/metrics"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/router"
	"github.com/mrrtree/ceresdb-client-go/rpc"
)

const (
	queryMethod       = "/ceresdb.QueryService/Query"
	streamQueryMethod = "/ceresdb.QueryService/StreamQuery"
)

// QueryDispatcher mirrors WriteDispatcher's
// route-then-invoke-then-retry shape, but every query must resolve to a
// single endpoint: tables spanning more than one endpoint are rejected
// locally, before any RPC is sent.
type QueryDispatcher struct {
	invoker        rpc.Invoker
	router         router.TableRouter
	database       string
	readMaxRetries int
}

func NewQueryDispatcher(invoker rpc.Invoker, tr router.TableRouter, database string, readMaxRetries int) *QueryDispatcher {
	return &QueryDispatcher{invoker: invoker, router: tr, database: database, readMaxRetries: readMaxRetries}
}

// resolveSingleEndpoint determines req's table list (explicit if given,
// scanned from the SQL otherwise) and confirms they all resolve to the same
// endpoint.
func (d *QueryDispatcher) resolveSingleEndpoint(ctx context.Context, req model.SqlQueryRequest) (model.Endpoint, []string, error) {
	tables := req.ForTables
	if len(tables) == 0 {
		tables = scanTables(req.SQL)
	}
	if len(tables) == 0 {
		return model.Endpoint{}, nil, cerrors.QueryException("no tables could be determined for query")
	}

	routes, err := d.router.RouteFor(ctx, tables)
	if err != nil {
		return model.Endpoint{}, nil, asErr(err)
	}

	var endpoint model.Endpoint
	for _, t := range tables {
		ep := routes[t].Endpoint
		if endpoint.IsZero() {
			endpoint = ep
			continue
		}
		if endpoint != ep {
			return model.Endpoint{}, nil, cerrors.QueryException("tables of sql query do not belong to the same server")
		}
	}
	return endpoint, tables, nil
}

// Query runs req as a unary SQL query, retrying retriable failures up to
// readMaxRetries times.
func (d *QueryDispatcher) Query(ctx context.Context, reqCtx model.RequestContext, req model.SqlQueryRequest) cerrors.Result[model.SqlQueryOk] {
	endpoint, tables, err := d.resolveSingleEndpoint(ctx, req)
	if err != nil {
		return cerrors.Failed[model.SqlQueryOk](asErr(err))
	}

	backoff := retryBackoff()
	for attempt := 0; ; attempt++ {
		timer := metrics.EndpointQueryDuration.WithLabelValues(endpoint.String())
		stop := startTimer(timer)

		wireReq := &rpc.SqlQueryRequest{Database: d.database, Tables: tables, SQL: req.SQL}
		resp := &rpc.SqlQueryResponse{}
		invokeErr := d.invoker.Invoke(ctx, endpoint, queryMethod, wireReq, resp, 0, reqCtx)
		stop()

		if invokeErr != nil {
			if attempt >= d.readMaxRetries {
				return cerrors.Failed[model.SqlQueryOk](cerrors.Wrap(cerrors.CodeUnavailable, "query rpc failed", endpoint, invokeErr))
			}
			metrics.RetriesByCode.WithLabelValues(cerrors.CodeUnavailable.String()).Inc()
			time.Sleep(backoff.NextBackOff())
			continue
		}

		if resp.Header.OK() {
			rows := make([]model.Row, len(resp.Rows))
			for i, r := range resp.Rows {
				rows[i] = rpc.DecodeRow(r)
			}
			return cerrors.Ok(model.SqlQueryOk{RowCount: uint64(len(rows)), Rows: rows})
		}

		code := resp.Header.Code
		if code.Retriable() && attempt < d.readMaxRetries {
			metrics.RetriesByCode.WithLabelValues(code.String()).Inc()
			d.router.ClearBy(tables...)
			time.Sleep(backoff.NextBackOff())
			continue
		}
		return cerrors.Failed[model.SqlQueryOk](&cerrors.Err{Code: code, Message: resp.Header.Msg, Endpoint: endpoint})
	}
}

// RowIterator is the pull iterator blockingStreamSqlQuery returns:
// HasNext blocks up to the iterator's configured timeout for the next
// row or end-of-stream; a stream-level error surfaces on the next call.
type RowIterator struct {
	rows    chan model.Row
	errc    chan error
	timeout time.Duration
	err     error
	next    model.Row
	done    bool
}

func (it *RowIterator) HasNext(ctx context.Context) (bool, error) {
	if it.err != nil {
		return false, it.err
	}
	if it.done {
		return false, nil
	}

	timer := time.NewTimer(it.timeout)
	defer timer.Stop()

	select {
	case row, ok := <-it.rows:
		if !ok {
			it.done = true
			select {
			case err := <-it.errc:
				it.err = err
				return false, err
			default:
				return false, nil
			}
		}
		it.next = row
		return true, nil
	case err := <-it.errc:
		it.err = err
		it.done = true
		return false, err
	case <-timer.C:
		return false, cerrors.New(cerrors.CodeShouldRetry, "timed out waiting for next row", model.Endpoint{})
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (it *RowIterator) Next() model.Row { return it.next }

type streamObserver struct {
	rows chan model.Row
	errc chan error
}

func (o *streamObserver) OnNext(resp any) {
	r := resp.(*rpc.SqlQueryResponse)
	for _, wr := range r.Rows {
		o.rows <- rpc.DecodeRow(wr)
	}
}

func (o *streamObserver) OnError(err error) {
	o.errc <- err
	close(o.rows)
}

func (o *streamObserver) OnCompleted() {
	close(o.rows)
}

// BlockingStreamSqlQuery opens a server-streaming query and returns a pull
// iterator backed by a bounded queue fed by RPC stream callbacks.
func (d *QueryDispatcher) BlockingStreamSqlQuery(ctx context.Context, reqCtx model.RequestContext, req model.SqlQueryRequest, timeout time.Duration) (*RowIterator, error) {
	endpoint, tables, err := d.resolveSingleEndpoint(ctx, req)
	if err != nil {
		return nil, asErr(err)
	}

	wireReq := &rpc.SqlQueryRequest{Database: d.database, Tables: tables, SQL: req.SQL}
	obs := &streamObserver{rows: make(chan model.Row, 256), errc: make(chan error, 1)}

	if err := d.invoker.InvokeServerStreaming(ctx, endpoint, streamQueryMethod, wireReq, obs, reqCtx); err != nil {
		return nil, cerrors.Wrap(cerrors.CodeUnavailable, "stream query rpc failed", endpoint, err)
	}

	return &RowIterator{rows: obs.rows, errc: obs.errc, timeout: timeout}, nil
}
