// Package dispatch implements the write and query dispatchers: grouping
// requests by resolved route, fanning out per-endpoint
// RPCs in parallel, aggregating partial results, and retrying on a
// whitelisted set of retriable codes.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/log"
	"github.com/mrrtree/ceresdb-client-go/metrics"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/router"
	"github.com/mrrtree/ceresdb-client-go/rpc"
)

const writeMethod = "/ceresdb.WriteService/Write"

// WriteDispatcher fans out a write request to its resolved endpoints and
// aggregates the result, retrying failed subsets.
type WriteDispatcher struct {
	invoker            rpc.Invoker
	router             router.TableRouter
	database           string
	maxRetries         int
	collectWroteDetail bool
}

func NewWriteDispatcher(invoker rpc.Invoker, tr router.TableRouter, database string, maxRetries int, collectWroteDetail bool) *WriteDispatcher {
	return &WriteDispatcher{
		invoker:            invoker,
		router:             tr,
		database:           database,
		maxRetries:         maxRetries,
		collectWroteDetail: collectWroteDetail,
	}
}

// Write delivers every point in req to its resolved endpoint, aggregates the
// result, and retries INVALID_ROUTE/FLOW_CONTROL failures up to maxRetries
// times against the still-failed subset only.
func (d *WriteDispatcher) Write(ctx context.Context, reqCtx model.RequestContext, req model.WriteRequest) cerrors.Result[model.WriteOk] {
	if len(req.Points) == 0 {
		return cerrors.Ok(model.WriteOk{})
	}

	metrics.WriteBatchSize.Observe(float64(len(req.Points)))

	pending := req.Points
	total := model.WriteOk{}
	if d.collectWroteDetail {
		total.Tables = make(map[string]struct{})
	}
	backoff := retryBackoff()

	for attempt := 0; ; attempt++ {
		tables := distinctTables(pending)
		routes, err := d.router.RouteFor(ctx, tables)
		if err != nil {
			return cerrors.Failed[model.WriteOk](asErr(err))
		}

		byEndpoint := partitionByRoute(pending, routes)

		ok, failedSubset, invalidateTables, terminalErr := d.dispatchAll(ctx, reqCtx, byEndpoint)
		total = total.Combine(ok)

		if terminalErr != nil {
			total.Failed += uint64(len(failedSubset))
			terminalErr.FailedPoints = failedSubset
			return cerrors.Failed[model.WriteOk](terminalErr)
		}

		if len(failedSubset) == 0 {
			return cerrors.Ok(total)
		}

		if attempt >= d.maxRetries {
			total.Failed += uint64(len(failedSubset))
			return cerrors.Failed[model.WriteOk](&cerrors.Err{
				Code:         cerrors.CodeInvalidRoute,
				Message:      "write retries exhausted",
				FailedPoints: failedSubset,
			})
		}

		if len(invalidateTables) > 0 {
			d.router.ClearBy(invalidateTables...)
			log.Debugf("dispatch: retrying %d points after invalidating routes for %v (attempt %d)", len(failedSubset), invalidateTables, attempt+1)
		} else {
			log.Debugf("dispatch: retrying %d points (attempt %d)", len(failedSubset), attempt+1)
		}
		time.Sleep(backoff.NextBackOff())
		pending = failedSubset
	}
}

func partitionByRoute(points []model.Point, routes map[string]router.Snapshot) map[model.Endpoint][]model.Point {
	out := make(map[model.Endpoint][]model.Point)
	for _, p := range points {
		ep := routes[p.Table].Endpoint
		out[ep] = append(out[ep], p)
	}
	return out
}

// writeRetriable whitelists the response codes a failed write is allowed to
// retry: narrower than cerrors.Code.Retriable(), which also admits
// UNAVAILABLE/SHOULD_RETRY for other call kinds.
func writeRetriable(code cerrors.Code) bool {
	return code == cerrors.CodeInvalidRoute || code == cerrors.CodeFlowControl
}

// dispatchAll fans out one WriteRequest RPC per endpoint in parallel and
// merges the results.
func (d *WriteDispatcher) dispatchAll(ctx context.Context, reqCtx model.RequestContext, byEndpoint map[model.Endpoint][]model.Point) (ok model.WriteOk, failedSubset []model.Point, invalidateTables []string, terminalErr *cerrors.Err) {
	results := make(chan oneResult, len(byEndpoint))
	var wg sync.WaitGroup
	for endpoint, points := range byEndpoint {
		endpoint, points := endpoint, points
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- d.dispatchOne(ctx, reqCtx, endpoint, points)
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		ok = ok.Combine(r.ok)
		failedSubset = append(failedSubset, r.failedPoints...)
		invalidateTables = append(invalidateTables, r.invalidateTables...)
		if r.terminal != nil && terminalErr == nil {
			terminalErr = r.terminal
		}
	}
	return
}

type oneResult struct {
	ok               model.WriteOk
	failedPoints     []model.Point
	invalidateTables []string
	terminal         *cerrors.Err
}

func (d *WriteDispatcher) dispatchOne(ctx context.Context, reqCtx model.RequestContext, endpoint model.Endpoint, points []model.Point) oneResult {
	timer := metrics.EndpointWriteDuration.WithLabelValues(endpoint.String())
	stop := startTimer(timer)
	defer stop()

	wireReq := &rpc.WriteRequest{Database: d.database, Points: rpc.EncodePoints(points)}
	resp := &rpc.WriteResponse{}
	if err := d.invoker.Invoke(ctx, endpoint, writeMethod, wireReq, resp, 0, reqCtx); err != nil {
		return oneResult{
			failedPoints: points,
			terminal:     cerrors.Wrap(cerrors.CodeUnavailable, "write rpc failed", endpoint, err),
		}
	}

	if resp.Header.OK() {
		ok := model.WriteOk{Success: resp.Success, Failed: resp.Failed}
		if d.collectWroteDetail {
			ok.Tables = tableSet(points)
		}
		return oneResult{ok: ok}
	}

	code := resp.Header.Code
	if writeRetriable(code) {
		metrics.RetriesByCode.WithLabelValues(code.String()).Inc()
		result := oneResult{failedPoints: points}
		if code == cerrors.CodeInvalidRoute {
			result.invalidateTables = distinctTables(points)
		}
		return result
	}

	return oneResult{
		failedPoints: points,
		terminal:     &cerrors.Err{Code: code, Message: resp.Header.Msg, Endpoint: endpoint},
	}
}

func distinctTables(points []model.Point) []string {
	seen := make(map[string]struct{}, len(points))
	var out []string
	for _, p := range points {
		if _, ok := seen[p.Table]; ok {
			continue
		}
		seen[p.Table] = struct{}{}
		out = append(out, p.Table)
	}
	return out
}

func tableSet(points []model.Point) map[string]struct{} {
	out := make(map[string]struct{}, len(points))
	for _, p := range points {
		out[p.Table] = struct{}{}
	}
	return out
}

func asErr(err error) *cerrors.Err {
	if e, ok := err.(*cerrors.Err); ok {
		return e
	}
	return cerrors.Wrap(cerrors.CodeRouteTableException, "route resolution failed", model.Endpoint{}, err)
}
