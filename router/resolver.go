package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/log"
	"github.com/mrrtree/ceresdb-client-go/metrics"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/rpc"
	"golang.org/x/sync/singleflight"
)

const routeRequestMethod = "/ceresdb.RouteService/Route"

// Resolver looks up routes for a set of tables, refreshing the Cache from
// the cluster address on miss, with fallback to cluster-address synthesis
// when the refresh RPC itself cannot be masked.
type Resolver struct {
	invoker        rpc.Invoker
	cache          *Cache
	clusterAddress model.Endpoint
	database       string
	tenant         model.Tenant

	// group coalesces duplicate in-flight refreshes for the same
	// missing-table set, an optional optimization grounded on
	// golang.org/x/sync/singleflight.
	group singleflight.Group
}

func NewResolver(invoker rpc.Invoker, cache *Cache, clusterAddress model.Endpoint, database string, tenant model.Tenant) *Resolver {
	return &Resolver{
		invoker:        invoker,
		cache:          cache,
		clusterAddress: clusterAddress,
		database:       database,
		tenant:         tenant,
	}
}

// RouteFor resolves tables to routes, reading cache hits, batching a single
// refresh RPC for the miss set, and synthesizing a cluster-address fallback
// route for anything still unresolved.
func (r *Resolver) RouteFor(ctx context.Context, tables []string) (map[string]Snapshot, error) {
	result := make(map[string]Snapshot, len(tables))
	var misses []string
	for _, t := range tables {
		if t == "" {
			return nil, cerrors.RouteTableException("empty table name")
		}
		if snap, ok := r.cache.Get(t); ok {
			result[t] = snap
			continue
		}
		misses = append(misses, t)
	}

	if len(misses) > 0 {
		refreshed, err := r.RouteRefreshFor(ctx, misses)
		if err != nil {
			log.Errorf("router: refresh for %v failed, falling back to cluster address: %v", misses, err)
		}
		for t, snap := range refreshed {
			result[t] = snap
		}
	}

	for _, t := range misses {
		if _, ok := result[t]; ok {
			continue
		}
		route := NewRoute(t, r.clusterAddress, nowMs())
		result[t] = route.Snapshot()
	}

	metrics.RouteForTablesCachedSize.Observe(float64(r.cache.Size()))
	return result, nil
}

// RouteRefreshFor unconditionally refreshes tables from the cluster,
// overwriting cache entries with the response. It does not synthesize a
// fallback route; that is RouteFor's job.
func (r *Resolver) RouteRefreshFor(ctx context.Context, tables []string) (map[string]Snapshot, error) {
	key := coalesceKey(tables)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.doRefresh(ctx, tables)
	})
	if err != nil {
		return nil, err
	}
	// nolint: forcetypeassert // doRefresh's only non-error return shape.
	return v.(map[string]Snapshot), nil
}

func (r *Resolver) doRefresh(ctx context.Context, tables []string) (map[string]Snapshot, error) {
	req := &rpc.RouteRequest{Database: r.database, Tables: tables}
	resp := &rpc.RouteResponse{}
	reqCtx := model.RequestContext{Database: r.database, Tenant: r.tenant, RequestID: model.NewRequestID()}

	err := r.invoker.Invoke(ctx, r.clusterAddress, routeRequestMethod, req, resp, 0, reqCtx)
	if err != nil {
		resp, err = r.refreshViaFallbackEndpoint(ctx, req, reqCtx)
		if err != nil {
			return nil, err
		}
	}

	routes := make([]*Route, 0, len(resp.Routes))
	result := make(map[string]Snapshot, len(resp.Routes))
	now := nowMs()
	for _, entry := range resp.Routes {
		ep := model.NewEndpoint(entry.Endpoint.IP, entry.Endpoint.Port)
		route := NewRoute(entry.Table, ep, now)
		routes = append(routes, route)
		result[entry.Table] = route.Snapshot()
	}
	r.cache.PutAll(routes)

	metrics.RouteForTablesRefreshedSize.Observe(float64(len(routes)))
	return result, nil
}

// refreshViaFallbackEndpoint retries the RouteRequest round-robin over the
// distinct endpoints currently in the cache when the cluster address is
// unreachable, since there is no per-endpoint load counter at this layer to
// support a least-loaded scan.
func (r *Resolver) refreshViaFallbackEndpoint(ctx context.Context, req *rpc.RouteRequest, reqCtx model.RequestContext) (*rpc.RouteResponse, error) {
	candidates := r.cache.DistinctEndpoints()
	for _, c := range candidates {
		if !r.invoker.CheckConnection(ctx, c.Endpoint, false) {
			continue
		}
		resp := &rpc.RouteResponse{}
		if err := r.invoker.Invoke(ctx, c.Endpoint, routeRequestMethod, req, resp, 0, reqCtx); err == nil {
			return resp, nil
		}
	}
	return nil, fmt.Errorf("router: cluster address %s unreachable and no fallback endpoint answered", r.clusterAddress)
}

// ClearBy invalidates tables, used by dispatchers on INVALID_ROUTE.
func (r *Resolver) ClearBy(tables ...string) {
	r.cache.Remove(tables...)
}

// Clear drops the entire cache, used on shutdown/reset.
func (r *Resolver) Clear() {
	r.cache.Clear()
}

func coalesceKey(tables []string) string {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
