// Package ceresdb is the client library's entry point: it wires together the
// router, limiter, rpc and dispatch/stream packages behind a single Client,
// a single in-process client instance rather than an HTTP server process.
package ceresdb

import (
	"context"
	"fmt"
	"sync"

	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/config"
	"github.com/mrrtree/ceresdb-client-go/dispatch"
	"github.com/mrrtree/ceresdb-client-go/limiter"
	"github.com/mrrtree/ceresdb-client-go/log"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/router"
	"github.com/mrrtree/ceresdb-client-go/rpc"
	"github.com/mrrtree/ceresdb-client-go/stream"
)

// Client is the single entry point into the library: one RouterCache, one
// RpcClient (Invoker), and the write/query dispatchers built on top of them.
type Client struct {
	cfg      config.Config
	invoker  rpc.Invoker
	tblRoute router.TableRouter
	cache    *router.Cache
	limiter  *limiter.Limiter
	writer   *dispatch.WriteDispatcher
	reader   *dispatch.QueryDispatcher

	shutdownOnce sync.Once
	gcDone       chan struct{}
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Client{}
)

// Init constructs a Client from cfg and registers it process-wide under id.
// Init is idempotent-by-refusal: a second call with an id already in the
// registry fails.
func Init(id string, cfg config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ceresdb: invalid config: %w", err)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[id]; exists {
		cerrors.Panic("client %q already initialized", id)
	}

	invoker := rpc.NewGrpcInvoker()
	cache := router.NewCache(cfg.MaxCachedSize)

	clusterAddr := model.NewEndpoint(cfg.ClusterAddress.Host, cfg.ClusterAddress.Port)

	tenant := model.Tenant{Tenant: cfg.Tenant.Tenant, SubTenant: cfg.Tenant.SubTenant, Token: cfg.Tenant.Token}

	var tblRoute router.TableRouter
	switch cfg.RouteMode {
	case config.RouteModeProxy:
		tblRoute = router.NewProxyResolver(clusterAddr)
	default:
		tblRoute = router.NewResolver(invoker, cache, clusterAddr, cfg.Database, tenant)
	}

	lim := limiter.New(cfg.RpcOptions)

	c := &Client{
		cfg:      cfg,
		invoker:  invoker,
		tblRoute: tblRoute,
		cache:    cache,
		limiter:  lim,
		writer:   dispatch.NewWriteDispatcher(invoker, tblRoute, cfg.Database, cfg.WriteMaxRetries, cfg.CollectWroteDetail),
		reader:   dispatch.NewQueryDispatcher(invoker, tblRoute, cfg.Database, cfg.ReadMaxRetries),
		gcDone:   make(chan struct{}),
	}

	if cfg.RouteMode == config.RouteModeDirect && cfg.GcPeriodSeconds > 0 {
		period := secondsToDuration(cfg.GcPeriodSeconds)
		go cache.RunGC(period, c.gcDone)
	}

	log.SetDebug(cfg.LogDebug)
	registry[id] = c
	log.Infof("ceresdb: client %q initialized (route_mode=%s, cluster=%s)", id, cfg.RouteMode, clusterAddr)
	return c, nil
}

// Lookup returns a previously Init'd client by id, for callers that obtain
// the instance indirectly via the process-wide instance registry.
func Lookup(id string) (*Client, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	c, ok := registry[id]
	return c, ok
}

// ShutdownGracefully cancels scheduled tasks, clears the cache, and
// deregisters the client. Idempotent: a second call is a no-op.
func (c *Client) ShutdownGracefully(id string) {
	c.shutdownOnce.Do(func() {
		close(c.gcDone)
		c.tblRoute.Clear()

		registryMu.Lock()
		delete(registry, id)
		registryMu.Unlock()

		log.Infof("ceresdb: client %q shut down", id)
	})
}

// Write dispatches req, returning the aggregated result.
func (c *Client) Write(ctx context.Context, req model.WriteRequest) cerrors.Result[model.WriteOk] {
	return c.writer.Write(ctx, c.newRequestContext(), req)
}

// Query runs a unary SQL query.
func (c *Client) Query(ctx context.Context, req model.SqlQueryRequest) cerrors.Result[model.SqlQueryOk] {
	return c.reader.Query(ctx, c.newRequestContext(), req)
}

// StreamSqlQuery opens a server-streaming query and returns a pull iterator.
func (c *Client) StreamSqlQuery(ctx context.Context, req model.SqlQueryRequest, timeoutMs int64) (*dispatch.RowIterator, error) {
	return c.reader.BlockingStreamSqlQuery(ctx, c.newRequestContext(), req, millisToDuration(timeoutMs))
}

// NewStreamWriter opens a client-streaming session against the endpoint
// currently resolved for table.
func (c *Client) NewStreamWriter(ctx context.Context, table string) (*stream.StreamWriter, error) {
	routes, err := c.tblRoute.RouteFor(ctx, []string{table})
	if err != nil {
		return nil, err
	}
	endpoint := routes[table].Endpoint
	return stream.Open(ctx, c.invoker, endpoint, c.cfg.Database, c.limiter, c.newRequestContext())
}

// newRequestContext builds the per-call RequestContext carried as outgoing
// RPC metadata: the configured tenant tuple and database, plus a fresh
// RequestID that stays fixed across that call's retry attempts.
func (c *Client) newRequestContext() model.RequestContext {
	return model.RequestContext{
		Database: c.cfg.Database,
		Tenant: model.Tenant{
			Tenant:    c.cfg.Tenant.Tenant,
			SubTenant: c.cfg.Tenant.SubTenant,
			Token:     c.cfg.Tenant.Token,
		},
		RequestID: model.NewRequestID(),
	}
}
