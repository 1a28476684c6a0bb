package router

import (
	"context"

	"github.com/mrrtree/ceresdb-client-go/model"
)

// TableRouter is the interface dispatch depends on; Resolver (Direct mode)
// and ProxyResolver (Proxy mode) both implement it.
type TableRouter interface {
	RouteFor(ctx context.Context, tables []string) (map[string]Snapshot, error)
	ClearBy(tables ...string)
	Clear()
}

// ProxyResolver is the degenerate resolver for Proxy mode: every table maps
// to the single configured endpoint, with no cache and no per-table RPC.
type ProxyResolver struct {
	endpoint model.Endpoint
}

func NewProxyResolver(endpoint model.Endpoint) *ProxyResolver {
	return &ProxyResolver{endpoint: endpoint}
}

func (p *ProxyResolver) RouteFor(_ context.Context, tables []string) (map[string]Snapshot, error) {
	now := nowMs()
	out := make(map[string]Snapshot, len(tables))
	for _, t := range tables {
		out[t] = NewRoute(t, p.endpoint, now).Snapshot()
	}
	return out, nil
}

func (p *ProxyResolver) ClearBy(...string) {}

func (p *ProxyResolver) Clear() {}

var _ TableRouter = (*Resolver)(nil)
var _ TableRouter = (*ProxyResolver)(nil)
