// Package router implements the routing cache and resolver: a
// concurrent table→Route map with miss-population from the cluster
// address, periodic size-bounded GC by least-recently-hit, and
// error-triggered invalidation.
package router

import (
	"sync/atomic"
	"time"

	"github.com/mrrtree/ceresdb-client-go/model"
)

// Route maps one table to the endpoint currently believed to own it, with a
// monotonic recency stamp used for GC ordering.
type Route struct {
	Table    string
	Endpoint model.Endpoint

	// lastHitMs is updated via a weak compare-and-swap: a single CAS
	// attempt per read, dropped on contention. GC only needs
	// approximate recency ordering, so the drop is harmless.
	lastHitMs atomic.Int64
}

func NewRoute(table string, endpoint model.Endpoint, nowMs int64) *Route {
	r := &Route{Table: table, Endpoint: endpoint}
	r.lastHitMs.Store(nowMs)
	return r
}

// LastHit returns the route's recency stamp.
func (r *Route) LastHit() int64 { return r.lastHitMs.Load() }

// touch performs a weak lastHit update: a
// single CAS attempt with the current tick; dropped silently on contention.
func (r *Route) touch(nowMs int64) {
	old := r.lastHitMs.Load()
	if nowMs <= old {
		return
	}
	r.lastHitMs.CompareAndSwap(old, nowMs)
}

// Snapshot is an immutable copy-on-read view of a Route, safe to hand to
// callers without exposing the live, mutable *Route: Route instances inside
// the cache are shared by readers via snapshot semantics.
type Snapshot struct {
	Table    string
	Endpoint model.Endpoint
	LastHit  int64
}

// Snapshot copies the route's current state.
func (r *Route) Snapshot() Snapshot {
	return Snapshot{Table: r.Table, Endpoint: r.Endpoint, LastHit: r.lastHitMs.Load()}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
