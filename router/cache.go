package router

import (
	"sort"
	"sync"
	"time"

	"github.com/mrrtree/ceresdb-client-go/log"
	"github.com/mrrtree/ceresdb-client-go/metrics"
)

// consecutiveGCBound caps the number of back-to-back GC passes within a
// single scheduled tick; a bounded loop count prevents starvation under a
// pathological flood.
const consecutiveGCBound = 3

// cleanHigh is the fraction of maxSize the cache is allowed to sit at
// before GC stops reaping.
const cleanHigh = 0.75

// reapFraction is the share of entries removed per GC round.
const reapFraction = 0.10

// Cache is the concurrent table→Route map, guarded by a single RWMutex:
// reads take the shared read lock and inserts/removes take the exclusive
// lock. Reads are not wait-free and the lock is not striped.
type Cache struct {
	mu      sync.RWMutex
	routes  map[string]*Route
	maxSize int
}

func NewCache(maxSize int) *Cache {
	return &Cache{
		routes:  make(map[string]*Route),
		maxSize: maxSize,
	}
}

// Get returns the cached route for table, touching its lastHit stamp, or
// (Snapshot{}, false) on a miss.
func (c *Cache) Get(table string) (Snapshot, bool) {
	c.mu.RLock()
	r, ok := c.routes[table]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	r.touch(nowMs())
	return r.Snapshot(), true
}

// Put inserts or overwrites the route for table.
func (c *Cache) Put(r *Route) {
	c.mu.Lock()
	c.routes[r.Table] = r
	c.mu.Unlock()
}

// PutAll merges multiple routes in, last-writer-wins.
func (c *Cache) PutAll(rs []*Route) {
	c.mu.Lock()
	for _, r := range rs {
		c.routes[r.Table] = r
	}
	c.mu.Unlock()
}

// Remove drops the cached route for tables, used by ClearBy on INVALID_ROUTE.
func (c *Cache) Remove(tables ...string) {
	c.mu.Lock()
	for _, t := range tables {
		delete(c.routes, t)
	}
	c.mu.Unlock()
}

// Clear drops every cached route, used on shutdown/reset.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.routes = make(map[string]*Route)
	c.mu.Unlock()
}

// Size returns the current number of cached routes.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.routes)
}

// DistinctEndpoints returns the set of endpoints currently backing any
// cached route, used by the resolver's round-robin fallback.
func (c *Cache) DistinctEndpoints() []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{}, len(c.routes))
	out := make([]Snapshot, 0, len(c.routes))
	for _, r := range c.routes {
		key := r.Endpoint.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r.Snapshot())
	}
	return out
}

// GC enforces the size bound: while size >= maxSize*cleanHigh and the
// consecutive-round count hasn't hit its bound, evict the k
// least-recently-hit entries. GC is a
// contraction: it returns once size has dropped below the threshold, the
// round bound is reached, or a round would evict no entry (k rounds down to
// 0 when fewer than 10 entries remain).
func (c *Cache) GC() {
	timer := time.Now()
	rounds := 0
	for rounds < consecutiveGCBound {
		c.mu.RLock()
		n := len(c.routes)
		c.mu.RUnlock()

		if float64(n) < float64(c.maxSize)*cleanHigh {
			break
		}

		k := int(float64(n) * reapFraction)
		if k == 0 {
			break
		}
		evicted := c.reapOldest(k)
		metrics.RouteForTablesGcTimes.Inc()
		metrics.RouteForTablesGcItems.Observe(float64(evicted))
		log.Debugf("router: gc round evicted %d routes (size was %d, max %d)", evicted, n, c.maxSize)
		rounds++
	}
	metrics.RouteForTablesGcTimer.Observe(time.Since(timer).Seconds())
}

// reapOldest removes the k entries with the smallest lastHit, returning how
// many were actually removed (can be fewer than k if the cache shrank
// concurrently).
func (c *Cache) reapOldest(k int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	type entry struct {
		table   string
		lastHit int64
	}
	entries := make([]entry, 0, len(c.routes))
	for t, r := range c.routes {
		entries = append(entries, entry{table: t, lastHit: r.LastHit()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].lastHit < entries[j].lastHit })

	if k > len(entries) {
		k = len(entries)
	}
	for i := 0; i < k; i++ {
		delete(c.routes, entries[i].table)
	}
	return k
}

// RunGC starts the scheduled GC loop; it stops when done is closed.
func (c *Cache) RunGC(period time.Duration, done <-chan struct{}) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.GC()
		}
	}
}
