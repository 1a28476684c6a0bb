package router

import (
	"strconv"
	"testing"

	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetMissThenPutThenHit(t *testing.T) {
	c := NewCache(100)
	_, ok := c.Get("machine_table")
	assert.False(t, ok)

	c.Put(NewRoute("machine_table", model.NewEndpoint("10.0.0.1", 8831), 1000))
	snap, ok := c.Get("machine_table")
	require.True(t, ok)
	assert.Equal(t, "machine_table", snap.Table)
	assert.Equal(t, model.NewEndpoint("10.0.0.1", 8831), snap.Endpoint)
}

func TestCacheRemoveAndClear(t *testing.T) {
	c := NewCache(100)
	c.Put(NewRoute("t1", model.NewEndpoint("h1", 1), 1))
	c.Put(NewRoute("t2", model.NewEndpoint("h2", 2), 1))

	c.Remove("t1")
	_, ok := c.Get("t1")
	assert.False(t, ok)
	_, ok = c.Get("t2")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestGCUnderPressureRetainsMostRecentlyHit(t *testing.T) {
	c := NewCache(100)
	for i := 0; i < 200; i++ {
		table := tableName(i)
		c.Put(NewRoute(table, model.NewEndpoint("h", uint16(i)), int64(i)))
	}
	require.Equal(t, 200, c.Size())

	c.GC()

	// A single GC call runs at most consecutiveGCBound reap rounds, each
	// removing reapFraction of what's left; from 200 entries that bottoms
	// out at 146, above the 0.75*max threshold GC targets. Calling GC
	// repeatedly (as the periodic scheduler does) must still converge
	// below it.
	for i := 0; i < consecutiveGCBound*4 && float64(c.Size()) >= float64(c.maxSize)*cleanHigh; i++ {
		c.GC()
	}
	assert.Less(t, c.Size(), 75, "repeated gc must shrink below 0.75*max")

	// the most-recently-hit routes (highest index) should have survived.
	_, ok := c.Get(tableName(199))
	assert.True(t, ok, "most recently hit route should survive GC")
	_, ok = c.Get(tableName(0))
	assert.False(t, ok, "least recently hit route should have been evicted")
}

func TestGCIsANoOpBelowThreshold(t *testing.T) {
	c := NewCache(100)
	c.Put(NewRoute("t1", model.NewEndpoint("h1", 1), 1))
	c.GC()
	assert.Equal(t, 1, c.Size())
}

func TestDistinctEndpoints(t *testing.T) {
	c := NewCache(100)
	c.Put(NewRoute("t1", model.NewEndpoint("h1", 1), 1))
	c.Put(NewRoute("t2", model.NewEndpoint("h1", 1), 1))
	c.Put(NewRoute("t3", model.NewEndpoint("h2", 2), 1))

	eps := c.DistinctEndpoints()
	assert.Len(t, eps, 2)
}

func tableName(i int) string {
	return "table_" + strconv.Itoa(i)
}
