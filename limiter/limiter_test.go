package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/mrrtree/ceresdb-client-go/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireFailsFastWhenNotBlocking(t *testing.T) {
	l := New(config.RpcOptions{InitialLimit: 1, BlockOnLimit: false})

	tok1, ok := l.Acquire(context.Background())
	require.True(t, ok)

	_, ok = l.Acquire(context.Background())
	assert.False(t, ok, "second acquire should fail fast: limit exhausted")

	tok1.Release(false)

	tok2, ok := l.Acquire(context.Background())
	assert.True(t, ok, "slot should be free after release")
	tok2.Release(false)
}

func TestAcquireBlocksUntilReleaseThenUnblocks(t *testing.T) {
	l := New(config.RpcOptions{InitialLimit: 1, BlockOnLimit: true})

	tok1, ok := l.Acquire(context.Background())
	require.True(t, ok)

	unblocked := make(chan struct{})
	go func() {
		tok2, ok := l.Acquire(context.Background())
		if ok {
			tok2.Release(false)
		}
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("second acquire should not have completed before release")
	case <-time.After(50 * time.Millisecond):
	}

	tok1.Release(false)

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("second acquire should have unblocked after release")
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	l := New(config.RpcOptions{InitialLimit: 1, BlockOnLimit: true})
	_, ok := l.Acquire(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok = l.Acquire(ctx)
	assert.False(t, ok)
}

func TestFailureShrinksLimit(t *testing.T) {
	l := New(config.RpcOptions{InitialLimit: 10, BlockOnLimit: false})
	before := l.CurrentLimit()

	tok, ok := l.Acquire(context.Background())
	require.True(t, ok)
	tok.Release(true)

	assert.Less(t, l.CurrentLimit(), before)
}

func TestVegasGrowsLimitOnLowQueueSize(t *testing.T) {
	l := New(config.RpcOptions{InitialLimit: 5, LimitKind: config.LimitKindVegas})
	for i := 0; i < 5; i++ {
		tok, ok := l.Acquire(context.Background())
		require.True(t, ok)
		tok.Release(false)
	}
	assert.Greater(t, l.CurrentLimit(), 5.0)
}
