// Package limiter implements an adaptive concurrency limit: a Vegas-style
// or Gradient-style limit that grows/shrinks with observed round-trip time.
// StreamWriter consults it before every flush, and a denied acquisition
// surfaces there as a retry-eligible FLOW_CONTROL error. The unary write and
// query dispatchers do not consult it. A Limiter is not keyed by endpoint:
// every caller sharing one Limiter draws on the same limit.
//
// The inflight/limit bookkeeping uses an atomic load counter plus an
// adaptive limit, rather than a one-shot decaying penalty: the limit grows
// and shrinks continuously with observed latency instead of just tripping
// at a fixed threshold.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/mrrtree/ceresdb-client-go/config"
	"github.com/mrrtree/ceresdb-client-go/internal/counter"
)

// Sample is one completed RPC's outcome, fed back into the limiter after
// every call via Token.Release.
type Sample struct {
	RTT     time.Duration
	DidFail bool
}

// Token must be released exactly once after the guarded RPC completes.
type Token struct {
	l        *Limiter
	acquired time.Time
}

// Release returns the slot and feeds the observed RTT back into the
// adjustment strategy.
func (t *Token) Release(didFail bool) {
	t.l.release(Sample{RTT: time.Since(t.acquired), DidFail: didFail})
}

// Limiter gates concurrency across every caller that shares it. Acquire blocks (if
// BlockOnLimit) or fails fast otherwise, the two backpressure behaviors a
// caller such as StreamWriter's writeAndFlush chooses between.
type Limiter struct {
	mu sync.Mutex

	kind         config.LimitKind
	blockOnLimit bool

	limit   float64
	inflt   counter.Counter
	minRTT  time.Duration
	longRTT time.Duration // Gradient's exponentially-smoothed long window

	cond *sync.Cond
}

const (
	minLimit = 1
	maxLimit = 1000
	// smoothing factor for Gradient's long-window RTT EWMA.
	longWindowAlpha = 0.98
)

func New(cfg config.RpcOptions) *Limiter {
	l := &Limiter{
		kind:         cfg.LimitKind,
		blockOnLimit: cfg.BlockOnLimit,
		limit:        float64(cfg.InitialLimit),
	}
	if l.limit < minLimit {
		l.limit = minLimit
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire reserves a concurrency slot. It returns (nil, false) when the
// limit is exhausted and BlockOnLimit is false — the caller should surface
// FLOW_CONTROL in that case. A cancelled ctx unblocks a blocking Acquire
// with (nil, false).
func (l *Limiter) Acquire(ctx context.Context) (*Token, bool) {
	for {
		l.mu.Lock()
		if float64(l.inflt.Load()) < l.limit {
			l.inflt.Inc()
			l.mu.Unlock()
			return &Token{l: l, acquired: time.Now()}, true
		}
		if !l.blockOnLimit {
			l.mu.Unlock()
			return nil, false
		}
		l.mu.Unlock()

		done := make(chan struct{})
		go func() {
			l.mu.Lock()
			for float64(l.inflt.Load()) >= l.limit {
				l.cond.Wait()
			}
			l.mu.Unlock()
			close(done)
		}()
		select {
		case <-done:
			continue
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (l *Limiter) release(s Sample) {
	l.inflt.Dec()
	l.onSample(s)
	l.mu.Lock()
	l.cond.Broadcast()
	l.mu.Unlock()
}

// onSample adjusts the limit using the configured strategy.
func (l *Limiter) onSample(s Sample) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.DidFail {
		l.limit = clamp(l.limit * 0.9)
		return
	}

	switch l.kind {
	case config.LimitKindGradient:
		l.adjustGradient(s.RTT)
	default:
		l.adjustVegas(s.RTT)
	}
}

// adjustVegas mirrors the classic Vegas rule: compare the estimated queue
// size (inflight * (1 - minRTT/RTT)) against alpha/beta thresholds.
func (l *Limiter) adjustVegas(rtt time.Duration) {
	if l.minRTT == 0 || rtt < l.minRTT {
		l.minRTT = rtt
	}
	if l.minRTT <= 0 {
		return
	}
	inflight := float64(l.inflt.Load())
	queueSize := inflight * (1 - float64(l.minRTT)/float64(rtt))

	const alpha, beta = 2.0, 4.0
	switch {
	case queueSize < alpha:
		l.limit = clamp(l.limit + 1)
	case queueSize > beta:
		l.limit = clamp(l.limit - 1)
	}
}

// adjustGradient compares the short-window RTT (the just-observed sample)
// to a smoothed long-window RTT: ratio ~= 1 grows the limit, degradation
// shrinks it.
func (l *Limiter) adjustGradient(rtt time.Duration) {
	if l.longRTT == 0 {
		l.longRTT = rtt
		return
	}
	l.longRTT = time.Duration(longWindowAlpha*float64(l.longRTT) + (1-longWindowAlpha)*float64(rtt))
	if l.longRTT <= 0 {
		return
	}
	gradient := float64(l.longRTT) / float64(rtt)
	if gradient > 1 {
		gradient = 1
	}
	l.limit = clamp(l.limit*gradient + 1)
}

func clamp(v float64) float64 {
	if v < minLimit {
		return minLimit
	}
	if v > maxLimit {
		return maxLimit
	}
	return v
}

// CurrentLimit reports the current limit, for tests and metrics.
func (l *Limiter) CurrentLimit() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Inflight reports the number of currently-held tokens.
func (l *Limiter) Inflight() uint32 {
	return l.inflt.Load()
}
