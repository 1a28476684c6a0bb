// Package stream implements StreamWriter: a client-streaming
// session that amortizes RPC overhead across many small writes with explicit
// flush control, backed by the adaptive concurrency limiter for
// backpressure.
package stream

import (
	"context"
	"sync"

	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/limiter"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/rpc"
)

const writeStreamMethod = "/ceresdb.WriteService/StreamWrite"

type state uint8

const (
	stateOpen state = iota
	stateHalfClosed
	stateClosed
)

// StreamWriter implements an Open -> HalfClosed -> Closed state
// machine. A single writer is driven from one goroutine at a time: the
// server observes writes in the order write/writeAndFlush were called on a
// single writer.
type StreamWriter struct {
	mu sync.Mutex

	sender   rpc.RequestSender
	limiter  *limiter.Limiter
	database string

	buffered []model.Point
	state    state

	done chan struct{}
	ok   model.WriteOk
	err  *cerrors.Err
}

// Open starts a client-streaming session against endpoint via invoker.
func Open(ctx context.Context, invoker rpc.Invoker, endpoint model.Endpoint, database string, lim *limiter.Limiter, reqCtx model.RequestContext) (*StreamWriter, error) {
	w := &StreamWriter{
		database: database,
		limiter:  lim,
		done:     make(chan struct{}),
	}

	sender, err := invoker.InvokeClientStreaming(ctx, endpoint, writeStreamMethod, observerFor(w), reqCtx)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.CodeUnavailable, "failed to open stream", endpoint, err)
	}
	w.sender = sender
	return w, nil
}

func observerFor(w *StreamWriter) rpc.ClientStreamObserver {
	return &streamObserver{w: w}
}

type streamObserver struct{ w *StreamWriter }

func (o *streamObserver) OnCompleted(resp any) {
	r := resp.(*rpc.WriteResponse)
	o.w.mu.Lock()
	o.w.state = stateClosed
	o.w.ok = model.WriteOk{Success: r.Success, Failed: r.Failed}
	o.w.mu.Unlock()
	close(o.w.done)
}

func (o *streamObserver) OnError(err error) {
	o.w.mu.Lock()
	o.w.state = stateClosed
	o.w.err = cerrors.Wrap(cerrors.CodeUnavailable, "stream aborted", model.Endpoint{}, err)
	o.w.mu.Unlock()
	close(o.w.done)
}

// Write buffers points without requesting a network flush.
func (w *StreamWriter) Write(points []model.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != stateOpen {
		cerrors.Panic("write called on stream in state %d, must be Open", w.state)
	}
	w.buffered = append(w.buffered, points...)
	return nil
}

// WriteAndFlush buffers points then flushes, applying backpressure: when
// the limiter denies an immediate slot, it either blocks
// the caller (BlockOnLimit) or fails fast with a FLOW_CONTROL error.
func (w *StreamWriter) WriteAndFlush(ctx context.Context, points []model.Point) error {
	w.mu.Lock()
	if w.state != stateOpen {
		w.mu.Unlock()
		cerrors.Panic("writeAndFlush called on stream in state %d, must be Open", w.state)
	}
	w.buffered = append(w.buffered, points...)
	w.mu.Unlock()

	return w.Flush(ctx)
}

// Flush sends buffered points (if any) over the wire without adding new
// ones.
func (w *StreamWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.state != stateOpen {
		w.mu.Unlock()
		cerrors.Panic("flush called on stream in state %d, must be Open", w.state)
	}
	pending := w.buffered
	w.buffered = nil
	sender := w.sender
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	tok, acquired := w.limiter.Acquire(ctx)
	if !acquired {
		return cerrors.New(cerrors.CodeFlowControl, "flow control limit exceeded, no capacity for flush", model.Endpoint{})
	}

	if !sender.Ready() {
		tok.Release(false)
		return cerrors.New(cerrors.CodeFlowControl, "stream not ready for write", model.Endpoint{})
	}

	req := &rpc.WriteRequest{Database: w.database, Points: rpc.EncodePoints(pending)}
	err := sender.Send(req)
	tok.Release(err != nil)
	if err != nil {
		return cerrors.Wrap(cerrors.CodeUnavailable, "stream send failed", model.Endpoint{}, err)
	}
	return nil
}

// Completed half-closes the stream (flushing anything still buffered first)
// and returns a Result that resolves once the server sends its final
// response, or an error if the stream aborted.
func (w *StreamWriter) Completed(ctx context.Context) cerrors.Result[model.WriteOk] {
	w.mu.Lock()
	open := w.state == stateOpen
	w.mu.Unlock()
	if open {
		if err := w.Flush(ctx); err != nil {
			if e, ok := err.(*cerrors.Err); ok {
				return cerrors.Failed[model.WriteOk](e)
			}
			return cerrors.Failed[model.WriteOk](cerrors.Wrap(cerrors.CodeInternal, "flush before completion failed", model.Endpoint{}, err))
		}
	}

	w.mu.Lock()
	if w.state == stateClosed {
		ok, err := w.ok, w.err
		w.mu.Unlock()
		if err != nil {
			return cerrors.Failed[model.WriteOk](err)
		}
		return cerrors.Ok(ok)
	}
	if w.state == stateHalfClosed {
		w.mu.Unlock()
		cerrors.Panic("completed called twice")
	}
	w.state = stateHalfClosed
	sender := w.sender
	w.mu.Unlock()

	if err := sender.CloseSend(); err != nil {
		return cerrors.Failed[model.WriteOk](cerrors.Wrap(cerrors.CodeUnavailable, "close send failed", model.Endpoint{}, err))
	}

	select {
	case <-w.done:
		w.mu.Lock()
		ok, err := w.ok, w.err
		w.mu.Unlock()
		if err != nil {
			return cerrors.Failed[model.WriteOk](err)
		}
		return cerrors.Ok(ok)
	case <-ctx.Done():
		return cerrors.Failed[model.WriteOk](cerrors.Wrap(cerrors.CodeUnavailable, "context cancelled awaiting stream completion", model.Endpoint{}, ctx.Err()))
	}
}

// IsClosed reports whether the stream has reached its terminal state.
func (w *StreamWriter) IsClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == stateClosed
}
