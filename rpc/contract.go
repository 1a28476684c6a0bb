// Package rpc defines the RPC contract the core consumes from the transport
// collaborator: three primitives (unary, server-streaming, client-streaming)
// plus a connection health check, together with the wire
// message shapes that ride them. The concrete transport (GrpcInvoker) is one
// implementation of Invoker; dispatch/router/stream only ever depend on the
// Invoker interface, so tests substitute rpctest.Fake for it.
package rpc

import (
	"context"
	"time"

	"github.com/mrrtree/ceresdb-client-go/model"
)

// Invoker is the transport contract assigned to the out-of-scope
// RPC/serialization layer. The core never talks to a socket directly; it
// calls through this interface.
type Invoker interface {
	// Invoke performs a single unary RPC with a per-call timeout (zero or
	// negative adds no deadline beyond ctx's). reqCtx is carried as
	// outgoing RPC metadata (tenant tuple, database, request id).
	Invoke(ctx context.Context, endpoint model.Endpoint, method string, req, resp any, timeout time.Duration, reqCtx model.RequestContext) error

	// InvokeServerStreaming issues a server-streaming RPC; each decoded
	// response is pushed to the observer until the stream ends or errors.
	// reqCtx is carried as outgoing RPC metadata.
	InvokeServerStreaming(ctx context.Context, endpoint model.Endpoint, method string, req any, observer ServerStreamObserver, reqCtx model.RequestContext) error

	// InvokeClientStreaming opens a client-streaming session and returns a
	// sender the caller drives; observer receives the final response or a
	// terminal error; the sender/observer pair is a channel-like handoff
	// with an explicit error sentinel. reqCtx is carried as outgoing RPC
	// metadata for the whole session.
	InvokeClientStreaming(ctx context.Context, endpoint model.Endpoint, method string, observer ClientStreamObserver, reqCtx model.RequestContext) (RequestSender, error)

	// CheckConnection reports whether endpoint is currently reachable,
	// optionally dialing a new connection if one is not cached
	// (createIfAbsent).
	CheckConnection(ctx context.Context, endpoint model.Endpoint, createIfAbsent bool) bool
}

// ServerStreamObserver receives rows pushed by a server-streaming RPC.
type ServerStreamObserver interface {
	OnNext(resp any)
	OnError(err error)
	OnCompleted()
}

// ClientStreamObserver receives the final aggregated response (or a
// terminal error) of a client-streaming session.
type ClientStreamObserver interface {
	OnCompleted(resp any)
	OnError(err error)
}

// RequestSender is the half of a client-streaming session the caller drives:
// push requests with Send, signal readiness with Ready, half-close with
// CloseSend.
type RequestSender interface {
	// Send pushes one request message, returning any transport error. It
	// does not check readiness; callers consult Ready before sending.
	Send(req any) error
	// Ready reports the backpressure signal surfaced by the transport.
	Ready() bool
	CloseSend() error
}
