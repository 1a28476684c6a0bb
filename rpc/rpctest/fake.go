// Package rpctest provides an in-process fake rpc.Invoker for unit tests,
// implemented directly against the rpc.Invoker interface since this
// contract isn't HTTP.
package rpctest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/mrrtree/ceresdb-client-go/rpc"
)

// UnaryHandler answers a single unary call.
type UnaryHandler func(endpoint model.Endpoint, method string, req any) (resp any, err error)

// Fake is a scriptable rpc.Invoker: register handlers per method, and every
// call made through the interface is also recorded for assertions.
type Fake struct {
	mu         sync.Mutex
	handlers   map[string]UnaryHandler
	reachable  map[model.Endpoint]bool
	calls      []Call
	streamRows map[string][]any // method -> rows to push for server-streaming
}

type Call struct {
	Endpoint model.Endpoint
	Method   string
	Req      any
	ReqCtx   model.RequestContext
}

func New() *Fake {
	return &Fake{
		handlers:   make(map[string]UnaryHandler),
		reachable:  make(map[model.Endpoint]bool),
		streamRows: make(map[string][]any),
	}
}

func (f *Fake) OnUnary(method string, h UnaryHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

func (f *Fake) SetReachable(endpoint model.Endpoint, reachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable[endpoint] = reachable
}

func (f *Fake) OnServerStream(method string, rows []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamRows[method] = rows
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) Invoke(_ context.Context, endpoint model.Endpoint, method string, req, resp any, _ time.Duration, reqCtx model.RequestContext) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Endpoint: endpoint, Method: method, Req: req, ReqCtx: reqCtx})
	h, ok := f.handlers[method]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("rpctest: no handler registered for %q", method)
	}
	out, err := h(endpoint, method, req)
	if err != nil {
		return err
	}
	return copyInto(resp, out)
}

func (f *Fake) InvokeServerStreaming(_ context.Context, endpoint model.Endpoint, method string, req any, observer rpc.ServerStreamObserver, reqCtx model.RequestContext) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Endpoint: endpoint, Method: method, Req: req, ReqCtx: reqCtx})
	rows := f.streamRows[method]
	f.mu.Unlock()

	go func() {
		for _, r := range rows {
			observer.OnNext(r)
		}
		observer.OnCompleted()
	}()
	return nil
}

func (f *Fake) InvokeClientStreaming(_ context.Context, endpoint model.Endpoint, method string, observer rpc.ClientStreamObserver, reqCtx model.RequestContext) (rpc.RequestSender, error) {
	return &fakeSender{fake: f, endpoint: endpoint, method: method, observer: observer, reqCtx: reqCtx}, nil
}

func (f *Fake) CheckConnection(_ context.Context, endpoint model.Endpoint, createIfAbsent bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	reachable, ok := f.reachable[endpoint]
	if !ok {
		return createIfAbsent
	}
	return reachable
}

type fakeSender struct {
	fake     *Fake
	endpoint model.Endpoint
	method   string
	observer rpc.ClientStreamObserver
	reqCtx   model.RequestContext
	success  uint64
	failed   uint64
	mu       sync.Mutex
}

func (s *fakeSender) Send(req any) error {
	s.fake.mu.Lock()
	s.fake.calls = append(s.fake.calls, Call{Endpoint: s.endpoint, Method: s.method, Req: req, ReqCtx: s.reqCtx})
	s.fake.mu.Unlock()

	s.mu.Lock()
	s.success++
	s.mu.Unlock()
	return nil
}

func (s *fakeSender) Ready() bool { return true }

func (s *fakeSender) CloseSend() error {
	s.mu.Lock()
	resp := &rpc.WriteResponse{Success: s.success, Failed: s.failed}
	s.mu.Unlock()
	s.observer.OnCompleted(resp)
	return nil
}

// copyInto assigns *dst = src via a type assertion; resp/out are always
// pointers to the same wire type in this test harness.
func copyInto(dst, src any) error {
	switch d := dst.(type) {
	case *rpc.RouteResponse:
		*d = *(src.(*rpc.RouteResponse))
	case *rpc.WriteResponse:
		*d = *(src.(*rpc.WriteResponse))
	case *rpc.SqlQueryResponse:
		*d = *(src.(*rpc.SqlQueryResponse))
	default:
		return fmt.Errorf("rpctest: unsupported response type %T", dst)
	}
	return nil
}
