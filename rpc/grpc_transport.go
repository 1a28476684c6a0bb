package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mrrtree/ceresdb-client-go/log"
	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GrpcInvoker is the concrete Invoker backing production clients: a pool of
// per-endpoint *grpc.ClientConn, each guarded by its own circuit breaker.
// A gobreaker.CircuitBreaker per endpoint opens after repeated UNAVAILABLE
// failures, in place of a manually decaying penalty counter.
type GrpcInvoker struct {
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[model.Endpoint]*endpointConn
}

type endpointConn struct {
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
}

func NewGrpcInvoker(dialOpts ...grpc.DialOption) *GrpcInvoker {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.UseCompressor(zstdCompressorName)),
		}
	}
	return &GrpcInvoker{
		dialOpts: dialOpts,
		conns:    make(map[model.Endpoint]*endpointConn),
	}
}

func (g *GrpcInvoker) connFor(endpoint model.Endpoint, createIfAbsent bool) (*endpointConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if ec, ok := g.conns[endpoint]; ok {
		return ec, nil
	}
	if !createIfAbsent {
		return nil, fmt.Errorf("rpc: no connection cached for %s", endpoint)
	}

	conn, err := grpc.NewClient(endpoint.String(), g.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: cannot dial %s: %w", endpoint, err)
	}
	ec := &endpointConn{
		conn: conn,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    endpoint.String(),
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Infof("rpc: endpoint %s circuit breaker %s -> %s", name, from, to)
			},
		}),
	}
	g.conns[endpoint] = ec
	return ec, nil
}

func (g *GrpcInvoker) Invoke(ctx context.Context, endpoint model.Endpoint, method string, req, resp any, timeout time.Duration, reqCtx model.RequestContext) error {
	ec, err := g.connFor(endpoint, true)
	if err != nil {
		return err
	}
	ctx = attachOutgoingMetadata(ctx, reqCtx)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err = ec.breaker.Execute(func() (any, error) {
		return nil, ec.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(jsonCodecName))
	})
	return err
}

// attachOutgoingMetadata carries reqCtx's tenant tuple, database and request
// id as gRPC outgoing metadata, the wire-level attachment point for every
// RPC the client issues.
func attachOutgoingMetadata(ctx context.Context, reqCtx model.RequestContext) context.Context {
	pairs := []string{
		"x-ceresdb-database", reqCtx.Database,
		"x-ceresdb-request-id", reqCtx.RequestID,
	}
	if reqCtx.Tenant.Tenant != "" {
		pairs = append(pairs, "x-ceresdb-tenant", reqCtx.Tenant.Tenant)
	}
	if reqCtx.Tenant.SubTenant != "" {
		pairs = append(pairs, "x-ceresdb-sub-tenant", reqCtx.Tenant.SubTenant)
	}
	if reqCtx.Tenant.Token != "" {
		pairs = append(pairs, "x-ceresdb-token", reqCtx.Tenant.Token)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func (g *GrpcInvoker) InvokeServerStreaming(ctx context.Context, endpoint model.Endpoint, method string, req any, observer ServerStreamObserver, reqCtx model.RequestContext) error {
	ec, err := g.connFor(endpoint, true)
	if err != nil {
		observer.OnError(err)
		return err
	}
	ctx = attachOutgoingMetadata(ctx, reqCtx)
	desc := &grpc.StreamDesc{StreamName: method, ServerStreams: true}
	stream, err := ec.conn.NewStream(ctx, desc, method, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		observer.OnError(err)
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		observer.OnError(err)
		return err
	}
	if err := stream.CloseSend(); err != nil {
		observer.OnError(err)
		return err
	}
	go func() {
		for {
			msg := &SqlQueryResponse{}
			if err := stream.RecvMsg(msg); err != nil {
				if err.Error() == "EOF" {
					observer.OnCompleted()
				} else {
					observer.OnError(err)
				}
				return
			}
			observer.OnNext(msg)
		}
	}()
	return nil
}

func (g *GrpcInvoker) InvokeClientStreaming(ctx context.Context, endpoint model.Endpoint, method string, observer ClientStreamObserver, reqCtx model.RequestContext) (RequestSender, error) {
	ec, err := g.connFor(endpoint, true)
	if err != nil {
		observer.OnError(err)
		return nil, err
	}
	ctx = attachOutgoingMetadata(ctx, reqCtx)
	desc := &grpc.StreamDesc{StreamName: method, ClientStreams: true}
	stream, err := ec.conn.NewStream(ctx, desc, method, grpc.CallContentSubtype(jsonCodecName))
	if err != nil {
		observer.OnError(err)
		return nil, err
	}
	return &grpcRequestSender{stream: stream, observer: observer}, nil
}

func (g *GrpcInvoker) CheckConnection(ctx context.Context, endpoint model.Endpoint, createIfAbsent bool) bool {
	ec, err := g.connFor(endpoint, createIfAbsent)
	if err != nil {
		return false
	}
	state := ec.conn.GetState()
	if state == connectivity.Idle {
		ec.conn.Connect()
	}
	return state == connectivity.Ready || state == connectivity.Idle
}

type grpcRequestSender struct {
	stream   grpc.ClientStream
	observer ClientStreamObserver
	mu       sync.Mutex
	closed   bool
}

func (s *grpcRequestSender) Send(req any) error {
	return s.stream.SendMsg(req)
}

// Ready always reports true: google.golang.org/grpc applies HTTP/2 flow
// control internally rather than exposing a boolean readiness signal, so
// backpressure here is expressed by SendMsg blocking until window space is
// available. The FLOW_CONTROL fast-fail path is
// implemented one layer up, by limiter.Limiter.
func (s *grpcRequestSender) Ready() bool { return true }

func (s *grpcRequestSender) CloseSend() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.stream.CloseSend(); err != nil {
		s.observer.OnError(err)
		return err
	}
	resp := &WriteResponse{}
	if err := s.stream.RecvMsg(resp); err != nil {
		s.observer.OnError(err)
		return err
	}
	s.observer.OnCompleted(resp)
	return nil
}
