package relay

import (
	"errors"
	"io"
	"net"
	"sync"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrNoAnswer makes the server swallow a query without answering. Real
// engines shed load exactly like that, so timeouts need it for coverage.
var ErrNoAnswer = errors.New("relay: no answer")

// Handler produces the answer payload for one query.
type Handler func(function string, payload []byte) ([]byte, error)

// Server is the engine-side end of the relay exchange. Queries on a stream
// are handled concurrently; the query id in the envelope carries the
// correlation, so answer order is free.
type Server struct {
	inner   *grpc.Server
	handler Handler
}

func NewServer(h Handler) *Server {
	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			grpc_prometheus.StreamServerInterceptor,
		)),
	)
	s := &Server{inner: grpcServer, handler: h}
	grpcServer.RegisterService(&serviceDesc, s)
	grpc_prometheus.Register(grpcServer)
	return s
}

type exchangeServer interface {
	Exchange(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "viaduct.Relay",
	HandlerType: (*exchangeServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Exchange",
		Handler:       exchangeHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "relay.proto",
}

func exchangeHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(exchangeServer).Exchange(stream)
}

func (s *Server) Exchange(stream grpc.ServerStream) error {
	var sendMu sync.Mutex
	for {
		var frame []byte
		if err := stream.RecvMsg(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		env, err := DecodeEnvelope(frame)
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "%v", err)
		}
		serverQueries.WithLabelValues(env.Function).Inc()
		go s.answer(stream, &sendMu, env)
	}
}

func (s *Server) answer(stream grpc.ServerStream, mu *sync.Mutex, env Envelope) {
	resp, err := s.handler(env.Function, env.Payload)
	if errors.Is(err, ErrNoAnswer) {
		serverGhosts.Inc()
		return
	}
	out := Envelope{QueryID: env.QueryID, Function: env.Function}
	if err != nil {
		out.Error = err.Error()
	} else {
		out.Payload = resp
	}
	frame := EncodeEnvelope(out)
	mu.Lock()
	defer mu.Unlock()
	if err := stream.SendMsg(&frame); err != nil {
		zap.L().Debug("relay answer dropped", zap.Int64("query_id", int64(env.QueryID)), zap.Error(err))
	}
}

func (s *Server) Serve(lis net.Listener) error {
	return s.inner.Serve(lis)
}

func (s *Server) Stop() {
	s.inner.Stop()
}
