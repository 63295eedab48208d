package relay

import (
	"context"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"viaduct/resource"
)

const exchangeMethod = "/viaduct.Relay/Exchange"

var exchangeStreamDesc = grpc.StreamDesc{
	StreamName:    "Exchange",
	ServerStreams: true,
	ClientStreams: true,
}

// Client is the materialized relay resource: one grpc channel that every
// relay connection multiplexes its exchange stream over.
type Client struct {
	scope resource.Scope
	conf  resource.Config
	cc    *grpc.ClientConn
}

func (c Client) Type() resource.Type { return resource.RelayClient }

func (c Client) Close() error { return c.cc.Close() }

// Exchange opens one bidirectional exchange stream.
func (c Client) Exchange(ctx context.Context) (grpc.ClientStream, error) {
	return c.cc.NewStream(ctx, &exchangeStreamDesc, exchangeMethod)
}

var _ resource.Resource = Client{}

//=================================
// Relay client config
//=================================

type ClientConfig struct {
	Target string
}

var _ resource.Config = ClientConfig{}

func (conf ClientConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	cc, err := grpc.Dial(conf.Target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
		grpc.WithChainStreamInterceptor(grpc_prometheus.StreamClientInterceptor),
	)
	if err != nil {
		return nil, err
	}
	return Client{scope: scope, conf: conf, cc: cc}, nil
}

//=================================
// BufConn config, for tests
//=================================

type BufConnConfig struct {
	Listener *bufconn.Listener
}

var _ resource.Config = BufConnConfig{}

func (conf BufConnConfig) Materialize(scope resource.Scope) (resource.Resource, error) {
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return conf.Listener.DialContext(ctx)
	}
	cc, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, err
	}
	return Client{scope: scope, conf: conf, cc: cc}, nil
}
