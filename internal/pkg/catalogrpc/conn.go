package catalogrpc

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jcmexdev/product-catalog/internal/pkg/interceptors"
)

// NewServer returns a gRPC server with tracing and request-id logging.
func NewServer(logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors.UnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(interceptors.StreamServerInterceptor(logger)),
	}
	return grpc.NewServer(append(base, opts...)...)
}

// Dial creates a lazily connecting client for a downstream service.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(interceptors.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(interceptors.StreamClientInterceptor()),
	}
	cc, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create grpc client for %s: %w", target, err)
	}
	return cc, nil
}
