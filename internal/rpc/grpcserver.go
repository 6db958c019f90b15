package rpc

import (
	"crypto/tls"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/ledger-core/internal/auth"
)

const maxMessageBytes = 1 << 20

type Options struct {
	Logger *slog.Logger
	Tokens *auth.TokenValidator
	TLS    *tls.Config
}

// NewGRPCServer builds a server exposing the ledger service and the standard
// health service, which reports SERVING for both.
func NewGRPCServer(l Ledger, opts Options) *grpc.Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMessageBytes),
		grpc.MaxSendMsgSize(maxMessageBytes),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(opts.Logger),
			AuthInterceptor(opts.Tokens),
		),
	}
	if opts.TLS != nil {
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(opts.TLS)))
	}

	s := grpc.NewServer(serverOpts...)
	RegisterLedgerServer(s, NewServer(l, opts.Logger))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}
