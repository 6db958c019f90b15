package rpc

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/ledger-core/internal/auth"
)

// LoggingInterceptor logs one line per call, like the HTTP request logger
func LoggingInterceptor(l *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l.InfoContext(ctx, "grpc_request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// AuthInterceptor requires a bearer token in the authorization metadata on
// ledger methods. Every ledger method mutates, so the token also needs the
// write scope. Other services, such as health, pass through.
func AuthInterceptor(v *auth.TokenValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		if v == nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if vals := md.Get("authorization"); len(vals) > 0 {
			token, _ = auth.BearerToken(vals[0])
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		claims, err := v.Validate(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		ctx = auth.WithClaims(ctx, claims)

		ai, _ := auth.AuthInfoFromContext(ctx)
		if !ai.HasScope(auth.ScopeWrite) {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}
		return handler(ctx, req)
	}
}
