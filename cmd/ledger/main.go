package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/ledger-core/internal/auth"
	"github.com/example/ledger-core/internal/config"
	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/refcache"
	"github.com/example/ledger-core/internal/rpc"
	"github.com/example/ledger-core/internal/security"
	"github.com/example/ledger-core/internal/seed"
	"github.com/example/ledger-core/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("ledger grpc stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	opts := []ledger.Option{ledger.WithLogger(logger)}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		opts = append(opts, ledger.WithCatalogCache(refcache.New(redisClient, "ledger", cfg.CatalogCacheTTL)))
	}
	ls := ledger.NewLedgerService(st, opts...)

	specs, err := seed.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	if _, err := ls.EnsureCatalog(ctx, specs); err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if cfg.TLSCertFile != "" {
		if tlsConfig, err = security.LoadServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile); err != nil {
			return err
		}
	}

	srv := rpc.NewGRPCServer(ls, rpc.Options{
		Logger: logger,
		Tokens: &auth.TokenValidator{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
		TLS:    tlsConfig,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down ledger grpc")
		srv.GracefulStop()
	}()

	logger.Info("ledger grpc listening", "addr", cfg.GRPCAddr, "driver", cfg.DatabaseDriver, "tls", tlsConfig != nil)
	return srv.Serve(lis)
}
