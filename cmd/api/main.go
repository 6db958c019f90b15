package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ledger-core/internal/api"
	"github.com/example/ledger-core/internal/auth"
	"github.com/example/ledger-core/internal/config"
	"github.com/example/ledger-core/internal/ledger"
	"github.com/example/ledger-core/internal/refcache"
	"github.com/example/ledger-core/internal/security"
	"github.com/example/ledger-core/internal/seed"
	"github.com/example/ledger-core/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("ledger api stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	allowlist, err := security.ParseCIDRAllowlist(cfg.IPAllowlist)
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
	var rateLimiter *security.RedisTokenBucket
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		opts = append(opts, ledger.WithCatalogCache(refcache.New(redisClient, "ledger", cfg.CatalogCacheTTL)))
		if cfg.RateLimitEnabled() {
			rateLimiter = &security.RedisTokenBucket{
				Redis:      redisClient,
				Prefix:     "ledger_api",
				Capacity:   cfg.RateLimitCapacity,
				RefillRate: cfg.RateLimitRefillPerSec,
			}
		}
	}
	ls := ledger.NewLedgerService(st, opts...)

	specs, err := seed.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}
	created, err := ls.EnsureCatalog(ctx, specs)
	if err != nil {
		return err
	}
	logger.Info("category catalog ready", "created", created)

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Tokens:       &auth.TokenValidator{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
		Ledger:       ls,
		RateLimiter:  rateLimiter,
		IPAllowlist:  allowlist,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.TLSCertFile != "" {
		srv.TLSConfig, err = security.LoadServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("ledger api listening", "addr", cfg.APIAddr, "driver", cfg.DatabaseDriver, "tls", srv.TLSConfig != nil)
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
