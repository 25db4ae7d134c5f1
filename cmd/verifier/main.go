package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/identity"
	"github.com/a2f-auth/a2f/internal/infra"
	"github.com/a2f-auth/a2f/internal/logging"
	"github.com/a2f-auth/a2f/internal/notification"
	"github.com/a2f-auth/a2f/internal/poller"
	"github.com/a2f-auth/a2f/internal/registry"
	"github.com/a2f-auth/a2f/internal/routes"
	"github.com/a2f-auth/a2f/internal/server"
	"github.com/a2f-auth/a2f/internal/verifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	account, err := identity.FromMnemonic(cfg.ProviderMnemonic)
	if err != nil {
		logger.Error("decode provider account", "error", err)
		os.Exit(1)
	}

	facade, err := infra.NewLedger(cfg.Ledger)
	if err != nil {
		logger.Error("connect ledger", "error", err)
		os.Exit(1)
	}

	var (
		db    *pgxpool.Pool
		cache *redis.Client
		reg   = registry.NewMemoryRepository()
	)
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := registry.NewPostgresRepository(db)
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("migrate registry", "error", err)
			os.Exit(1)
		}
		reg = pg
	}
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	p := poller.New(facade, poller.Config{Period: cfg.Poll.Interval, MaxCycles: cfg.Poll.MaxCycles}, logger)
	svc := verifier.NewService(cfg.ProviderName, account, facade, reg, p, notification.NewLoggerNotifier(logger), logger)

	baseCtx, cancelSessions := context.WithCancel(ctx)
	defer cancelSessions()

	srv, err := server.New(cfg, routes.Deps{
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Ledger:   facade,
		Registry: reg,
		Flows:    svc,
		BaseCtx:  baseCtx,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	fmt.Printf("Provider: %s\n", svc.Name())
	fmt.Printf("Account: %s\n", svc.Address())
	fmt.Printf("Listening on http://localhost%s\n", cfg.Address())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	cancelSessions()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	svc.Wait()

	logger.Info("server exited cleanly")
}
