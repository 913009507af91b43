package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nikolayk812/pdv-ledger/internal/checkout"
	"github.com/nikolayk812/pdv-ledger/internal/config"
	carthttp "github.com/nikolayk812/pdv-ledger/internal/http"
	"github.com/nikolayk812/pdv-ledger/internal/logger"
	"github.com/nikolayk812/pdv-ledger/internal/port"
	"github.com/nikolayk812/pdv-ledger/internal/repository"
	"github.com/nikolayk812/pdv-ledger/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger.New: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	registry := service.NewRegistry(repo, log, cfg.Currency)
	checkoutSvc := checkout.NewService(checkout.NewHTTPClient(cfg.OrderAPIURL, cfg.RequestTimeout), log)
	handler := carthttp.NewCartHandler(registry, checkoutSvc, log, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           carthttp.NewRouter(handler, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("pdv ledger listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("srv.ListenAndServe: %w", err)
		}
	}

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return errors.Join(
		srv.Shutdown(shutdownCtx),
		registry.Close(shutdownCtx),
	)
}

func openRepository(ctx context.Context, cfg config.Config, log *zap.Logger) (port.CartRepository, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

		repo, err := repository.NewRedisCart(client, cfg.RedisCartTTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("repository.NewRedisCart: %w", err)
		}
		return repo, func() { _ = client.Close() }, nil

	case config.StoreMemory:
		log.Warn("using in-memory cart store, carts will not survive a restart")
		return repository.NewMemoryCart(), func() {}, nil

	default:
		if err := repository.Migrate(cfg.DatabaseDSN); err != nil {
			return nil, nil, fmt.Errorf("repository.Migrate: %w", err)
		}

		pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("pool.Ping: %w", err)
		}
		log.Info("connected to postgres")

		repo, err := repository.NewCart(pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("repository.NewCart: %w", err)
		}
		return repo, pool.Close, nil
	}
}
