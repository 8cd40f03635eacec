package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/pos-checkout/api/routes"
	"github.com/angelmondragon/pos-checkout/internal/checkout"
	"github.com/angelmondragon/pos-checkout/pkg/config"
	"github.com/angelmondragon/pos-checkout/pkg/instance"
	"github.com/angelmondragon/pos-checkout/pkg/logger"
	"github.com/angelmondragon/pos-checkout/pkg/metrics"
	"github.com/angelmondragon/pos-checkout/pkg/redis"
	"github.com/angelmondragon/pos-checkout/pkg/storeapi"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-checkout"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-checkout",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(runCtx, cfg.Redis)
		if err != nil {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(runCtx, "redis not configured, order submission runs without idempotency keys")
	}

	loc, err := cfg.StoreAPI.Location()
	if err != nil {
		logg.Error(runCtx, "invalid store timezone", err)
		os.Exit(1)
	}
	storeClient, err := storeapi.NewClient(
		cfg.StoreAPI.BaseURL,
		storeapi.WithTimeout(cfg.StoreAPI.Timeout),
		storeapi.WithTimezone(loc),
	)
	if err != nil {
		logg.Error(runCtx, "failed to create store api client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checkoutService, err := checkout.NewService(checkout.Config{
		TaxRate:     cfg.Checkout.TaxRate,
		OrderNote:   cfg.Checkout.OrderNote,
		IdleTTL:     cfg.Checkout.IdleTTL,
		SearchLimit: cfg.Checkout.SearchLimit,
	}, checkout.Deps{
		Backend: storeClient,
		Logger:  logg,
		Metrics: metrics.NewCheckoutMetrics(registry),
	})
	if err != nil {
		logg.Error(runCtx, "failed to create checkout service", err)
		os.Exit(1)
	}

	var routerRedis routes.RedisClient
	if redisClient != nil {
		routerRedis = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  instance.GetID(),
		"store_api": cfg.StoreAPI.BaseURL,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, routerRedis, registry, checkoutService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var closeErr error
	closeErr = multierr.Append(closeErr, server.Shutdown(shutdownCtx))
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	if closeErr != nil {
		logg.Error(ctx, "error during shutdown", closeErr)
		exitCode = 1
	}
	logg.Info(ctx, "api server stopped")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
