package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/config"
	"github.com/cloudx-io/opentender/receipt"
	"github.com/cloudx-io/opentender/server"
	"github.com/cloudx-io/opentender/tender"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file (optional)")
	flag.Parse()

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("tender server stopped", zap.Error(err))
	}
	logger.Info("tender server shut down")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("tender server starting", cfg.LogSummary()...)

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	keyManager, err := receipt.NewKeyManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}
	logger.Info("receipt key manager initialized", zap.String("algorithm", receipt.KeyAlgorithm))

	var attester receipt.Attester
	if cfg.Attestation == "nitro" {
		attester, err = receipt.NitroAttester()
		if err != nil {
			return fmt.Errorf("failed to initialize attester: %w", err)
		}
		logger.Info("NSM attestation enabled")
	}

	metrics := server.NewMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	srv, err := server.New(
		tender.NewService(store, logger.Named("tender")),
		receipt.NewIssuer(keyManager, attester, logger.Named("receipt")),
		logger.Named("server"),
		server.Options{
			MaxWorkers:  cfg.MaxWorkers,
			ReadTimeout: cfg.ReadTimeout,
			Metrics:     metrics,
		},
	)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	listener, err := server.Listen(cfg.ListenNetwork, cfg.ListenAddr, cfg.VsockPort)
	if err != nil {
		return err
	}
	return srv.Serve(ctx, listener)
}

func openStore(ctx context.Context, cfg *config.Config) (tender.Store, func(), error) {
	if cfg.Store != "redis" {
		return tender.NewMemoryStore(), func() {}, nil
	}
	store, err := tender.NewRedisStoreFromURL(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
