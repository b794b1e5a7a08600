// Command depositwatchd runs the deposit detection and confirmation
// engine: it loads chain/store configuration, dials every configured
// chain's RPC clients, starts the block and event ingestors, and runs
// the confirmation tracker until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chainwatch/depositengine/internal/chainclient"
	"github.com/chainwatch/depositengine/internal/config"
	"github.com/chainwatch/depositengine/internal/confirm"
	"github.com/chainwatch/depositengine/internal/deposit"
	"github.com/chainwatch/depositengine/internal/deposit/sqlstore"
	"github.com/chainwatch/depositengine/internal/ingest"
	"github.com/chainwatch/depositengine/internal/metrics"
	"github.com/chainwatch/depositengine/internal/notify"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the engine's YAML configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal startup error", zap.Error(err))
		os.Exit(1)
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := buildStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("build deposit store: %w", err)
	}

	metricsEngine := metrics.NewPrometheusEngine(prometheus.DefaultRegisterer)
	notifier := notify.NewLoggingNotifier(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := chainclient.New(ctx, cfg, metricsEngine, logger)
	if err != nil {
		return fmt.Errorf("build chain client registry: %w", err)
	}
	defer registry.Close()

	pipeline := ingest.NewPipeline(store, notifier, metricsEngine, logger)

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, chainName := range registry.SupportedChains() {
		handle := registry.Handle(chainName)
		runner := ingest.NewChainRunner(handle.Name, handle.RequestClient, handle.StreamClient,
			handle.Monitors, pipeline, cfg.Confirmation.PollInterval, logger.With(zap.String("chain", handle.Name)))
		go runner.Run(signalCtx)
	}

	tracker := confirm.NewTracker(registry, store, notifier, metricsEngine,
		cfg.Confirmation.PollInterval, cfg.Confirmation.WorkerPoolSize, logger)
	go tracker.Run(signalCtx)

	logger.Info("deposit engine started", zap.Strings("chains", registry.SupportedChains()))

	<-signalCtx.Done()
	logger.Info("shutdown signal received, draining")

	return nil
}

func buildStore(cfg config.StoreConfig, logger *zap.Logger) (deposit.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory deposit store")
		return deposit.NewMemoryStore(), nil
	case "postgres":
		logger.Info("connecting to postgres deposit store")
		return sqlstore.Open(cfg.DSN, cfg.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
