package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StrappedIndexer/internal/core"
	"StrappedIndexer/internal/event"
	"StrappedIndexer/internal/ingestion"
	"StrappedIndexer/internal/observability"
	"StrappedIndexer/internal/persistence"
	"StrappedIndexer/internal/server"
)

// Config holds all application configuration, loaded from environment
// variables.
type Config struct {
	// NATS
	NATSURL string
	Subject string

	// Contract whose events we index; strap asset ids derive from it.
	ContractID string

	// Replay: when set (>= 0), local state from this height up is pruned
	// and consumption restarts there. -1 means resume from stored state.
	StartHeight int

	// Storage
	Store   string // "badger" or "memory"
	DataDir string

	// HTTP/Metrics
	HTTPAddr    string
	MetricsAddr string
}

func DefaultConfig() Config {
	return Config{
		NATSURL:     envOrDefault("STRAPPED_NATS_URL", "nats://localhost:4222"),
		Subject:     envOrDefault("STRAPPED_SUBJECT", "strapped.blocks.mainnet"),
		ContractID:  os.Getenv("STRAPPED_CONTRACT_ID"),
		StartHeight: envIntOrDefault("STRAPPED_START_HEIGHT", -1),
		Store:       envOrDefault("STRAPPED_STORE", "badger"),
		DataDir:     envOrDefault("STRAPPED_DATA_DIR", "data"),
		HTTPAddr:    envOrDefault("STRAPPED_HTTP_ADDR", ":8080"),
		MetricsAddr: envOrDefault("STRAPPED_METRICS_ADDR", ":9091"),
	}
}

func main() {
	logger := observability.NewLogger("main")
	logger.Info().Msg("strapped indexer starting")

	cfg := DefaultConfig()

	contract, err := event.ParseContractID(cfg.ContractID)
	if err != nil {
		logger.Fatal().Err(err).Msg("STRAPPED_CONTRACT_ID is required (64-char hex)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- Storage ---
	var snapshots persistence.SnapshotStorage
	var metadata persistence.MetadataStorage
	switch cfg.Store {
	case "badger":
		snapStore, metaStore, db, err := persistence.OpenBadger(cfg.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("open storage")
		}
		defer db.Close()
		snapshots, metadata = snapStore, metaStore
		logger.Info().Str("dir", cfg.DataDir).Msg("badger storage open")
	case "memory":
		snapshots = persistence.NewMemorySnapshotStorage()
		metadata = persistence.NewMemoryMetadataStorage()
		logger.Warn().Msg("in-memory storage, state is lost on exit")
	default:
		logger.Fatal().Str("store", cfg.Store).Msg("unknown STRAPPED_STORE, want badger or memory")
	}
	snapshots = persistence.Instrument(snapshots, metrics)

	// --- Start height: explicit replay or resume from stored state ---
	var startHeight uint32
	if cfg.StartHeight >= 0 {
		startHeight = uint32(cfg.StartHeight)
		if err := snapshots.PruneFrom(startHeight); err != nil {
			logger.Fatal().Err(err).Uint32("from", startHeight).Msg("prune for replay")
		}
		logger.Info().Uint32("from", startHeight).Msg("pruned local state for replay")
	} else if _, h, err := snapshots.LatestOverview(); err == nil {
		startHeight = h + 1
		logger.Info().Uint32("resume", startHeight).Msg("resuming from stored state")
	} else if !persistence.IsNotFound(err) {
		logger.Fatal().Err(err).Msg("read stored state")
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	logger.Info().Str("url", cfg.NATSURL).Msg("NATS connected")

	if err := ingestion.EnsureStream(ctx, js, cfg.Subject); err != nil {
		logger.Fatal().Err(err).Msg("ensure NATS stream")
	}

	source, err := ingestion.NewNATSEventSource(ctx, js, cfg.Subject, startHeight, observability.NewLogger("ingestion"))
	if err != nil {
		logger.Fatal().Err(err).Msg("create event source")
	}

	// --- Coordinator ---
	app := core.NewApp(snapshots, metadata, source, contract, observability.NewLogger("core"), metrics)

	errChan := make(chan error, 4)

	go func() {
		errChan <- app.Run(ctx)
	}()

	// --- HTTP read API ---
	srv := server.New(app, healthChecker, observability.NewLogger("server"), metrics)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	// --- Prometheus metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	logger.Info().
		Uint32("start_height", startHeight).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("strapped indexer ready")

	// --- Wait for shutdown signal or fatal error ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("fatal error, shutting down")
	}

	cancel()
	healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	logger.Info().Msg("strapped indexer shutdown complete")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}
