package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peoplesignal/attrition-api/internal/api"
	"github.com/peoplesignal/attrition-api/internal/cache"
	"github.com/peoplesignal/attrition-api/internal/config"
	"github.com/peoplesignal/attrition-api/internal/estimator"
	"github.com/peoplesignal/attrition-api/internal/features"
	"github.com/peoplesignal/attrition-api/internal/metrics"
	"github.com/peoplesignal/attrition-api/internal/models"
	"github.com/peoplesignal/attrition-api/internal/reports"
	"github.com/peoplesignal/attrition-api/internal/results"
	"github.com/peoplesignal/attrition-api/internal/services"
	"github.com/peoplesignal/attrition-api/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON, utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	logger.Info("starting attrition-api", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	if missing := cfg.MissingPaths(); len(missing) > 0 {
		for _, m := range missing {
			logger.Warn("configured path missing", slog.String("path", m))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway := estimator.NewGateway(cfg.Model.Path, features.Names())
	store := results.NewStore(cfg.Results.Path)
	catalog := reports.NewCatalog(cfg.Reports.Path)

	modelErr := gateway.Load(ctx)
	resultsErr := store.Load(ctx)
	metrics.SetDependencyLoaded("model", modelErr == nil)
	metrics.SetDependencyLoaded("results", resultsErr == nil)
	for name, loadErr := range map[string]error{"model": modelErr, "results": resultsErr} {
		if loadErr != nil {
			logger.Error("startup dependency failed to load", slog.String("dependency", name), slog.Any("error", loadErr))
		}
	}
	if (modelErr != nil || resultsErr != nil) && cfg.Startup.FailFast {
		logger.Error("refusing to start with unloaded dependencies (startup.failFast)")
		os.Exit(1)
	}
	ready := modelErr == nil && resultsErr == nil

	cacheProvider, err := newCacheProvider(ctx, cfg.Cache, cfg.Model.Path)
	if err != nil {
		logger.Warn("prediction cache unavailable", slog.String("backend", cfg.Cache.Backend), slog.Any("error", err))
		cacheProvider = cache.NoopProvider{}
	}
	defer cacheProvider.Close()

	predictionService := services.NewPredictionService(logger, gateway, services.Options{
		Cache:    cacheProvider,
		CacheTTL: cfg.Cache.TTL,
	})

	logBanner(logger, cfg, gateway, store, catalog)

	router := api.NewRouter(api.Dependencies{
		Logger:      logger,
		Predictor:   predictionService,
		Model:       gateway,
		Results:     store,
		Reports:     catalog,
		ModelType:   cfg.Model.Type,
		Variant:     models.Variant(cfg.Model.Variant),
		CORSOrigins: cfg.Server.CORSOrigins,

		HealthFailureStatus: cfg.Server.HealthFailureStatus,
	})

	server, err := api.NewServer(cfg.Server, router)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	var probe *api.ProbeServer
	if cfg.Server.ProbeAddress != "" {
		probe, err = api.NewProbeServer(cfg.Server.ProbeAddress)
		if err != nil {
			logger.Error("failed to create probe server", slog.Any("error", err))
			os.Exit(1)
		}
		probe.SetReady(ready)
		go func() {
			logger.Info("probe server listening", slog.String("address", probe.Address()))
			if serveErr := probe.Start(); serveErr != nil {
				logger.Error("probe server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", server.Address()), slog.Bool("ready", ready))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("http server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if probe != nil {
		probe.SetReady(false)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	if probe != nil {
		probe.Shutdown(shutdownCtx)
	}

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	summary := predictionService.Latency()
	logger.Info("attrition-api stopped",
		slog.Int("latency_samples", summary.Samples),
		slog.Duration("latency_p95", summary.P95))
}

func newCacheProvider(ctx context.Context, cfg config.CacheConfig, modelPath string) (cache.Provider, error) {
	if !cfg.Enabled {
		return cache.NoopProvider{}, nil
	}
	switch cfg.Backend {
	case config.CacheBackendRedis:
		return cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			TLS:          cfg.TLS,
			// entries are only valid for the artifact that produced them
			KeyPrefix: modelCacheNamespace(modelPath),
		})
	default:
		return cache.NewLRUProvider(cfg.Size, cfg.TTL)
	}
}

func modelCacheNamespace(modelPath string) string {
	info, err := os.Stat(modelPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d-%d:", info.Size(), info.ModTime().Unix())
}

func logBanner(logger *slog.Logger, cfg *config.Config, gateway *estimator.Gateway, store *results.Store, catalog *reports.Catalog) {
	attrs := []any{
		slog.String("model_type", cfg.Model.Type),
		slog.Int("features_required", features.Count),
		slog.Bool("model_loaded", gateway.Loaded()),
		slog.Bool("results_loaded", store.Loaded()),
		slog.Int("visualizations", catalog.Count()),
	}
	if info, ok := gateway.Info(); ok {
		attrs = append(attrs, slog.String("artifact", info.Path), slog.Int("trees", info.Trees))
	}
	if dataset := store.DatasetInfo(); dataset != nil {
		attrs = append(attrs, slog.Any("total_samples", dataset["total_samples"]), slog.Any("attrition_rate", dataset["attrition_rate"]))
	}
	for _, variant := range models.Variants() {
		if acc, ok := store.Accuracy(variant); ok {
			attrs = append(attrs, slog.String(string(variant)+"_accuracy", fmt.Sprintf("%.2f%%", acc)))
		}
	}
	logger.Info("attrition-api ready", attrs...)
}
