package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderstack/order-agent/internal/api"
	"github.com/orderstack/order-agent/internal/cache"
	"github.com/orderstack/order-agent/internal/config"
	"github.com/orderstack/order-agent/internal/engine"
	"github.com/orderstack/order-agent/internal/extractors"
	"github.com/orderstack/order-agent/internal/metrics"
	"github.com/orderstack/order-agent/internal/repo"
	"github.com/orderstack/order-agent/internal/scoring"
	"github.com/orderstack/order-agent/internal/services"
	"github.com/orderstack/order-agent/internal/utils"
)

func main() {
	var (
		configPath string
		oneShot    string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&oneShot, "query", "", "Run a single query, print the JSON response and exit")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLoggerTo(logOutput(oneShot), cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	apiKey := cfg.Extractor.ResolveAPIKey()
	if apiKey == "" {
		logger.Error("LLM API key not found", slog.String("env", cfg.Extractor.APIKeyEnv))
		os.Exit(1)
	}
	llmClient, err := repo.NewLLMClient(repo.LLMConfig{
		BaseURL:      cfg.Extractor.BaseURL,
		EndpointPath: cfg.Extractor.EndpointPath,
		APIKey:       apiKey,
		Model:        cfg.Extractor.Model,
		Temperature:  cfg.Extractor.Temperature,
		MaxTokens:    cfg.Extractor.MaxTokens,
		ExtraHeaders: cfg.Extractor.Headers,
	})
	if err != nil {
		logger.Error("failed to create LLM client", slog.Any("error", err))
		os.Exit(1)
	}

	cacheProvider := newCacheProvider(cfg.Cache, logger)
	defer cacheProvider.Close()

	sourceClient := repo.NewOrdersSourceClient(repo.OrdersSourceConfig{
		BaseURL:       cfg.Source.BaseURL,
		OrdersPath:    cfg.Source.OrdersPath,
		OrderPath:     cfg.Source.OrderPath,
		Limit:         cfg.Source.Limit,
		Timeout:       cfg.Source.Timeout,
		RetryAttempts: cfg.Source.RetryAttempts,
		RetryDelay:    cfg.Source.RetryDelay,
	}, logger)

	extractor := extractors.NewExtractor(llmClient, extractors.ExtractorConfig{
		CallTimeout:       cfg.Extractor.CallTimeout,
		ChunkThreshold:    cfg.Extractor.ChunkThreshold,
		Concurrency:       cfg.Extractor.Concurrency,
		RequestsPerSecond: cfg.Extractor.RequestsPerSecond,
		CacheTTL:          cfg.Extractor.CacheTTL,
	}, cacheProvider, logger)

	model, err := scoring.Build(scoring.Config{
		CatalogPath:      cfg.Scoring.CatalogPath,
		TrainingDataPath: cfg.Scoring.TrainingDataPath,
		SyntheticSamples: cfg.Scoring.SyntheticSamples,
		Seed:             cfg.Scoring.Seed,
	}, logger)
	if err != nil {
		logger.Error("failed to train reorder model", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("reorder model ready", slog.Float64("accuracy", model.Accuracy()))

	pipeline := engine.NewPipeline(
		logger,
		sourceClient,
		extractor,
		engine.NewValidator(logger),
		engine.NewEnricher(model, logger),
	)

	if oneShot != "" {
		code := runOnce(pipeline, oneShot, os.Stdout, logger)
		if err := cacheProvider.Close(); err != nil {
			logger.Warn("cache close", slog.Any("error", err))
		}
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var history services.RunHistory
	if cfg.History.DSN != "" {
		pg, err := repo.NewPostgresHistory(ctx, repo.PostgresConfig{
			DSN:      cfg.History.DSN,
			Table:    cfg.History.Table,
			MaxConns: cfg.History.MaxConns,
		}, logger)
		if err != nil {
			logger.Warn("postgres history unavailable, keeping runs in memory", slog.Any("error", err))
		} else {
			defer pg.Close()
			history = pg
		}
	}
	if history == nil {
		history = repo.NewMemoryHistory(cfg.History.MemoryCapacity)
	}

	orderService := services.NewOrderService(logger, pipeline, history, model, sourceClient)

	server, err := api.NewServer(cfg.Server, orderService, logger)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("starting order-agent", slog.String("grpc_address", server.Address()))

	var httpServer *api.HTTPServer
	if cfg.Server.HTTPAddress != "" {
		gin.SetMode(gin.ReleaseMode)
		httpServer, err = api.NewHTTPServer(cfg.Server.HTTPAddress, api.NewRouter(orderService, logger))
		if err != nil {
			logger.Error("failed to create HTTP server", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			logger.Info("http api listening", slog.String("address", httpServer.Address()))
			if err := httpServer.Start(); err != nil {
				logger.Error("http server exited", slog.Any("error", err))
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
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("order-agent stopped")
}

// newCacheProvider picks the extraction cache backend. Redis failures fall back to no caching.
func newCacheProvider(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	if cfg.Backend != "redis" {
		return cache.NewMemoryProvider()
	}
	provider, err := cache.NewRedisProvider(cache.RedisConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("redis cache unavailable", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	return provider
}

// logOutput keeps stdout free for the JSON response in one-shot mode.
func logOutput(oneShot string) io.Writer {
	if oneShot != "" {
		return os.Stderr
	}
	return os.Stdout
}

func runOnce(pipeline *engine.Pipeline, query string, out io.Writer, logger *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp := pipeline.Run(ctx, query)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
		return 1
	}
	if !resp.Success {
		return 1
	}
	return 0
}
