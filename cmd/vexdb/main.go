package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vexhub/vexdb"
	"github.com/vexhub/vexdb/internal/config"
	openaiEmb "github.com/vexhub/vexdb/internal/embedder/openai"
	logpkg "github.com/vexhub/vexdb/internal/logger"
	chiTransport "github.com/vexhub/vexdb/internal/transport/chi"
	"github.com/vexhub/vexdb/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vexdb API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	opts := buildOptions(cfg, logger)

	readyCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.Database.ReadinessTimeout)*time.Second,
	)
	client, err := vexdb.New(readyCtx, opts...)
	cancel()
	if err != nil {
		logger.Fatal("Failed to create engine", zap.Error(err))
	}
	defer client.Close()
	logger.Info("Engine ready",
		zap.String("dense_model", activeDense(cfg)),
		zap.String("sparse_model", cfg.Models.Sparse),
	)

	server := chiTransport.NewServer(client, logger)
	handler := server.Router(cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildOptions maps file configuration onto engine options. The composition
// root decides the backend, the embedding provider chain, the active models
// and the fusion knobs; the engine itself stays config-agnostic.
func buildOptions(cfg config.Config, logger *zap.Logger) []vexdb.Option {
	opts := []vexdb.Option{vexdb.WithLogger(logger)}

	switch cfg.Database.Driver {
	case "redis":
		opts = append(opts, vexdb.WithRedisCluster(
			cfg.Database.Addrs, cfg.Database.Username, cfg.Database.Password, cfg.Database.DB,
		))
	default:
		opts = append(opts, vexdb.WithInMemory())
	}

	if cfg.Embedding.APIKey != "" {
		embedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:   cfg.Embedding.APIKey,
			BaseURL:  cfg.Embedding.BaseURL,
			Provider: cfg.Embedding.Provider,
			Logger:   logger,
		})
		opts = append(opts, vexdb.WithEmbedder(embedder))
		if cfg.Embedding.CacheEnabled {
			opts = append(opts, vexdb.WithEmbeddingCache())
		}
	} else {
		logger.Warn("No embedding API key configured; add and query endpoints will be disabled")
	}

	if cfg.Models.Dense != "" {
		opts = append(opts, vexdb.WithDenseModel(cfg.Models.Dense))
	}
	if cfg.Models.Sparse != "" {
		opts = append(opts, vexdb.WithSparseModel(cfg.Models.Sparse))
	}
	if cfg.Search.RRFK > 0 {
		opts = append(opts, vexdb.WithRRFConstant(cfg.Search.RRFK))
	}
	if cfg.Search.Oversampling > 0 {
		opts = append(opts, vexdb.WithOversampling(cfg.Search.Oversampling))
	}
	return opts
}

func activeDense(cfg config.Config) string {
	if cfg.Models.Dense != "" {
		return cfg.Models.Dense
	}
	return "default"
}
