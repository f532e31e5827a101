package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	hindsight "github.com/hindsight-ai/hindsight"
	"github.com/hindsight-ai/hindsight/internal/api"
	"github.com/hindsight-ai/hindsight/internal/config"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := hindsight.ConfigFromEnv()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Logger = logger

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	engine, err := hindsight.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize engine", zap.Error(err))
	}
	defer engine.Close()
	logger.Info("engine initialized")

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewRouter(engine, logger),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
