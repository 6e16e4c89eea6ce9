package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/api"
	"github.com/yourusername/albumgrab-go/internal/app"
	"github.com/yourusername/albumgrab-go/internal/httpx"
	"github.com/yourusername/albumgrab-go/internal/infrastructure"
	"github.com/yourusername/albumgrab-go/internal/robots"
	"github.com/yourusername/albumgrab-go/internal/site"
	"github.com/yourusername/albumgrab-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting albumgrab server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll(filepath.Dir(cfg.Queue.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	repo, err := infrastructure.NewSQLiteRunRepository(cfg.Queue.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open run repository: %w", err)
	}
	defer repo.Close()

	client, err := httpx.New(httpx.Options{
		Proxy:      cfg.HTTP.Proxy,
		Timeout:    cfg.HTTP.Timeout,
		UserAgents: cfg.HTTP.UserAgents,
	})
	if err != nil {
		return fmt.Errorf("failed to create http client: %w", err)
	}

	registry := site.NewRegistry(client, cfg.Download.ChunkSize, log)
	policy := robots.New(client, cfg.Robots.Respect, log)
	orch := app.NewOrchestrator(cfg, client, registry, policy, log)
	queue := app.NewTaskQueue(repo, orch, &cfg.Queue, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task queue: %w", err)
	}

	router := api.SetupRouter(queue, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown did not finish cleanly", zap.Error(err))
	}
	if err := queue.Stop(); err != nil {
		log.Warn("Queue stop did not finish cleanly", zap.Error(err))
	}

	log.Info("Server stopped")
	return nil
}
