package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/maltedev/catalog-scraper/internal/api"
	"github.com/maltedev/catalog-scraper/internal/app"
	"github.com/maltedev/catalog-scraper/internal/config"
	"github.com/maltedev/catalog-scraper/internal/jobs"
	"github.com/maltedev/catalog-scraper/internal/queue"
	"github.com/maltedev/catalog-scraper/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine, database and event sinks
	components, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer components.Close()

	manager := jobs.NewManager(components.Executor, components.Sections, components.Mode, queue.NewInMemoryQueue(), logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		manager.StartWorker(ctx)
	}()

	handlers := api.NewHandlers(manager, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", handlers.Health)
	handlers.Routes(r)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}

		// Queued runs finish unless the shutdown deadline passes first.
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("run queue not drained, aborting remaining runs", "error", err)
		}
		cancel()
	}()

	logger.Info("server starting", "addr", server.Addr, "mode", components.Mode, "engine", cfg.Scraper.Engine)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		cancel()
		<-workerDone
		components.Close()
		os.Exit(1)
	}

	<-workerDone
	logger.Info("server stopped")
}
