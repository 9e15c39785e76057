package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lysyi3m/listing-comb/app/api"
	"github.com/lysyi3m/listing-comb/app/cfg"
	"github.com/lysyi3m/listing-comb/app/collect"
	"github.com/lysyi3m/listing-comb/app/database"
	"github.com/lysyi3m/listing-comb/app/filter"
	"github.com/lysyi3m/listing-comb/app/metrics"
	"github.com/lysyi3m/listing-comb/app/publish"
	"github.com/lysyi3m/listing-comb/app/rules"
	"github.com/lysyi3m/listing-comb/app/service"
	"github.com/lysyi3m/listing-comb/app/source"
	"github.com/lysyi3m/listing-comb/app/tasks"
)

func main() {
	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown or parsing failed, exit gracefully
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Listing Comb", "version", appCfg.Version, "port", appCfg.Port, "workers", appCfg.WorkerCount)

	// Database connection
	store, closeStore, err := openStore(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open storage", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Load source definitions
	registry, err := source.NewRegistry(source.Defaults())
	if err != nil {
		slog.Error("Failed to build source registry", "error", err)
		os.Exit(1)
	}
	applied, err := source.NewLoader(appCfg.SourcesDir).Run(registry)
	if err != nil {
		slog.Error("Failed to load source overrides", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "sources", registry.Count(), "overrides", applied)

	// Initialize core components
	fetcher := collect.NewHTTPFetcher(&http.Client{}, appCfg.UserAgent)
	pipeline := collect.NewPipeline(registry, fetcher, collect.NewParsers(),
		collect.NewNormalizer(filter.NewSanitizer(), filter.NewFilterer()), collect.NewLimiters())
	engine := rules.NewEngine()
	svc := service.New(store, registry, pipeline, tasks.NewManager(store), engine, publish.NewPublisher(engine))

	// Seed batch edit rules
	seeds, err := rules.LoadSeeds(appCfg.RulesFile)
	if err != nil {
		slog.Error("Failed to load seed rules", "file", appCfg.RulesFile, "error", err)
		os.Exit(1)
	}
	if added, err := svc.SeedRules(seeds); err != nil {
		slog.Error("Failed to seed rules", "error", err)
		os.Exit(1)
	} else if added > 0 {
		slog.Info("Seed rules stored", "added", added, "file", appCfg.RulesFile)
	}

	// Initialize and start scheduler
	scheduler := tasks.NewScheduler(appCfg.WorkerCount, metrics.JobObserver{})
	scheduler.Start()
	defer scheduler.Stop()

	// Resume tasks interrupted by the last shutdown
	pending, err := svc.RecoverTasks()
	if err != nil {
		slog.Error("Failed to recover tasks", "error", err)
		os.Exit(1)
	}
	for _, id := range pending {
		if err := scheduler.EnqueueTask(tasks.NewCollectTask(id, svc)); err != nil {
			slog.Warn("Failed to re-enqueue pending task", "task_id", id, "error", err)
		}
	}
	if len(pending) > 0 {
		slog.Info("Pending tasks re-enqueued", "count", len(pending))
	}

	// Initialize HTTP server
	handler := api.NewHandler(svc, registry, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	// Create HTTP server with timeouts
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start HTTP server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	// Graceful shutdown
	slog.Info("Shutting down server gracefully")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
}

// openStore returns the sqlite store, or an in-memory one when path is empty.
func openStore(path string) (database.Store, func(), error) {
	if path == "" {
		slog.Warn("No database path configured, records are kept in memory only")
		return database.NewMemoryStore(), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := database.Open(path)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Database ready", "path", path)

	return database.NewSQLStore(db), func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}, nil
}
