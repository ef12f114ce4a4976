package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"image-vault/internal/artifact"
	"image-vault/internal/cachefolder"
	"image-vault/internal/database"
	"image-vault/internal/logging"
	"image-vault/internal/onboarding"
	"image-vault/internal/processor"
	"image-vault/internal/queue"
	"image-vault/internal/scanner"
	"image-vault/internal/server"
	"image-vault/internal/startup"
	"image-vault/internal/workers"
)

const queueSize = 256

func main() {
	startTime := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	if config.VipsEnabled {
		if err := processor.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure-Go decoding: %v", err)
			config.VipsEnabled = false
		} else {
			defer processor.ShutdownVips()
		}
	}

	// Database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Cache folders
	registry := cachefolder.NewRegistry(db, config.FallbackDir)
	configured, err := startup.LoadCacheFolders(config.FoldersFile)
	if err != nil {
		logging.Fatal("Failed to load cache folder configuration: %v", err)
	}
	snap, err := registry.LoadConfigured(ctx, configured)
	if err != nil {
		logging.Fatal("Failed to register cache folders: %v", err)
	}
	startup.LogFolderInit(len(snap.Folders), len(configured), snap.Version)

	// Artifact pipeline
	proc := processor.New(config.VipsEnabled)
	store := artifact.NewStore(db, registry, proc, 0)

	workQueue := queue.New(store, db, queueSize)
	workerCount := workers.ForMixed(0)
	workQueue.Start(workerCount)
	startup.LogWorkersStarted(workerCount, queueSize)

	// Onboarding
	orchestrator := onboarding.New(db, db, workQueue, scanner.New())

	// Background expiration sweep
	go runSweeper(ctx, store, config.SweepInterval)

	// Optional library watch mode
	if config.WatchEnabled {
		watcher := scanner.NewWatcher(config.LibraryDir, 5*time.Second, func(parentPath string) {
			req := onboarding.Request{ParentPath: parentPath, IncludeSubfolders: true, ResumeIncomplete: true, AutoScan: true}
			if _, err := orchestrator.Onboard(ctx, req); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("watch-triggered onboarding failed: %v", err)
			}
		})
		go func() {
			if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("library watcher stopped: %v", err)
			}
		}()
	}

	// HTTP servers
	api := server.New(db, registry, orchestrator)
	apiServer := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsServer *http.Server
	if config.MetricsEnabled {
		metricsServer = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     server.MetricsRouter(),
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdown(apiServer, metricsServer, workQueue)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("Server error: %v", err)
	}
	startup.LogShutdownComplete()
}

// runSweeper periodically removes expired artifacts.
func runSweeper(ctx context.Context, store *artifact.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.SweepExpired(ctx, time.Now())
			if err != nil {
				logging.Error("expiration sweep failed: %v", err)
				continue
			}
			logging.Debug("expiration sweep removed %d artifacts", removed)
		}
	}
}

func shutdown(apiServer, metricsServer *http.Server, workQueue *queue.Queue) {
	startup.LogShutdownInitiated("signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("API server shutdown error: %v", err)
	}
	startup.LogShutdownStepComplete("API server stopped")

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Metrics server shutdown error: %v", err)
		}
		startup.LogShutdownStepComplete("Metrics server stopped")
	}

	// Drain accepted artifact work before the database closes.
	workQueue.Close()
	startup.LogShutdownStepComplete("Artifact queue drained")
}
