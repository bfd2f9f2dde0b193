package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsnider89/ai-news-digest/app/ai"
	"github.com/jsnider89/ai-news-digest/app/api"
	"github.com/jsnider89/ai-news-digest/app/bootstrap"
	"github.com/jsnider89/ai-news-digest/app/cfg"
	"github.com/jsnider89/ai-news-digest/app/database"
	"github.com/jsnider89/ai-news-digest/app/mail"
	"github.com/jsnider89/ai-news-digest/app/market"
	"github.com/jsnider89/ai-news-digest/app/pipeline"
	"github.com/jsnider89/ai-news-digest/app/scheduler"
)

func main() {
	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting AI News Digest server", "version", appCfg.Version)

	// Database connection and migrations
	db, err := database.NewConnection(appCfg.DataDir)
	if err != nil {
		log.Fatal("Failed to open database: ", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	// Repositories
	newsletterRepo := database.NewNewsletterRepository(db)
	articleRepo := database.NewArticleRepository(db)
	runRepo := database.NewRunRepository(db)
	settingsRepo := database.NewSettingsRepository(db)

	// Register newsletters from bootstrap files
	loader := bootstrap.NewLoader(appCfg.NewslettersDir, newsletterRepo)
	if created, err := loader.Run(); err != nil {
		slog.Warn("Bootstrap loading failed", "error", err)
	} else if created > 0 {
		slog.Info("Newsletters registered from bootstrap files", "created", created)
	}

	// Core components
	httpClient := &http.Client{}
	marketClient := market.NewClient(appCfg.FinnhubAPIKey)
	providers := ai.NewProviders(appCfg.OpenAIAPIKey, appCfg.AnthropicAPIKey,
		time.Duration(appCfg.AITimeout)*time.Second)
	transport := mail.NewTransport(appCfg)
	logBuffer := pipeline.NewLogBuffer(1000)

	pipe := pipeline.NewPipeline(newsletterRepo, articleRepo, runRepo, settingsRepo,
		httpClient, marketClient, providers, transport, logBuffer)
	runner := pipeline.NewRunner(pipe, time.Duration(appCfg.RunDeadline)*time.Second)

	// Scheduler
	sched := scheduler.NewScheduler(newsletterRepo, settingsRepo, runner)
	sched.Start()
	defer sched.Stop()

	// HTTP server
	apiHandler := api.NewHandler(newsletterRepo, articleRepo, runRepo, settingsRepo,
		runner, sched, logBuffer)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey, appCfg.AllowedOrigin)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
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
	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
