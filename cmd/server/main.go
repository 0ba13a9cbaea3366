package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tavira/kestrel/internal/bridge"
	"github.com/tavira/kestrel/internal/config"
	"github.com/tavira/kestrel/internal/database"
	"github.com/tavira/kestrel/internal/handler"
	"github.com/tavira/kestrel/internal/notify"
	"github.com/tavira/kestrel/internal/scheduler"
	"github.com/tavira/kestrel/internal/service"
	"github.com/tavira/kestrel/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Kestrel Relay Scheduler", "version", version)

	loc, err := cfg.Location()
	if err != nil {
		slog.Error("Failed to resolve time zone", "error", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize the store
	st := database.NewStore(db)

	// Initialize the device bridge (optional)
	var publisher bridge.Publisher
	if cfg.MQTTBroker != "" {
		pub, err := bridge.NewPahoPublisher(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			slog.Error("Failed to connect to MQTT broker", "broker", cfg.MQTTBroker, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
		slog.Info("Device bridge connected", "broker", cfg.MQTTBroker)
	} else {
		slog.Info("Device bridge disabled")
	}

	// Initialize the notifier
	var notifier notify.Notifier = notify.Nop{}
	if cfg.PushEnabled {
		notifier = notify.NewPush(st, cfg.PushEndpoint, cfg.PushTimeout)
	}

	// Initialize services
	runner := service.NewRunner(st, notifier, publisher, loc)
	scheduleService := service.NewScheduleService(st)
	relayService := service.NewRelayService(st, publisher, cfg.CoupleScheduleToggle)

	// Initialize the periodic trigger
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(runner, loc)
		if err := sched.Start(ctx); err != nil {
			slog.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Scheduler is disabled by configuration")
	}

	// Initialize handlers
	scheduleHandler := handler.NewScheduleHandler(scheduleService)
	relayHandler := handler.NewRelayHandler(relayService)
	runHandler := handler.NewRunHandler(runner)
	healthHandler := handler.NewHealthHandler(st, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		scheduleHandler,
		relayHandler,
		runHandler,
		healthHandler,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduler first (wait for in-flight evaluation)
	if sched != nil {
		slog.Info("Stopping scheduler...")
		sched.Stop(shutdownCtx)
	}

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Kestrel Relay Scheduler stopped")
}
