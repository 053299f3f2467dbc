package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cembilgin/placepulse/internal/adapters/http"
	natsadapter "github.com/cembilgin/placepulse/internal/adapters/nats"
	"github.com/cembilgin/placepulse/internal/adapters/postgres"
	"github.com/cembilgin/placepulse/internal/adapters/valkey"
	"github.com/cembilgin/placepulse/internal/core/usecases"
	"github.com/cembilgin/placepulse/internal/pkg/config"
	"github.com/cembilgin/placepulse/internal/pkg/logging"
	"github.com/cembilgin/placepulse/internal/pkg/metrics"
	"github.com/cembilgin/placepulse/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("placepulse-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("placepulse-api", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Valkey: one client shared by cache, presence tree, and state store
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vk.Close()

	cache := valkey.NewCache(vk)
	presenceStore := valkey.NewPresenceStore(vk)
	stateStore := valkey.NewStateStore(vk)

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Repos
	venueRepo := postgres.NewVenueRepo(db)
	profileRepo := postgres.NewProfileRepo(db)
	visitRepo := postgres.NewVisitRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	chatRepo := postgres.NewChatRepo(db)

	// Use cases
	registry := usecases.NewSessionRegistry()
	reconciler := usecases.NewReconcilerService(presenceStore, profileRepo, pub,
		time.Duration(cfg.Presence.FreshnessWindow)*time.Second)
	proximitySvc := usecases.NewProximityService(venueRepo, profileRepo, visitRepo,
		presenceStore, stateStore, pub, cache,
		cfg.Presence.RadiusMeters,
		time.Duration(cfg.Presence.CooldownSeconds)*time.Second)
	venueSvc := usecases.NewVenueService(venueRepo, visitRepo, reconciler, cache, pub)
	profileSvc := usecases.NewProfileService(profileRepo, notificationRepo, nil)
	chatSvc := usecases.NewChatService(chatRepo, profileRepo, nil)
	notificationSvc := usecases.NewNotificationService(notificationRepo)
	presenceSvc := usecases.NewPresenceService(presenceStore, stateStore, pub, registry,
		time.Duration(cfg.Presence.OfflineAfter)*time.Second)

	deps := &http.Dependencies{
		Proximity:     proximitySvc,
		Venues:        venueSvc,
		Profiles:      profileSvc,
		Chats:         chatSvc,
		Notifications: notificationSvc,
		Presence:      presenceSvc,
		Sessions:      registry,
		NATS:          natsConn,
		DB:            db,
		Cache:         cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "PlacePulse API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.placepulse.app",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-User-ID, X-Device-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
