package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/cembilgin/placepulse/internal/adapters/nats"
	"github.com/cembilgin/placepulse/internal/adapters/postgres"
	"github.com/cembilgin/placepulse/internal/adapters/valkey"
	"github.com/cembilgin/placepulse/internal/core/usecases"
	"github.com/cembilgin/placepulse/internal/pkg/config"
	"github.com/cembilgin/placepulse/internal/pkg/logging"
	"github.com/cembilgin/placepulse/internal/workflows"
)

// reconciler runs the periodic presence sweep as a Temporal cron workflow:
// every few minutes each venue's entries are pruned of stale and offline
// users, so crashed clients never linger in the live lists.
func main() {
	cfg, err := config.Load("placepulse-reconciler")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("placepulse-reconciler", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (venue catalog, profile joins)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	venueRepo := postgres.NewVenueRepo(db)
	profileRepo := postgres.NewProfileRepo(db)

	// Valkey presence store
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vk.Close()

	presenceStore := valkey.NewPresenceStore(vk)

	// Publisher for checkout events emitted by pruning
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	reconciler := usecases.NewReconcilerService(presenceStore, profileRepo, pub,
		time.Duration(cfg.Presence.FreshnessWindow)*time.Second)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(workflows.ReconcileWorkflow)
	w.RegisterActivity(&workflows.ReconcileActivities{
		Venues:     venueRepo,
		Reconciler: reconciler,
	})

	// Ensure the cron schedule exists. Starting an already-running cron
	// workflow returns an already-started error, which is fine.
	_, err = c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           "presence-reconcile",
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: "*/5 * * * *",
	}, workflows.ReconcileWorkflow)
	if err != nil {
		slog.Warn("cron workflow start", "error", err)
	}

	slog.Info("reconciler worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
