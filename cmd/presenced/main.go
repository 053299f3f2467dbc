package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/cembilgin/placepulse/internal/adapters/nats"
	"github.com/cembilgin/placepulse/internal/adapters/postgres"
	"github.com/cembilgin/placepulse/internal/adapters/valkey"
	"github.com/cembilgin/placepulse/internal/core/domain"
	"github.com/cembilgin/placepulse/internal/core/usecases"
	"github.com/cembilgin/placepulse/internal/pkg/config"
	"github.com/cembilgin/placepulse/internal/pkg/logging"
)

// presenced consumes presence events off the broker and keeps the presence
// store current: statuses are folded into the store, check-ins fan out
// visit notifications to followers, and silent users are swept offline.
func main() {
	cfg, err := config.Load("placepulse-presenced")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("placepulse-presenced", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (follower lookups, notifications)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	profileRepo := postgres.NewProfileRepo(db)
	notificationRepo := postgres.NewNotificationRepo(db)
	venueRepo := postgres.NewVenueRepo(db)

	// Valkey presence store
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vk.Close()

	presenceStore := valkey.NewPresenceStore(vk)
	stateStore := valkey.NewStateStore(vk)

	// Publisher for status broadcasts out of the sweeper
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	registry := usecases.NewSessionRegistry()
	presenceSvc := usecases.NewPresenceService(presenceStore, stateStore, pub, registry,
		time.Duration(cfg.Presence.OfflineAfter)*time.Second)

	// Subscriber
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	// Status workqueue: fold every broadcast status into the store so other
	// instances see heartbeats processed anywhere.
	err = sub.SubscribeStatus(ctx, func(ctx context.Context, st *domain.OnlineStatus) error {
		return presenceStore.SetStatus(ctx, st)
	})
	if err != nil {
		log.Fatalf("subscribe status: %v", err)
	}

	// Check-in fan-out: notify the user's followers about the visit.
	err = sub.SubscribeCheckIns(ctx, func(ctx context.Context, e *domain.PresenceEvent) error {
		followers, err := profileRepo.ListFollowers(ctx, e.UserID)
		if err != nil {
			return err
		}
		if len(followers) == 0 {
			return nil
		}

		var actorName, actorPhoto, venueName string
		if p, err := profileRepo.GetByID(ctx, e.UserID); err == nil && p != nil {
			actorName, actorPhoto = p.Name, p.PhotoURL
		}
		if v, err := venueRepo.GetByID(ctx, e.VenueID); err == nil && v != nil {
			venueName = v.Name
		}

		for _, f := range followers {
			_, err := notificationRepo.Create(ctx, &domain.Notification{
				Type:       domain.NotificationPlaceVisit,
				FromUserID: e.UserID,
				ToUserID:   f.ID,
				Data: map[string]any{
					"actor_name":  actorName,
					"actor_photo": actorPhoto,
					"venue_id":    e.VenueID,
					"venue_name":  venueName,
				},
				CreatedAt: e.Time,
			})
			if err != nil {
				slog.Warn("visit notification failed", "follower", f.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe checkins: %v", err)
	}

	slog.Info("presenced started",
		"offline_after_seconds", cfg.Presence.OfflineAfter)

	// Offline sweep: flip users whose heartbeat went quiet.
	sweepTicker := time.NewTicker(30 * time.Second)
	defer sweepTicker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			flipped, err := presenceSvc.SweepOffline(ctx)
			if err != nil {
				slog.Warn("offline sweep failed", "error", err)
				continue
			}
			if flipped > 0 {
				slog.Info("offline sweep", "flipped", flipped)
			}
		case sig := <-quit:
			slog.Info("shutting down presenced", "signal", sig.String())
			cancel()
			time.Sleep(2 * time.Second)
			return
		case <-ctx.Done():
			return
		}
	}
}
