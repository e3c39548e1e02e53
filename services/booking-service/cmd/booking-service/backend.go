package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminder"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

// store is everything the service needs from its persistence layer.
type store interface {
	booking.Store
	handlers.Catalog
	limits.Counter
	consumer.EntitlementsWriter
}

type backend struct {
	driver    string
	store     store
	reminders reminder.Store
	inbox     consumer.Inbox
	checks    []runtime.ReadyCheck
	workers   []func(context.Context)
	close     func()
}

func openBackend(ctx context.Context, logger *slog.Logger, driver string) (*backend, error) {
	switch driver {
	case "memory":
		st := memstore.New()
		if err := seedDemo(ctx, st); err != nil {
			return nil, fmt.Errorf("seed demo tenant: %w", err)
		}
		logger.Warn("using in-memory store; data is lost on restart", "tenant", demoSlug)
		return &backend{
			driver:    driver,
			store:     st,
			reminders: st,
			inbox:     inbox.NewMemory(),
			close:     func() {},
		}, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			return nil, fmt.Errorf("db connection: %w", err)
		}

		outboxRepo := outbox.NewRepository()
		reminderRepo := reminder.NewRepository()
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   config.String("KAFKA_BROKERS", ""),
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		dispatcher := reminder.NewDispatcher(pool, reminderRepo, outboxRepo, logger, reminder.DispatcherConfig{
			Interval: time.Duration(config.Int("REMINDER_POLL_SECONDS", 5)) * time.Second,
		})
		return &backend{
			driver:    driver,
			store:     storage.NewRepository(pool, outboxRepo, reminderRepo),
			reminders: reminder.NewPgStore(pool, reminderRepo, outboxRepo),
			inbox:     inbox.NewRepository(pool),
			checks:    []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
			workers:   []func(context.Context){publisher.Run, dispatcher.Run},
			close:     pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres or memory)", driver)
	}
}
