package reminder

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Dispatcher turns due reminders into reminder-due events for the notification side.
type Dispatcher struct {
	db        db.Querier
	repo      *Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	backoff   time.Duration
	now       func() time.Time
}

type DispatcherConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
	Now       func() time.Time
}

func NewDispatcher(q db.Querier, repo *Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		db:        q,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		backoff:   cfg.Backoff,
		now:       cfg.Now,
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchBatch(ctx); err != nil {
				d.logger.Error("reminder dispatch batch failed", "err", err)
			}
		}
	}
}

type duePayload struct {
	ReminderID  string          `json:"reminder_id"`
	ScheduledAt string          `json:"scheduled_at"`
	Reminder    json.RawMessage `json:"reminder"`
	Error       string          `json:"error_reason,omitempty"`
	FailedAt    string          `json:"failed_at,omitempty"`
}

// DispatchBatch claims due reminders, enqueues a due event per reminder and records
// the outcome. Reminders whose event cannot be enqueued are retried after the backoff
// and dead-lettered once attempts run out.
func (d *Dispatcher) DispatchBatch(ctx context.Context) error {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	jobs, err := d.repo.FetchDue(ctx, tx, d.batchSize)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return tx.Commit(ctx)
	}

	var done []string
	var failed []Job
	for _, job := range jobs {
		jobCtx := otelx.TraceContext{Parent: job.Traceparent, State: job.Tracestate}.Attach(ctx)
		if err := d.enqueue(jobCtx, tx, job, outbox.TypeReminderDue, ""); err != nil {
			d.logger.Warn("reminder enqueue failed", "reminder_id", job.ID, "err", err)
			failed = append(failed, job)
			continue
		}
		done = append(done, job.ID)
	}

	if err := d.repo.MarkDispatched(ctx, tx, done); err != nil {
		return err
	}

	for _, job := range failed {
		attempts := job.Attempts + 1
		next := d.now().UTC().Add(d.backoff)
		if err := d.repo.MarkFailed(ctx, tx, job.ID, attempts, job.MaxAttempts, next, "outbox enqueue failed"); err != nil {
			return err
		}
		if attempts >= job.MaxAttempts {
			jobCtx := otelx.TraceContext{Parent: job.Traceparent, State: job.Tracestate}.Attach(ctx)
			if err := d.enqueue(jobCtx, tx, job, outbox.TypeReminderDLQ, "max attempts reached"); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	if len(done) > 0 {
		d.logger.Info("reminders dispatched", "count", len(done))
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, tx pgx.Tx, job Job, eventType, reason string) error {
	p := duePayload{
		ReminderID:  job.ID,
		ScheduledAt: job.ScheduledAt.UTC().Format(time.RFC3339),
		Reminder:    json.RawMessage(job.Payload),
		Error:       reason,
	}
	if len(p.Reminder) == 0 {
		p.Reminder = json.RawMessage("{}")
	}
	if reason != "" {
		p.FailedAt = d.now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return d.outbox.Insert(ctx, tx, outbox.Event{
		TenantID:      job.TenantID,
		AggregateType: "reminder",
		AggregateID:   job.AppointmentID,
		EventType:     eventType,
		Payload:       body,
	})
}
