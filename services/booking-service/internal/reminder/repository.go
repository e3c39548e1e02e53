package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

// Job is a claimed reminder row.
type Job struct {
	ID            string
	TenantID      string
	AppointmentID string
	Channel       string
	ScheduledAt   time.Time
	Payload       []byte
	Traceparent   string
	Tracestate    string
	Attempts      int
	MaxAttempts   int
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert adds the reminder only while its appointment is live. The appointment row is
// share-locked so a concurrent cancel either sees the reminder or blocks the insert.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, rem model.Reminder) (string, error) {
	tc := otelx.CaptureTraceContext(ctx)
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO reminders (tenant_id, appointment_id, channel, scheduled_at, payload, next_run_at, traceparent, tracestate)
		SELECT a.tenant_id, a.id, $3, $4, $5, $4, $6, $7
		FROM appointments a
		WHERE a.tenant_id = $1 AND a.id = $2 AND a.status <> 'CANCELLED'
		FOR SHARE
		RETURNING id::text
	`, rem.TenantID, rem.AppointmentID, rem.Channel, rem.ScheduledAt, rem.Payload, tc.Parent, tc.State).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrNotLive
	}
	return id, err
}

func (r *Repository) FetchDue(ctx context.Context, tx pgx.Tx, limit int) ([]Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, tenant_id::text, appointment_id::text, channel, scheduled_at, payload, traceparent, tracestate, attempts, max_attempts
		FROM reminders
		WHERE status = 'pending' AND next_run_at <= now()
		ORDER BY next_run_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.TenantID, &j.AppointmentID, &j.Channel, &j.ScheduledAt, &j.Payload, &j.Traceparent, &j.Tracestate, &j.Attempts, &j.MaxAttempts); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}

func (r *Repository) MarkDispatched(ctx context.Context, tx pgx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'dispatched', attempts = attempts + 1, updated_at = now()
		WHERE id = ANY($1::uuid[])
	`, ids)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, tx pgx.Tx, id string, attempts, maxAttempts int, nextRunAt time.Time, lastError string) error {
	status := model.ReminderPending
	if attempts >= maxAttempts {
		status = model.ReminderFailed
	}
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET attempts = $2,
		    status = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, attempts, string(status), nextRunAt, lastError)
	return err
}

// CancelForAppointment orphan-marks a pending reminder when its appointment is cancelled.
func (r *Repository) CancelForAppointment(ctx context.Context, tx pgx.Tx, tenantID, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reminders
		SET status = 'cancelled', updated_at = now()
		WHERE tenant_id = $1 AND appointment_id = $2 AND status = 'pending'
	`, tenantID, appointmentID)
	return err
}

// PgStore is the Postgres Store: the reminder row and its requested event commit together.
type PgStore struct {
	db     db.Querier
	repo   *Repository
	outbox *outbox.Repository
}

func NewPgStore(q db.Querier, repo *Repository, outboxRepo *outbox.Repository) *PgStore {
	return &PgStore{db: q, repo: repo, outbox: outboxRepo}
}

func (s *PgStore) InsertReminder(ctx context.Context, rem model.Reminder) (model.Reminder, error) {
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		id, err := s.repo.Insert(ctx, tx, rem)
		if err != nil {
			return err
		}
		rem.ID = id
		return s.outbox.Insert(ctx, tx, outbox.Event{
			TenantID:      rem.TenantID,
			AggregateType: "reminder",
			AggregateID:   rem.AppointmentID,
			EventType:     outbox.TypeReminderRequested,
			Payload:       rem.Payload,
		})
	})
	if err != nil {
		return model.Reminder{}, err
	}
	rem.Status = model.ReminderPending
	return rem, nil
}
