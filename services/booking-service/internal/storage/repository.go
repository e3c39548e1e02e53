// Package storage is the Postgres implementation of the booking storage ports.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/reminder"
)

type Repository struct {
	db        db.Querier
	outbox    *outbox.Repository
	reminders *reminder.Repository
}

func NewRepository(q db.Querier, outboxRepo *outbox.Repository, reminderRepo *reminder.Repository) *Repository {
	return &Repository{db: q, outbox: outboxRepo, reminders: reminderRepo}
}

var _ booking.Store = (*Repository)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) FindTenantBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	var t model.Tenant
	err := r.db.QueryRow(ctx, `
		SELECT id::text, slug, name, timezone
		FROM tenants
		WHERE slug = lower($1)
	`, slug).Scan(&t.ID, &t.Slug, &t.Name, &t.Timezone)
	return t, notFound(err)
}

func (r *Repository) FindTenantByID(ctx context.Context, tenantID string) (model.Tenant, error) {
	var t model.Tenant
	err := r.db.QueryRow(ctx, `
		SELECT id::text, slug, name, timezone
		FROM tenants
		WHERE id = $1
	`, tenantID).Scan(&t.ID, &t.Slug, &t.Name, &t.Timezone)
	return t, notFound(err)
}

const serviceColumns = `id::text, tenant_id::text, name, duration_minutes, price_minor_units, active, visible_online`

func scanService(row scanner) (model.Service, error) {
	var s model.Service
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.PriceMinorUnits, &s.Active, &s.VisibleOnline)
	return s, err
}

func (r *Repository) FindService(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	s, err := scanService(r.db.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID))
	return s, notFound(err)
}

const staffColumns = `id::text, tenant_id::text, name, color_tag, active, created_at`

func scanStaff(row scanner) (model.Staff, error) {
	var s model.Staff
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.ColorTag, &s.Active, &s.CreatedAt)
	return s, err
}

func (r *Repository) FindStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error) {
	s, err := scanStaff(r.db.QueryRow(ctx, `
		SELECT `+staffColumns+`
		FROM staff
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, staffID))
	return s, notFound(err)
}

func (r *Repository) ListEligibleStaff(ctx context.Context, tenantID, serviceID string) ([]model.Staff, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id::text, s.tenant_id::text, s.name, s.color_tag, s.active, s.created_at
		FROM staff_services ss
		JOIN staff s ON s.id = ss.staff_id AND s.tenant_id = ss.tenant_id
		WHERE ss.tenant_id = $1 AND ss.service_id = $2
		ORDER BY s.created_at, s.id
	`, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ListTimeBlocks(ctx context.Context, tenantID, staffID string) ([]model.TimeBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, tenant_id::text, staff_id::text, weekday, block_type, start_minute, end_minute, COALESCE(note, '')
		FROM time_blocks
		WHERE tenant_id = $1 AND staff_id = $2
		ORDER BY weekday, start_minute
	`, tenantID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeBlock
	for rows.Next() {
		var b model.TimeBlock
		var typ string
		if err := rows.Scan(&b.ID, &b.TenantID, &b.StaffID, &b.Weekday, &typ, &b.StartMinute, &b.EndMinute, &b.Note); err != nil {
			return nil, err
		}
		b.Type = model.BlockType(typ)
		out = append(out, b)
	}
	return out, rows.Err()
}

const appointmentColumns = `id::text, tenant_id::text, customer_id::text, staff_id::text, service_id::text,
	start_at, end_at, status, source, COALESCE(note, ''), cancelled_at, COALESCE(cancel_reason, ''), created_at`

func scanAppointment(row scanner) (model.Appointment, error) {
	var a model.Appointment
	var status, source string
	var cancelledAt *time.Time
	err := row.Scan(&a.ID, &a.TenantID, &a.CustomerID, &a.StaffID, &a.ServiceID,
		&a.StartAt, &a.EndAt, &status, &source, &a.Note, &cancelledAt, &a.CancelReason, &a.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.Status(status)
	a.Source = model.Source(source)
	a.CancelledAt = cancelledAt
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listInRange(ctx context.Context, q querier, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND staff_id = $2
		  AND status <> 'CANCELLED'
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at
	`, tenantID, staffID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *Repository) ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	return listInRange(ctx, r.db, tenantID, staffID, start, end)
}

// UpsertCustomer relies on UNIQUE (tenant_id, email) so concurrent first bookings
// from one address converge on a single row.
func (r *Repository) UpsertCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	c.Email = model.NormalizeEmail(c.Email)
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, name, email, phone, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, email)
		DO UPDATE SET name = EXCLUDED.name,
		              phone = COALESCE(NULLIF(EXCLUDED.phone, ''), customers.phone),
		              notes = COALESCE(NULLIF(EXCLUDED.notes, ''), customers.notes),
		              updated_at = now()
		RETURNING id::text, name, COALESCE(phone, ''), COALESCE(notes, '')
	`, c.TenantID, c.Name, c.Email, c.Phone, c.Notes).Scan(&c.ID, &c.Name, &c.Phone, &c.Notes)
	if err != nil {
		return model.Customer{}, err
	}
	return c, nil
}

// WithStaffLock serializes writers for one staff member with a transaction-scoped
// advisory lock. The exclusion constraint on appointments still rejects overlaps
// from any writer that bypasses the lock.
func (r *Repository) WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(ctx context.Context, scope booking.StaffScope) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, tenantID+"/"+staffID); err != nil {
			return fmt.Errorf("acquire staff lock: %w", err)
		}
		return fn(ctx, &staffScope{tx: tx, outbox: r.outbox})
	})
}

type staffScope struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (s *staffScope) ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	return listInRange(ctx, s.tx, tenantID, staffID, start, end)
}

// HasCustomerBooking takes a second advisory lock keyed by the customer, so retries
// of one booking routed to different staff members cannot both insert.
func (s *staffScope) HasCustomerBooking(ctx context.Context, tenantID, customerID, serviceID string, start, end time.Time) (bool, error) {
	if _, err := s.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "customer:"+tenantID+"/"+customerID); err != nil {
		return false, fmt.Errorf("acquire customer lock: %w", err)
	}
	var held bool
	err := s.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE tenant_id = $1 AND customer_id = $2 AND service_id = $3
			  AND start_at = $4 AND end_at = $5 AND status <> 'CANCELLED'
		)
	`, tenantID, customerID, serviceID, start, end).Scan(&held)
	return held, err
}

func (s *staffScope) InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	err := s.tx.QueryRow(ctx, `
		INSERT INTO appointments (tenant_id, customer_id, staff_id, service_id, start_at, end_at, status, source, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING id::text, created_at
	`, a.TenantID, a.CustomerID, a.StaffID, a.ServiceID, a.StartAt, a.EndAt, string(a.Status), string(a.Source), a.Note).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, model.ErrOverlap
		}
		return model.Appointment{}, err
	}

	payload, err := appointmentPayload(a)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.outbox.Insert(ctx, s.tx, outbox.Event{
		TenantID:      a.TenantID,
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.TypeAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func appointmentPayload(a model.Appointment) ([]byte, error) {
	m := map[string]any{
		"appointment_id": a.ID,
		"tenant_id":      a.TenantID,
		"customer_id":    a.CustomerID,
		"staff_id":       a.StaffID,
		"service_id":     a.ServiceID,
		"start_at":       a.StartAt.UTC().Format(time.RFC3339),
		"end_at":         a.EndAt.UTC().Format(time.RFC3339),
		"status":         a.Status,
		"source":         a.Source,
	}
	if a.CancelledAt != nil {
		m["cancelled_at"] = a.CancelledAt.UTC().Format(time.RFC3339)
		m["reason"] = a.CancelReason
	}
	return json.Marshal(m)
}

func (r *Repository) GetAppointment(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, appointmentID))
	return a, notFound(err)
}

func (r *Repository) CancelAppointment(ctx context.Context, tenantID, appointmentID, reason string, at time.Time) (model.Appointment, error) {
	var out model.Appointment
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		a, err := scanAppointment(tx.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE tenant_id = $1 AND id = $2
			FOR UPDATE
		`, tenantID, appointmentID))
		if err != nil {
			return notFound(err)
		}
		switch a.Status {
		case model.StatusCancelled:
			out = a
			return nil
		case model.StatusCompleted:
			return model.ErrNotCancellable
		}

		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = 'CANCELLED', cancelled_at = $3, cancel_reason = NULLIF($4, '')
			WHERE tenant_id = $1 AND id = $2
		`, tenantID, appointmentID, at, reason); err != nil {
			return err
		}
		if err := r.reminders.CancelForAppointment(ctx, tx, tenantID, appointmentID); err != nil {
			return err
		}

		a.Status = model.StatusCancelled
		a.CancelledAt = &at
		a.CancelReason = reason
		payload, err := appointmentPayload(a)
		if err != nil {
			return err
		}
		if err := r.outbox.Insert(ctx, tx, outbox.Event{
			TenantID:      tenantID,
			AggregateType: "appointment",
			AggregateID:   a.ID,
			EventType:     outbox.TypeAppointmentCancelled,
			Payload:       payload,
		}); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

func (r *Repository) ListAppointments(ctx context.Context, tenantID string, f booking.ListFilter) ([]model.Appointment, error) {
	var from, to *time.Time
	if !f.From.IsZero() {
		from = &f.From
	}
	if !f.To.IsZero() {
		to = &f.To
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		  AND ($2 = '' OR staff_id::text = $2)
		  AND ($3::timestamptz IS NULL OR end_at > $3)
		  AND ($4::timestamptz IS NULL OR start_at < $4)
		ORDER BY start_at
		LIMIT $5
	`, tenantID, f.StaffID, from, to, f.Limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}
