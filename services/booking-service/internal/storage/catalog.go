package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func (r *Repository) CreateTenant(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO tenants (slug, name, timezone)
		VALUES (lower($1), $2, $3)
		RETURNING id::text, slug
	`, t.Slug, t.Name, t.Timezone).Scan(&t.ID, &t.Slug)
	return t, err
}

func (r *Repository) CreateStaff(ctx context.Context, s model.Staff) (model.Staff, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO staff (tenant_id, name, color_tag)
		VALUES ($1, $2, $3)
		RETURNING id::text, active, created_at
	`, s.TenantID, s.Name, s.ColorTag).Scan(&s.ID, &s.Active, &s.CreatedAt)
	if IsForeignKeyViolation(err) {
		return model.Staff{}, model.ErrNotFound
	}
	return s, err
}

// SetStaffActive soft-(de)activates a staff member; rows are never deleted while
// appointments reference them.
func (r *Repository) SetStaffActive(ctx context.Context, tenantID, staffID string, active bool) (model.Staff, error) {
	s, err := scanStaff(r.db.QueryRow(ctx, `
		UPDATE staff SET active = $3
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+staffColumns+`
	`, tenantID, staffID, active))
	return s, notFound(err)
}

func (r *Repository) CreateService(ctx context.Context, s model.Service) (model.Service, error) {
	out, err := scanService(r.db.QueryRow(ctx, `
		INSERT INTO services (tenant_id, name, duration_minutes, price_minor_units, active, visible_online)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+serviceColumns+`
	`, s.TenantID, s.Name, s.DurationMinutes, s.PriceMinorUnits, s.Active, s.VisibleOnline))
	if IsForeignKeyViolation(err) {
		return model.Service{}, model.ErrNotFound
	}
	return out, err
}

func (r *Repository) AssignStaffToService(ctx context.Context, tenantID, staffID, serviceID string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO staff_services (tenant_id, staff_id, service_id)
		SELECT $1, st.id, sv.id
		FROM staff st, services sv
		WHERE st.tenant_id = $1 AND st.id = $2 AND sv.tenant_id = $1 AND sv.id = $3
		ON CONFLICT DO NOTHING
	`, tenantID, staffID, serviceID)
	if err != nil {
		return notFound(err)
	}
	if tag.RowsAffected() == 0 {
		return r.pairExists(ctx, tenantID, staffID, serviceID)
	}
	return nil
}

func (r *Repository) pairExists(ctx context.Context, tenantID, staffID, serviceID string) error {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM staff WHERE tenant_id = $1 AND id = $2)
		   AND EXISTS (SELECT 1 FROM services WHERE tenant_id = $1 AND id = $3)
	`, tenantID, staffID, serviceID).Scan(&ok)
	if err != nil {
		return notFound(err)
	}
	if !ok {
		return model.ErrNotFound
	}
	return nil
}

func (r *Repository) UnassignStaffFromService(ctx context.Context, tenantID, staffID, serviceID string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM staff_services
		WHERE tenant_id = $1 AND staff_id = $2 AND service_id = $3
	`, tenantID, staffID, serviceID)
	if err != nil {
		return notFound(err)
	}
	if tag.RowsAffected() == 0 {
		return r.pairExists(ctx, tenantID, staffID, serviceID)
	}
	return nil
}

// ReplaceTimeBlocks swaps a staff member's weekly schedule in one transaction.
func (r *Repository) ReplaceTimeBlocks(ctx context.Context, tenantID, staffID string, blocks []model.TimeBlock) ([]model.TimeBlock, error) {
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]model.TimeBlock, 0, len(blocks))
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM staff WHERE tenant_id = $1 AND id = $2)
		`, tenantID, staffID).Scan(&exists); err != nil {
			return notFound(err)
		}
		if !exists {
			return model.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM time_blocks WHERE tenant_id = $1 AND staff_id = $2`, tenantID, staffID); err != nil {
			return err
		}
		for _, b := range blocks {
			b.TenantID, b.StaffID = tenantID, staffID
			if err := tx.QueryRow(ctx, `
				INSERT INTO time_blocks (tenant_id, staff_id, weekday, block_type, start_minute, end_minute, note)
				VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
				RETURNING id::text
			`, tenantID, staffID, b.Weekday, string(b.Type), b.StartMinute, b.EndMinute, b.Note).Scan(&b.ID); err != nil {
				return err
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) UpsertEntitlements(ctx context.Context, ent model.Entitlements) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenant_entitlements (tenant_id, tier, max_staff, max_monthly_appointments)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id)
		DO UPDATE SET tier = EXCLUDED.tier,
		              max_staff = EXCLUDED.max_staff,
		              max_monthly_appointments = EXCLUDED.max_monthly_appointments,
		              updated_at = now()
	`, ent.TenantID, ent.Tier, ent.MaxStaff, ent.MaxMonthlyAppointments)
	return err
}

func (r *Repository) GetEntitlements(ctx context.Context, tenantID string) (model.Entitlements, bool, error) {
	var ent model.Entitlements
	err := r.db.QueryRow(ctx, `
		SELECT tenant_id::text, tier, max_staff, max_monthly_appointments, updated_at
		FROM tenant_entitlements
		WHERE tenant_id = $1
	`, tenantID).Scan(&ent.TenantID, &ent.Tier, &ent.MaxStaff, &ent.MaxMonthlyAppointments, &ent.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Entitlements{}, false, nil
		}
		return model.Entitlements{}, false, err
	}
	return ent, true, nil
}

func (r *Repository) CountActiveStaff(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM staff WHERE tenant_id = $1 AND active`, tenantID).Scan(&n)
	return n, err
}

func (r *Repository) CountAppointmentsInRange(ctx context.Context, tenantID string, startInclusive, endExclusive time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE tenant_id = $1
		  AND status <> 'CANCELLED'
		  AND start_at >= $2
		  AND start_at < $3
	`, tenantID, startInclusive, endExclusive).Scan(&n)
	return n, err
}
