package booking

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const dateLayout = "2006-01-02"

// StaffDay is one staff member's calendar for a tenant-local date. Open is derived
// from time blocks alone; Free additionally removes live appointments.
type StaffDay struct {
	Staff model.Staff
	Date  string
	Open  []availability.Interval
	Free  []availability.Interval
}

type Slot struct {
	StaffID string
	Start   time.Time
	End     time.Time
}

type SlotQuery struct {
	TenantSlug string
	ServiceID  string
	StaffID    string
	Date       string
}

// openWindows anchors the staff member's open intervals to the tenant-local day
// containing at.
func (c *Coordinator) openWindows(ctx context.Context, tenant model.Tenant, staffID string, at time.Time) ([]availability.Interval, error) {
	blocks, err := c.store.ListTimeBlocks(ctx, tenant.ID, staffID)
	if err != nil {
		return nil, err
	}
	loc := tenant.Location()
	local := at.In(loc)
	mins := availability.OpenIntervals(blocks, tenant.ID, staffID, local.Weekday())
	return availability.WindowsForDay(mins, local, loc), nil
}

func (c *Coordinator) staffDay(ctx context.Context, tenant model.Tenant, staff model.Staff, day time.Time) (StaffDay, error) {
	open, err := c.openWindows(ctx, tenant, staff.ID, day)
	if err != nil {
		return StaffDay{}, err
	}
	sd := StaffDay{Staff: staff, Date: day.In(tenant.Location()).Format(dateLayout), Open: open}
	if len(open) == 0 {
		return sd, nil
	}
	busy, err := c.busy(ctx, tenant.ID, staff.ID, open[0].Start, open[len(open)-1].End)
	if err != nil {
		return StaffDay{}, err
	}
	sd.Free = availability.Subtract(open, busy)
	return sd, nil
}

func (c *Coordinator) busy(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]availability.Interval, error) {
	appts, err := c.store.ListAppointmentsInRange(ctx, tenantID, staffID, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Interval, 0, len(appts))
	for _, a := range appts {
		if a.Live() && conflict.Overlaps(a.StartAt, a.EndAt, start, end) {
			out = append(out, availability.Interval{Start: a.StartAt, End: a.EndAt})
		}
	}
	return out, nil
}

func (c *Coordinator) parseDay(op string, tenant model.Tenant, date string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), tenant.Location())
	if err != nil {
		return time.Time{}, newError(KindValidation, op, "date must be YYYY-MM-DD", err)
	}
	return day, nil
}

// Availability returns the open and free intervals of one staff member on date.
// Reads take no locks; the write path re-validates.
func (c *Coordinator) Availability(ctx context.Context, tenantSlug, staffID, date string) (StaffDay, error) {
	const op = "booking.Availability"
	tenant, err := c.resolveTenant(ctx, op, strings.TrimSpace(tenantSlug), "")
	if err != nil {
		return StaffDay{}, err
	}
	day, err := c.parseDay(op, tenant, date)
	if err != nil {
		return StaffDay{}, err
	}
	staff, err := c.store.FindStaff(ctx, tenant.ID, strings.TrimSpace(staffID))
	if err != nil {
		return StaffDay{}, lookupError(op, "staff", err)
	}
	if !staff.Active {
		return StaffDay{}, newError(KindNotFound, op, "staff not found", nil)
	}
	sd, err := c.staffDay(ctx, tenant, staff, day)
	if err != nil {
		return StaffDay{}, newError(KindDependency, op, "availability lookup failed", err)
	}
	return sd, nil
}

// EligibleStaff lists the active staff who can perform a bookable service.
func (c *Coordinator) EligibleStaff(ctx context.Context, tenantSlug, serviceID string) ([]model.Staff, error) {
	const op = "booking.EligibleStaff"
	tenant, svc, err := c.publicService(ctx, op, tenantSlug, serviceID)
	if err != nil {
		return nil, err
	}
	staff, err := c.resolver.EligibleStaff(ctx, tenant.ID, svc.ID)
	if err != nil {
		return nil, newError(KindDependency, op, "eligibility lookup failed", err)
	}
	return staff, nil
}

// Slots lists bookable start times for a service on date, per eligible staff member
// (or only q.StaffID), skipping starts in the past. Results are ordered by start,
// then by first-fit staff order.
func (c *Coordinator) Slots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	const op = "booking.Slots"
	tenant, svc, err := c.publicService(ctx, op, q.TenantSlug, q.ServiceID)
	if err != nil {
		return nil, err
	}
	day, err := c.parseDay(op, tenant, q.Date)
	if err != nil {
		return nil, err
	}

	staff, err := c.resolver.EligibleStaff(ctx, tenant.ID, svc.ID)
	if err != nil {
		return nil, newError(KindDependency, op, "eligibility lookup failed", err)
	}
	if id := strings.TrimSpace(q.StaffID); id != "" {
		var only []model.Staff
		for _, s := range staff {
			if s.ID == id {
				only = append(only, s)
			}
		}
		if len(only) == 0 {
			return nil, newError(KindValidation, op, "staff is not eligible for this service", nil)
		}
		staff = only
	}

	now := c.now()
	var out []Slot
	for _, s := range staff {
		open, err := c.openWindows(ctx, tenant, s.ID, day)
		if err != nil {
			return nil, newError(KindDependency, op, "time block lookup failed", err)
		}
		if len(open) == 0 {
			continue
		}
		busy, err := c.busy(ctx, tenant.ID, s.ID, open[0].Start, open[len(open)-1].End)
		if err != nil {
			return nil, newError(KindDependency, op, "appointment lookup failed", err)
		}
		for _, w := range open {
			for _, start := range availability.AvailableSlots(w, svc.Duration(), c.slotStep, busy, now) {
				out = append(out, Slot{StaffID: s.ID, Start: start.UTC(), End: start.Add(svc.Duration()).UTC()})
			}
		}
	}
	sortSlots(out)
	return out, nil
}

func (c *Coordinator) publicService(ctx context.Context, op, slug, serviceID string) (model.Tenant, model.Service, error) {
	tenant, err := c.resolveTenant(ctx, op, strings.TrimSpace(slug), "")
	if err != nil {
		return model.Tenant{}, model.Service{}, err
	}
	svc, err := c.store.FindService(ctx, tenant.ID, strings.TrimSpace(serviceID))
	if err != nil {
		return model.Tenant{}, model.Service{}, lookupError(op, "service", err)
	}
	if !svc.Active || !svc.VisibleOnline || svc.DurationMinutes <= 0 {
		return model.Tenant{}, model.Service{}, newError(KindNotFound, op, "service not found", nil)
	}
	return tenant, svc, nil
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
}
