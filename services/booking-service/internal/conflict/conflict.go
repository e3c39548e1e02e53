// Package conflict decides whether a staff member is free for a half-open interval.
package conflict

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Touching
// intervals do not overlap, so back-to-back bookings are allowed.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// AppointmentLister returns appointments of one staff member that intersect [start, end).
// Implementations must scope the query to tenantID.
type AppointmentLister interface {
	ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error)
}

// HasConflict reports whether any live appointment of (tenantID, staffID) overlaps
// [start, end). The lister decides which snapshot is consulted; inside a per-staff
// lock that is the committed state the insert will be checked against.
func HasConflict(ctx context.Context, lister AppointmentLister, tenantID, staffID string, start, end time.Time) (bool, error) {
	appts, err := lister.ListAppointmentsInRange(ctx, tenantID, staffID, start, end)
	if err != nil {
		return false, err
	}
	return AnyOverlap(appts, tenantID, staffID, start, end), nil
}

// AnyOverlap is the pure form of HasConflict over an already loaded slice.
func AnyOverlap(appts []model.Appointment, tenantID, staffID string, start, end time.Time) bool {
	for _, a := range appts {
		if a.TenantID != tenantID || a.StaffID != staffID || !a.Live() {
			continue
		}
		if Overlaps(a.StartAt, a.EndAt, start, end) {
			return true
		}
	}
	return false
}
