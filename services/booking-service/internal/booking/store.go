package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Store is the persistence port of the coordinator. Every method is tenant scoped;
// lookups return model.ErrNotFound when nothing matches.
type Store interface {
	FindTenantBySlug(ctx context.Context, slug string) (model.Tenant, error)
	FindTenantByID(ctx context.Context, tenantID string) (model.Tenant, error)
	FindService(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	FindStaff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
	ListEligibleStaff(ctx context.Context, tenantID, serviceID string) ([]model.Staff, error)
	ListTimeBlocks(ctx context.Context, tenantID, staffID string) ([]model.TimeBlock, error)
	ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error)
	// UpsertCustomer inserts or updates the customer keyed by (TenantID, normalized Email).
	UpsertCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	// WithStaffLock runs fn while holding the exclusive write section for one staff
	// member. Changes made through the scope are committed only if fn returns nil.
	WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(ctx context.Context, scope StaffScope) error) error
	GetAppointment(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error)
	// CancelAppointment marks the appointment CANCELLED and its reminder cancelled.
	// Already cancelled appointments are returned unchanged; completed ones yield
	// model.ErrNotCancellable.
	CancelAppointment(ctx context.Context, tenantID, appointmentID, reason string, at time.Time) (model.Appointment, error)
	ListAppointments(ctx context.Context, tenantID string, f ListFilter) ([]model.Appointment, error)
}

// StaffScope is the view of storage available inside WithStaffLock.
type StaffScope interface {
	ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error)
	// HasCustomerBooking reports whether the customer holds a live appointment for the
	// service over exactly [start, end) with any staff member. Writers for the same
	// customer are serialized until the scope ends.
	HasCustomerBooking(ctx context.Context, tenantID, customerID, serviceID string, start, end time.Time) (bool, error)
	// InsertAppointment returns model.ErrOverlap if the row would overlap a live
	// appointment and model.ErrDuplicate if the customer already holds it.
	InsertAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
}

// ListFilter narrows ListAppointments. Zero values are ignored.
type ListFilter struct {
	StaffID string
	From    time.Time
	To      time.Time
	Limit   int
}

// ReminderScheduler creates the single reminder of an appointment.
type ReminderScheduler interface {
	Schedule(ctx context.Context, b Booking) (model.Reminder, error)
}

// Observer receives booking outcomes. outcome is "ok" or an error Kind.
type Observer interface {
	ObserveBooking(outcome, source string, elapsed time.Duration)
	ObserveReminder(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveBooking(string, string, time.Duration) {}
func (nopObserver) ObserveReminder(string)                       {}
