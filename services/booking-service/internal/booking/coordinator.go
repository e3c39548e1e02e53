// Package booking coordinates appointment creation: tenant and service resolution,
// plan limits, customer upsert, staff selection under a per-staff lock, and the
// best-effort reminder that follows a commit.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/assign"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/eligibility"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

var tracer = otel.Tracer("booking-service/booking")

type CustomerInfo struct {
	Name  string
	Email string
	Phone string
	Notes string
}

// CreateRequest identifies the tenant either by public slug (online) or by id
// (authenticated staff). Limit, when set, is a precomputed plan decision that
// replaces the configured gate.
type CreateRequest struct {
	TenantSlug string
	TenantID   string
	ServiceID  string
	StaffID    string
	StartAt    time.Time
	Customer   CustomerInfo
	Source     model.Source
	Status     model.Status
	Note       string
	Limit      *limits.Usage
}

// Booking is a committed appointment with its resolved summaries.
type Booking struct {
	Tenant      model.Tenant
	Appointment model.Appointment
	Staff       model.Staff
	Service     model.Service
	Customer    model.Customer
}

type Options struct {
	Strategy  assign.Strategy
	Reminders ReminderScheduler
	Limits    limits.Gate
	Observer  Observer
	Logger    *slog.Logger
	Now       func() time.Time
	// RequireWorkingHours rejects intervals outside the staff member's open
	// intervals for the tenant-local day.
	RequireWorkingHours bool
	// SlotStep is the spacing of listed slot starts. Defaults to 15 minutes.
	SlotStep time.Duration
}

type Coordinator struct {
	store        Store
	resolver     *eligibility.Resolver
	strategy     assign.Strategy
	reminders    ReminderScheduler
	limits       limits.Gate
	observer     Observer
	logger       *slog.Logger
	now          func() time.Time
	workingHours bool
	slotStep     time.Duration
}

func NewCoordinator(store Store, opts Options) *Coordinator {
	if opts.Strategy == nil {
		opts.Strategy = assign.FirstFit{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SlotStep <= 0 {
		opts.SlotStep = 15 * time.Minute
	}
	return &Coordinator{
		store:        store,
		resolver:     eligibility.NewResolver(store),
		strategy:     opts.Strategy,
		reminders:    opts.Reminders,
		limits:       opts.Limits,
		observer:     opts.Observer,
		logger:       opts.Logger,
		now:          opts.Now,
		workingHours: opts.RequireWorkingHours,
		slotStep:     opts.SlotStep,
	}
}

var errSlotTaken = errors.New("slot taken")

// CreateAppointment books req. Every step up to the appointment insert is
// all-or-nothing; the reminder that follows is best-effort and never fails the call.
func (c *Coordinator) CreateAppointment(ctx context.Context, req CreateRequest) (b Booking, err error) {
	const op = "booking.CreateAppointment"

	if req.Source == "" {
		req.Source = model.SourceOnline
	}
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("booking.source", string(req.Source)),
		attribute.String("booking.service_id", req.ServiceID),
	))
	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(KindOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		c.observer.ObserveBooking(outcome, string(req.Source), time.Since(started))
		span.End()
	}()

	status, err := c.validate(op, &req)
	if err != nil {
		return Booking{}, err
	}

	tenant, err := c.resolveTenant(ctx, op, req.TenantSlug, req.TenantID)
	if err != nil {
		return Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.tenant_id", tenant.ID))

	svc, err := c.store.FindService(ctx, tenant.ID, req.ServiceID)
	if err != nil {
		return Booking{}, lookupError(op, "service", err)
	}
	if !svc.Active || (req.Source == model.SourceOnline && !svc.VisibleOnline) {
		return Booking{}, newError(KindNotFound, op, "service not found", nil)
	}
	if svc.DurationMinutes <= 0 {
		return Booking{}, newError(KindValidation, op, "service has no duration", nil)
	}
	start := req.StartAt.UTC()
	end := start.Add(svc.Duration())

	if err := c.checkLimit(ctx, op, tenant.ID, req.Limit, start); err != nil {
		return Booking{}, err
	}

	cust, err := c.store.UpsertCustomer(ctx, model.Customer{
		TenantID: tenant.ID,
		Name:     strings.TrimSpace(req.Customer.Name),
		Email:    model.NormalizeEmail(req.Customer.Email),
		Phone:    strings.TrimSpace(req.Customer.Phone),
		Notes:    strings.TrimSpace(req.Customer.Notes),
	})
	if err != nil {
		return Booking{}, newError(KindDependency, op, "customer upsert failed", err)
	}

	candidates, err := c.candidates(ctx, op, tenant, svc, req.StaffID, start, end)
	if err != nil {
		return Booking{}, err
	}

	draft := model.Appointment{
		TenantID:   tenant.ID,
		CustomerID: cust.ID,
		ServiceID:  svc.ID,
		StartAt:    start,
		EndAt:      end,
		Status:     status,
		Source:     req.Source,
		Note:       strings.TrimSpace(req.Note),
	}

	var (
		created model.Appointment
		staff   model.Staff
	)
	if req.StaffID != "" {
		staff = candidates[0]
		appt, ok, err := c.reserve(ctx, staff, draft)
		if err != nil {
			return Booking{}, insertError(op, err)
		}
		if !ok {
			return Booking{}, newError(KindSlotConflict, op, "requested time is already booked", nil)
		}
		created = appt
	} else {
		var ok bool
		staff, ok, err = c.strategy.Assign(ctx, candidates, func(ctx context.Context, s model.Staff) (bool, error) {
			appt, ok, err := c.reserve(ctx, s, draft)
			if ok {
				created = appt
			}
			return ok, err
		})
		if err != nil {
			return Booking{}, insertError(op, err)
		}
		if !ok {
			return Booking{}, newError(KindNoAvailability, op, "no staff available for the requested time", nil)
		}
	}

	b = Booking{Tenant: tenant, Appointment: created, Staff: staff, Service: svc, Customer: cust}
	c.logger.InfoContext(ctx, "appointment booked",
		"tenant_id", tenant.ID,
		"appointment_id", created.ID,
		"staff_id", staff.ID,
		"source", created.Source,
		"start_at", created.StartAt,
	)
	c.scheduleReminder(ctx, b)
	return b, nil
}

func (c *Coordinator) validate(op string, req *CreateRequest) (model.Status, error) {
	req.TenantSlug = strings.TrimSpace(req.TenantSlug)
	req.TenantID = strings.TrimSpace(req.TenantID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)

	if req.TenantSlug == "" && req.TenantID == "" {
		return "", newError(KindValidation, op, "tenant is required", nil)
	}
	if req.ServiceID == "" {
		return "", newError(KindValidation, op, "service_id is required", nil)
	}
	if req.StartAt.IsZero() || !req.StartAt.After(c.now()) {
		return "", newError(KindValidation, op, "start_at must be in the future", nil)
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		return "", newError(KindValidation, op, "customer name is required", nil)
	}
	email := model.NormalizeEmail(req.Customer.Email)
	if email == "" {
		return "", newError(KindValidation, op, "customer email is required", nil)
	}
	// Only a bare address is accepted; it becomes the customer key.
	if addr, err := mail.ParseAddress(email); err != nil || addr.Name != "" || addr.Address != email {
		return "", newError(KindValidation, op, "customer email is invalid", nil)
	}
	req.Customer.Email = email

	switch req.Source {
	case model.SourceOnline:
		return model.StatusPending, nil
	case model.SourceManual:
		switch req.Status {
		case "":
			return model.StatusPending, nil
		case model.StatusPending, model.StatusConfirmed:
			return req.Status, nil
		}
		return "", newError(KindValidation, op, "initial status must be PENDING or CONFIRMED", nil)
	}
	return "", newError(KindValidation, op, "unknown booking source", nil)
}

func (c *Coordinator) resolveTenant(ctx context.Context, op, slug, id string) (model.Tenant, error) {
	var (
		t   model.Tenant
		err error
	)
	if id != "" {
		t, err = c.store.FindTenantByID(ctx, id)
	} else {
		t, err = c.store.FindTenantBySlug(ctx, slug)
	}
	if err != nil {
		return model.Tenant{}, lookupError(op, "tenant", err)
	}
	return t, nil
}

func (c *Coordinator) checkLimit(ctx context.Context, op, tenantID string, pre *limits.Usage, at time.Time) error {
	var usage limits.Usage
	switch {
	case pre != nil:
		usage = *pre
	case c.limits != nil:
		u, err := c.limits.Allow(ctx, tenantID, limits.ResourceAppointments, at)
		if err != nil {
			return newError(KindDependency, op, "plan limit check failed", err)
		}
		usage = u
	default:
		return nil
	}
	if usage.WithinLimit {
		return nil
	}
	e := newError(KindLimitExceeded, op, "monthly appointment limit reached", nil)
	e.Usage = &usage
	return e
}

// candidates returns the staff members the booking may be placed with: the requested
// one, or every eligible staff member on duty for the interval in first-fit order.
func (c *Coordinator) candidates(ctx context.Context, op string, tenant model.Tenant, svc model.Service, staffID string, start, end time.Time) ([]model.Staff, error) {
	if staffID != "" {
		staff, err := c.store.FindStaff(ctx, tenant.ID, staffID)
		if err != nil {
			return nil, lookupError(op, "staff", err)
		}
		ok, err := c.resolver.IsEligible(ctx, tenant.ID, svc.ID, staff.ID)
		if err != nil {
			return nil, newError(KindDependency, op, "eligibility lookup failed", err)
		}
		if !ok {
			return nil, newError(KindValidation, op, "staff is not eligible for this service", nil)
		}
		onDuty, err := c.onDuty(ctx, tenant, staff.ID, start, end)
		if err != nil {
			return nil, newError(KindDependency, op, "time block lookup failed", err)
		}
		if !onDuty {
			return nil, newError(KindValidation, op, "requested time is outside staff working hours", nil)
		}
		return []model.Staff{staff}, nil
	}

	eligible, err := c.resolver.EligibleStaff(ctx, tenant.ID, svc.ID)
	if err != nil {
		return nil, newError(KindDependency, op, "eligibility lookup failed", err)
	}
	if len(eligible) == 0 {
		return nil, newError(KindNoAvailability, op, "service currently unstaffed", nil)
	}
	out := make([]model.Staff, 0, len(eligible))
	for _, s := range eligible {
		onDuty, err := c.onDuty(ctx, tenant, s.ID, start, end)
		if err != nil {
			return nil, newError(KindDependency, op, "time block lookup failed", err)
		}
		if onDuty {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, newError(KindNoAvailability, op, "no staff working at the requested time", nil)
	}
	return out, nil
}

func (c *Coordinator) onDuty(ctx context.Context, tenant model.Tenant, staffID string, start, end time.Time) (bool, error) {
	if !c.workingHours {
		return true, nil
	}
	windows, err := c.openWindows(ctx, tenant, staffID, start)
	if err != nil {
		return false, err
	}
	return availability.Fits(windows, start, end), nil
}

// reserve checks and inserts draft for staff inside the staff lock. ok is false when
// the interval is taken, either by a committed row seen by the check or by a
// concurrent insert caught by the store's overlap guard. A customer who already
// holds the same booking with any staff member yields model.ErrDuplicate.
func (c *Coordinator) reserve(ctx context.Context, staff model.Staff, draft model.Appointment) (model.Appointment, bool, error) {
	var created model.Appointment
	err := c.store.WithStaffLock(ctx, draft.TenantID, staff.ID, func(ctx context.Context, scope StaffScope) error {
		held, err := scope.HasCustomerBooking(ctx, draft.TenantID, draft.CustomerID, draft.ServiceID, draft.StartAt, draft.EndAt)
		if err != nil {
			return err
		}
		if held {
			return model.ErrDuplicate
		}
		busy, err := conflict.HasConflict(ctx, scope, draft.TenantID, staff.ID, draft.StartAt, draft.EndAt)
		if err != nil {
			return err
		}
		if busy {
			return errSlotTaken
		}
		draft.StaffID = staff.ID
		created, err = scope.InsertAppointment(ctx, draft)
		return err
	})
	switch {
	case errors.Is(err, errSlotTaken), errors.Is(err, model.ErrOverlap):
		return model.Appointment{}, false, nil
	case err != nil:
		return model.Appointment{}, false, err
	}
	return created, true, nil
}

func (c *Coordinator) scheduleReminder(ctx context.Context, b Booking) {
	if c.reminders == nil {
		return
	}
	r, err := c.reminders.Schedule(ctx, b)
	if errors.Is(err, model.ErrNotLive) {
		c.observer.ObserveReminder("skipped")
		c.logger.InfoContext(ctx, "reminder skipped for cancelled appointment", "appointment_id", b.Appointment.ID)
		return
	}
	if err != nil {
		c.observer.ObserveReminder("failed")
		c.logger.WarnContext(ctx, "reminder scheduling failed",
			"tenant_id", b.Tenant.ID,
			"appointment_id", b.Appointment.ID,
			"err", err,
		)
		return
	}
	c.observer.ObserveReminder("scheduled")
	c.logger.DebugContext(ctx, "reminder scheduled", "appointment_id", b.Appointment.ID, "scheduled_at", r.ScheduledAt)
}

// CancelAppointment cancels an appointment and orphan-marks its reminder. Cancelling
// twice is a no-op that returns the cancelled appointment.
func (c *Coordinator) CancelAppointment(ctx context.Context, tenantID, appointmentID, reason string) (model.Appointment, error) {
	const op = "booking.CancelAppointment"
	appt, err := c.store.CancelAppointment(ctx, tenantID, appointmentID, strings.TrimSpace(reason), c.now().UTC())
	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.Appointment{}, newError(KindNotFound, op, "appointment not found", nil)
	case errors.Is(err, model.ErrNotCancellable):
		return model.Appointment{}, newError(KindValidation, op, "appointment cannot be cancelled", err)
	case err != nil:
		return model.Appointment{}, newError(KindDependency, op, "cancel failed", err)
	}
	c.logger.InfoContext(ctx, "appointment cancelled", "tenant_id", tenantID, "appointment_id", appointmentID)
	return appt, nil
}

// ListAppointments returns a tenant's appointments ordered by start time.
func (c *Coordinator) ListAppointments(ctx context.Context, tenantID string, f ListFilter) ([]model.Appointment, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	out, err := c.store.ListAppointments(ctx, tenantID, f)
	if err != nil {
		return nil, newError(KindDependency, "booking.ListAppointments", "list failed", err)
	}
	return out, nil
}

func insertError(op string, err error) error {
	if errors.Is(err, model.ErrDuplicate) {
		return newError(KindSlotConflict, op, "customer already holds this appointment", nil)
	}
	return newError(KindDependency, op, "appointment insert failed", err)
}

func lookupError(op, what string, err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return newError(KindNotFound, op, what+" not found", nil)
	}
	return newError(KindDependency, op, what+" lookup failed", err)
}
