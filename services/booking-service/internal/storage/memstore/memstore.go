// Package memstore is an in-memory implementation of the booking storage ports.
// Writes for one staff member are serialized by a per-staff mutex and every
// appointment insert re-checks overlap, mirroring the Postgres advisory lock and
// exclusion constraint.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/conflict"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

type Store struct {
	mu           sync.RWMutex
	tenants      map[string]model.Tenant
	staff        map[string]model.Staff
	services     map[string]model.Service
	assignments  map[string]map[string]bool // serviceID -> staffID
	blocks       map[string][]model.TimeBlock
	customers    map[string]model.Customer // tenantID/email -> customer
	appointments map[string]model.Appointment
	reminders    map[string]model.Reminder // appointmentID -> reminder
	entitlements map[string]model.Entitlements
	events       []outbox.Event
	last         time.Time

	lockMu     sync.Mutex
	staffLocks map[string]*sync.Mutex
}

func New() *Store {
	return &Store{
		tenants:      map[string]model.Tenant{},
		staff:        map[string]model.Staff{},
		services:     map[string]model.Service{},
		assignments:  map[string]map[string]bool{},
		blocks:       map[string][]model.TimeBlock{},
		customers:    map[string]model.Customer{},
		appointments: map[string]model.Appointment{},
		reminders:    map[string]model.Reminder{},
		entitlements: map[string]model.Entitlements{},
		staffLocks:   map[string]*sync.Mutex{},
	}
}

var _ booking.Store = (*Store)(nil)

// tick returns a strictly increasing timestamp so creation order is total. Callers hold mu.
func (s *Store) tick() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *Store) CreateTenant(_ context.Context, t model.Tenant) (model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Slug = strings.ToLower(strings.TrimSpace(t.Slug))
	for _, existing := range s.tenants {
		if existing.Slug == t.Slug {
			return model.Tenant{}, fmt.Errorf("tenant slug %q already taken", t.Slug)
		}
	}
	s.tenants[t.ID] = t
	return t, nil
}

func (s *Store) FindTenantBySlug(_ context.Context, slug string) (model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, t := range s.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return model.Tenant{}, model.ErrNotFound
}

func (s *Store) FindTenantByID(_ context.Context, tenantID string) (model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return model.Tenant{}, model.ErrNotFound
	}
	return t, nil
}

func (s *Store) FindService(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return model.Service{}, model.ErrNotFound
	}
	return svc, nil
}

func (s *Store) FindStaff(_ context.Context, tenantID, staffID string) (model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return model.Staff{}, model.ErrNotFound
	}
	return st, nil
}

func (s *Store) ListEligibleStaff(_ context.Context, tenantID, serviceID string) ([]model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return nil, nil
	}
	var out []model.Staff
	for staffID := range s.assignments[serviceID] {
		if st, ok := s.staff[staffID]; ok && st.TenantID == tenantID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListTimeBlocks(_ context.Context, tenantID, staffID string) ([]model.TimeBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeBlock
	for _, b := range s.blocks[staffID] {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ListAppointmentsInRange(_ context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveInRange(tenantID, staffID, start, end), nil
}

// liveInRange returns live appointments intersecting [start, end). Callers hold mu.
func (s *Store) liveInRange(tenantID, staffID string, start, end time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.TenantID != tenantID || a.StaffID != staffID || !a.Live() {
			continue
		}
		if conflict.Overlaps(a.StartAt, a.EndAt, start, end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}

func customerKey(tenantID, email string) string {
	return tenantID + "/" + model.NormalizeEmail(email)
}

// UpsertCustomer keeps one row per (tenant, email). Name is overwritten; phone and
// notes only when the new value is non-empty.
func (s *Store) UpsertCustomer(_ context.Context, c model.Customer) (model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Email = model.NormalizeEmail(c.Email)
	key := customerKey(c.TenantID, c.Email)
	existing, ok := s.customers[key]
	if !ok {
		c.ID = uuid.NewString()
		s.customers[key] = c
		return c, nil
	}
	existing.Name = c.Name
	if c.Phone != "" {
		existing.Phone = c.Phone
	}
	if c.Notes != "" {
		existing.Notes = c.Notes
	}
	s.customers[key] = existing
	return existing, nil
}

func (s *Store) staffLock(tenantID, staffID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	key := tenantID + "/" + staffID
	l, ok := s.staffLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.staffLocks[key] = l
	}
	return l
}

func (s *Store) WithStaffLock(ctx context.Context, tenantID, staffID string, fn func(ctx context.Context, scope booking.StaffScope) error) error {
	l := s.staffLock(tenantID, staffID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	sc := &scope{store: s}
	if err := fn(ctx, sc); err != nil {
		sc.rollback()
		return err
	}
	return nil
}

type scope struct {
	store    *Store
	inserted []string
}

func (sc *scope) ListAppointmentsInRange(ctx context.Context, tenantID, staffID string, start, end time.Time) ([]model.Appointment, error) {
	return sc.store.ListAppointmentsInRange(ctx, tenantID, staffID, start, end)
}

func (sc *scope) HasCustomerBooking(_ context.Context, tenantID, customerID, serviceID string, start, end time.Time) (bool, error) {
	s := sc.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customerBooked(model.Appointment{TenantID: tenantID, CustomerID: customerID, ServiceID: serviceID, StartAt: start, EndAt: end}), nil
}

// customerBooked reports whether a live appointment matches a's tenant, customer,
// service and interval. Callers hold s.mu.
func (s *Store) customerBooked(a model.Appointment) bool {
	if a.CustomerID == "" {
		return false
	}
	for _, b := range s.appointments {
		if b.Live() && b.TenantID == a.TenantID && b.CustomerID == a.CustomerID && b.ServiceID == a.ServiceID &&
			b.StartAt.Equal(a.StartAt) && b.EndAt.Equal(a.EndAt) {
			return true
		}
	}
	return false
}

func (sc *scope) InsertAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	s := sc.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.liveInRange(a.TenantID, a.StaffID, a.StartAt, a.EndAt)) > 0 {
		return model.Appointment{}, model.ErrOverlap
	}
	if s.customerBooked(a) {
		return model.Appointment{}, model.ErrDuplicate
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.tick()
	s.appointments[a.ID] = a
	s.events = append(s.events, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.TypeAppointmentBooked,
	})
	sc.inserted = append(sc.inserted, a.ID)
	return a, nil
}

func (sc *scope) rollback() {
	s := sc.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sc.inserted {
		delete(s.appointments, id)
	}
}

func (s *Store) GetAppointment(_ context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[appointmentID]
	if !ok || a.TenantID != tenantID {
		return model.Appointment{}, model.ErrNotFound
	}
	return a, nil
}

func (s *Store) CancelAppointment(_ context.Context, tenantID, appointmentID, reason string, at time.Time) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[appointmentID]
	if !ok || a.TenantID != tenantID {
		return model.Appointment{}, model.ErrNotFound
	}
	switch a.Status {
	case model.StatusCancelled:
		return a, nil
	case model.StatusCompleted:
		return model.Appointment{}, model.ErrNotCancellable
	}
	a.Status = model.StatusCancelled
	a.CancelledAt = &at
	a.CancelReason = reason
	s.appointments[a.ID] = a
	if r, ok := s.reminders[a.ID]; ok && r.Status == model.ReminderPending {
		r.Status = model.ReminderCancelled
		s.reminders[a.ID] = r
	}
	s.events = append(s.events, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     outbox.TypeAppointmentCancelled,
	})
	return a, nil
}

func (s *Store) ListAppointments(_ context.Context, tenantID string, f booking.ListFilter) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.TenantID != tenantID {
			continue
		}
		if f.StaffID != "" && a.StaffID != f.StaffID {
			continue
		}
		if !f.From.IsZero() && !a.EndAt.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !a.StartAt.Before(f.To) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// InsertReminder stores the single reminder of an appointment.
func (s *Store) InsertReminder(_ context.Context, r model.Reminder) (model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reminders[r.AppointmentID]; ok {
		return model.Reminder{}, fmt.Errorf("reminder for appointment %s already exists", r.AppointmentID)
	}
	a, ok := s.appointments[r.AppointmentID]
	if !ok || a.TenantID != r.TenantID {
		return model.Reminder{}, model.ErrNotFound
	}
	if !a.Live() {
		return model.Reminder{}, model.ErrNotLive
	}
	r.ID = uuid.NewString()
	if r.Status == "" {
		r.Status = model.ReminderPending
	}
	s.reminders[r.AppointmentID] = r
	s.events = append(s.events, outbox.Event{
		AggregateType: "reminder",
		AggregateID:   r.AppointmentID,
		EventType:     outbox.TypeReminderRequested,
		Payload:       r.Payload,
	})
	return r, nil
}

// ReminderFor returns the reminder of an appointment, if any.
func (s *Store) ReminderFor(appointmentID string) (model.Reminder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reminders[appointmentID]
	return r, ok
}

// Customers returns a tenant's customers.
func (s *Store) Customers(tenantID string) []model.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Customer
	for _, c := range s.customers {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out
}

// Events returns the domain events recorded so far in write order.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]outbox.Event(nil), s.events...)
}
