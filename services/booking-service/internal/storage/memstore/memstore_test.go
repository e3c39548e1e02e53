package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func seed(t *testing.T) (*Store, model.Tenant, model.Staff) {
	t.Helper()
	ctx := context.Background()
	s := New()
	tenant, err := s.CreateTenant(ctx, model.Tenant{Slug: "Acme", Name: "Acme", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("tenant: %v", err)
	}
	st, err := s.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: "Ana"})
	if err != nil {
		t.Fatalf("staff: %v", err)
	}
	return s, tenant, st
}

func insert(ctx context.Context, s *Store, a model.Appointment) (model.Appointment, error) {
	var out model.Appointment
	err := s.WithStaffLock(ctx, a.TenantID, a.StaffID, func(ctx context.Context, scope booking.StaffScope) error {
		var err error
		out, err = scope.InsertAppointment(ctx, a)
		return err
	})
	return out, err
}

func TestInsertRejectsOverlapButAllowsAdjacent(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a := model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(45 * time.Minute), Status: model.StatusPending}

	if _, err := insert(ctx, s, a); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	overlapping := a
	overlapping.StartAt = start.Add(30 * time.Minute)
	overlapping.EndAt = start.Add(75 * time.Minute)
	if _, err := insert(ctx, s, overlapping); !errors.Is(err, model.ErrOverlap) {
		t.Fatalf("expected ErrOverlap, got %v", err)
	}
	adjacent := a
	adjacent.StartAt = start.Add(45 * time.Minute)
	adjacent.EndAt = start.Add(90 * time.Minute)
	if _, err := insert(ctx, s, adjacent); err != nil {
		t.Fatalf("adjacent insert: %v", err)
	}
}

func TestConcurrentInsertsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a := model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusPending}

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = insert(ctx, s, a)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, model.ErrOverlap):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one insert, got %d", wins)
	}
}

func TestFailedScopeRollsBack(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := s.WithStaffLock(ctx, tenant.ID, st.ID, func(ctx context.Context, scope booking.StaffScope) error {
		if _, err := scope.InsertAppointment(ctx, model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(time.Hour)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.ListAppointmentsInRange(ctx, tenant.ID, st.ID, start, start.Add(time.Hour))
	if len(got) != 0 {
		t.Fatalf("expected rollback, found %d appointments", len(got))
	}
}

func TestUpsertCustomerKeepsOneRowPerEmail(t *testing.T) {
	ctx := context.Background()
	s, tenant, _ := seed(t)

	first, err := s.UpsertCustomer(ctx, model.Customer{TenantID: tenant.ID, Name: "Jane", Email: "Jane@Example.com", Phone: "111"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := s.UpsertCustomer(ctx, model.Customer{TenantID: tenant.ID, Name: "Jane D", Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same customer, got %s and %s", first.ID, second.ID)
	}
	if second.Name != "Jane D" || second.Phone != "111" {
		t.Fatalf("unexpected merge %+v", second)
	}
	if n := len(s.Customers(tenant.ID)); n != 1 {
		t.Fatalf("expected 1 customer, got %d", n)
	}
}

func TestCancelMarksReminderAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a, err := insert(ctx, s, model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusPending})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.InsertReminder(ctx, model.Reminder{TenantID: tenant.ID, AppointmentID: a.ID, ScheduledAt: start.Add(-24 * time.Hour)}); err != nil {
		t.Fatalf("reminder: %v", err)
	}

	at := start.Add(-2 * time.Hour)
	c, err := s.CancelAppointment(ctx, tenant.ID, a.ID, "sick", at)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != model.StatusCancelled || c.CancelReason != "sick" {
		t.Fatalf("unexpected appointment %+v", c)
	}
	r, _ := s.ReminderFor(a.ID)
	if r.Status != model.ReminderCancelled {
		t.Fatalf("expected cancelled reminder, got %s", r.Status)
	}
	if _, err := s.CancelAppointment(ctx, tenant.ID, a.ID, "again", at.Add(time.Minute)); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if _, err := s.CancelAppointment(ctx, "other-tenant", a.ID, "", at); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}

	// The freed interval can be booked again.
	if _, err := insert(ctx, s, model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(time.Hour)}); err != nil {
		t.Fatalf("rebook: %v", err)
	}
}

func TestInsertRejectsSameCustomerBookingWithOtherStaff(t *testing.T) {
	ctx := context.Background()
	s, tenant, first := seed(t)
	second, err := s.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: "Bo"})
	if err != nil {
		t.Fatalf("staff: %v", err)
	}
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a := model.Appointment{TenantID: tenant.ID, CustomerID: "c1", ServiceID: "svc", StaffID: first.ID, StartAt: start, EndAt: start.Add(time.Hour)}
	if _, err := insert(ctx, s, a); err != nil {
		t.Fatalf("insert: %v", err)
	}

	a.StaffID = second.ID
	if _, err := insert(ctx, s, a); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	a.ServiceID = "other"
	if _, err := insert(ctx, s, a); err != nil {
		t.Fatalf("different service should be allowed: %v", err)
	}
}

func TestReminderForCancelledAppointmentIsRefused(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a, err := insert(ctx, s, model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: start, EndAt: start.Add(time.Hour), Status: model.StatusPending})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.CancelAppointment(ctx, tenant.ID, a.ID, "", start.Add(-2*time.Hour)); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err = s.InsertReminder(ctx, model.Reminder{TenantID: tenant.ID, AppointmentID: a.ID, ScheduledAt: start.Add(-24 * time.Hour)})
	if !errors.Is(err, model.ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
	if r, ok := s.ReminderFor(a.ID); ok {
		t.Fatalf("expected no reminder, got %+v", r)
	}
}

func TestEligibleStaffInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s, tenant, first := seed(t)
	second, _ := s.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: "Bo"})
	svc, _ := s.CreateService(ctx, model.Service{TenantID: tenant.ID, Name: "Cut", DurationMinutes: 30, Active: true, VisibleOnline: true})
	for _, id := range []string{second.ID, first.ID} {
		if err := s.AssignStaffToService(ctx, tenant.ID, id, svc.ID); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	got, err := s.ListEligibleStaff(ctx, tenant.ID, svc.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("unexpected order %+v", got)
	}
	if err := s.AssignStaffToService(ctx, "other", first.ID, svc.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign tenant, got %v", err)
	}
}

func TestCountsForLimits(t *testing.T) {
	ctx := context.Background()
	s, tenant, st := seed(t)
	june := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	if _, err := insert(ctx, s, model.Appointment{TenantID: tenant.ID, StaffID: st.ID, StartAt: june, EndAt: june.Add(time.Hour), Status: model.StatusPending}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	n, _ := s.CountAppointmentsInRange(ctx, tenant.ID, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	if n != 1 {
		t.Fatalf("expected 1 appointment, got %d", n)
	}
	if _, err := s.SetStaffActive(ctx, tenant.ID, st.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, _ := s.CountActiveStaff(ctx, tenant.ID)
	if active != 0 {
		t.Fatalf("expected 0 active staff, got %d", active)
	}
}
