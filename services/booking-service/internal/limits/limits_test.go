package limits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type fakeCounter struct {
	ent      *model.Entitlements
	staff    int
	appts    int
	gotStart time.Time
	gotEnd   time.Time
	err      error
}

func (f *fakeCounter) GetEntitlements(context.Context, string) (model.Entitlements, bool, error) {
	if f.err != nil {
		return model.Entitlements{}, false, f.err
	}
	if f.ent == nil {
		return model.Entitlements{}, false, nil
	}
	return *f.ent, true, nil
}

func (f *fakeCounter) CountActiveStaff(context.Context, string) (int, error) { return f.staff, nil }

func (f *fakeCounter) CountAppointmentsInRange(_ context.Context, _ string, start, end time.Time) (int, error) {
	f.gotStart, f.gotEnd = start, end
	return f.appts, nil
}

func TestCheckLimitDefaultsToFreeTier(t *testing.T) {
	c := NewChecker(&fakeCounter{staff: 3}, nil)
	u, err := c.CheckLimit(context.Background(), "t1", ResourceStaff)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.Current != 3 || u.Limit != 3 || u.WithinLimit || u.Unlimited {
		t.Fatalf("unexpected usage %+v", u)
	}
}

func TestAllowAppointmentsUsesMonthOfStart(t *testing.T) {
	fc := &fakeCounter{ent: &model.Entitlements{Tier: "pro", MaxMonthlyAppointments: 10}, appts: 9}
	c := NewChecker(fc, nil)

	u, err := c.Allow(context.Background(), "t1", ResourceAppointments, time.Date(2024, 6, 30, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !u.WithinLimit || u.Current != 9 || u.Limit != 10 {
		t.Fatalf("unexpected usage %+v", u)
	}
	if !fc.gotStart.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) || !fc.gotEnd.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected month range %s..%s", fc.gotStart, fc.gotEnd)
	}
}

func TestUnlimited(t *testing.T) {
	c := NewChecker(&fakeCounter{ent: &model.Entitlements{Tier: "enterprise"}, appts: 1_000_000}, nil)
	u, err := c.CheckLimit(context.Background(), "t1", ResourceAppointments)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !u.Unlimited || !u.WithinLimit {
		t.Fatalf("expected unlimited usage, got %+v", u)
	}
}

func TestUnknownResourceAndCounterErrors(t *testing.T) {
	c := NewChecker(&fakeCounter{}, nil)
	if _, err := c.CheckLimit(context.Background(), "t1", "rooms"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
	if _, err := ParseResource("rooms"); !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource from ParseResource, got %v", err)
	}

	boom := errors.New("db down")
	c = NewChecker(&fakeCounter{err: boom}, nil)
	if _, err := c.CheckLimit(context.Background(), "t1", ResourceStaff); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestLimitsForTier(t *testing.T) {
	if l := LimitsForTier(" PRO "); l.Tier != "pro" || l.MaxStaff != 25 {
		t.Fatalf("unexpected pro limits %+v", l)
	}
	if l := LimitsForTier("gold"); l.Tier != "free" {
		t.Fatalf("unknown tier should fall back to free, got %+v", l)
	}
	if l := LimitsForTier("enterprise"); l.MaxStaff != 0 || l.MaxMonthlyAppointments != 0 {
		t.Fatalf("enterprise should be unlimited, got %+v", l)
	}
}
