// Package limits answers plan-quota questions for a tenant. It holds no subscription
// logic of its own; caps come from the entitlements cache fed by billing events.
package limits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type Resource string

const (
	ResourceStaff        Resource = "staff"
	ResourceAppointments Resource = "appointments"
)

var ErrUnknownResource = errors.New("unknown limit resource")

func ParseResource(s string) (Resource, error) {
	switch Resource(s) {
	case ResourceStaff, ResourceAppointments:
		return Resource(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
}

// Usage is the answer to a limit check. When Unlimited is set Limit is meaningless.
// WithinLimit reports whether one more unit may be created.
type Usage struct {
	Resource    Resource
	Current     int
	Limit       int
	Unlimited   bool
	WithinLimit bool
}

func newUsage(r Resource, current, limit int) Usage {
	u := Usage{Resource: r, Current: current, Limit: limit}
	if limit <= 0 {
		u.Unlimited = true
		u.Limit = 0
	}
	u.WithinLimit = u.Unlimited || current < limit
	return u
}

// Gate is the hook the booking coordinator consults before inserting.
type Gate interface {
	Allow(ctx context.Context, tenantID string, r Resource, at time.Time) (Usage, error)
}

// Counter supplies the cached entitlements and live counts a Checker needs.
type Counter interface {
	GetEntitlements(ctx context.Context, tenantID string) (model.Entitlements, bool, error)
	CountActiveStaff(ctx context.Context, tenantID string) (int, error)
	CountAppointmentsInRange(ctx context.Context, tenantID string, startInclusive, endExclusive time.Time) (int, error)
}

type Checker struct {
	counter Counter
	now     func() time.Time
}

func NewChecker(counter Counter, now func() time.Time) *Checker {
	if now == nil {
		now = time.Now
	}
	return &Checker{counter: counter, now: now}
}

// CheckLimit reports usage for the current UTC month.
func (c *Checker) CheckLimit(ctx context.Context, tenantID string, r Resource) (Usage, error) {
	return c.Allow(ctx, tenantID, r, c.now())
}

// Allow reports usage for the UTC month containing at. Staff usage ignores at.
func (c *Checker) Allow(ctx context.Context, tenantID string, r Resource, at time.Time) (Usage, error) {
	lim, err := c.limitsFor(ctx, tenantID)
	if err != nil {
		return Usage{}, err
	}

	switch r {
	case ResourceStaff:
		n, err := c.counter.CountActiveStaff(ctx, tenantID)
		if err != nil {
			return Usage{}, fmt.Errorf("count staff: %w", err)
		}
		return newUsage(r, n, lim.MaxStaff), nil
	case ResourceAppointments:
		start, end := MonthRange(at)
		n, err := c.counter.CountAppointmentsInRange(ctx, tenantID, start, end)
		if err != nil {
			return Usage{}, fmt.Errorf("count appointments: %w", err)
		}
		return newUsage(r, n, lim.MaxMonthlyAppointments), nil
	default:
		return Usage{}, fmt.Errorf("%w: %q", ErrUnknownResource, r)
	}
}

func (c *Checker) limitsFor(ctx context.Context, tenantID string) (Limits, error) {
	ent, ok, err := c.counter.GetEntitlements(ctx, tenantID)
	if err != nil {
		return Limits{}, fmt.Errorf("load entitlements: %w", err)
	}
	if !ok {
		return LimitsForTier("free"), nil
	}
	return Limits{Tier: ent.Tier, MaxStaff: ent.MaxStaff, MaxMonthlyAppointments: ent.MaxMonthlyAppointments}, nil
}

// MonthRange returns [first of month, first of next month) in UTC.
func MonthRange(at time.Time) (time.Time, time.Time) {
	u := at.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Static is a Gate that returns a precomputed decision.
type Static Usage

func (s Static) Allow(context.Context, string, Resource, time.Time) (Usage, error) {
	return Usage(s), nil
}
