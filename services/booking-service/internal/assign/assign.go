// Package assign picks a staff member for bookings made without a staff preference.
package assign

import (
	"context"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Probe reports whether a candidate can take the booking. It is called with the
// candidate's per-staff lock held when used by the booking coordinator.
type Probe func(ctx context.Context, candidate model.Staff) (bool, error)

// Strategy chooses one candidate. ok is false when none is free.
type Strategy interface {
	Assign(ctx context.Context, candidates []model.Staff, probe Probe) (model.Staff, bool, error)
}

// FirstFit returns the first candidate, in the given order, the probe accepts.
type FirstFit struct{}

func (FirstFit) Assign(ctx context.Context, candidates []model.Staff, probe Probe) (model.Staff, bool, error) {
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return model.Staff{}, false, err
		}
		free, err := probe(ctx, c)
		if err != nil {
			return model.Staff{}, false, err
		}
		if free {
			return c, true, nil
		}
	}
	return model.Staff{}, false, nil
}
