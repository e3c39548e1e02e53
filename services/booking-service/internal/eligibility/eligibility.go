// Package eligibility resolves which staff members may perform a service.
package eligibility

import (
	"context"
	"sort"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Source lists staff assigned to a service within a tenant, active or not.
type Source interface {
	ListEligibleStaff(ctx context.Context, tenantID, serviceID string) ([]model.Staff, error)
}

type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// EligibleStaff returns active staff assigned to serviceID in creation order (ties by
// id). An empty result means the service is currently unstaffed; it is not an error.
func (r *Resolver) EligibleStaff(ctx context.Context, tenantID, serviceID string) ([]model.Staff, error) {
	all, err := r.src.ListEligibleStaff(ctx, tenantID, serviceID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Staff, 0, len(all))
	for _, s := range all {
		if s.TenantID == tenantID && s.Active {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// IsEligible reports whether staffID is among the eligible staff for serviceID.
func (r *Resolver) IsEligible(ctx context.Context, tenantID, serviceID, staffID string) (bool, error) {
	staff, err := r.EligibleStaff(ctx, tenantID, serviceID)
	if err != nil {
		return false, err
	}
	for _, s := range staff {
		if s.ID == staffID {
			return true, nil
		}
	}
	return false, nil
}
