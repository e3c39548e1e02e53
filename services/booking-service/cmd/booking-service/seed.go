package main

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memstore"
)

const demoSlug = "demo"

// seedDemo gives the in-memory store one bookable tenant: two stylists working
// Monday to Saturday with a lunch break, and two services.
func seedDemo(ctx context.Context, st *memstore.Store) error {
	tenant, err := st.CreateTenant(ctx, model.Tenant{
		Slug:     demoSlug,
		Name:     "Demo Salon",
		Timezone: config.String("DEMO_TIMEZONE", "UTC"),
	})
	if err != nil {
		return err
	}

	services := []model.Service{
		{TenantID: tenant.ID, Name: "Haircut", DurationMinutes: 45, PriceMinorUnits: 3500, Active: true, VisibleOnline: true},
		{TenantID: tenant.ID, Name: "Colour", DurationMinutes: 90, PriceMinorUnits: 8000, Active: true, VisibleOnline: true},
	}
	for i := range services {
		if services[i], err = st.CreateService(ctx, services[i]); err != nil {
			return err
		}
	}

	var week []model.TimeBlock
	for day := time.Monday; day <= time.Saturday; day++ {
		week = append(week,
			model.TimeBlock{Weekday: int(day), Type: model.BlockWork, StartMinute: 9 * 60, EndMinute: 17 * 60},
			model.TimeBlock{Weekday: int(day), Type: model.BlockBreak, StartMinute: 12 * 60, EndMinute: 13 * 60, Note: "lunch"},
		)
	}
	for _, name := range []string{"Ana", "Ben"} {
		staff, err := st.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: name})
		if err != nil {
			return err
		}
		if _, err := st.ReplaceTimeBlocks(ctx, tenant.ID, staff.ID, week); err != nil {
			return err
		}
		for _, svc := range services {
			if err := st.AssignStaffToService(ctx, tenant.ID, staff.ID, svc.ID); err != nil {
				return err
			}
		}
	}
	plan := limits.LimitsForTier("pro")
	return st.UpsertEntitlements(ctx, model.Entitlements{
		TenantID:               tenant.ID,
		Tier:                   plan.Tier,
		MaxStaff:               plan.MaxStaff,
		MaxMonthlyAppointments: plan.MaxMonthlyAppointments,
	})
}
