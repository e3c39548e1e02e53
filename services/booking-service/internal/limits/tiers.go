package limits

import "strings"

// Limits are the plan caps derived from a subscription tier. Zero means unlimited.
type Limits struct {
	Tier                   string `json:"tier"`
	MaxStaff               int    `json:"max_staff"`
	MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
}

// LimitsForTier maps a billing tier to its caps. Unknown tiers get the free plan.
func LimitsForTier(tier string) Limits {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case "starter":
		return Limits{Tier: "starter", MaxStaff: 5, MaxMonthlyAppointments: 500}
	case "pro":
		return Limits{Tier: "pro", MaxStaff: 25, MaxMonthlyAppointments: 2000}
	case "enterprise":
		return Limits{Tier: "enterprise"}
	default:
		return Limits{Tier: "free", MaxStaff: 3, MaxMonthlyAppointments: 200}
	}
}
