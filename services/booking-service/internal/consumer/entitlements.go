package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// EntitlementsTopic carries subscription activations from billing.
const EntitlementsTopic = "billing.subscription.activated.v1"

type EntitlementsWriter interface {
	UpsertEntitlements(ctx context.Context, ent model.Entitlements) error
}

type subscriptionPayload struct {
	TenantID               string `json:"tenant_id"`
	BusinessID             string `json:"business_id"`
	Tier                   string `json:"tier"`
	MaxStaff               int    `json:"max_staff"`
	MaxMonthlyAppointments int    `json:"max_monthly_appointments"`
}

// EntitlementsHandler caches the plan limits of activated subscriptions. Limits
// missing from the event come from the tier table. Malformed events are dropped.
func EntitlementsHandler(store EntitlementsWriter, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var p subscriptionPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		tenantID := strings.TrimSpace(p.TenantID)
		if tenantID == "" {
			tenantID = strings.TrimSpace(p.BusinessID)
		}
		tier := strings.ToLower(strings.TrimSpace(p.Tier))
		if tenantID == "" || tier == "" {
			logger.Error("missing required event fields", "topic", msg.Topic)
			return nil
		}

		lim := limits.LimitsForTier(tier)
		if p.MaxStaff > 0 {
			lim.MaxStaff = p.MaxStaff
		}
		if p.MaxMonthlyAppointments > 0 {
			lim.MaxMonthlyAppointments = p.MaxMonthlyAppointments
		}
		if err := store.UpsertEntitlements(ctx, model.Entitlements{
			TenantID:               tenantID,
			Tier:                   tier,
			MaxStaff:               lim.MaxStaff,
			MaxMonthlyAppointments: lim.MaxMonthlyAppointments,
		}); err != nil {
			return err
		}
		logger.InfoContext(ctx, "entitlements updated", "tenant_id", tenantID, "tier", tier)
		return nil
	}
}
