// Package reminder creates and dispatches the single reminder of each appointment.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	DefaultLead    = 24 * time.Hour
	DefaultChannel = "email"
)

// Store persists a reminder. Implementations enqueue the reminder-requested event
// together with the row.
type Store interface {
	InsertReminder(ctx context.Context, r model.Reminder) (model.Reminder, error)
}

type Scheduler struct {
	store   Store
	lead    time.Duration
	channel string
	now     func() time.Time
}

type Config struct {
	Lead    time.Duration
	Channel string
	Now     func() time.Time
}

func NewScheduler(store Store, cfg Config) *Scheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{store: store, lead: cfg.Lead, channel: cfg.Channel, now: cfg.Now}
}

var _ booking.ReminderScheduler = (*Scheduler)(nil)

// Payload is the JSON body carried by reminder rows and events.
type Payload struct {
	AppointmentID string `json:"appointment_id"`
	TenantID      string `json:"tenant_id"`
	TenantName    string `json:"tenant_name"`
	Timezone      string `json:"timezone"`
	Channel       string `json:"channel"`
	Recipient     string `json:"recipient"`
	CustomerName  string `json:"customer_name"`
	ServiceName   string `json:"service_name"`
	StaffName     string `json:"staff_name"`
	StartAt       string `json:"start_at"`
}

// ScheduledAt is the lead time before start, clamped to now for bookings made
// inside the lead window.
func (s *Scheduler) ScheduledAt(start time.Time) time.Time {
	at := start.Add(-s.lead)
	if now := s.now().UTC(); at.Before(now) {
		return now
	}
	return at.UTC()
}

func (s *Scheduler) Schedule(ctx context.Context, b booking.Booking) (model.Reminder, error) {
	payload, err := json.Marshal(Payload{
		AppointmentID: b.Appointment.ID,
		TenantID:      b.Tenant.ID,
		TenantName:    b.Tenant.Name,
		Timezone:      b.Tenant.Location().String(),
		Channel:       s.channel,
		Recipient:     b.Customer.Email,
		CustomerName:  b.Customer.Name,
		ServiceName:   b.Service.Name,
		StaffName:     b.Staff.Name,
		StartAt:       b.Appointment.StartAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Reminder{}, fmt.Errorf("build reminder payload: %w", err)
	}
	return s.store.InsertReminder(ctx, model.Reminder{
		TenantID:      b.Appointment.TenantID,
		AppointmentID: b.Appointment.ID,
		Channel:       s.channel,
		ScheduledAt:   s.ScheduledAt(b.Appointment.StartAt),
		Payload:       payload,
		Status:        model.ReminderPending,
	})
}
