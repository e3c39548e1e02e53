package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by stores when a tenant-scoped lookup has no row.
	ErrNotFound = errors.New("not found")
	// ErrOverlap is returned when an insert would overlap a live appointment of the same staff member.
	ErrOverlap = errors.New("appointment overlaps an existing booking")
	// ErrNotCancellable is returned when cancelling an appointment in a terminal state.
	ErrNotCancellable = errors.New("appointment cannot be cancelled")
	// ErrDuplicate is returned when the customer already holds a live appointment for
	// the same service and interval.
	ErrDuplicate = errors.New("customer already holds this appointment")
	// ErrNotLive is returned when a reminder is requested for a cancelled appointment.
	ErrNotLive = errors.New("appointment is no longer live")
)

type Tenant struct {
	ID       string
	Slug     string
	Name     string
	Timezone string
}

// Location resolves the tenant timezone, falling back to UTC.
func (t Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Staff struct {
	ID        string
	TenantID  string
	Name      string
	ColorTag  string
	Active    bool
	CreatedAt time.Time
}

type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMinutes int
	PriceMinorUnits int64
	Active          bool
	VisibleOnline   bool
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type BlockType string

const (
	BlockWork        BlockType = "work"
	BlockBreak       BlockType = "break"
	BlockUnavailable BlockType = "unavailable"
)

func (t BlockType) Valid() bool {
	switch t {
	case BlockWork, BlockBreak, BlockUnavailable:
		return true
	}
	return false
}

// MinutesPerDay bounds TimeBlock minute offsets.
const MinutesPerDay = 24 * 60

// TimeBlock is a recurring weekly interval for one staff member. Weekday follows
// time.Weekday (0 = Sunday); minutes are offsets from local midnight.
type TimeBlock struct {
	ID          string
	TenantID    string
	StaffID     string
	Weekday     int
	Type        BlockType
	StartMinute int
	EndMinute   int
	Note        string
}

func (b TimeBlock) Validate() error {
	if b.Weekday < 0 || b.Weekday > 6 {
		return fmt.Errorf("weekday %d out of range 0..6", b.Weekday)
	}
	if !b.Type.Valid() {
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	if b.StartMinute < 0 || b.StartMinute >= b.EndMinute || b.EndMinute > MinutesPerDay {
		return fmt.Errorf("invalid block minutes [%d,%d)", b.StartMinute, b.EndMinute)
	}
	return nil
}

type Customer struct {
	ID       string
	TenantID string
	Name     string
	Email    string
	Phone    string
	Notes    string
}

// NormalizeEmail is the canonical form of the customer upsert key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type Source string

const (
	SourceOnline Source = "ONLINE"
	SourceManual Source = "MANUAL"
)

type Appointment struct {
	ID           string
	TenantID     string
	CustomerID   string
	StaffID      string
	ServiceID    string
	StartAt      time.Time
	EndAt        time.Time
	Status       Status
	Source       Source
	Note         string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
}

// Live reports whether the appointment still occupies its staff member's time.
func (a Appointment) Live() bool {
	return a.Status != StatusCancelled
}

type ReminderStatus string

const (
	ReminderPending    ReminderStatus = "pending"
	ReminderDispatched ReminderStatus = "dispatched"
	ReminderFailed     ReminderStatus = "failed"
	ReminderCancelled  ReminderStatus = "cancelled"
)

type Reminder struct {
	ID            string
	TenantID      string
	AppointmentID string
	Channel       string
	ScheduledAt   time.Time
	Payload       []byte
	Status        ReminderStatus
	Attempts      int
}

// Entitlements is the cached plan limit snapshot for a tenant. Zero or negative
// limits mean unlimited.
type Entitlements struct {
	TenantID               string
	Tier                   string
	MaxStaff               int
	MaxMonthlyAppointments int
	UpdatedAt              time.Time
}
