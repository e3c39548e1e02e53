package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	TypeAppointmentBooked    = "booking.appointment.booked.v1"
	TypeAppointmentCancelled = "booking.appointment.cancelled.v1"
	TypeReminderRequested    = "booking.reminder.requested.v1"
	TypeReminderDue          = "booking.reminder.due.v1"
	TypeReminderDLQ          = "booking.reminder.dlq.v1"
)
