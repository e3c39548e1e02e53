// Package metrics exposes Prometheus instruments for the booking flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
)

type BookingMetrics struct {
	bookingsTotal   *prometheus.CounterVec
	bookingLatency  *prometheus.HistogramVec
	remindersTotal  *prometheus.CounterVec
	limitRejections *prometheus.CounterVec
}

var _ booking.Observer = (*BookingMetrics)(nil)

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointment creation attempts by outcome",
		}, []string{"outcome", "source"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "create_duration_seconds",
			Help:      "Latency of appointment creation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "reminders_total",
			Help:      "Reminder scheduling outcomes",
		}, []string{"outcome"}),
		limitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "booking",
			Name:      "limit_rejections_total",
			Help:      "Requests rejected by plan limits",
		}, []string{"resource"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.remindersTotal, m.limitRejections)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome, source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome, source).Inc()
	m.bookingLatency.WithLabelValues(source).Observe(elapsed.Seconds())
	if outcome == string(booking.KindLimitExceeded) {
		m.limitRejections.WithLabelValues("appointments").Inc()
	}
}

func (m *BookingMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

// ObserveLimitRejection counts rejections outside the booking flow, such as staff creation.
func (m *BookingMetrics) ObserveLimitRejection(resource string) {
	if m == nil {
		return
	}
	m.limitRejections.WithLabelValues(resource).Inc()
}
