package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBookingMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("ok", "ONLINE", 20*time.Millisecond)
	m.ObserveBooking("ok", "ONLINE", 30*time.Millisecond)
	m.ObserveBooking("limit_exceeded", "MANUAL", time.Millisecond)
	m.ObserveReminder("failed")
	m.ObserveLimitRejection("staff")

	if got := testutil.ToFloat64(m.bookingsTotal.WithLabelValues("ok", "ONLINE")); got != 2 {
		t.Fatalf("expected 2 ok bookings, got %v", got)
	}
	if got := testutil.ToFloat64(m.limitRejections.WithLabelValues("appointments")); got != 1 {
		t.Fatalf("expected 1 appointment rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.limitRejections.WithLabelValues("staff")); got != 1 {
		t.Fatalf("expected 1 staff rejection, got %v", got)
	}
	if got := testutil.ToFloat64(m.remindersTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed reminder, got %v", got)
	}
	if n := testutil.CollectAndCount(m.bookingLatency); n != 2 {
		t.Fatalf("expected 2 latency series, got %d", n)
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("ok", "ONLINE", time.Second)
	m.ObserveReminder("scheduled")
	m.ObserveLimitRejection("staff")
}
