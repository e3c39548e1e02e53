package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Current *int   `json:"current,omitempty"`
	// Limit is a number, or "unlimited".
	Limit any `json:"limit,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeProblem(w http.ResponseWriter, status int, kind booking.Kind, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: msg}})
}

func writeLimit(w http.ResponseWriter, msg string, u limits.Usage) {
	d := errorDetail{Kind: string(booking.KindLimitExceeded), Message: msg, Current: &u.Current, Limit: u.Limit}
	if u.Unlimited {
		d.Limit = "unlimited"
	}
	writeJSON(w, http.StatusPaymentRequired, errorBody{Error: d})
}

// writeError renders coordinator errors with their kind; anything else is internal.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		switch {
		case errors.Is(err, model.ErrNotFound):
			writeProblem(w, http.StatusNotFound, booking.KindNotFound, "not found")
		default:
			h.logger.ErrorContext(r.Context(), "request failed", "err", err, "path", r.URL.Path)
			writeProblem(w, http.StatusInternalServerError, booking.KindInternal, "internal error")
		}
		return
	}
	if be.Kind == booking.KindLimitExceeded && be.Usage != nil {
		writeLimit(w, be.Msg, *be.Usage)
		return
	}
	status := booking.HTTPStatus(be.Kind)
	if status >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed", "err", err, "path", r.URL.Path)
	}
	writeProblem(w, status, be.Kind, be.Msg)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type staffRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ColorTag string `json:"color_tag,omitempty"`
	Active   *bool  `json:"active,omitempty"`
}

type serviceRef struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
}

type customerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type appointmentView struct {
	ID           string       `json:"id"`
	StartAt      string       `json:"start_at"`
	EndAt        string       `json:"end_at"`
	Status       string       `json:"status"`
	Source       string       `json:"source"`
	Note         string       `json:"note,omitempty"`
	StaffID      string       `json:"staff_id,omitempty"`
	ServiceID    string       `json:"service_id,omitempty"`
	CustomerID   string       `json:"customer_id,omitempty"`
	CancelledAt  string       `json:"cancelled_at,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`
	Staff        *staffRef    `json:"staff,omitempty"`
	Service      *serviceRef  `json:"service,omitempty"`
	Customer     *customerRef `json:"customer,omitempty"`
}

func viewAppointment(a model.Appointment) appointmentView {
	v := appointmentView{
		ID:           a.ID,
		StartAt:      formatTime(a.StartAt),
		EndAt:        formatTime(a.EndAt),
		Status:       string(a.Status),
		Source:       string(a.Source),
		Note:         a.Note,
		StaffID:      a.StaffID,
		ServiceID:    a.ServiceID,
		CustomerID:   a.CustomerID,
		CancelReason: a.CancelReason,
	}
	if a.CancelledAt != nil {
		v.CancelledAt = formatTime(*a.CancelledAt)
	}
	return v
}

func viewBooking(b booking.Booking) appointmentView {
	v := viewAppointment(b.Appointment)
	v.Staff = &staffRef{ID: b.Staff.ID, Name: b.Staff.Name}
	v.Service = &serviceRef{ID: b.Service.ID, Name: b.Service.Name, DurationMinutes: b.Service.DurationMinutes}
	v.Customer = &customerRef{ID: b.Customer.ID, Name: b.Customer.Name, Email: b.Customer.Email}
	return v
}

type intervalView struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}
