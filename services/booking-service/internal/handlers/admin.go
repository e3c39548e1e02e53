package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// CreateManual books a MANUAL appointment for the caller's tenant.
func (h *Handler) CreateManual(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "invalid json body")
		return
	}
	req, err := body.toCreate()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "start_at must be RFC3339")
		return
	}
	req.TenantID = auth.TenantID(r.Context())
	req.Source = model.SourceManual

	b, err := h.coord.CreateAppointment(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Appointment: viewBooking(b)})
}

func parseOptionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseOptionalTime(q.Get("from"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "from must be RFC3339")
		return
	}
	to, err := parseOptionalTime(q.Get("to"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "to must be RFC3339")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			writeProblem(w, http.StatusBadRequest, booking.KindValidation, "limit must be a positive integer")
			return
		}
	}

	appts, err := h.coord.ListAppointments(r.Context(), auth.TenantID(r.Context()), booking.ListFilter{
		StaffID: strings.TrimSpace(q.Get("staff_id")),
		From:    from,
		To:      to,
		Limit:   limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]appointmentView, 0, len(appts))
	for _, a := range appts {
		out = append(out, viewAppointment(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var body cancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, http.StatusBadRequest, booking.KindValidation, "invalid json body")
			return
		}
	}
	a, err := h.coord.CancelAppointment(r.Context(), auth.TenantID(r.Context()), chi.URLParam(r, "appointmentID"), body.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": viewAppointment(a)})
}

type usageView struct {
	Resource    string `json:"resource"`
	Current     int    `json:"current"`
	Limit       any    `json:"limit"`
	WithinLimit bool   `json:"within_limit"`
}

func viewUsage(u limits.Usage) usageView {
	v := usageView{Resource: string(u.Resource), Current: u.Current, Limit: u.Limit, WithinLimit: u.WithinLimit}
	if u.Unlimited {
		v.Limit = "unlimited"
	}
	return v
}

func (h *Handler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	res, err := limits.ParseResource(chi.URLParam(r, "resource"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, err.Error())
		return
	}
	if h.limits == nil {
		writeProblem(w, http.StatusNotFound, booking.KindNotFound, "plan limits are not enforced")
		return
	}
	u, err := h.limits.CheckLimit(r.Context(), auth.TenantID(r.Context()), res)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewUsage(u))
}

type createStaffRequest struct {
	Name     string `json:"name"`
	ColorTag string `json:"color_tag"`
}

// CreateStaff adds a staff member when the tenant's plan allows another one.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var body createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "invalid json body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "name is required")
		return
	}
	tenantID := auth.TenantID(r.Context())

	if h.limits != nil {
		u, err := h.limits.CheckLimit(r.Context(), tenantID, limits.ResourceStaff)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !u.WithinLimit {
			if h.observer != nil {
				h.observer.ObserveLimitRejection(string(limits.ResourceStaff))
			}
			writeLimit(w, "staff limit reached", u)
			return
		}
	}

	s, err := h.catalog.CreateStaff(r.Context(), model.Staff{TenantID: tenantID, Name: name, ColorTag: strings.TrimSpace(body.ColorTag)})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	active := s.Active
	writeJSON(w, http.StatusCreated, map[string]any{"staff": staffRef{ID: s.ID, Name: s.Name, ColorTag: s.ColorTag, Active: &active}})
}

func (h *Handler) DeactivateStaff(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.SetStaffActive(r.Context(), auth.TenantID(r.Context()), chi.URLParam(r, "staffID"), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	active := s.Active
	writeJSON(w, http.StatusOK, map[string]any{"staff": staffRef{ID: s.ID, Name: s.Name, ColorTag: s.ColorTag, Active: &active}})
}

type timeBlockInput struct {
	Weekday     int    `json:"weekday"`
	Type        string `json:"type"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Note        string `json:"note"`
}

type timeBlockView struct {
	ID          string `json:"id"`
	Weekday     int    `json:"weekday"`
	Type        string `json:"type"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Note        string `json:"note,omitempty"`
}

// ReplaceTimeBlocks swaps a staff member's weekly schedule.
func (h *Handler) ReplaceTimeBlocks(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Blocks []timeBlockInput `json:"blocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "invalid json body")
		return
	}
	blocks := make([]model.TimeBlock, 0, len(body.Blocks))
	for _, in := range body.Blocks {
		b := model.TimeBlock{
			Weekday:     in.Weekday,
			Type:        model.BlockType(strings.ToLower(strings.TrimSpace(in.Type))),
			StartMinute: in.StartMinute,
			EndMinute:   in.EndMinute,
			Note:        in.Note,
		}
		if err := b.Validate(); err != nil {
			writeProblem(w, http.StatusBadRequest, booking.KindValidation, err.Error())
			return
		}
		blocks = append(blocks, b)
	}

	saved, err := h.catalog.ReplaceTimeBlocks(r.Context(), auth.TenantID(r.Context()), chi.URLParam(r, "staffID"), blocks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]timeBlockView, 0, len(saved))
	for _, b := range saved {
		out = append(out, timeBlockView{ID: b.ID, Weekday: b.Weekday, Type: string(b.Type), StartMinute: b.StartMinute, EndMinute: b.EndMinute, Note: b.Note})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": out})
}

type createServiceRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	VisibleOnline   *bool  `json:"visible_online"`
}

func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var body createServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "invalid json body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" || body.DurationMinutes <= 0 || body.DurationMinutes > model.MinutesPerDay || body.PriceMinorUnits < 0 {
		writeProblem(w, http.StatusBadRequest, booking.KindValidation, "name and a positive duration_minutes are required")
		return
	}
	visible := true
	if body.VisibleOnline != nil {
		visible = *body.VisibleOnline
	}
	svc, err := h.catalog.CreateService(r.Context(), model.Service{
		TenantID:        auth.TenantID(r.Context()),
		Name:            name,
		DurationMinutes: body.DurationMinutes,
		PriceMinorUnits: body.PriceMinorUnits,
		Active:          true,
		VisibleOnline:   visible,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"service": map[string]any{
		"id":                svc.ID,
		"name":              svc.Name,
		"duration_minutes":  svc.DurationMinutes,
		"price_minor_units": svc.PriceMinorUnits,
		"visible_online":    svc.VisibleOnline,
	}})
}

func (h *Handler) AssignStaff(w http.ResponseWriter, r *http.Request) {
	h.setAssignment(w, r, h.catalog.AssignStaffToService)
}

func (h *Handler) UnassignStaff(w http.ResponseWriter, r *http.Request) {
	h.setAssignment(w, r, h.catalog.UnassignStaffFromService)
}

func (h *Handler) setAssignment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, tenantID, staffID, serviceID string) error) {
	err := apply(r.Context(), auth.TenantID(r.Context()), chi.URLParam(r, "staffID"), chi.URLParam(r, "serviceID"))
	if errors.Is(err, model.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, booking.KindNotFound, "staff or service not found")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
