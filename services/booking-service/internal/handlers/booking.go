// Package handlers is the HTTP surface of the booking service.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/limits"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Catalog is the tenant administration surface of the store.
type Catalog interface {
	CreateStaff(ctx context.Context, s model.Staff) (model.Staff, error)
	SetStaffActive(ctx context.Context, tenantID, staffID string, active bool) (model.Staff, error)
	CreateService(ctx context.Context, s model.Service) (model.Service, error)
	AssignStaffToService(ctx context.Context, tenantID, staffID, serviceID string) error
	UnassignStaffFromService(ctx context.Context, tenantID, staffID, serviceID string) error
	ReplaceTimeBlocks(ctx context.Context, tenantID, staffID string, blocks []model.TimeBlock) ([]model.TimeBlock, error)
}

type LimitChecker interface {
	CheckLimit(ctx context.Context, tenantID string, r limits.Resource) (limits.Usage, error)
}

// LimitObserver is told about requests rejected by a plan limit.
type LimitObserver interface {
	ObserveLimitRejection(resource string)
}

type Handler struct {
	coord    *booking.Coordinator
	catalog  Catalog
	limits   LimitChecker
	observer LimitObserver
	logger   *slog.Logger
}

func NewHandler(coord *booking.Coordinator, catalog Catalog, checker LimitChecker, observer LimitObserver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{coord: coord, catalog: catalog, limits: checker, observer: observer, logger: logger}
}

type customerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

type createBookingRequest struct {
	ServiceID string        `json:"service_id"`
	StaffID   string        `json:"staff_id"`
	StartAt   string        `json:"start_at"`
	Status    string        `json:"status"`
	Note      string        `json:"note"`
	Customer  customerInput `json:"customer"`
}

func (req createBookingRequest) toCreate() (booking.CreateRequest, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		return booking.CreateRequest{}, err
	}
	return booking.CreateRequest{
		ServiceID: req.ServiceID,
		StaffID:   req.StaffID,
		StartAt:   start,
		Note:      req.Note,
		Status:    model.Status(strings.ToUpper(strings.TrimSpace(req.Status))),
		Customer: booking.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
			Notes: req.Customer.Notes,
		},
	}, nil
}

type bookingResponse struct {
	Appointment appointmentView `json:"appointment"`
}

// CreatePublic books an ONLINE appointment for the tenant named in the path.
func (h *Handler) CreatePublic(w http.ResponseWriter, r *http.Request) {
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
	req.TenantSlug = chi.URLParam(r, "slug")
	req.Source = model.SourceOnline
	req.Status = ""

	b, err := h.coord.CreateAppointment(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Appointment: viewBooking(b)})
}

type slotView struct {
	StaffID string `json:"staff_id"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
}

func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slots, err := h.coord.Slots(r.Context(), booking.SlotQuery{
		TenantSlug: chi.URLParam(r, "slug"),
		ServiceID:  q.Get("service_id"),
		StaffID:    q.Get("staff_id"),
		Date:       q.Get("date"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotView{StaffID: s.StaffID, StartAt: formatTime(s.Start), EndAt: formatTime(s.End)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

func intervals(in []availability.Interval) []intervalView {
	out := make([]intervalView, 0, len(in))
	for _, iv := range in {
		out = append(out, intervalView{StartAt: formatTime(iv.Start), EndAt: formatTime(iv.End)})
	}
	return out
}

func (h *Handler) OpenIntervals(w http.ResponseWriter, r *http.Request) {
	day, err := h.coord.Availability(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "staffID"), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"staff_id": day.Staff.ID,
		"date":     day.Date,
		"open":     intervals(day.Open),
		"free":     intervals(day.Free),
	})
}

func (h *Handler) ServiceStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.coord.EligibleStaff(r.Context(), chi.URLParam(r, "slug"), chi.URLParam(r, "serviceID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]staffRef, 0, len(staff))
	for _, s := range staff {
		out = append(out, staffRef{ID: s.ID, Name: s.Name, ColorTag: s.ColorTag})
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff": out})
}
