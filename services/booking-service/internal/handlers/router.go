package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	// Auth authenticates staff routes and must put the caller's tenant in the context.
	Auth func(http.Handler) http.Handler
	// Manage additionally guards catalog changes, typically a role check.
	Manage func(http.Handler) http.Handler
	// Public wraps the unauthenticated booking routes, typically with a rate limiter.
	Public []func(http.Handler) http.Handler
}

// NewRouter mounts the public booking API under /api/v1/public/{slug} and the
// tenant-scoped staff API under /api/v1.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1/public/{slug}", func(r chi.Router) {
		r.Use(cfg.Public...)
		r.Get("/slots", h.Slots)
		r.Get("/staff/{staffID}/open-intervals", h.OpenIntervals)
		r.Get("/services/{serviceID}/staff", h.ServiceStaff)
		r.Post("/bookings", h.CreatePublic)
	})

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Get("/api/v1/appointments", h.ListAppointments)
		r.Post("/api/v1/appointments", h.CreateManual)
		r.Post("/api/v1/appointments/{appointmentID}/cancel", h.Cancel)
		r.Get("/api/v1/limits/{resource}", h.CheckLimit)

		r.Group(func(r chi.Router) {
			if cfg.Manage != nil {
				r.Use(cfg.Manage)
			}
			r.Post("/api/v1/staff", h.CreateStaff)
			r.Post("/api/v1/staff/{staffID}/deactivate", h.DeactivateStaff)
			r.Put("/api/v1/staff/{staffID}/time-blocks", h.ReplaceTimeBlocks)
			r.Post("/api/v1/services", h.CreateService)
			r.Put("/api/v1/services/{serviceID}/staff/{staffID}", h.AssignStaff)
			r.Delete("/api/v1/services/{serviceID}/staff/{staffID}", h.UnassignStaff)
		})
	})

	return r
}
