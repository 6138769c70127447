package calendar

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clothes/available-for-date", h.AvailableForDate)
	r.Get("/clothes/unavailable-days", h.UnavailableDays)
}
