package custody

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders/{id}/custody", h.Open)
	r.Get("/orders/{id}/custody", h.ListByOrder)
	r.Post("/custody/{id}/return", h.Resolve)
}
