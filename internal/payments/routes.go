package payments

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/payments", h.List)
	r.Post("/payments", h.Record)
	r.Get("/payments/{id}", h.Show)
	r.Post("/payments/{id}/pay", h.MarkPaid)
	r.Post("/payments/{id}/cancel", h.MarkCanceled)
}
