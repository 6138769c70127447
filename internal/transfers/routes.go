package transfers

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transfers", h.List)
	r.Post("/transfers", h.Create)
	r.Get("/transfers/{id}", h.Show)
	r.Post("/transfers/{id}/approve", h.Approve)
	r.Post("/transfers/{id}/reject", h.Reject)
	r.Post("/transfers/{id}/approve-items", h.ApproveItems)
	r.Post("/transfers/{id}/reject-items", h.RejectItems)
}
