package cashbox

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cashboxes/{id}", h.Show)
	r.Get("/cashboxes/{id}/daily-summary", h.DailySummary)
	r.Post("/cashboxes/{id}/recalculate", h.Recalculate)
	r.Post("/cashboxes/{id}/correct", h.Correct)
	r.Get("/cashboxes/{id}/transactions", h.ListTransactions)
}
