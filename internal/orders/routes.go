package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Post("/orders", h.Create)
	r.Get("/orders/{id}", h.Show)
	r.Put("/orders/{id}", h.Update)
	r.Post("/orders/{id}/deliver", h.Deliver)
	r.Post("/orders/{id}/finish", h.Finish)
	r.Post("/orders/{id}/cancel", h.Cancel)
	r.Post("/orders/{id}/items/{itemID}/return", h.ReturnItem)
}
