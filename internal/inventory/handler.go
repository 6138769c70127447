package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentique-erp/rentique-erp/internal/platform/httpx"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/clothes", h.List)
	r.Get("/clothes/{id}", h.Show)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	var filter ListFilter
	if raw := q.Get("status"); raw != "" {
		status := ItemStatus(raw)
		filter.Status = &status
	}
	if raw := q.Get("entity_type"); raw != "" {
		holder := HolderType(raw)
		filter.HolderType = &holder
	}
	if raw := q.Get("entity_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			filter.HolderID = &id
		}
	}
	if raw := q.Get("type"); raw != "" {
		filter.Type = &raw
	}

	items, pagination, err := h.service.List(r.Context(), filter, shared.NewPagination(page, perPage, 0))
	if err != nil {
		h.logger.Error("list clothes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewEnvelope(items, pagination))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cloth id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}
