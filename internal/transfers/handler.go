package transfers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rentique-erp/rentique-erp/internal/platform/httpx"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation))
		return
	}

	transfer, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.logger.Error("create transfer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transfer)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	transfer, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListTransfersRequest{}
	req.Page, _ = strconv.Atoi(q.Get("page"))
	req.PerPage, _ = strconv.Atoi(q.Get("per_page"))
	if raw := q.Get("status"); raw != "" {
		status := Status(raw)
		req.Status = &status
	}

	rows, pagination, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list transfers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewEnvelope(rows, pagination))
}

// Approve covers the whole transfer; ApproveItems the named subset. Both land
// on the same decision path.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, false)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, false)
}

func (h *Handler) ApproveItems(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, true)
}

func (h *Handler) RejectItems(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, true)
}

func (h *Handler) decide(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, id int64, req DecisionRequest) (*Transfer, error),
	subsetRequired bool,
) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}
	var req DecisionRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	if subsetRequired && len(req.ClothIDs) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "cloth_ids required for partial decision")
		return
	}
	if !subsetRequired {
		req.ClothIDs = nil
	}

	transfer, err := fn(r.Context(), id, req)
	if err != nil {
		h.logger.Error("decide transfer", slog.Int64("transfer_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) transferID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transfer id")
		return 0, false
	}
	return id, true
}
