package cashbox

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rentique-erp/rentique-erp/internal/platform/httpx"
	"github.com/rentique-erp/rentique-erp/internal/shared"
)

type CorrectionRequest struct {
	Amount      float64 `json:"amount" validate:"required"`
	Description string  `json:"description" validate:"required"`
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cashboxID(w, r)
	if !ok {
		return
	}
	box, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, box)
}

func (h *Handler) DailySummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cashboxID(w, r)
	if !ok {
		return
	}
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := h.service.DailySummary(r.Context(), id, day)
	if err != nil {
		h.logger.Error("daily summary", slog.Int64("cashbox_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cashboxID(w, r)
	if !ok {
		return
	}
	report, err := h.service.Recalculate(r.Context(), id)
	if err != nil {
		h.logger.Error("recalculate cashbox", slog.Int64("cashbox_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) Correct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cashboxID(w, r)
	if !ok {
		return
	}
	var req CorrectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%s: %w", err.Error(), shared.ErrValidation))
		return
	}

	txn, err := h.service.Correct(r.Context(), id, req.Amount, req.Description)
	if err != nil {
		h.logger.Error("correct cashbox", slog.Int64("cashbox_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cashboxID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	rows, pagination, err := h.service.ListTransactions(r.Context(), id, page, perPage)
	if err != nil {
		h.logger.Error("list cashbox transactions", slog.Int64("cashbox_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewEnvelope(rows, pagination))
}

func (h *Handler) cashboxID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid cashbox id")
		return 0, false
	}
	return id, true
}
