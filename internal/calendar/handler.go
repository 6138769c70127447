package calendar

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

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

type availabilityEntry struct {
	ClothID   int64 `json:"cloth_id"`
	Available bool  `json:"available"`
}

// AvailableForDate answers GET /clothes/available-for-date.
func (h *Handler) AvailableForDate(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("cloth_ids"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rng, err := parseRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	entries := make([]availabilityEntry, 0, len(ids))
	for _, id := range ids {
		available, err := h.service.IsAvailable(r.Context(), id, rng)
		if err != nil {
			h.logger.Error("availability query", slog.Int64("cloth_id", id), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		entries = append(entries, availabilityEntry{ClothID: id, Available: available})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

type unavailableEntry struct {
	ClothID int64   `json:"cloth_id"`
	Ranges  []Range `json:"unavailable_days"`
}

// UnavailableDays answers GET /clothes/unavailable-days.
func (h *Handler) UnavailableDays(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("cloth_ids"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ranges, err := h.service.UnavailableRanges(r.Context(), ids)
	if err != nil {
		h.logger.Error("unavailable days query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	entries := make([]unavailableEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, unavailableEntry{ClothID: id, Ranges: ranges[id]})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("cloth_ids required: %w", shared.ErrValidation)
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("bad cloth id %q: %w", part, shared.ErrValidation)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseRange(start, end string) (Range, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return Range{}, fmt.Errorf("bad start_date: %w", shared.ErrValidation)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return Range{}, fmt.Errorf("bad end_date: %w", shared.ErrValidation)
	}
	rng := Range{Start: from, End: to}
	if rng.IsZero() {
		return Range{}, fmt.Errorf("end_date must be after start_date: %w", shared.ErrValidation)
	}
	return rng, nil
}
