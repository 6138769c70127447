package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rentique-erp/rentique-erp/internal/cashbox"
	"github.com/rentique-erp/rentique-erp/internal/observability"
)

// OverdueScanner is the slice of the order service the scan needs.
type OverdueScanner interface {
	MarkOverdueSnapshots(ctx context.Context, now time.Time) (int, error)
}

// DriftAuditor re-derives cashbox balances from their transaction logs.
type DriftAuditor interface {
	RecalculateAll(ctx context.Context) ([]cashbox.RecalcReport, error)
}

// NewOverdueScanHandler returns the handler for TaskOverdueScan.
func NewOverdueScanHandler(scanner OverdueScanner, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OverdueScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		as := payload.As
		if as.IsZero() {
			as = time.Now()
		}

		stamped, err := scanner.MarkOverdueSnapshots(ctx, as)
		if err != nil {
			metrics.JobResult(TaskOverdueScan, "error")
			return err
		}
		metrics.JobResult(TaskOverdueScan, "ok")
		logger.Info("overdue scan finished", slog.Int("stamped", stamped), slog.Time("as", as))
		return nil
	}
}

// NewCashboxAuditHandler returns the handler for TaskCashboxAudit. Drifting
// cashboxes are logged loudly; fixing them stays a manual, audited decision.
func NewCashboxAuditHandler(auditor DriftAuditor, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		reports, err := auditor.RecalculateAll(ctx)
		if err != nil {
			metrics.JobResult(TaskCashboxAudit, "error")
			return err
		}

		var drifting int
		for _, report := range reports {
			if report.Difference == 0 {
				continue
			}
			drifting++
			logger.Warn("cashbox drift detected",
				slog.Int64("cashbox_id", report.CashboxID),
				slog.Float64("stored", report.PreviousBalance),
				slog.Float64("calculated", report.CalculatedBalance),
				slog.Float64("difference", report.Difference))
		}
		metrics.JobResult(TaskCashboxAudit, "ok")
		logger.Info("cashbox audit finished",
			slog.Int("cashboxes", len(reports)), slog.Int("drifting", drifting))
		return nil
	}
}
