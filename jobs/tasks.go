package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan stamps overdue flags on delivered orders past their
	// latest delivery date.
	TaskOverdueScan = "orders:overdue-scan"
	// TaskCashboxAudit re-derives every cashbox balance and reports drift.
	TaskCashboxAudit = "cashbox:drift-audit"
)

// OverdueScanPayload pins the scan to a reference time so retries stay
// deterministic.
type OverdueScanPayload struct {
	As time.Time `json:"as"`
}

// NewOverdueScanTask constructs the overdue scan task.
func NewOverdueScanTask(as time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(OverdueScanPayload{As: as})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// NewCashboxAuditTask constructs the drift audit task.
func NewCashboxAuditTask() *asynq.Task {
	return asynq.NewTask(TaskCashboxAudit, nil)
}
