package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBillOverdueScan marks open bills past their due date as overdue.
	TaskBillOverdueScan = "bills:overdue_scan"
	// TaskLedgerIntegrity verifies that every posted journal balances.
	TaskLedgerIntegrity = "ledger:integrity"
)

// OverdueScanPayload carries the as-of instant for an overdue scan. A zero
// AsOf means "now" at processing time.
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueScanTask constructs an overdue-scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillOverdueScan, data), nil
}

// NewLedgerIntegrityTask constructs a ledger-integrity task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}
