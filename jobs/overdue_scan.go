package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harborbooks/harborbooks/internal/jobs"
)

// OverdueScanner is the slice of the bill manager the scan needs.
type OverdueScanner interface {
	ScanOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// NewOverdueScanHandler returns the handler for TaskBillOverdueScan.
func NewOverdueScanHandler(scanner OverdueScanner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("bills_overdue_scan")
		var payload OverdueScanPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return tracker.End(asynq.SkipRetry)
			}
		}
		asOf := payload.AsOf
		if asOf.IsZero() {
			asOf = time.Now()
		}
		marked, err := scanner.ScanOverdue(ctx, asOf)
		if err != nil {
			return tracker.End(err)
		}
		logger.Info("overdue scan finished", slog.Int("marked", marked), slog.Time("as_of", asOf))
		return tracker.End(nil)
	}
}
