package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/harborbooks/harborbooks/internal/jobs"
)

// NewLedgerIntegrityHandler returns the handler for TaskLedgerIntegrity. It
// sweeps posted journals whose line sums differ by more than a cent. Finding
// one means an invariant was bypassed at write time, so it is reported as a
// job failure to make the alert loud.
func NewLedgerIntegrityHandler(db *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("ledger_integrity")
		rows, err := db.Query(ctx, `SELECT j.id, j.journal_number, j.user_id, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journals j
JOIN journal_lines l ON l.journal_id = j.id
WHERE j.is_posted
GROUP BY j.id, j.journal_number, j.user_id
HAVING ABS(COALESCE(SUM(l.debit),0) - COALESCE(SUM(l.credit),0)) > 0.01`)
		if err != nil {
			return tracker.End(err)
		}
		defer rows.Close()

		violations := 0
		for rows.Next() {
			var id, number, userID int64
			var debits, credits float64
			if err := rows.Scan(&id, &number, &userID, &debits, &credits); err != nil {
				return tracker.End(err)
			}
			violations++
			metrics.AddUnbalanced(userID, 1)
			logger.Error("posted journal out of balance",
				slog.Int64("journal_id", id), slog.Int64("journal_number", number),
				slog.Int64("user_id", userID),
				slog.Float64("debits", debits), slog.Float64("credits", credits))
		}
		if err := rows.Err(); err != nil {
			return tracker.End(err)
		}
		if violations > 0 {
			return tracker.End(fmt.Errorf("ledger integrity: %d posted journals out of balance", violations))
		}
		logger.Info("ledger integrity check passed")
		return tracker.End(nil)
	}
}
