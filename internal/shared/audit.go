package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	UserID   int64
	Action   string
	Entity   string
	EntityID string
	Status   string
	Context  map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs. Callers treat it as fire and
// forget: failures are logged by the caller and never abort the primary
// operation.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// normalize validates required fields and fills defaults. A zero At becomes
// the current time in Go; the driver would otherwise bind year 0001, not NULL.
func (log *AuditLog) normalize(now func() time.Time) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.Status == "" {
		log.Status = "ok"
	}
	if log.At.IsZero() {
		log.At = now()
	}
	return nil
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if err := log.normalize(time.Now); err != nil {
		return err
	}
	ctxJSON, err := json.Marshal(log.Context)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (user_id, action, entity, entity_id, status, context, occurred_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.UserID, log.Action, log.Entity, log.EntityID, log.Status, ctxJSON, log.At)
	return err
}
