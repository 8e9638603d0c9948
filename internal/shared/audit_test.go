package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuditLogNormalizeFillsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	log := AuditLog{UserID: 7, Action: "bill.create", Entity: "bill", EntityID: "42"}

	require.NoError(t, log.normalize(func() time.Time { return now }))
	require.Equal(t, "ok", log.Status)
	require.Equal(t, now, log.At)
}

func TestAuditLogNormalizeKeepsExplicitTimestamp(t *testing.T) {
	at := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	log := AuditLog{Action: "bill.void", Entity: "bill", EntityID: "42", At: at}

	require.NoError(t, log.normalize(time.Now))
	require.Equal(t, at, log.At)
}

func TestAuditLogNormalizeRequiresIdentity(t *testing.T) {
	log := AuditLog{Action: "bill.create"}
	require.Error(t, log.normalize(time.Now))
}
