package alertlog

import (
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// AlertLog is a dedup record guaranteeing at-most-one send of a given alert
// or reminder per cycle. The dedup key is (license, alert kind, cycle key):
// for expiry alerts the cycle key is the threshold day count, for renewal
// reminders it is the renewal date, so a new cycle naturally re-arms every
// alert kind.
type AlertLog struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	LicenseID string    `db:"license_id" json:"license_id"`
	Kind      string    `db:"kind" json:"kind"`
	CycleKey  string    `db:"cycle_key" json:"cycle_key"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
}

// New builds a dedup record for the given license, kind, and cycle key
func New(tenantID, licenseID, kind, cycleKey string) *AlertLog {
	return &AlertLog{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ALERT_LOG),
		TenantID:  tenantID,
		LicenseID: licenseID,
		Kind:      kind,
		CycleKey:  cycleKey,
		SentAt:    time.Now().UTC(),
	}
}
