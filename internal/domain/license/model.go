package license

import (
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// License is the entitlement record governing which features and limits a
// tenant may use. Expiry transitions are written by the scheduler and
// activation/suspension by webhook processing; nothing else mutates status.
type License struct {
	// ID is the unique identifier for the license
	ID string `db:"id" json:"id"`

	// LicenseCode is the plan tier this license grants
	LicenseCode types.PlanCode `db:"license_code" json:"license_code"`

	// Features are the feature codes included in the plan tier
	Features []string `db:"features" json:"features"`

	// Dashboards are the dashboard codes the tenant may open
	Dashboards []string `db:"dashboards" json:"dashboards"`

	// KPILimit caps the number of KPIs rendered per dashboard, 0 = unlimited
	KPILimit int `db:"kpi_limit" json:"kpi_limit"`

	// MaxUsers is the seat cap, types.Unlimited or 0 = unlimited
	MaxUsers int `db:"max_users" json:"max_users"`

	// MaxStorageGB is the storage cap in GB
	MaxStorageGB int `db:"max_storage_gb" json:"max_storage_gb"`

	// MaxAPICallsPerMonth is the monthly API call cap
	MaxAPICallsPerMonth int `db:"max_api_calls_per_month" json:"max_api_calls_per_month"`

	// ValidUntil is the expiry timestamp
	ValidUntil time.Time `db:"valid_until" json:"valid_until"`

	// AutoRenew marks licenses that renew without manual action
	AutoRenew bool `db:"auto_renew" json:"auto_renew"`

	// LicenseStatus is the lifecycle status (active|expired|suspended|trial)
	LicenseStatus types.LicenseStatus `db:"license_status" json:"license_status"`

	// GracePeriodDays extends usability past expiry
	GracePeriodDays int `db:"grace_period_days" json:"grace_period_days"`

	types.BaseModel
}

// IsUsable reports whether the license currently grants access.
// A suspended license is never usable. An expired license remains usable
// until ValidUntil plus the grace period.
func (l *License) IsUsable(now time.Time) bool {
	switch l.LicenseStatus {
	case types.LicenseStatusActive, types.LicenseStatusTrial:
		return true
	case types.LicenseStatusExpired:
		graceEnd := l.ValidUntil.AddDate(0, 0, l.GracePeriodDays)
		return !now.After(graceEnd)
	default:
		return false
	}
}

// HasFeature reports whether the feature code is included in the plan
func (l *License) HasFeature(featureCode string) bool {
	for _, f := range l.Features {
		if f == featureCode {
			return true
		}
	}
	return false
}

// DaysUntilExpiry returns whole days from now until ValidUntil, rounding up
// so that a license expiring later today counts as 1 day out.
func (l *License) DaysUntilExpiry(now time.Time) int {
	d := l.ValidUntil.Sub(now)
	days := int(d.Hours() / 24)
	if d > 0 && d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
