package usage

import (
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// FeatureUsage is a per-tenant per-feature usage counter for one billing
// period. Counters only grow; a new period starts a fresh row.
type FeatureUsage struct {
	TenantID     string         `db:"tenant_id" json:"tenant_id"`
	FeatureCode  string         `db:"feature_code" json:"feature_code"`
	PeriodMonth  string         `db:"period_month" json:"period_month"`
	CurrentUsage int64          `db:"usage_value" json:"current_usage"`
	Metadata     types.Metadata `db:"metadata" json:"metadata"`
	RecordedAt   time.Time      `db:"recorded_at" json:"recorded_at"`
	LastUpdated  time.Time      `db:"last_updated" json:"last_updated"`
}

// FeatureLimit joins a counter with its plan limit for limit evaluation
type FeatureLimit struct {
	FeatureCode     string  `json:"feature_code"`
	CurrentUsage    int64   `json:"current_usage"`
	Limit           int64   `json:"limit"`
	UsagePercentage float64 `json:"usage_percentage"`
	IsOverLimit     bool    `json:"is_over_limit"`
}

// Evaluate computes percentage and over-limit state for a counter against
// its limit. A non-positive limit means unlimited and is never over.
func Evaluate(featureCode string, current int64, limit int64) FeatureLimit {
	fl := FeatureLimit{
		FeatureCode:  featureCode,
		CurrentUsage: current,
		Limit:        limit,
	}
	if limit > 0 {
		fl.UsagePercentage = float64(current) / float64(limit) * 100
		fl.IsOverLimit = current > limit
	}
	return fl
}

// UpgradeOpportunity records that a tenant crossed the upsell threshold on
// a feature. Overwritten on every crossing; advisory only.
type UpgradeOpportunity struct {
	TenantID        string    `db:"tenant_id" json:"tenant_id"`
	FeatureCode     string    `db:"feature_code" json:"feature_code"`
	UsagePercentage float64   `db:"usage_percentage" json:"usage_percentage"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ResourceUsage is a point-in-time reading of the billable resource
// dimensions, fed to overage billing and compliance checks.
type ResourceUsage struct {
	ActiveUsers int     `json:"active_users"`
	StorageGB   float64 `json:"storage_gb"`
	APICalls    int64   `json:"api_calls"`
}

// DailySnapshot is the aggregated usage for one tenant and day, written by
// the usage aggregation job.
type DailySnapshot struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	Date        time.Time `db:"snapshot_date" json:"date"`
	ActiveUsers int       `db:"active_users" json:"active_users"`
	StorageGB   float64   `db:"storage_gb" json:"storage_gb"`
	APICalls    int64     `db:"api_calls" json:"api_calls"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
