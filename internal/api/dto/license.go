package dto

import (
	"time"

	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/types"
)

// FeatureAccessResponse is the structured outcome of a feature access
// check. Denials carry a reason and, where applicable, an upgrade path.
type FeatureAccessResponse struct {
	IsValid         bool           `json:"is_valid"`
	HasFeature      bool           `json:"has_feature"`
	CanUseFeature   bool           `json:"can_use_feature"`
	Reason          string         `json:"reason,omitempty"`
	UpgradeRequired bool           `json:"upgrade_required,omitempty"`
	SuggestedPlan   types.PlanCode `json:"suggested_plan,omitempty"`
}

// Denial reasons returned on the access check
const (
	ReasonExpiredOrSuspended = "expired_or_suspended"
	ReasonUsageLimitExceeded = "usage_limit_exceeded"
	ReasonInsufficientRole   = "insufficient_role"
)

type LicenseResponse struct {
	*license.License
}

// UsageLimitsResponse maps feature codes onto their current usage state
type UsageLimitsResponse struct {
	TenantID    string                        `json:"tenant_id"`
	PeriodMonth string                        `json:"period_month"`
	Limits      map[string]usage.FeatureLimit `json:"limits"`
}

// UpgradeSuggestionsResponse carries the upgrade recommendation for a
// tenant built from usage pressure.
type UpgradeSuggestionsResponse struct {
	TenantID      string         `json:"tenant_id"`
	CurrentPlan   types.PlanCode `json:"current_plan"`
	SuggestedPlan types.PlanCode `json:"suggested_plan,omitempty"`
	ShouldUpgrade bool           `json:"should_upgrade"`
	Reasons       []string       `json:"reasons,omitempty"`
	EvaluatedAt   time.Time      `json:"evaluated_at"`
}
