package types

import "time"

// PlanCode identifies a license plan tier. The tiers form a fixed upgrade
// ladder: basic → professional → enterprise → platform.
type PlanCode string

const (
	PlanBasic        PlanCode = "basic"
	PlanProfessional PlanCode = "professional"
	PlanEnterprise   PlanCode = "enterprise"
	PlanPlatform     PlanCode = "platform"
)

// NextPlan returns the next tier in the upgrade ladder. The top tier
// returns itself.
func (p PlanCode) NextPlan() PlanCode {
	switch p {
	case PlanBasic:
		return PlanProfessional
	case PlanProfessional:
		return PlanEnterprise
	case PlanEnterprise:
		return PlanPlatform
	default:
		return PlanPlatform
	}
}

func (p PlanCode) Validate() bool {
	switch p {
	case PlanBasic, PlanProfessional, PlanEnterprise, PlanPlatform:
		return true
	}
	return false
}

// LicenseStatus is the lifecycle status of a tenant license
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusTrial     LicenseStatus = "trial"
)

// PeriodMonth returns the usage period key (YYYY-MM) for the given instant.
// Usage counters never roll back; a new period simply starts a new key.
func PeriodMonth(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// CurrentPeriodMonth returns the usage period key for the current month
func CurrentPeriodMonth() string {
	return PeriodMonth(time.Now())
}

// Unlimited marks a limit dimension that is never enforced. Zero is treated
// the same way so that absent limits default to unlimited.
const Unlimited = -1
