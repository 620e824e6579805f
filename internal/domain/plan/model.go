package plan

import (
	"github.com/platformhq/licensing/internal/types"
	"github.com/shopspring/decimal"
)

// Plan is a named bundle of features, limits, and price. The catalog is
// resolved once at startup; plans are immutable at runtime.
type Plan struct {
	Code     types.PlanCode `json:"code"`
	Name     string         `json:"name"`
	Features []string       `json:"features"`

	// FeatureLimits caps monthly usage per feature code. A feature absent
	// from the map, or with a non-positive cap, is unlimited.
	FeatureLimits map[string]int `json:"feature_limits"`

	// Dashboards available on this tier
	Dashboards []string `json:"dashboards"`

	// KPILimit caps KPIs per dashboard, 0 = unlimited
	KPILimit int `json:"kpi_limit"`

	Limits Limits `json:"limits"`
	Price  Price  `json:"price"`

	// ProcessorPriceIDs map billing periods onto processor price objects
	ProcessorPriceIDs PriceIDs `json:"processor_price_ids"`

	SupportLevel string `json:"support_level"`
}

// Limits are the enforced usage caps. types.Unlimited disables a dimension.
type Limits struct {
	Users            int `json:"users"`
	StorageGB        int `json:"storage_gb"`
	APICallsPerMonth int `json:"api_calls_per_month"`
}

// Price in USD for each billing period
type Price struct {
	Monthly decimal.Decimal `json:"monthly"`
	Annual  decimal.Decimal `json:"annual"`
}

// Amount returns the price for a billing period
func (p Price) Amount(period types.BillingPeriod) decimal.Decimal {
	if period == types.BillingPeriodAnnual {
		return p.Annual
	}
	return p.Monthly
}

type PriceIDs struct {
	Monthly string `json:"monthly"`
	Annual  string `json:"annual"`
}

// ID returns the processor price id for a billing period
func (p PriceIDs) ID(period types.BillingPeriod) string {
	if period == types.BillingPeriodAnnual {
		return p.Annual
	}
	return p.Monthly
}

// UserLimitEnforced reports whether the seat cap applies
func (l Limits) UserLimitEnforced() bool {
	return l.Users > 0
}

// APILimitEnforced reports whether the API call cap applies
func (l Limits) APILimitEnforced() bool {
	return l.APICallsPerMonth > 0
}

// StorageLimitEnforced reports whether the storage cap applies
func (l Limits) StorageLimitEnforced() bool {
	return l.StorageGB > 0
}
