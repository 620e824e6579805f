package plan

import (
	"context"

	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
	"github.com/shopspring/decimal"
)

// catalog is the static plan catalog, resolved once at startup. Limits and
// prices mirror the published plan matrix; processor price ids are the
// stable lookup keys configured on the processor side.
type catalog struct {
	plans map[types.PlanCode]*Plan
}

// NewCatalogRepository returns the static plan catalog
func NewCatalogRepository() Repository {
	plans := []*Plan{
		{
			Code: types.PlanBasic,
			Name: "Basic Plan",
			Features: []string{
				"core_features", "basic_support", "api_access",
			},
			FeatureLimits: map[string]int{
				"api_access": 10000,
				"reports":    20,
			},
			Dashboards: []string{"overview"},
			KPILimit:   10,
			Limits:     Limits{Users: 10, StorageGB: 50, APICallsPerMonth: 10000},
			Price: Price{
				Monthly: decimal.NewFromInt(99),
				Annual:  decimal.NewFromInt(999),
			},
			ProcessorPriceIDs: PriceIDs{Monthly: "price_basic_monthly", Annual: "price_basic_annual"},
			SupportLevel:      "basic",
		},
		{
			Code: types.PlanProfessional,
			Name: "Professional Plan",
			Features: []string{
				"core_features", "basic_support", "api_access",
				"advanced_analytics", "team_dashboards", "bulk_operations",
				"priority_support",
			},
			FeatureLimits: map[string]int{
				"api_access":         50000,
				"reports":            100,
				"advanced_analytics": 500,
			},
			Dashboards: []string{"overview", "sales", "operations"},
			KPILimit:   25,
			Limits:     Limits{Users: 50, StorageGB: 200, APICallsPerMonth: 50000},
			Price: Price{
				Monthly: decimal.NewFromInt(299),
				Annual:  decimal.NewFromInt(2999),
			},
			ProcessorPriceIDs: PriceIDs{Monthly: "price_pro_monthly", Annual: "price_pro_annual"},
			SupportLevel:      "priority",
		},
		{
			Code: types.PlanEnterprise,
			Name: "Enterprise Plan",
			Features: []string{
				"core_features", "basic_support", "api_access",
				"advanced_analytics", "team_dashboards", "bulk_operations",
				"priority_support", "custom_reports", "custom_integrations",
				"dedicated_support",
			},
			FeatureLimits: map[string]int{},
			Dashboards:    []string{"overview", "sales", "operations", "finance", "executive"},
			KPILimit:      0,
			Limits:        Limits{Users: types.Unlimited, StorageGB: 1000, APICallsPerMonth: types.Unlimited},
			Price: Price{
				Monthly: decimal.NewFromInt(999),
				Annual:  decimal.NewFromInt(9999),
			},
			ProcessorPriceIDs: PriceIDs{Monthly: "price_ent_monthly", Annual: "price_ent_annual"},
			SupportLevel:      "dedicated",
		},
		{
			Code: types.PlanPlatform,
			Name: "Platform Plan",
			Features: []string{
				"core_features", "basic_support", "api_access",
				"advanced_analytics", "team_dashboards", "bulk_operations",
				"priority_support", "custom_reports", "custom_integrations",
				"dedicated_support", "white_label", "multi_region",
			},
			FeatureLimits: map[string]int{},
			Dashboards:    []string{"overview", "sales", "operations", "finance", "executive", "platform"},
			KPILimit:      0,
			Limits:        Limits{Users: types.Unlimited, StorageGB: types.Unlimited, APICallsPerMonth: types.Unlimited},
			Price: Price{
				Monthly: decimal.NewFromInt(2499),
				Annual:  decimal.NewFromInt(24999),
			},
			ProcessorPriceIDs: PriceIDs{Monthly: "price_platform_monthly", Annual: "price_platform_annual"},
			SupportLevel:      "dedicated",
		},
	}

	byCode := make(map[types.PlanCode]*Plan, len(plans))
	for _, p := range plans {
		byCode[p.Code] = p
	}
	return &catalog{plans: byCode}
}

func (c *catalog) Get(_ context.Context, code string) (*Plan, error) {
	p, ok := c.plans[types.PlanCode(code)]
	if !ok {
		return nil, ierr.NewError("plan not found").
			WithHintf("License plan %s not found", code).
			WithReportableDetails(map[string]any{"plan_code": code}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (c *catalog) List(_ context.Context) ([]*Plan, error) {
	ladder := []types.PlanCode{
		types.PlanBasic, types.PlanProfessional, types.PlanEnterprise, types.PlanPlatform,
	}
	out := make([]*Plan, 0, len(ladder))
	for _, code := range ladder {
		out = append(out, c.plans[code])
	}
	return out, nil
}
