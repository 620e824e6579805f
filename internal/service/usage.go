package service

import (
	"context"
	"strconv"
	"time"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/plan"
	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/types"
	"github.com/samber/lo"
)

// upgradeOpportunityThreshold is the usage percentage past which an
// upsell marker is recorded for the tenant.
const upgradeOpportunityThreshold = 85.0

// UsageService tracks per-feature usage counters and evaluates them
// against plan limits.
type UsageService interface {
	// TrackUsage adds value to the tenant's counter for the feature in the
	// current period. Tracking is best effort: failures are logged and
	// swallowed so the caller's primary operation never breaks on it.
	TrackUsage(ctx context.Context, tenantID, featureCode string, value int64, metadata types.Metadata)

	// CheckFeatureLimit evaluates the current counter against the plan
	// limit for one feature.
	CheckFeatureLimit(ctx context.Context, tenantID, featureCode string) (*usage.FeatureLimit, error)

	// GetUsageLimits joins the plan's per-feature limits with the current
	// period's counters. Features without a counter report zero usage.
	GetUsageLimits(ctx context.Context, tenantID string) (*dto.UsageLimitsResponse, error)

	// GetUpgradeSuggestions builds an upgrade recommendation from usage
	// pressure and recorded upgrade opportunities.
	GetUpgradeSuggestions(ctx context.Context, tenantID string) (*dto.UpgradeSuggestionsResponse, error)
}

type usageService struct {
	usageRepo   usage.Repository
	licenseRepo license.Repository
	planRepo    plan.Repository
	logger      *logger.Logger
}

func NewUsageService(
	usageRepo usage.Repository,
	licenseRepo license.Repository,
	planRepo plan.Repository,
	logger *logger.Logger,
) UsageService {
	return &usageService{
		usageRepo:   usageRepo,
		licenseRepo: licenseRepo,
		planRepo:    planRepo,
		logger:      logger,
	}
}

func (s *usageService) TrackUsage(ctx context.Context, tenantID, featureCode string, value int64, metadata types.Metadata) {
	if value <= 0 {
		value = 1
	}
	periodMonth := types.CurrentPeriodMonth()

	newValue, err := s.usageRepo.Increment(ctx, tenantID, featureCode, periodMonth, value, metadata)
	if err != nil {
		s.logger.Errorw("failed to track usage",
			"error", err,
			"tenant_id", tenantID,
			"feature_code", featureCode,
			"value", value,
		)
		return
	}

	limit, err := s.featureLimit(ctx, tenantID, featureCode)
	if err != nil {
		s.logger.Debugw("skipping upgrade opportunity check",
			"error", err,
			"tenant_id", tenantID,
			"feature_code", featureCode,
		)
		return
	}

	fl := usage.Evaluate(featureCode, newValue, limit)
	if fl.UsagePercentage <= upgradeOpportunityThreshold {
		return
	}

	op := &usage.UpgradeOpportunity{
		TenantID:        tenantID,
		FeatureCode:     featureCode,
		UsagePercentage: fl.UsagePercentage,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := s.usageRepo.UpsertUpgradeOpportunity(ctx, op); err != nil {
		s.logger.Errorw("failed to record upgrade opportunity",
			"error", err,
			"tenant_id", tenantID,
			"feature_code", featureCode,
		)
	}
}

func (s *usageService) CheckFeatureLimit(ctx context.Context, tenantID, featureCode string) (*usage.FeatureLimit, error) {
	limit, err := s.featureLimit(ctx, tenantID, featureCode)
	if err != nil {
		return nil, err
	}

	periodMonth := types.CurrentPeriodMonth()
	current, err := s.usageRepo.Get(ctx, tenantID, featureCode, periodMonth)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	var currentValue int64
	if current != nil {
		currentValue = current.CurrentUsage
	}

	fl := usage.Evaluate(featureCode, currentValue, limit)
	return &fl, nil
}

func (s *usageService) GetUsageLimits(ctx context.Context, tenantID string) (*dto.UsageLimitsResponse, error) {
	p, err := s.tenantPlan(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	periodMonth := types.CurrentPeriodMonth()
	counters, err := s.usageRepo.ListForPeriod(ctx, tenantID, periodMonth)
	if err != nil {
		return nil, err
	}

	byFeature := lo.SliceToMap(counters, func(c *usage.FeatureUsage) (string, int64) {
		return c.FeatureCode, c.CurrentUsage
	})

	limits := make(map[string]usage.FeatureLimit, len(p.FeatureLimits))
	for featureCode, limit := range p.FeatureLimits {
		limits[featureCode] = usage.Evaluate(featureCode, byFeature[featureCode], int64(limit))
	}
	// Counters for features the plan does not cap still report, unlimited
	for featureCode, current := range byFeature {
		if _, ok := limits[featureCode]; !ok {
			limits[featureCode] = usage.Evaluate(featureCode, current, 0)
		}
	}

	return &dto.UsageLimitsResponse{
		TenantID:    tenantID,
		PeriodMonth: periodMonth,
		Limits:      limits,
	}, nil
}

func (s *usageService) GetUpgradeSuggestions(ctx context.Context, tenantID string) (*dto.UpgradeSuggestionsResponse, error) {
	lic, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	limits, err := s.GetUsageLimits(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	resp := &dto.UpgradeSuggestionsResponse{
		TenantID:    tenantID,
		CurrentPlan: lic.LicenseCode,
		EvaluatedAt: time.Now().UTC(),
	}

	var maxPct float64
	for _, fl := range limits.Limits {
		if fl.Limit <= 0 {
			continue
		}
		if fl.UsagePercentage >= 80 {
			resp.Reasons = append(resp.Reasons,
				fl.FeatureCode+" usage at "+formatPercent(fl.UsagePercentage)+" of plan limit")
		}
		if fl.UsagePercentage > maxPct {
			maxPct = fl.UsagePercentage
		}
	}

	ops, err := s.usageRepo.ListUpgradeOpportunities(ctx, tenantID)
	if err != nil {
		s.logger.Errorw("failed to list upgrade opportunities",
			"error", err, "tenant_id", tenantID)
	}
	for _, op := range ops {
		if op.UsagePercentage > maxPct {
			maxPct = op.UsagePercentage
		}
	}

	if maxPct >= 90 && lic.LicenseCode != types.PlanPlatform {
		resp.ShouldUpgrade = true
		resp.SuggestedPlan = lic.LicenseCode.NextPlan()
	}

	return resp, nil
}

// featureLimit resolves the plan-level monthly cap for a feature. Zero
// means the feature is uncapped on the tenant's plan.
func (s *usageService) featureLimit(ctx context.Context, tenantID, featureCode string) (int64, error) {
	p, err := s.tenantPlan(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	return int64(p.FeatureLimits[featureCode]), nil
}

func (s *usageService) tenantPlan(ctx context.Context, tenantID string) (*plan.Plan, error) {
	lic, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.planRepo.Get(ctx, string(lic.LicenseCode))
}

func formatPercent(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 1, 64) + "%"
}
