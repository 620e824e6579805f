package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type UsageServiceSuite struct {
	testutil.BaseServiceTestSuite
	service UsageService
}

func TestUsageService(t *testing.T) {
	suite.Run(t, new(UsageServiceSuite))
}

func (s *UsageServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewUsageService(stores.UsageRepo, stores.LicenseRepo, stores.PlanRepo, s.GetLogger())
}

func (s *UsageServiceSuite) seedLicense(plan types.PlanCode, features []string) {
	lic := &license.License{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
		LicenseCode:   plan,
		Features:      features,
		ValidUntil:    s.GetNow().AddDate(0, 1, 0),
		LicenseStatus: types.LicenseStatusActive,
		BaseModel: types.BaseModel{
			TenantID:  "tenant_test",
			Status:    types.StatusPublished,
			CreatedAt: s.GetNow(),
			UpdatedAt: s.GetNow(),
		},
	}
	s.NoError(s.GetStores().LicenseRepo.Create(s.GetContext(), lic))
}

func (s *UsageServiceSuite) TestConcurrentTrackingLosesNoIncrements() {
	s.seedLicense(types.PlanProfessional, []string{"api_access"})

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", 1, nil)
		}()
	}
	wg.Wait()

	fl, err := s.service.CheckFeatureLimit(s.GetContext(), "tenant_test", "api_access")
	s.NoError(err)
	s.Equal(int64(n), fl.CurrentUsage)
}

func (s *UsageServiceSuite) TestNonPositiveValueCountsAsOne() {
	s.seedLicense(types.PlanProfessional, []string{"api_access"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", 0, nil)
	s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", -5, nil)

	fl, err := s.service.CheckFeatureLimit(s.GetContext(), "tenant_test", "api_access")
	s.NoError(err)
	s.Equal(int64(2), fl.CurrentUsage)
}

func (s *UsageServiceSuite) TestUncappedFeatureIsNeverOverLimit() {
	// Enterprise has no per-feature caps
	s.seedLicense(types.PlanEnterprise, []string{"api_access"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", 10_000_000, nil)

	fl, err := s.service.CheckFeatureLimit(s.GetContext(), "tenant_test", "api_access")
	s.NoError(err)
	s.False(fl.IsOverLimit)
	s.Zero(fl.UsagePercentage)
}

func (s *UsageServiceSuite) TestCheckFeatureLimitWithoutCounterReportsZero() {
	s.seedLicense(types.PlanBasic, []string{"api_access"})

	fl, err := s.service.CheckFeatureLimit(s.GetContext(), "tenant_test", "reports")
	s.NoError(err)
	s.Equal(int64(0), fl.CurrentUsage)
	s.Equal(int64(20), fl.Limit)
	s.False(fl.IsOverLimit)
}

func (s *UsageServiceSuite) TestTrackingPastThresholdRecordsUpgradeOpportunity() {
	s.seedLicense(types.PlanBasic, []string{"reports"})

	// Basic caps reports at 20; 18 is 90%
	s.service.TrackUsage(s.GetContext(), "tenant_test", "reports", 18, nil)

	ops, err := s.GetStores().UsageRepo.ListUpgradeOpportunities(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Require().Len(ops, 1)
	s.Equal("reports", ops[0].FeatureCode)
	s.InDelta(90.0, ops[0].UsagePercentage, 0.01)
}

func (s *UsageServiceSuite) TestTrackingBelowThresholdRecordsNothing() {
	s.seedLicense(types.PlanBasic, []string{"reports"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "reports", 10, nil)

	ops, err := s.GetStores().UsageRepo.ListUpgradeOpportunities(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Empty(ops)
}

func (s *UsageServiceSuite) TestGetUsageLimitsJoinsPlanLimitsWithCounters() {
	s.seedLicense(types.PlanProfessional, []string{"api_access"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", 25000, nil)

	resp, err := s.service.GetUsageLimits(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.CurrentPeriodMonth(), resp.PeriodMonth)

	api := resp.Limits["api_access"]
	s.Equal(int64(25000), api.CurrentUsage)
	s.Equal(int64(50000), api.Limit)
	s.InDelta(50.0, api.UsagePercentage, 0.01)

	// Capped features without counters still report with zero usage
	reports := resp.Limits["reports"]
	s.Equal(int64(0), reports.CurrentUsage)
	s.Equal(int64(100), reports.Limit)
}

func (s *UsageServiceSuite) TestUpgradeSuggestedAtHighPressure() {
	s.seedLicense(types.PlanProfessional, []string{"advanced_analytics"})

	// 480 of 500 is 96%
	s.service.TrackUsage(s.GetContext(), "tenant_test", "advanced_analytics", 480, nil)

	resp, err := s.service.GetUpgradeSuggestions(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.True(resp.ShouldUpgrade)
	s.Equal(types.PlanProfessional, resp.CurrentPlan)
	s.Equal(types.PlanEnterprise, resp.SuggestedPlan)
	s.NotEmpty(resp.Reasons)
}

func (s *UsageServiceSuite) TestNoUpgradeSuggestedAtLowPressure() {
	s.seedLicense(types.PlanProfessional, []string{"advanced_analytics"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "advanced_analytics", 100, nil)

	resp, err := s.service.GetUpgradeSuggestions(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.False(resp.ShouldUpgrade)
	s.Empty(resp.SuggestedPlan)
}

func (s *UsageServiceSuite) TestTopTierIsNeverSuggestedAnUpgrade() {
	s.seedLicense(types.PlanPlatform, []string{"api_access"})

	s.service.TrackUsage(s.GetContext(), "tenant_test", "api_access", 99_999_999, nil)

	resp, err := s.service.GetUpgradeSuggestions(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.False(resp.ShouldUpgrade)
}
