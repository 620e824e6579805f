package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type LicenseServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  LicenseService
	usageSvc UsageService
	cache    cache.Cache
}

func TestLicenseService(t *testing.T) {
	suite.Run(t, new(LicenseServiceSuite))
}

func (s *LicenseServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.usageSvc = NewUsageService(stores.UsageRepo, stores.LicenseRepo, stores.PlanRepo, s.GetLogger())
	s.cache = cache.NewInMemoryCache(s.GetConfig())
	s.service = NewLicenseService(
		stores.LicenseRepo,
		s.usageSvc,
		permission.NewAllowAllChecker(),
		s.cache,
		s.GetConfig(),
		s.GetLogger(),
	)
}

func (s *LicenseServiceSuite) seedLicense(mutate func(*license.License)) *license.License {
	lic := &license.License{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
		LicenseCode:         types.PlanProfessional,
		Features:            []string{"core_features", "api_access", "advanced_analytics"},
		Dashboards:          []string{"overview", "sales"},
		KPILimit:            25,
		MaxUsers:            50,
		MaxStorageGB:        200,
		MaxAPICallsPerMonth: 50000,
		ValidUntil:          s.GetNow().AddDate(0, 1, 0),
		AutoRenew:           true,
		LicenseStatus:       types.LicenseStatusActive,
		GracePeriodDays:     7,
		BaseModel: types.BaseModel{
			TenantID:  "tenant_test",
			Status:    types.StatusPublished,
			CreatedAt: s.GetNow(),
			UpdatedAt: s.GetNow(),
		},
	}
	if mutate != nil {
		mutate(lic)
	}
	s.NoError(s.GetStores().LicenseRepo.Create(s.GetContext(), lic))
	return lic
}

func (s *LicenseServiceSuite) TestAccessWithoutLicenseFallsBackToBasicSuggestion() {
	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "api_access", "")

	s.NoError(err)
	s.False(resp.IsValid)
	s.False(resp.CanUseFeature)
	s.True(resp.UpgradeRequired)
	s.Equal(types.PlanBasic, resp.SuggestedPlan)
}

func (s *LicenseServiceSuite) TestSuspendedLicenseNeverGrantsAccess() {
	s.seedLicense(func(l *license.License) {
		l.LicenseStatus = types.LicenseStatusSuspended
		// Generous grace must not matter for a suspended license
		l.GracePeriodDays = 365
	})

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "api_access", "")

	s.NoError(err)
	s.False(resp.IsValid)
	s.False(resp.CanUseFeature)
	s.Equal(dto.ReasonExpiredOrSuspended, resp.Reason)
}

func (s *LicenseServiceSuite) TestExpiredLicenseUsableWithinGracePeriod() {
	s.seedLicense(func(l *license.License) {
		l.LicenseStatus = types.LicenseStatusExpired
		l.ValidUntil = s.GetNow().AddDate(0, 0, -3)
		l.GracePeriodDays = 7
	})

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "api_access", "")

	s.NoError(err)
	s.True(resp.IsValid)
	s.True(resp.CanUseFeature)
}

func (s *LicenseServiceSuite) TestExpiredLicenseDeniedPastGracePeriod() {
	s.seedLicense(func(l *license.License) {
		l.LicenseStatus = types.LicenseStatusExpired
		l.ValidUntil = s.GetNow().AddDate(0, 0, -3)
		l.GracePeriodDays = 2
	})

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "api_access", "")

	s.NoError(err)
	s.False(resp.IsValid)
	s.False(resp.CanUseFeature)
	s.Equal(dto.ReasonExpiredOrSuspended, resp.Reason)
}

func (s *LicenseServiceSuite) TestFeatureOutsidePlanSuggestsNextTier() {
	s.seedLicense(nil)

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "white_label", "")

	s.NoError(err)
	s.True(resp.IsValid)
	s.False(resp.HasFeature)
	s.False(resp.CanUseFeature)
	s.True(resp.UpgradeRequired)
	s.Equal(types.PlanEnterprise, resp.SuggestedPlan)
}

func (s *LicenseServiceSuite) TestUsageOverLimitDeniesFeature() {
	s.seedLicense(nil)

	// Professional caps advanced_analytics at 500 per month
	_, err := s.GetStores().UsageRepo.Increment(
		s.GetContext(), "tenant_test", "advanced_analytics", types.CurrentPeriodMonth(), 501, nil)
	s.NoError(err)

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "advanced_analytics", "")

	s.NoError(err)
	s.True(resp.IsValid)
	s.True(resp.HasFeature)
	s.False(resp.CanUseFeature)
	s.Equal(dto.ReasonUsageLimitExceeded, resp.Reason)
	s.Equal(types.PlanEnterprise, resp.SuggestedPlan)
}

func (s *LicenseServiceSuite) TestUsageAtExactLimitStillAllowed() {
	s.seedLicense(nil)

	_, err := s.GetStores().UsageRepo.Increment(
		s.GetContext(), "tenant_test", "advanced_analytics", types.CurrentPeriodMonth(), 500, nil)
	s.NoError(err)

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "advanced_analytics", "")

	s.NoError(err)
	s.True(resp.CanUseFeature)
}

func (s *LicenseServiceSuite) TestAccessGrantedOnHappyPath() {
	s.seedLicense(nil)

	resp, err := s.service.CheckFeatureAccess(s.GetContext(), "tenant_test", "api_access", "user_test")

	s.NoError(err)
	s.True(resp.IsValid)
	s.True(resp.HasFeature)
	s.True(resp.CanUseFeature)
	s.Empty(resp.Reason)
}

func (s *LicenseServiceSuite) TestGetLicenseReturnsNotFoundWithoutLicense() {
	_, err := s.service.GetLicense(s.GetContext(), "tenant_test")
	s.Error(err)
}

func (s *LicenseServiceSuite) TestCacheInvalidationPicksUpLicenseChanges() {
	lic := s.seedLicense(nil)

	// Prime the cache
	resp, err := s.service.GetLicense(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.PlanProfessional, resp.License.LicenseCode)

	lic.LicenseCode = types.PlanEnterprise
	lic.Features = append(lic.Features, "white_label")
	lic.UpdatedAt = time.Now().UTC()
	s.NoError(s.GetStores().LicenseRepo.Update(s.GetContext(), lic))

	// Stale until invalidated
	resp, err = s.service.GetLicense(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.PlanProfessional, resp.License.LicenseCode)

	s.service.InvalidateCache(s.GetContext(), "tenant_test")

	resp, err = s.service.GetLicense(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.PlanEnterprise, resp.License.LicenseCode)
}
