package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/domain/tenant"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	usageSvc := NewUsageService(stores.UsageRepo, stores.LicenseRepo, stores.PlanRepo, s.GetLogger())
	licenseSvc := NewLicenseService(
		stores.LicenseRepo,
		usageSvc,
		permission.NewAllowAllChecker(),
		cache.NewInMemoryCache(s.GetConfig()),
		s.GetConfig(),
		s.GetLogger(),
	)
	s.service = NewSubscriptionService(
		stores.SubscriptionRepo,
		stores.TenantRepo,
		stores.PlanRepo,
		stores.LicenseRepo,
		stores.BillingRepo,
		s.GetGateway(),
		s.GetNotifier(),
		licenseSvc,
		s.GetLogger(),
	)
}

func (s *SubscriptionServiceSuite) seedTenant() {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:     "tenant_test",
		Name:   "Test Tenant",
		Email:  "owner@test.example",
		Status: tenant.TenantStatusActive,
	})
}

func (s *SubscriptionServiceSuite) createSubscription() *dto.SubscriptionResponse {
	resp, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:        "tenant_test",
		PlanCode:        types.PlanProfessional,
		BillingPeriod:   types.BillingPeriodMonthly,
		PaymentMethodID: "pm_123",
	})
	s.Require().NoError(err)
	return resp
}

func (s *SubscriptionServiceSuite) TestCreateProvisionsSubscriptionAndLicense() {
	s.seedTenant()

	resp := s.createSubscription()

	s.Equal(types.PlanProfessional, resp.PlanCode)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.NotEmpty(resp.ProcessorSubscriptionID)

	// Tenant is linked to the processor customer
	t, err := s.GetStores().TenantRepo.Get(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.NotEmpty(t.ProcessorCustomerID)

	// License provisioned from the plan
	lic, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.PlanProfessional, lic.LicenseCode)
	s.Equal(types.LicenseStatusActive, lic.LicenseStatus)
	s.Equal(50, lic.MaxUsers)
	s.Contains(lic.Features, "advanced_analytics")
	s.True(lic.ValidUntil.Equal(resp.CurrentPeriodEnd))

	events := s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventSubscriptionCreated, events[0].EventType)

	s.Len(s.GetNotifier().SentOfType(notification.TypeSubscriptionCreated), 1)
}

func (s *SubscriptionServiceSuite) TestCreateRejectsSecondCurrentSubscription() {
	s.seedTenant()
	s.createSubscription()

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:      "tenant_test",
		PlanCode:      types.PlanBasic,
		BillingPeriod: types.BillingPeriodMonthly,
	})

	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestCreateRejectsUnknownPlan() {
	s.seedTenant()

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:      "tenant_test",
		PlanCode:      types.PlanCode("gold"),
		BillingPeriod: types.BillingPeriodMonthly,
	})

	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestProcessorFailureLogsAndReturnsError() {
	s.seedTenant()
	s.GetGateway().Errs["CreateSubscription"] = ierr.NewError("card declined").Mark(ierr.ErrProcessor)

	_, err := s.service.CreateSubscription(s.GetContext(), &dto.CreateSubscriptionRequest{
		TenantID:      "tenant_test",
		PlanCode:      types.PlanProfessional,
		BillingPeriod: types.BillingPeriodMonthly,
	})

	s.Error(err)

	events := s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventSubscriptionFailed, events[0].EventType)

	// No local subscription or license was created
	_, err = s.GetStores().SubscriptionRepo.GetCurrent(s.GetContext(), "tenant_test")
	s.True(ierr.IsNotFound(err))
	_, err = s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestUpdateChangesPlanAndRefreshesLicense() {
	s.seedTenant()
	created := s.createSubscription()

	resp, err := s.service.UpdateSubscription(s.GetContext(), created.ID, &dto.UpdateSubscriptionRequest{
		PlanCode:      types.PlanEnterprise,
		BillingPeriod: types.BillingPeriodAnnual,
	})

	s.NoError(err)
	s.Equal(types.PlanEnterprise, resp.PlanCode)
	s.Equal(types.BillingPeriodAnnual, resp.BillingPeriod)

	lic, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.PlanEnterprise, lic.LicenseCode)
	s.Equal(types.Unlimited, lic.MaxUsers)
	s.Contains(lic.Features, "custom_integrations")
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEndKeepsSubscriptionCurrent() {
	s.seedTenant()
	created := s.createSubscription()

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, false)

	s.NoError(err)
	// Status stays advisory until the processor confirms via webhook
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.True(resp.CancelAtPeriodEnd)
	s.NotNil(resp.CanceledAt)

	current, err := s.GetStores().SubscriptionRepo.GetCurrent(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(created.ID, current.ID)

	s.Len(s.GetNotifier().SentOfType(notification.TypeSubscriptionCanceled), 1)
}

func (s *SubscriptionServiceSuite) TestCancelImmediatelyMarksCanceled() {
	s.seedTenant()
	created := s.createSubscription()

	resp, err := s.service.CancelSubscription(s.GetContext(), created.ID, true)

	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, resp.SubscriptionStatus)

	_, err = s.GetStores().SubscriptionRepo.GetCurrent(s.GetContext(), "tenant_test")
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCancelTwiceIsRejected() {
	s.seedTenant()
	created := s.createSubscription()

	_, err := s.service.CancelSubscription(s.GetContext(), created.ID, true)
	s.NoError(err)

	_, err = s.service.CancelSubscription(s.GetContext(), created.ID, true)
	s.Error(err)
}

func (s *SubscriptionServiceSuite) TestGetCurrentSubscription() {
	s.seedTenant()
	created := s.createSubscription()

	resp, err := s.service.GetCurrentSubscription(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(created.ID, resp.ID)

	_, err = s.service.GetCurrentSubscription(s.GetContext(), "tenant_other")
	s.True(ierr.IsNotFound(err))
}
