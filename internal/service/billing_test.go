package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewBillingService(
		stores.SubscriptionRepo,
		stores.TenantRepo,
		stores.PlanRepo,
		stores.SnapshotRepo,
		stores.BillingRepo,
		s.GetGateway(),
		s.GetNotifier(),
		s.GetLogger(),
	)
}

func (s *BillingServiceSuite) seedTenantAndSubscription(plan types.PlanCode, autoPay bool) {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:                  "tenant_test",
		Name:                "Test Tenant",
		Email:               "billing@test.example",
		Status:              tenant.TenantStatusActive,
		ProcessorCustomerID: "cus_test",
		AutoPayEnabled:      autoPay,
	})

	sub := &subscription.Subscription{
		ID:                      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ProcessorSubscriptionID: "sub_ext_1",
		ProcessorCustomerID:     "cus_test",
		PlanCode:                plan,
		BillingPeriod:           types.BillingPeriodMonthly,
		SubscriptionStatus:      types.SubscriptionStatusActive,
		CurrentPeriodStart:      s.GetNow().AddDate(0, 0, -15),
		CurrentPeriodEnd:        s.GetNow().AddDate(0, 0, 15),
		BaseModel: types.BaseModel{
			TenantID:  "tenant_test",
			Status:    types.StatusPublished,
			CreatedAt: s.GetNow(),
			UpdatedAt: s.GetNow(),
		},
	}
	s.NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
}

func (s *BillingServiceSuite) billingStore() *testutil.InMemoryBillingStore {
	return s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore)
}

func (s *BillingServiceSuite) TestUsageWithinLimitsIsAnExactNoOp() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	resp, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", &usage.ResourceUsage{
		ActiveUsers: 50,
		StorageGB:   200,
		APICalls:    50000,
	})

	s.NoError(err)
	s.Empty(resp.LineItems)
	s.True(resp.Total.IsZero())
	s.Empty(resp.InvoiceID)
	s.Empty(s.GetGateway().Invoices())
	s.Empty(s.billingStore().Events())
	s.Empty(s.GetNotifier().Sent())
}

func (s *BillingServiceSuite) TestSeatOverageOnProfessionalPlan() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	// 75 users against a 50 seat cap bills 25 seats at $10
	resp, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", &usage.ResourceUsage{
		ActiveUsers: 75,
		StorageGB:   100,
		APICalls:    10000,
	})

	s.NoError(err)
	s.Require().Len(resp.LineItems, 1)
	s.Equal("users", resp.LineItems[0].Dimension)
	s.Equal(int64(25), resp.LineItems[0].Quantity)
	s.True(resp.Total.Equal(decimal.NewFromInt(250)), "total was %s", resp.Total)
	s.NotEmpty(resp.InvoiceID)

	inv, ok := s.GetGateway().Invoice(resp.InvoiceID)
	s.Require().True(ok)
	s.True(inv.Finalized)
	s.False(inv.Voided)
	s.Require().Len(inv.Items, 1)
	s.True(inv.Items[0].Amount.Equal(decimal.NewFromInt(250)))

	events := s.billingStore().Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventInvoiceGenerated, events[0].EventType)

	s.Len(s.GetNotifier().SentOfType(notification.TypeOverageCharged), 1)
}

func (s *BillingServiceSuite) TestAPICallOverageBillsInStartedBlocks() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	// 50001 calls is one started block of 1000 at $0.10
	resp, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", &usage.ResourceUsage{
		ActiveUsers: 10,
		StorageGB:   10,
		APICalls:    50001,
	})

	s.NoError(err)
	s.Require().Len(resp.LineItems, 1)
	s.Equal("api_calls", resp.LineItems[0].Dimension)
	s.Equal(int64(1), resp.LineItems[0].Quantity)
	s.True(resp.Total.Equal(decimal.RequireFromString("0.10")), "total was %s", resp.Total)
}

func (s *BillingServiceSuite) TestUnlimitedDimensionsNeverBill() {
	s.seedTenantAndSubscription(types.PlanPlatform, false)

	resp, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", &usage.ResourceUsage{
		ActiveUsers: 100000,
		StorageGB:   900000,
		APICalls:    1 << 40,
	})

	s.NoError(err)
	s.Empty(resp.LineItems)
	s.True(resp.Total.IsZero())
}

func (s *BillingServiceSuite) TestNilReadingFallsBackToLatestSnapshot() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	s.NoError(s.GetStores().SnapshotRepo.Create(s.GetContext(), &usage.DailySnapshot{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_SNAPSHOT),
		TenantID:    "tenant_test",
		Date:        s.GetNow().AddDate(0, 0, -1).Truncate(24 * time.Hour),
		ActiveUsers: 60,
		StorageGB:   100,
		APICalls:    10000,
		CreatedAt:   s.GetNow(),
	}))

	resp, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", nil)

	s.NoError(err)
	s.Require().Len(resp.LineItems, 1)
	s.Equal("users", resp.LineItems[0].Dimension)
	s.True(resp.Total.Equal(decimal.NewFromInt(100)))
}

func (s *BillingServiceSuite) TestFinalizeFailureVoidsTheDraft() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)
	s.GetGateway().Errs["FinalizeInvoice"] = ierr.NewError("processor unavailable").Mark(ierr.ErrProcessor)

	_, err := s.service.ProcessUsageBasedBilling(s.GetContext(), "tenant_test", &usage.ResourceUsage{
		ActiveUsers: 75,
	})

	s.Error(err)
	invoices := s.GetGateway().Invoices()
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Voided)
	s.False(invoices[0].Finalized)

	events := s.billingStore().Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventInvoiceFinalizeFail, events[0].EventType)
}

func (s *BillingServiceSuite) TestMonthlyBillingChargesBasePlanPlusOverage() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	s.NoError(s.GetStores().SnapshotRepo.Create(s.GetContext(), &usage.DailySnapshot{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_SNAPSHOT),
		TenantID:    "tenant_test",
		Date:        s.GetNow().AddDate(0, 0, -1).Truncate(24 * time.Hour),
		ActiveUsers: 55,
		StorageGB:   100,
		APICalls:    10000,
		CreatedAt:   s.GetNow(),
	}))

	s.NoError(s.service.ProcessMonthlyBilling(s.GetContext(), "tenant_test"))

	invoices := s.GetGateway().Invoices()
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Finalized)
	// $299 base plus 5 extra seats at $10
	s.True(invoices[0].AmountDue.Equal(decimal.NewFromInt(349)), "amount was %s", invoices[0].AmountDue)

	events := s.billingStore().Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventMonthlyBilling, events[0].EventType)

	s.Len(s.GetNotifier().SentOfType(notification.TypeInvoiceGenerated), 1)
}

func (s *BillingServiceSuite) TestMonthlyBillingAutoPaysWhenEnabled() {
	s.seedTenantAndSubscription(types.PlanProfessional, true)

	s.NoError(s.service.ProcessMonthlyBilling(s.GetContext(), "tenant_test"))

	invoices := s.GetGateway().Invoices()
	s.Require().Len(invoices, 1)
	s.True(invoices[0].Paid)
	// Auto-pay replaces the invoice-ready notification
	s.Empty(s.GetNotifier().SentOfType(notification.TypeInvoiceGenerated))
}

func (s *BillingServiceSuite) TestMonthlyBillingLogsOneEventEvenOnFailure() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)
	s.GetGateway().Errs["CreateDraftInvoice"] = ierr.NewError("processor unavailable").Mark(ierr.ErrProcessor)

	err := s.service.ProcessMonthlyBilling(s.GetContext(), "tenant_test")

	s.Error(err)
	events := s.billingStore().Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventMonthlyBilling, events[0].EventType)
}

func (s *BillingServiceSuite) TestAnalyticsAggregatesInvoiceTotals() {
	s.seedTenantAndSubscription(types.PlanProfessional, true)

	s.NoError(s.service.ProcessMonthlyBilling(s.GetContext(), "tenant_test"))

	resp, err := s.service.GetBillingAnalytics(s.GetContext(), "tenant_test", "month")
	s.NoError(err)
	s.Equal(1, resp.InvoiceCount)
	s.True(resp.TotalBilled.Equal(decimal.NewFromInt(299)))
	s.True(resp.TotalPaid.Equal(decimal.NewFromInt(299)))
	s.True(resp.TotalUnpaid.IsZero())
}

func (s *BillingServiceSuite) TestAnalyticsRequiresProcessorLinkage() {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:     "tenant_test",
		Name:   "Test Tenant",
		Status: tenant.TenantStatusActive,
	})

	_, err := s.service.GetBillingAnalytics(s.GetContext(), "tenant_test", "month")
	s.True(ierr.IsNotFound(err))
}

func (s *BillingServiceSuite) TestListBillingEventsFiltersByType() {
	s.seedTenantAndSubscription(types.PlanProfessional, false)

	_, err := s.service.AddPaymentMethod(s.GetContext(), "tenant_test", &dto.AddPaymentMethodRequest{
		PaymentMethodID: "pm_123",
	})
	s.Require().NoError(err)
	s.Require().NoError(s.service.RemovePaymentMethod(s.GetContext(), "tenant_test", "pm_123"))

	resp, err := s.service.ListBillingEvents(s.GetContext(), "tenant_test", &dto.ListBillingEventsRequest{})
	s.NoError(err)
	s.Equal(2, resp.Count)

	resp, err = s.service.ListBillingEvents(s.GetContext(), "tenant_test", &dto.ListBillingEventsRequest{
		EventType: string(types.BillingEventPaymentMethodAdded),
	})
	s.NoError(err)
	s.Require().Equal(1, resp.Count)
	s.Equal(types.BillingEventPaymentMethodAdded, resp.Events[0].EventType)

	resp, err = s.service.ListBillingEvents(s.GetContext(), "tenant_test", &dto.ListBillingEventsRequest{Limit: 1})
	s.NoError(err)
	s.Equal(1, resp.Count)
}

func (s *BillingServiceSuite) TestListBillingEventsUnknownTenant() {
	_, err := s.service.ListBillingEvents(s.GetContext(), "tenant_missing", &dto.ListBillingEventsRequest{})
	s.True(ierr.IsNotFound(err))
}

func (s *BillingServiceSuite) TestAddPaymentMethodCreatesCustomerWhenMissing() {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:     "tenant_test",
		Name:   "Test Tenant",
		Email:  "billing@test.example",
		Status: tenant.TenantStatusActive,
	})

	resp, err := s.service.AddPaymentMethod(s.GetContext(), "tenant_test", &dto.AddPaymentMethodRequest{
		PaymentMethodID: "pm_123",
		SetDefault:      true,
	})

	s.NoError(err)
	s.Equal("pm_123", resp.ID)
	s.True(resp.Default)

	t, err := s.GetStores().TenantRepo.Get(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.NotEmpty(t.ProcessorCustomerID)

	events := s.billingStore().Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventPaymentMethodAdded, events[0].EventType)
}
