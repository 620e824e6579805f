package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type JobServiceSuite struct {
	testutil.BaseServiceTestSuite
	service JobService
}

func TestJobService(t *testing.T) {
	suite.Run(t, new(JobServiceSuite))
}

func (s *JobServiceSuite) SetupTest() {
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
	billingSvc := NewBillingService(
		stores.SubscriptionRepo,
		stores.TenantRepo,
		stores.PlanRepo,
		stores.SnapshotRepo,
		stores.BillingRepo,
		s.GetGateway(),
		s.GetNotifier(),
		s.GetLogger(),
	)
	s.service = NewJobService(
		stores.LicenseRepo,
		stores.UsageRepo,
		stores.SnapshotRepo,
		stores.TenantRepo,
		stores.AlertLogRepo,
		stores.WebhookEventRepo,
		billingSvc,
		usageSvc,
		licenseSvc,
		s.GetNotifier(),
		s.GetConfig(),
		s.GetLogger(),
	)
}

func (s *JobServiceSuite) seedLicense(tenantID string, mutate func(*license.License)) *license.License {
	lic := &license.License{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
		LicenseCode:         types.PlanProfessional,
		Features:            []string{"api_access"},
		MaxUsers:            50,
		MaxStorageGB:        200,
		MaxAPICallsPerMonth: 50000,
		ValidUntil:          s.GetNow().AddDate(0, 1, 0),
		AutoRenew:           true,
		LicenseStatus:       types.LicenseStatusActive,
		GracePeriodDays:     7,
		BaseModel: types.BaseModel{
			TenantID:  tenantID,
			Status:    types.StatusPublished,
			CreatedAt: s.GetNow(),
			UpdatedAt: s.GetNow(),
		},
	}
	if mutate != nil {
		mutate(lic)
	}
	s.Require().NoError(s.GetStores().LicenseRepo.Create(s.GetContext(), lic))
	return lic
}

func (s *JobServiceSuite) seedSnapshot(tenantID string, daysAgo int, users int, storageGB float64, apiCalls int64) {
	s.Require().NoError(s.GetStores().SnapshotRepo.Create(s.GetContext(), &usage.DailySnapshot{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_SNAPSHOT),
		TenantID:    tenantID,
		Date:        s.GetNow().AddDate(0, 0, -daysAgo).Truncate(24 * time.Hour),
		ActiveUsers: users,
		StorageGB:   storageGB,
		APICalls:    apiCalls,
		CreatedAt:   s.GetNow(),
	}))
}

func (s *JobServiceSuite) TestExpiryCheckTransitionsOverdueLicenses() {
	s.seedLicense("tenant_overdue", func(l *license.License) {
		l.ValidUntil = s.GetNow().Add(-time.Hour)
	})
	s.seedLicense("tenant_fresh", nil)

	s.NoError(s.service.RunExpiryCheck(s.GetContext()))

	overdue, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_overdue")
	s.NoError(err)
	s.Equal(types.LicenseStatusExpired, overdue.LicenseStatus)

	fresh, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_fresh")
	s.NoError(err)
	s.Equal(types.LicenseStatusActive, fresh.LicenseStatus)
}

func (s *JobServiceSuite) TestExpiryAlertSentAtMostOncePerThreshold() {
	s.seedLicense("tenant_test", func(l *license.License) {
		l.ValidUntil = time.Now().UTC().AddDate(0, 0, 7)
	})

	s.NoError(s.service.RunExpiryCheck(s.GetContext()))
	s.NoError(s.service.RunExpiryCheck(s.GetContext()))

	alerts := s.GetNotifier().SentOfType(notification.TypeExpiryAlert)
	s.Require().Len(alerts, 1)
	s.Equal(types.UrgencyHigh, alerts[0].Data["urgency"])
	s.Equal(1, s.GetStores().AlertLogRepo.(*testutil.InMemoryAlertLogStore).Count())
}

func (s *JobServiceSuite) TestUsageAggregationWritesOneSnapshotPerDay() {
	s.seedLicense("tenant_test", nil)
	_, err := s.GetStores().UsageRepo.Increment(
		s.GetContext(), "tenant_test", "api_access", types.CurrentPeriodMonth(), 1234, nil)
	s.Require().NoError(err)

	s.NoError(s.service.RunUsageAggregation(s.GetContext()))
	// A repeat run for the same day must not fail or duplicate
	s.NoError(s.service.RunUsageAggregation(s.GetContext()))

	snap, err := s.GetStores().SnapshotRepo.GetLatest(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(int64(1234), snap.APICalls)

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	s.True(snap.Date.Equal(yesterday))
}

func (s *JobServiceSuite) TestUsageAggregationWarnsAtNinetyPercent() {
	s.seedLicense("tenant_test", nil)
	// 46 of 50 seats is 92%
	s.seedSnapshot("tenant_test", 2, 46, 100, 1000)

	s.NoError(s.service.RunUsageAggregation(s.GetContext()))

	warnings := s.GetNotifier().SentOfType(notification.TypeUsageWarning)
	s.Require().Len(warnings, 1)
	s.Equal("users", warnings[0].Data["dimension"])
}

func (s *JobServiceSuite) TestUsageAggregationQuietBelowThreshold() {
	s.seedLicense("tenant_test", nil)
	s.seedSnapshot("tenant_test", 2, 20, 100, 1000)

	s.NoError(s.service.RunUsageAggregation(s.GetContext()))

	s.Empty(s.GetNotifier().SentOfType(notification.TypeUsageWarning))
}

func (s *JobServiceSuite) TestUrgentRenewalReminderSentAtMostOnce() {
	s.seedLicense("tenant_test", func(l *license.License) {
		l.ValidUntil = s.GetNow().AddDate(0, 0, 5)
	})

	s.NoError(s.service.RunRenewalReminders(s.GetContext()))
	s.NoError(s.service.RunRenewalReminders(s.GetContext()))

	reminders := s.GetNotifier().SentOfType(notification.TypeRenewalReminder)
	s.Require().Len(reminders, 1)
	s.Equal(types.ReminderUrgent, reminders[0].Data["reminder_type"])
}

func (s *JobServiceSuite) TestRenewalReminderReArmedByNewCycle() {
	lic := s.seedLicense("tenant_test", func(l *license.License) {
		l.ValidUntil = s.GetNow().AddDate(0, 0, 5)
	})

	s.NoError(s.service.RunRenewalReminders(s.GetContext()))

	// Renewal moves the date; the next cycle re-arms the reminder
	lic.ValidUntil = s.GetNow().AddDate(0, 0, 25)
	s.NoError(s.GetStores().LicenseRepo.Update(s.GetContext(), lic))

	s.NoError(s.service.RunRenewalReminders(s.GetContext()))

	reminders := s.GetNotifier().SentOfType(notification.TypeRenewalReminder)
	s.Require().Len(reminders, 2)
	s.Equal(types.ReminderUpcoming, reminders[1].Data["reminder_type"])
}

func (s *JobServiceSuite) TestNoReminderWithoutAutoRenew() {
	s.seedLicense("tenant_test", func(l *license.License) {
		l.ValidUntil = s.GetNow().AddDate(0, 0, 5)
		l.AutoRenew = false
	})

	s.NoError(s.service.RunRenewalReminders(s.GetContext()))

	s.Empty(s.GetNotifier().SentOfType(notification.TypeRenewalReminder))
}

func (s *JobServiceSuite) TestComplianceCheckFlagsLimitViolations() {
	s.seedLicense("tenant_test", func(l *license.License) {
		l.MaxUsers = 10
	})
	s.seedSnapshot("tenant_test", 1, 15, 100, 1000)

	s.NoError(s.service.RunComplianceCheck(s.GetContext()))

	violations := s.GetNotifier().SentOfType(notification.TypeComplianceViolation)
	s.Require().Len(violations, 1)
	s.Equal(types.ViolationUserLimit, violations[0].Data["violation"])
}

func (s *JobServiceSuite) TestComplianceCheckQuietWhenCompliant() {
	s.seedLicense("tenant_test", nil)
	s.seedSnapshot("tenant_test", 1, 10, 50, 1000)

	s.NoError(s.service.RunComplianceCheck(s.GetContext()))

	s.Empty(s.GetNotifier().SentOfType(notification.TypeComplianceViolation))
}

func (s *JobServiceSuite) seedWebhookRecord(id string, status types.WebhookEventStatus, age time.Duration) {
	s.Require().NoError(s.GetStores().WebhookEventRepo.CreatePending(s.GetContext(), &webhookevent.WebhookEvent{
		ID:          id,
		TenantID:    "tenant_test",
		EventType:   types.WebhookEventPaymentSucceeded,
		EventStatus: status,
		ReceivedAt:  time.Now().UTC().Add(-age),
		UpdatedAt:   time.Now().UTC().Add(-age),
	}))
}

func (s *JobServiceSuite) TestWebhookRetentionKeepsFailedAndRecentRecords() {
	s.seedWebhookRecord("evt_old_done", types.WebhookEventStatusProcessed, 40*24*time.Hour)
	s.seedWebhookRecord("evt_fresh_done", types.WebhookEventStatusProcessed, time.Hour)
	s.seedWebhookRecord("evt_old_failed", types.WebhookEventStatusFailed, 40*24*time.Hour)
	s.seedWebhookRecord("evt_old_pending", types.WebhookEventStatusPending, 40*24*time.Hour)

	s.NoError(s.service.RunWebhookRetention(s.GetContext()))

	_, err := s.GetStores().WebhookEventRepo.Get(s.GetContext(), "evt_old_done")
	s.True(ierr.IsNotFound(err))

	for _, id := range []string{"evt_fresh_done", "evt_old_failed", "evt_old_pending"} {
		_, err := s.GetStores().WebhookEventRepo.Get(s.GetContext(), id)
		s.NoError(err, id)
	}
}

func (s *JobServiceSuite) TestMonthlyBillingProcessesEveryDueTenant() {
	stores := s.GetStores()
	tenants := stores.TenantRepo.(*testutil.InMemoryTenantStore)
	for _, id := range []string{"tenant_a", "tenant_b"} {
		tenants.Add(&tenant.Tenant{
			ID:                  id,
			Name:                id,
			Status:              tenant.TenantStatusActive,
			ProcessorCustomerID: "cus_" + id,
			AutoPayEnabled:      true,
		})
		tenants.SetDueForMonthlyBilling(id, true)
		s.Require().NoError(stores.SubscriptionRepo.Create(s.GetContext(), &subscription.Subscription{
			ID:                      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
			ProcessorSubscriptionID: "sub_ext_" + id,
			ProcessorCustomerID:     "cus_" + id,
			PlanCode:                types.PlanBasic,
			BillingPeriod:           types.BillingPeriodMonthly,
			SubscriptionStatus:      types.SubscriptionStatusActive,
			CurrentPeriodStart:      s.GetNow().AddDate(0, -1, 0),
			CurrentPeriodEnd:        s.GetNow(),
			BaseModel: types.BaseModel{
				TenantID:  id,
				Status:    types.StatusPublished,
				CreatedAt: s.GetNow(),
				UpdatedAt: s.GetNow(),
			},
		}))
	}

	s.NoError(s.service.RunMonthlyBilling(s.GetContext()))

	s.Len(s.GetGateway().Invoices(), 2)

	events := stores.BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Len(events, 2)
	for _, e := range events {
		s.Equal(types.BillingEventMonthlyBilling, e.EventType)
	}
}
