package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/testutil"
	"github.com/platformhq/licensing/internal/types"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	service    WebhookService
	licenseSvc LicenseService
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	usageSvc := NewUsageService(stores.UsageRepo, stores.LicenseRepo, stores.PlanRepo, s.GetLogger())
	s.licenseSvc = NewLicenseService(
		stores.LicenseRepo,
		usageSvc,
		permission.NewAllowAllChecker(),
		cache.NewInMemoryCache(s.GetConfig()),
		s.GetConfig(),
		s.GetLogger(),
	)
	s.service = NewWebhookService(
		s.GetGateway(),
		stores.WebhookEventRepo,
		stores.BillingRepo,
		stores.SubscriptionRepo,
		stores.TenantRepo,
		stores.LicenseRepo,
		s.GetNotifier(),
		s.licenseSvc,
		s.GetConfig(),
		s.GetLogger(),
	)
}

func (s *WebhookServiceSuite) seedTenantSubAndLicense(status types.LicenseStatus) {
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:                  "tenant_test",
		Name:                "Test Tenant",
		Status:              tenant.TenantStatusSuspended,
		ProcessorCustomerID: "cus_test",
	})

	sub := &subscription.Subscription{
		ID:                      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ProcessorSubscriptionID: "sub_ext_1",
		ProcessorCustomerID:     "cus_test",
		PlanCode:                types.PlanProfessional,
		BillingPeriod:           types.BillingPeriodMonthly,
		SubscriptionStatus:      types.SubscriptionStatusPastDue,
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

	lic := &license.License{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
		LicenseCode:   types.PlanProfessional,
		Features:      []string{"api_access"},
		ValidUntil:    s.GetNow().AddDate(0, 0, 15),
		LicenseStatus: status,
		BaseModel: types.BaseModel{
			TenantID:  "tenant_test",
			Status:    types.StatusPublished,
			CreatedAt: s.GetNow(),
			UpdatedAt: s.GetNow(),
		},
	}
	s.NoError(s.GetStores().LicenseRepo.Create(s.GetContext(), lic))
}

func (s *WebhookServiceSuite) activationEnvelope(periodEnd time.Time) *webhookevent.Envelope {
	return &webhookevent.Envelope{
		ID:       "evt_activation_1",
		Type:     types.WebhookEventSubUpdated,
		TenantID: "tenant_test",
		Subscription: &webhookevent.SubscriptionPayload{
			SubscriptionID:     "sub_ext_1",
			Status:             types.SubscriptionStatusActive,
			CurrentPeriodStart: s.GetNow(),
			CurrentPeriodEnd:   periodEnd,
		},
		Raw: json.RawMessage(`{}`),
	}
}

func (s *WebhookServiceSuite) TestMissingSignatureFailsClosed() {
	err := s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "")

	s.True(ierr.IsInvalidSignature(err))
	s.Empty(s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events())
}

func (s *WebhookServiceSuite) TestInvalidSignatureFailsClosed() {
	s.GetGateway().Envelope = s.activationEnvelope(s.GetNow().AddDate(0, 1, 0))

	err := s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "bogus")

	s.True(ierr.IsInvalidSignature(err))
	s.Empty(s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events())
}

func (s *WebhookServiceSuite) TestActivationFlipsTenantAndLicense() {
	s.seedTenantSubAndLicense(types.LicenseStatusSuspended)
	periodEnd := s.GetNow().AddDate(0, 1, 0)
	s.GetGateway().Envelope = s.activationEnvelope(periodEnd)

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	t, err := s.GetStores().TenantRepo.Get(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(tenant.TenantStatusActive, t.Status)

	lic, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.LicenseStatusActive, lic.LicenseStatus)
	s.True(lic.ValidUntil.Equal(periodEnd))

	sub, err := s.GetStores().SubscriptionRepo.GetByProcessorID(s.GetContext(), "sub_ext_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)

	record, err := s.GetStores().WebhookEventRepo.Get(s.GetContext(), "evt_activation_1")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusProcessed, record.EventStatus)
}

func (s *WebhookServiceSuite) TestRedeliveryIsIdempotent() {
	s.seedTenantSubAndLicense(types.LicenseStatusSuspended)
	s.GetGateway().Envelope = s.activationEnvelope(s.GetNow().AddDate(0, 1, 0))

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))
	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	// Exactly one audit entry despite two deliveries
	events := s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventSubscriptionUpdated, events[0].EventType)
	s.Equal("evt_activation_1", events[0].ExternalEventID)
}

func (s *WebhookServiceSuite) TestSubscriptionDeletedSuspendsTenant() {
	s.seedTenantSubAndLicense(types.LicenseStatusActive)
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:       "evt_deleted_1",
		Type:     types.WebhookEventSubDeleted,
		TenantID: "tenant_test",
		Subscription: &webhookevent.SubscriptionPayload{
			SubscriptionID: "sub_ext_1",
			Status:         types.SubscriptionStatusCanceled,
		},
		Raw: json.RawMessage(`{}`),
	}

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	t, err := s.GetStores().TenantRepo.Get(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(tenant.TenantStatusSuspended, t.Status)

	lic, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.LicenseStatusSuspended, lic.LicenseStatus)

	sub, err := s.GetStores().SubscriptionRepo.GetByProcessorID(s.GetContext(), "sub_ext_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.SubscriptionStatus)
	s.NotNil(sub.CanceledAt)
}

func (s *WebhookServiceSuite) TestPaymentSucceededNotifiesTenant() {
	s.seedTenantSubAndLicense(types.LicenseStatusActive)
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:       "evt_payment_1",
		Type:     types.WebhookEventPaymentSucceeded,
		TenantID: "tenant_test",
		Invoice: &webhookevent.InvoicePayload{
			InvoiceID:  "in_1",
			AmountPaid: 299,
			Currency:   "usd",
		},
		Raw: json.RawMessage(`{}`),
	}

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	s.Len(s.GetNotifier().SentOfType(notification.TypePaymentSucceeded), 1)

	events := s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Require().Len(events, 1)
	s.Equal(types.BillingEventPaymentSucceeded, events[0].EventType)
}

func (s *WebhookServiceSuite) TestPaymentFailedAlertsTenantAndOperator() {
	s.seedTenantSubAndLicense(types.LicenseStatusActive)
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:   "evt_payment_2",
		Type: types.WebhookEventPaymentFailed,
		Invoice: &webhookevent.InvoicePayload{
			InvoiceID:      "in_2",
			SubscriptionID: "sub_ext_1",
			AmountDue:      299,
			Currency:       "usd",
		},
		Raw: json.RawMessage(`{}`),
	}

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	// Tenant resolved through the subscription linkage
	s.Len(s.GetNotifier().SentOfType(notification.TypePaymentFailed), 1)
	s.Len(s.GetNotifier().SentOfType(notification.TypeOperatorAlert), 1)
}

func (s *WebhookServiceSuite) TestUnknownSubscriptionIsAcknowledged() {
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:   "evt_unknown_sub",
		Type: types.WebhookEventSubUpdated,
		Subscription: &webhookevent.SubscriptionPayload{
			SubscriptionID: "sub_never_seen",
			Status:         types.SubscriptionStatusActive,
		},
		Raw: json.RawMessage(`{}`),
	}

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))
	s.Empty(s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events())
}

func (s *WebhookServiceSuite) TestUnknownEventTypeIsAcknowledged() {
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:   "evt_other",
		Type: types.WebhookEventType("charge.refunded"),
		Raw:  json.RawMessage(`{}`),
	}

	s.NoError(s.service.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	record, err := s.GetStores().WebhookEventRepo.Get(s.GetContext(), "evt_other")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusProcessed, record.EventStatus)
}

func (s *WebhookServiceSuite) TestTransientActivationFailureRetriesToCompletion() {
	s.seedTenantSubAndLicense(types.LicenseStatusSuspended)
	periodEnd := s.GetNow().AddDate(0, 1, 0)
	s.GetGateway().Envelope = s.activationEnvelope(periodEnd)

	// Activation fails once after the subscription update; the retry must
	// re-apply the state change rather than treat the event as done.
	svc := NewWebhookService(
		s.GetGateway(),
		s.GetStores().WebhookEventRepo,
		s.GetStores().BillingRepo,
		s.GetStores().SubscriptionRepo,
		&flakyTenantRepo{Repository: s.GetStores().TenantRepo},
		s.GetStores().LicenseRepo,
		s.GetNotifier(),
		s.licenseSvc,
		s.GetConfig(),
		s.GetLogger(),
	)

	s.NoError(svc.HandleWebhook(s.GetContext(), []byte(`{}`), "valid"))

	t, err := s.GetStores().TenantRepo.Get(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(tenant.TenantStatusActive, t.Status)

	lic, err := s.GetStores().LicenseRepo.GetByTenant(s.GetContext(), "tenant_test")
	s.NoError(err)
	s.Equal(types.LicenseStatusActive, lic.LicenseStatus)
	s.True(lic.ValidUntil.Equal(periodEnd))

	events := s.GetStores().BillingRepo.(*testutil.InMemoryBillingStore).Events()
	s.Require().Len(events, 1)
	s.Equal("evt_activation_1", events[0].ExternalEventID)

	record, err := s.GetStores().WebhookEventRepo.Get(s.GetContext(), "evt_activation_1")
	s.NoError(err)
	s.Equal(types.WebhookEventStatusProcessed, record.EventStatus)
	s.GreaterOrEqual(record.RetryCount, 1)
}

func (s *WebhookServiceSuite) TestRetriesExhaustEscalateToOperator() {
	// No tenant or subscription seeded, so processing keeps failing
	s.GetGateway().Envelope = &webhookevent.Envelope{
		ID:       "evt_failing",
		Type:     types.WebhookEventPaymentSucceeded,
		TenantID: "tenant_test",
		Invoice:  &webhookevent.InvoicePayload{InvoiceID: "in_3"},
		Raw:      json.RawMessage(`{}`),
	}
	s.GetStores().TenantRepo.(*testutil.InMemoryTenantStore).Add(&tenant.Tenant{
		ID:     "tenant_test",
		Status: tenant.TenantStatusActive,
	})

	// A billing log that fails every append keeps processing failing
	svc := NewWebhookService(
		s.GetGateway(),
		s.GetStores().WebhookEventRepo,
		failingBillingRepo{},
		s.GetStores().SubscriptionRepo,
		s.GetStores().TenantRepo,
		s.GetStores().LicenseRepo,
		s.GetNotifier(),
		s.licenseSvc,
		s.GetConfig(),
		s.GetLogger(),
	)

	err := svc.HandleWebhook(s.GetContext(), []byte(`{}`), "valid")

	s.Error(err)
	s.Len(s.GetNotifier().SentOfType(notification.TypeOperatorAlert), 1)

	record, getErr := s.GetStores().WebhookEventRepo.Get(s.GetContext(), "evt_failing")
	s.NoError(getErr)
	s.Equal(types.WebhookEventStatusFailed, record.EventStatus)
	s.GreaterOrEqual(record.RetryCount, s.GetConfig().Webhook.MaxRetries)
}

// flakyTenantRepo fails the first Activate call and delegates afterwards
type flakyTenantRepo struct {
	tenant.Repository
	activateCalls int
}

func (r *flakyTenantRepo) Activate(ctx context.Context, id string) error {
	r.activateCalls++
	if r.activateCalls == 1 {
		return ierr.NewError("tenant store unavailable").Mark(ierr.ErrDatabase)
	}
	return r.Repository.Activate(ctx, id)
}

// failingBillingRepo fails every append to exercise retry exhaustion
type failingBillingRepo struct{}

func (failingBillingRepo) Append(context.Context, *billing.Event) error {
	return ierr.NewError("billing log unavailable").Mark(ierr.ErrDatabase)
}

func (failingBillingRepo) ListByTenant(context.Context, string, int) ([]*billing.Event, error) {
	return nil, nil
}

func (failingBillingRepo) ListByType(context.Context, string, types.BillingEventType, int) ([]*billing.Event, error) {
	return nil, nil
}

func (failingBillingRepo) ExistsExternal(context.Context, string) (bool, error) {
	return false, nil
}
