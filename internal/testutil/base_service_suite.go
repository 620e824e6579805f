package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/domain/alertlog"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/plan"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/validator"
)

// Stores holds the repository interfaces backing a service test
type Stores struct {
	LicenseRepo      license.Repository
	UsageRepo        usage.Repository
	SnapshotRepo     usage.SnapshotRepository
	SubscriptionRepo subscription.Repository
	BillingRepo      billing.Repository
	WebhookEventRepo webhookevent.Repository
	TenantRepo       tenant.Repository
	AlertLogRepo     alertlog.Repository
	PlanRepo         plan.Repository
}

// BaseServiceTestSuite provides common state for service test suites.
// Every test gets fresh stores, a fresh gateway and notifier, and a
// request-scoped context.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	gateway  *FakeGateway
	notifier *FakeNotifier
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	log, err := logger.NewLogger("error")
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
	s.logger = log
	s.config = &config.Configuration{
		Logging: config.LoggingConfig{Level: "error"},
		Webhook: config.WebhookConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
		},
		Scheduler: config.SchedulerConfig{
			JobBudget:   time.Hour,
			Concurrency: 4,
		},
		Cache: config.CacheConfig{
			Enabled:    true,
			LicenseTTL: 30 * time.Second,
		},
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = SetupContext()
	s.stores = Stores{
		LicenseRepo:      NewInMemoryLicenseStore(),
		UsageRepo:        NewInMemoryUsageStore(),
		SnapshotRepo:     NewInMemorySnapshotStore(),
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		BillingRepo:      NewInMemoryBillingStore(),
		WebhookEventRepo: NewInMemoryWebhookEventStore(),
		TenantRepo:       NewInMemoryTenantStore(),
		AlertLogRepo:     NewInMemoryAlertLogStore(),
		PlanRepo:         plan.NewCatalogRepository(),
	}
	s.gateway = NewFakeGateway()
	s.notifier = NewFakeNotifier()
	s.now = time.Now().UTC()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetStores returns the per-test stores
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetGateway returns the fake payment gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetNotifier returns the fake notifier
func (s *BaseServiceTestSuite) GetNotifier() *FakeNotifier {
	return s.notifier
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetNow returns the time captured at test setup
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}
