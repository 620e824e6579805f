package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	validatorpkg "github.com/go-playground/validator/v10"
	"go.uber.org/fx"

	"github.com/platformhq/licensing/internal/api"
	v1 "github.com/platformhq/licensing/internal/api/v1"
	"github.com/platformhq/licensing/internal/cache"
	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/httpclient"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/payment/stripe"
	"github.com/platformhq/licensing/internal/permission"
	"github.com/platformhq/licensing/internal/postgres"
	"github.com/platformhq/licensing/internal/repository"
	"github.com/platformhq/licensing/internal/scheduler"
	"github.com/platformhq/licensing/internal/service"
	"github.com/platformhq/licensing/internal/types"
	"github.com/platformhq/licensing/internal/validator"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Validator
			validator.NewValidator,

			// Logger
			provideLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,

			// HTTP client
			httpclient.NewDefaultClient,

			// Payment gateway
			stripe.NewClient,
			stripe.NewGateway,

			// Notifications
			notification.NewNotifier,

			// Permission checks
			permission.NewAllowAllChecker,

			// Repositories
			repository.NewLicenseRepository,
			repository.NewUsageRepository,
			repository.NewSnapshotRepository,
			repository.NewSubscriptionRepository,
			repository.NewBillingRepository,
			repository.NewWebhookEventRepository,
			repository.NewTenantRepository,
			repository.NewAlertLogRepository,
			repository.NewPlanRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewUsageService,
			service.NewLicenseService,
			service.NewSubscriptionService,
			service.NewWebhookService,
			service.NewBillingService,
			service.NewJobService,
		),
	)

	// Scheduler, API
	opts = append(opts,
		fx.Provide(
			scheduler.New,
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			registerJobs,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging.Level)
}

func provideHandlers(
	log *logger.Logger,
	licenseService service.LicenseService,
	usageService service.UsageService,
	subscriptionService service.SubscriptionService,
	webhookService service.WebhookService,
	billingService service.BillingService,
	sched *scheduler.Scheduler,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(),
		Webhook:      v1.NewWebhookHandler(webhookService, log),
		License:      v1.NewLicenseHandler(licenseService, usageService, log),
		Usage:        v1.NewUsageHandler(usageService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, log),
		Billing:      v1.NewBillingHandler(billingService, log),
		Jobs:         v1.NewJobsHandler(sched, log),
	}
}

// provideRouter depends on the validator so request validation is
// initialized before the first request is served.
func provideRouter(handlers api.Handlers, _ *validatorpkg.Validate) *gin.Engine {
	return api.NewRouter(handlers)
}

func registerJobs(sched *scheduler.Scheduler, jobs service.JobService, log *logger.Logger) error {
	registrations := []struct {
		name    string
		handler scheduler.Handler
	}{
		{types.JobLicenseExpiryCheck, jobs.RunExpiryCheck},
		{types.JobUsageAggregation, jobs.RunUsageAggregation},
		{types.JobRenewalReminders, jobs.RunRenewalReminders},
		{types.JobComplianceCheck, jobs.RunComplianceCheck},
		{types.JobMonthlyBilling, jobs.RunMonthlyBilling},
		{types.JobWebhookRetention, jobs.RunWebhookRetention},
		{types.JobHealthMonitor, sched.HealthCheck},
	}

	for _, r := range registrations {
		if err := sched.Register(r.name, r.handler); err != nil {
			return err
		}
		log.Infow("registered job", "job", r.name)
	}
	return nil
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()

			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down...")
			return sched.Stop(ctx)
		},
	})
}
