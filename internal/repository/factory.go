package repository

import (
	"github.com/platformhq/licensing/internal/domain/alertlog"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/plan"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
	postgresRepo "github.com/platformhq/licensing/internal/repository/postgres"
)

func NewLicenseRepository(db *postgres.DB, logger *logger.Logger) license.Repository {
	return postgresRepo.NewLicenseRepository(db, logger)
}

func NewUsageRepository(db *postgres.DB, logger *logger.Logger) usage.Repository {
	return postgresRepo.NewUsageRepository(db, logger)
}

func NewSnapshotRepository(db *postgres.DB, logger *logger.Logger) usage.SnapshotRepository {
	return postgresRepo.NewSnapshotRepository(db, logger)
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}

func NewBillingRepository(db *postgres.DB, logger *logger.Logger) billing.Repository {
	return postgresRepo.NewBillingRepository(db, logger)
}

func NewWebhookEventRepository(db *postgres.DB, logger *logger.Logger) webhookevent.Repository {
	return postgresRepo.NewWebhookEventRepository(db, logger)
}

func NewTenantRepository(db *postgres.DB, logger *logger.Logger) tenant.Repository {
	return postgresRepo.NewTenantRepository(db, logger)
}

func NewAlertLogRepository(db *postgres.DB, logger *logger.Logger) alertlog.Repository {
	return postgresRepo.NewAlertLogRepository(db, logger)
}

func NewPlanRepository() plan.Repository {
	return plan.NewCatalogRepository()
}
