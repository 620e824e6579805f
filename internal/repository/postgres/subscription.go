package postgres

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/domain/subscription"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, processor_subscription_id, processor_customer_id,
			plan_code, billing_period, subscription_status,
			current_period_start, current_period_end,
			cancel_at_period_end, canceled_at,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :processor_subscription_id, :processor_customer_id,
			:plan_code, :billing_period, :subscription_status,
			:current_period_start, :current_period_end,
			:cancel_at_period_end, :canceled_at,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		if isUniqueViolation(err) {
			// The partial unique index on tenant_id over non-canceled rows
			// enforces one current subscription per tenant.
			return ierr.WithError(err).
				WithHint("Tenant already has a current subscription").
				WithReportableDetails(map[string]any{"tenant_id": sub.TenantID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Subscription not found").
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByProcessorID(ctx context.Context, processorSubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT * FROM subscriptions WHERE processor_subscription_id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, processorSubscriptionID); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Subscription not found").
				WithReportableDetails(map[string]any{"processor_subscription_id": processorSubscriptionID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetCurrent(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	query := `
		SELECT * FROM subscriptions
		WHERE tenant_id = $1 AND subscription_status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1
	`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, tenantID); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Tenant has no current subscription").
				WithReportableDetails(map[string]any{"tenant_id": tenantID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get current subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			processor_subscription_id = :processor_subscription_id,
			processor_customer_id = :processor_customer_id,
			plan_code = :plan_code,
			billing_period = :billing_period,
			subscription_status = :subscription_status,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			cancel_at_period_end = :cancel_at_period_end,
			canceled_at = :canceled_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
	`

	sub.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
