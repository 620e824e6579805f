package postgres

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/domain/tenant"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
)

type tenantRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewTenantRepository(db *postgres.DB, logger *logger.Logger) tenant.Repository {
	return &tenantRepository{db: db, logger: logger}
}

func (r *tenantRepository) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	query := `SELECT * FROM tenants WHERE id = $1`

	var t tenant.Tenant
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &t, query, id); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Tenant not found").
				WithReportableDetails(map[string]any{"tenant_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get tenant").
			Mark(ierr.ErrDatabase)
	}
	return &t, nil
}

func (r *tenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	query := `
		UPDATE tenants SET
			name = :name,
			email = :email,
			status = :status,
			processor_customer_id = :processor_customer_id,
			auto_pay_enabled = :auto_pay_enabled,
			updated_at = :updated_at
		WHERE id = :id
	`

	t.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, query, t)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update tenant").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			WithReportableDetails(map[string]any{"tenant_id": t.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *tenantRepository) Activate(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, tenant.TenantStatusActive)
}

func (r *tenantRepository) Suspend(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, tenant.TenantStatusSuspended)
}

func (r *tenantRepository) setStatus(ctx context.Context, id string, status tenant.TenantStatus) error {
	query := `UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, status)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update tenant status").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			WithReportableDetails(map[string]any{"tenant_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *tenantRepository) SetProcessorCustomerID(ctx context.Context, id, customerID string) error {
	query := `UPDATE tenants SET processor_customer_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, customerID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to link processor customer").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			WithReportableDetails(map[string]any{"tenant_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *tenantRepository) ListDueForMonthlyBilling(ctx context.Context) ([]*tenant.Tenant, error) {
	query := `
		SELECT t.* FROM tenants t
		JOIN subscriptions s ON s.tenant_id = t.id
		WHERE t.status = 'active'
		AND s.billing_period = 'monthly'
		AND s.subscription_status <> 'canceled'
	`

	var tenants []*tenant.Tenant
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &tenants, query); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list tenants due for billing").
			Mark(ierr.ErrDatabase)
	}
	return tenants, nil
}
