package postgres

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/platformhq/licensing/internal/domain/license"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
	"github.com/platformhq/licensing/internal/types"
)

type licenseRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewLicenseRepository(db *postgres.DB, logger *logger.Logger) license.Repository {
	return &licenseRepository{db: db, logger: logger}
}

// licenseRow maps the licenses table; array columns need pq wrappers
type licenseRow struct {
	ID                  string              `db:"id"`
	LicenseCode         types.PlanCode      `db:"license_code"`
	Features            pq.StringArray      `db:"features"`
	Dashboards          pq.StringArray      `db:"dashboards"`
	KPILimit            int                 `db:"kpi_limit"`
	MaxUsers            int                 `db:"max_users"`
	MaxStorageGB        int                 `db:"max_storage_gb"`
	MaxAPICallsPerMonth int                 `db:"max_api_calls_per_month"`
	ValidUntil          time.Time           `db:"valid_until"`
	AutoRenew           bool                `db:"auto_renew"`
	LicenseStatus       types.LicenseStatus `db:"license_status"`
	GracePeriodDays     int                 `db:"grace_period_days"`
	TenantID            string              `db:"tenant_id"`
	Status              types.Status        `db:"status"`
	CreatedAt           time.Time           `db:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at"`
	CreatedBy           string              `db:"created_by"`
	UpdatedBy           string              `db:"updated_by"`
}

func toLicenseRow(l *license.License) *licenseRow {
	return &licenseRow{
		ID:                  l.ID,
		LicenseCode:         l.LicenseCode,
		Features:            pq.StringArray(l.Features),
		Dashboards:          pq.StringArray(l.Dashboards),
		KPILimit:            l.KPILimit,
		MaxUsers:            l.MaxUsers,
		MaxStorageGB:        l.MaxStorageGB,
		MaxAPICallsPerMonth: l.MaxAPICallsPerMonth,
		ValidUntil:          l.ValidUntil,
		AutoRenew:           l.AutoRenew,
		LicenseStatus:       l.LicenseStatus,
		GracePeriodDays:     l.GracePeriodDays,
		TenantID:            l.TenantID,
		Status:              l.Status,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
		CreatedBy:           l.CreatedBy,
		UpdatedBy:           l.UpdatedBy,
	}
}

func (r *licenseRow) toDomain() *license.License {
	return &license.License{
		ID:                  r.ID,
		LicenseCode:         r.LicenseCode,
		Features:            []string(r.Features),
		Dashboards:          []string(r.Dashboards),
		KPILimit:            r.KPILimit,
		MaxUsers:            r.MaxUsers,
		MaxStorageGB:        r.MaxStorageGB,
		MaxAPICallsPerMonth: r.MaxAPICallsPerMonth,
		ValidUntil:          r.ValidUntil,
		AutoRenew:           r.AutoRenew,
		LicenseStatus:       r.LicenseStatus,
		GracePeriodDays:     r.GracePeriodDays,
		BaseModel: types.BaseModel{
			TenantID:  r.TenantID,
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
			CreatedBy: r.CreatedBy,
			UpdatedBy: r.UpdatedBy,
		},
	}
}

func (r *licenseRepository) Create(ctx context.Context, l *license.License) error {
	query := `
		INSERT INTO licenses (
			id, license_code, features, dashboards, kpi_limit,
			max_users, max_storage_gb, max_api_calls_per_month,
			valid_until, auto_renew, license_status, grace_period_days,
			tenant_id, status, created_at, updated_at, created_by, updated_by
		) VALUES (
			:id, :license_code, :features, :dashboards, :kpi_limit,
			:max_users, :max_storage_gb, :max_api_calls_per_month,
			:valid_until, :auto_renew, :license_status, :grace_period_days,
			:tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, toLicenseRow(l))
	if err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Tenant already has a license").
				WithReportableDetails(map[string]any{"tenant_id": l.TenantID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create license").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *licenseRepository) GetByTenant(ctx context.Context, tenantID string) (*license.License, error) {
	query := `SELECT * FROM licenses WHERE tenant_id = $1`

	var row licenseRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, tenantID); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("License not found").
				WithReportableDetails(map[string]any{"tenant_id": tenantID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get license").
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain(), nil
}

func (r *licenseRepository) Update(ctx context.Context, l *license.License) error {
	query := `
		UPDATE licenses SET
			license_code = :license_code,
			features = :features,
			dashboards = :dashboards,
			kpi_limit = :kpi_limit,
			max_users = :max_users,
			max_storage_gb = :max_storage_gb,
			max_api_calls_per_month = :max_api_calls_per_month,
			valid_until = :valid_until,
			auto_renew = :auto_renew,
			license_status = :license_status,
			grace_period_days = :grace_period_days,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id
	`

	l.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, query, toLicenseRow(l))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update license").
			Mark(ierr.ErrDatabase)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("license not found").
			WithHint("License not found").
			WithReportableDetails(map[string]any{"license_id": l.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *licenseRepository) ListExpiringWithin(ctx context.Context, days int) ([]*license.License, error) {
	// Matches licenses whose expiry date is exactly `days` whole days out.
	query := `
		SELECT * FROM licenses
		WHERE license_status IN ('active', 'trial')
		AND valid_until::date = (CURRENT_DATE + $1::int)
	`

	var rows []licenseRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, days); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list expiring licenses").
			Mark(ierr.ErrDatabase)
	}
	return toDomainLicenses(rows), nil
}

func (r *licenseRepository) ListActive(ctx context.Context) ([]*license.License, error) {
	query := `SELECT * FROM licenses WHERE license_status IN ('active', 'trial')`

	var rows []licenseRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list active licenses").
			Mark(ierr.ErrDatabase)
	}
	return toDomainLicenses(rows), nil
}

func (r *licenseRepository) ListRenewalCandidates(ctx context.Context, withinDays int) ([]*license.License, error) {
	query := `
		SELECT * FROM licenses
		WHERE license_status IN ('active', 'trial')
		AND auto_renew = true
		AND valid_until > NOW()
		AND valid_until <= NOW() + ($1::int * INTERVAL '1 day')
	`

	var rows []licenseRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, withinDays); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list renewal candidates").
			Mark(ierr.ErrDatabase)
	}
	return toDomainLicenses(rows), nil
}

func toDomainLicenses(rows []licenseRow) []*license.License {
	out := make([]*license.License, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}
