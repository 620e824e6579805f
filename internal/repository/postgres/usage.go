package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
	"github.com/platformhq/licensing/internal/types"
)

type usageRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUsageRepository(db *postgres.DB, logger *logger.Logger) usage.Repository {
	return &usageRepository{db: db, logger: logger}
}

type featureUsageRow struct {
	TenantID    string    `db:"tenant_id"`
	FeatureCode string    `db:"feature_code"`
	PeriodMonth string    `db:"period_month"`
	UsageValue  int64     `db:"usage_value"`
	Metadata    []byte    `db:"metadata"`
	RecordedAt  time.Time `db:"recorded_at"`
	LastUpdated time.Time `db:"last_updated"`
}

func (r *featureUsageRow) toDomain() *usage.FeatureUsage {
	var md types.Metadata
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &md)
	}
	return &usage.FeatureUsage{
		TenantID:     r.TenantID,
		FeatureCode:  r.FeatureCode,
		PeriodMonth:  r.PeriodMonth,
		CurrentUsage: r.UsageValue,
		Metadata:     md,
		RecordedAt:   r.RecordedAt,
		LastUpdated:  r.LastUpdated,
	}
}

// Increment relies on the database upsert so concurrent increments never
// lose updates.
func (r *usageRepository) Increment(ctx context.Context, tenantID, featureCode, periodMonth string, value int64, metadata types.Metadata) (int64, error) {
	query := `
		INSERT INTO feature_usage (
			tenant_id, feature_code, period_month, usage_value, metadata, recorded_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (tenant_id, feature_code, period_month)
		DO UPDATE SET
			usage_value = feature_usage.usage_value + EXCLUDED.usage_value,
			metadata = EXCLUDED.metadata,
			last_updated = NOW()
		RETURNING usage_value
	`

	md, err := json.Marshal(metadata)
	if err != nil {
		md = []byte("null")
	}

	var total int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &total, query, tenantID, featureCode, periodMonth, value, md); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to increment usage").
			WithReportableDetails(map[string]any{
				"tenant_id":    tenantID,
				"feature_code": featureCode,
			}).
			Mark(ierr.ErrDatabase)
	}
	return total, nil
}

func (r *usageRepository) Get(ctx context.Context, tenantID, featureCode, periodMonth string) (*usage.FeatureUsage, error) {
	query := `
		SELECT * FROM feature_usage
		WHERE tenant_id = $1 AND feature_code = $2 AND period_month = $3
	`

	var row featureUsageRow
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, tenantID, featureCode, periodMonth); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("No usage recorded for feature").
				WithReportableDetails(map[string]any{
					"tenant_id":    tenantID,
					"feature_code": featureCode,
					"period_month": periodMonth,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get usage").
			Mark(ierr.ErrDatabase)
	}
	return row.toDomain(), nil
}

func (r *usageRepository) ListForPeriod(ctx context.Context, tenantID, periodMonth string) ([]*usage.FeatureUsage, error) {
	query := `
		SELECT * FROM feature_usage
		WHERE tenant_id = $1 AND period_month = $2
		ORDER BY feature_code
	`

	var rows []featureUsageRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, tenantID, periodMonth); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage").
			Mark(ierr.ErrDatabase)
	}

	out := make([]*usage.FeatureUsage, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (r *usageRepository) UpsertUpgradeOpportunity(ctx context.Context, op *usage.UpgradeOpportunity) error {
	query := `
		INSERT INTO upgrade_opportunities (
			tenant_id, feature_code, usage_percentage, updated_at
		) VALUES (:tenant_id, :feature_code, :usage_percentage, :updated_at)
		ON CONFLICT (tenant_id, feature_code)
		DO UPDATE SET
			usage_percentage = EXCLUDED.usage_percentage,
			updated_at = EXCLUDED.updated_at
	`

	op.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to record upgrade opportunity").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *usageRepository) ListUpgradeOpportunities(ctx context.Context, tenantID string) ([]*usage.UpgradeOpportunity, error) {
	query := `
		SELECT * FROM upgrade_opportunities
		WHERE tenant_id = $1
		ORDER BY usage_percentage DESC
	`

	var ops []*usage.UpgradeOpportunity
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &ops, query, tenantID); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list upgrade opportunities").
			Mark(ierr.ErrDatabase)
	}
	return ops, nil
}
