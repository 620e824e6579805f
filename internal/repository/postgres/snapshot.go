package postgres

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
)

type snapshotRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSnapshotRepository(db *postgres.DB, logger *logger.Logger) usage.SnapshotRepository {
	return &snapshotRepository{db: db, logger: logger}
}

func (r *snapshotRepository) Create(ctx context.Context, snap *usage.DailySnapshot) error {
	query := `
		INSERT INTO usage_snapshots (
			id, tenant_id, snapshot_date, active_users, storage_gb, api_calls, created_at
		) VALUES (:id, :tenant_id, :snapshot_date, :active_users, :storage_gb, :api_calls, :created_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, snap); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Snapshot already exists for this day").
				WithReportableDetails(map[string]any{
					"tenant_id": snap.TenantID,
					"date":      snap.Date.Format("2006-01-02"),
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create usage snapshot").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *snapshotRepository) GetLatest(ctx context.Context, tenantID string) (*usage.DailySnapshot, error) {
	query := `
		SELECT * FROM usage_snapshots
		WHERE tenant_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var snap usage.DailySnapshot
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &snap, query, tenantID); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("No usage snapshots for tenant").
				WithReportableDetails(map[string]any{"tenant_id": tenantID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get usage snapshot").
			Mark(ierr.ErrDatabase)
	}
	return &snap, nil
}

func (r *snapshotRepository) ListRange(ctx context.Context, tenantID string, from, to time.Time) ([]*usage.DailySnapshot, error) {
	query := `
		SELECT * FROM usage_snapshots
		WHERE tenant_id = $1 AND snapshot_date >= $2 AND snapshot_date <= $3
		ORDER BY snapshot_date
	`

	var snaps []*usage.DailySnapshot
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &snaps, query, tenantID, from, to); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list usage snapshots").
			Mark(ierr.ErrDatabase)
	}
	return snaps, nil
}
