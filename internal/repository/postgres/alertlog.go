package postgres

import (
	"context"

	"github.com/platformhq/licensing/internal/domain/alertlog"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
)

type alertLogRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewAlertLogRepository(db *postgres.DB, logger *logger.Logger) alertlog.Repository {
	return &alertLogRepository{db: db, logger: logger}
}

func (r *alertLogRepository) Create(ctx context.Context, log *alertlog.AlertLog) error {
	query := `
		INSERT INTO alert_logs (
			id, tenant_id, license_id, kind, cycle_key, sent_at
		) VALUES (:id, :tenant_id, :license_id, :kind, :cycle_key, :sent_at)
	`

	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Alert already sent this cycle").
				WithReportableDetails(map[string]any{
					"license_id": log.LicenseID,
					"kind":       log.Kind,
					"cycle_key":  log.CycleKey,
				}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to record alert").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *alertLogRepository) Exists(ctx context.Context, licenseID, kind, cycleKey string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM alert_logs
			WHERE license_id = $1 AND kind = $2 AND cycle_key = $3
		)
	`

	var exists bool
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &exists, query, licenseID, kind, cycleKey); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check alert log").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}
