package postgres

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
	"github.com/platformhq/licensing/internal/types"
)

type webhookEventRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewWebhookEventRepository(db *postgres.DB, logger *logger.Logger) webhookevent.Repository {
	return &webhookEventRepository{db: db, logger: logger}
}

func (r *webhookEventRepository) CreatePending(ctx context.Context, event *webhookevent.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			id, tenant_id, event_type, payload, event_status,
			retry_count, received_at, updated_at, last_error
		) VALUES (
			:id, :tenant_id, :event_type, :payload, :event_status,
			:retry_count, :received_at, :updated_at, :last_error
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Webhook event already received").
				WithReportableDetails(map[string]any{"event_id": event.ID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to store webhook event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *webhookEventRepository) Get(ctx context.Context, id string) (*webhookevent.WebhookEvent, error) {
	query := `SELECT * FROM webhook_events WHERE id = $1`

	var event webhookevent.WebhookEvent
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &event, query, id); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Webhook event not found").
				WithReportableDetails(map[string]any{"event_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get webhook event").
			Mark(ierr.ErrDatabase)
	}
	return &event, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_events
		SET event_status = $2, last_error = '', updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, id, types.WebhookEventStatusProcessed); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to mark webhook event processed").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *webhookEventRepository) MarkFailed(ctx context.Context, id string, lastError string) (*webhookevent.WebhookEvent, error) {
	query := `
		UPDATE webhook_events
		SET event_status = $2, last_error = $3, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`

	var event webhookevent.WebhookEvent
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &event, query, id, types.WebhookEventStatusFailed, lastError); err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Webhook event not found").
				WithReportableDetails(map[string]any{"event_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to mark webhook event failed").
			Mark(ierr.ErrDatabase)
	}
	return &event, nil
}

func (r *webhookEventRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM webhook_events
		WHERE event_status = $1 AND updated_at < $2
	`

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query, types.WebhookEventStatusProcessed, cutoff)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to garbage collect webhook events").
			Mark(ierr.ErrDatabase)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
