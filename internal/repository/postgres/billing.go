package postgres

import (
	"context"
	"database/sql"

	"github.com/platformhq/licensing/internal/domain/billing"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
	"github.com/platformhq/licensing/internal/types"
)

type billingRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewBillingRepository(db *postgres.DB, logger *logger.Logger) billing.Repository {
	return &billingRepository{db: db, logger: logger}
}

// billingEventRow maps the billing_events table; external_event_id is
// nullable so locally originated entries stay outside the unique index.
type billingEventRow struct {
	ID              string                 `db:"id"`
	TenantID        string                 `db:"tenant_id"`
	EventType       types.BillingEventType `db:"event_type"`
	Data            []byte                 `db:"data"`
	ExternalEventID sql.NullString         `db:"external_event_id"`
	Timestamp       sql.NullTime           `db:"timestamp"`
}

func toBillingEventRow(e *billing.Event) *billingEventRow {
	row := &billingEventRow{
		ID:        e.ID,
		TenantID:  e.TenantID,
		EventType: e.EventType,
		Data:      e.Data,
		Timestamp: sql.NullTime{Time: e.Timestamp, Valid: true},
	}
	if e.ExternalEventID != "" {
		row.ExternalEventID = sql.NullString{String: e.ExternalEventID, Valid: true}
	}
	return row
}

func (r *billingEventRow) toDomain() *billing.Event {
	return &billing.Event{
		ID:              r.ID,
		TenantID:        r.TenantID,
		EventType:       r.EventType,
		Data:            r.Data,
		ExternalEventID: r.ExternalEventID.String,
		Timestamp:       r.Timestamp.Time,
	}
}

func (r *billingRepository) Append(ctx context.Context, event *billing.Event) error {
	query := `
		INSERT INTO billing_events (
			id, tenant_id, event_type, data, external_event_id, timestamp
		) VALUES (:id, :tenant_id, :event_type, :data, :external_event_id, :timestamp)
	`

	if _, err := r.db.NamedExecContext(ctx, query, toBillingEventRow(event)); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("Processor event already logged").
				WithReportableDetails(map[string]any{"external_event_id": event.ExternalEventID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to append billing event").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *billingRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*billing.Event, error) {
	query := `
		SELECT * FROM billing_events
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	var rows []billingEventRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, tenantID, limit); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing events").
			Mark(ierr.ErrDatabase)
	}
	return toDomainBillingEvents(rows), nil
}

func (r *billingRepository) ListByType(ctx context.Context, tenantID string, eventType types.BillingEventType, limit int) ([]*billing.Event, error) {
	query := `
		SELECT * FROM billing_events
		WHERE tenant_id = $1 AND event_type = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	var rows []billingEventRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, tenantID, eventType, limit); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing events").
			Mark(ierr.ErrDatabase)
	}
	return toDomainBillingEvents(rows), nil
}

func (r *billingRepository) ExistsExternal(ctx context.Context, externalEventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM billing_events WHERE external_event_id = $1)`

	var exists bool
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &exists, query, externalEventID); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check billing event").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}

func toDomainBillingEvents(rows []billingEventRow) []*billing.Event {
	out := make([]*billing.Event, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}
