package billing

import (
	"context"

	"github.com/platformhq/licensing/internal/types"
)

// Repository is the append-only billing event log. Append with a duplicate
// ExternalEventID returns ErrAlreadyExists; the uniqueness constraint lives
// in storage because multiple server instances may process redeliveries.
type Repository interface {
	Append(ctx context.Context, event *Event) error
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*Event, error)
	ListByType(ctx context.Context, tenantID string, eventType types.BillingEventType, limit int) ([]*Event, error)

	// ExistsExternal reports whether a processor event id was already logged
	ExistsExternal(ctx context.Context, externalEventID string) (bool, error)
}
