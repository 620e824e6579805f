package license

import (
	"context"
)

// Repository provides access to the license store. GetByTenant is on the
// hot request path and must stay cheap; list methods serve scheduled jobs.
type Repository interface {
	Create(ctx context.Context, l *License) error
	GetByTenant(ctx context.Context, tenantID string) (*License, error)
	Update(ctx context.Context, l *License) error

	// ListExpiringWithin returns active licenses whose ValidUntil falls
	// exactly `days` whole days from now.
	ListExpiringWithin(ctx context.Context, days int) ([]*License, error)

	// ListActive returns all licenses in active or trial status
	ListActive(ctx context.Context) ([]*License, error)

	// ListRenewalCandidates returns active auto-renew licenses expiring
	// within the reminder horizon.
	ListRenewalCandidates(ctx context.Context, withinDays int) ([]*License, error)
}
