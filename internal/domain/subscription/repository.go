package subscription

import (
	"context"
)

// Repository provides access to the subscription store. The storage layer
// enforces at most one current subscription per tenant via a partial unique
// index; Create surfaces ErrAlreadyExists on violation.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByProcessorID(ctx context.Context, processorSubscriptionID string) (*Subscription, error)
	GetCurrent(ctx context.Context, tenantID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}
