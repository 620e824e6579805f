package tenant

import (
	"context"
)

// Repository provides access to tenant records
type Repository interface {
	Get(ctx context.Context, id string) (*Tenant, error)
	Update(ctx context.Context, t *Tenant) error

	// Activate and Suspend flip the tenant's activation state. They are
	// called exclusively by webhook processing.
	Activate(ctx context.Context, id string) error
	Suspend(ctx context.Context, id string) error

	// SetProcessorCustomerID records the processor customer linkage
	SetProcessorCustomerID(ctx context.Context, id, customerID string) error

	// ListDueForMonthlyBilling returns active tenants with a current
	// monthly subscription.
	ListDueForMonthlyBilling(ctx context.Context) ([]*Tenant, error)
}
