package webhookevent

import (
	"context"
	"time"
)

// Repository stores transient webhook processing records. CreatePending is
// an idempotent insert keyed on the external event id: a duplicate returns
// ErrAlreadyExists so redeliveries across server instances deduplicate at
// the storage layer rather than via in-process locking.
type Repository interface {
	CreatePending(ctx context.Context, event *WebhookEvent) error
	Get(ctx context.Context, id string) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, id string) error

	// MarkFailed records the failure, increments the retry counter, and
	// returns the updated record.
	MarkFailed(ctx context.Context, id string, lastError string) (*WebhookEvent, error)

	// DeleteProcessedBefore garbage-collects processed records
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
