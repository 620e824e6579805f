package usage

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// Repository provides atomic usage counters and the advisory bookkeeping
// around them. Increment must be a storage-level atomic upsert; callers are
// concurrent and read-modify-write would lose updates.
type Repository interface {
	// Increment adds value to the (tenant, feature, period) counter,
	// creating it when absent, and returns the resulting counter value.
	Increment(ctx context.Context, tenantID, featureCode, periodMonth string, value int64, metadata types.Metadata) (int64, error)

	// Get returns the counter for one feature, zero-valued when absent
	Get(ctx context.Context, tenantID, featureCode, periodMonth string) (*FeatureUsage, error)

	// ListForPeriod returns all counters for a tenant in one period
	ListForPeriod(ctx context.Context, tenantID, periodMonth string) ([]*FeatureUsage, error)

	// UpsertUpgradeOpportunity overwrites the upsell marker for the feature
	UpsertUpgradeOpportunity(ctx context.Context, op *UpgradeOpportunity) error

	// ListUpgradeOpportunities returns current upsell markers for a tenant
	ListUpgradeOpportunities(ctx context.Context, tenantID string) ([]*UpgradeOpportunity, error)
}

// SnapshotRepository stores daily usage aggregates and resource-dimension
// readings consumed by compliance checks and overage billing.
type SnapshotRepository interface {
	Create(ctx context.Context, snap *DailySnapshot) error

	// GetLatest returns the most recent snapshot for a tenant
	GetLatest(ctx context.Context, tenantID string) (*DailySnapshot, error)

	// ListRange returns snapshots for a tenant between two dates inclusive
	ListRange(ctx context.Context, tenantID string, from, to time.Time) ([]*DailySnapshot, error)
}
