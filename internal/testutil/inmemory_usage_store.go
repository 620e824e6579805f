package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
)

type usageKey struct {
	tenantID    string
	featureCode string
	periodMonth string
}

// InMemoryUsageStore implements usage.Repository
type InMemoryUsageStore struct {
	mu            sync.Mutex
	counters      map[usageKey]*usage.FeatureUsage
	opportunities map[string]map[string]*usage.UpgradeOpportunity // tenant -> feature
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		counters:      make(map[usageKey]*usage.FeatureUsage),
		opportunities: make(map[string]map[string]*usage.UpgradeOpportunity),
	}
}

func (s *InMemoryUsageStore) Increment(ctx context.Context, tenantID, featureCode, periodMonth string, value int64, metadata types.Metadata) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{tenantID, featureCode, periodMonth}
	now := time.Now().UTC()
	fu, ok := s.counters[key]
	if !ok {
		fu = &usage.FeatureUsage{
			TenantID:    tenantID,
			FeatureCode: featureCode,
			PeriodMonth: periodMonth,
			RecordedAt:  now,
		}
		s.counters[key] = fu
	}
	fu.CurrentUsage += value
	fu.Metadata = metadata
	fu.LastUpdated = now
	return fu.CurrentUsage, nil
}

func (s *InMemoryUsageStore) Get(ctx context.Context, tenantID, featureCode, periodMonth string) (*usage.FeatureUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fu, ok := s.counters[usageKey{tenantID, featureCode, periodMonth}]
	if !ok {
		return nil, ierr.NewError("usage not found").
			WithHint("No usage recorded for feature").
			Mark(ierr.ErrNotFound)
	}
	cp := *fu
	return &cp, nil
}

func (s *InMemoryUsageStore) ListForPeriod(ctx context.Context, tenantID, periodMonth string) ([]*usage.FeatureUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*usage.FeatureUsage
	for key, fu := range s.counters {
		if key.tenantID == tenantID && key.periodMonth == periodMonth {
			cp := *fu
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureCode < out[j].FeatureCode })
	return out, nil
}

func (s *InMemoryUsageStore) UpsertUpgradeOpportunity(ctx context.Context, op *usage.UpgradeOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byFeature, ok := s.opportunities[op.TenantID]
	if !ok {
		byFeature = make(map[string]*usage.UpgradeOpportunity)
		s.opportunities[op.TenantID] = byFeature
	}
	cp := *op
	cp.UpdatedAt = time.Now().UTC()
	byFeature[op.FeatureCode] = &cp
	return nil
}

func (s *InMemoryUsageStore) ListUpgradeOpportunities(ctx context.Context, tenantID string) ([]*usage.UpgradeOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*usage.UpgradeOpportunity
	for _, op := range s.opportunities[tenantID] {
		cp := *op
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsagePercentage > out[j].UsagePercentage })
	return out, nil
}
