package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
)

// InMemorySnapshotStore implements usage.SnapshotRepository
type InMemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]*usage.DailySnapshot // keyed by tenant id, date ordered
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[string][]*usage.DailySnapshot),
	}
}

func (s *InMemorySnapshotStore) Create(ctx context.Context, snap *usage.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := snap.Date.UTC().Truncate(24 * time.Hour)
	for _, existing := range s.snapshots[snap.TenantID] {
		if existing.Date.UTC().Truncate(24 * time.Hour).Equal(day) {
			return ierr.NewError("snapshot exists").
				WithHint("Snapshot already exists for this day").
				Mark(ierr.ErrAlreadyExists)
		}
	}

	cp := *snap
	s.snapshots[snap.TenantID] = append(s.snapshots[snap.TenantID], &cp)
	sort.Slice(s.snapshots[snap.TenantID], func(i, j int) bool {
		return s.snapshots[snap.TenantID][i].Date.Before(s.snapshots[snap.TenantID][j].Date)
	})
	return nil
}

func (s *InMemorySnapshotStore) GetLatest(ctx context.Context, tenantID string) (*usage.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.snapshots[tenantID]
	if len(snaps) == 0 {
		return nil, ierr.NewError("no snapshots").
			WithHint("No usage snapshots for tenant").
			Mark(ierr.ErrNotFound)
	}
	cp := *snaps[len(snaps)-1]
	return &cp, nil
}

func (s *InMemorySnapshotStore) ListRange(ctx context.Context, tenantID string, from, to time.Time) ([]*usage.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*usage.DailySnapshot
	for _, snap := range s.snapshots[tenantID] {
		if snap.Date.Before(from) || snap.Date.After(to) {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}
	return out, nil
}
