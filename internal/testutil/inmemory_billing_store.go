package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/platformhq/licensing/internal/domain/billing"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
)

// InMemoryBillingStore implements billing.Repository
type InMemoryBillingStore struct {
	mu     sync.RWMutex
	events []*billing.Event
}

func NewInMemoryBillingStore() *InMemoryBillingStore {
	return &InMemoryBillingStore{}
}

func (s *InMemoryBillingStore) Append(ctx context.Context, event *billing.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ExternalEventID != "" {
		for _, e := range s.events {
			if e.ExternalEventID == event.ExternalEventID {
				return ierr.NewError("event already logged").
					WithHint("Processor event already logged").
					Mark(ierr.ErrAlreadyExists)
			}
		}
	}
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

func (s *InMemoryBillingStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*billing.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(e *billing.Event) bool { return e.TenantID == tenantID }, limit), nil
}

func (s *InMemoryBillingStore) ListByType(ctx context.Context, tenantID string, eventType types.BillingEventType, limit int) ([]*billing.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(e *billing.Event) bool {
		return e.TenantID == tenantID && e.EventType == eventType
	}, limit), nil
}

func (s *InMemoryBillingStore) ExistsExternal(ctx context.Context, externalEventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.ExternalEventID == externalEventID {
			return true, nil
		}
	}
	return false, nil
}

// Events returns every appended event, for assertions
func (s *InMemoryBillingStore) Events() []*billing.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*billing.Event, 0, len(s.events))
	for _, e := range s.events {
		cp := *e
		out = append(out, &cp)
	}
	return out
}

func (s *InMemoryBillingStore) filter(match func(*billing.Event) bool, limit int) []*billing.Event {
	var out []*billing.Event
	for _, e := range s.events {
		if match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
