package testutil

import (
	"context"
	"sync"

	"github.com/platformhq/licensing/internal/domain/subscription"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*subscription.Subscription // keyed by id
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs: make(map[string]*subscription.Subscription),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One current subscription per tenant, like the partial unique index.
	for _, existing := range s.subs {
		if existing.TenantID == sub.TenantID && existing.SubscriptionStatus != types.SubscriptionStatusCanceled {
			return ierr.NewError("subscription exists").
				WithHint("Tenant already has a current subscription").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (s *InMemorySubscriptionStore) GetByProcessorID(ctx context.Context, processorSubscriptionID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.ProcessorSubscriptionID == processorSubscriptionID {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHint("Subscription not found").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) GetCurrent(ctx context.Context, tenantID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.TenantID == tenantID && sub.SubscriptionStatus != types.SubscriptionStatusCanceled {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ierr.NewError("no current subscription").
		WithHint("Tenant has no current subscription").
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}
