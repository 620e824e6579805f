package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/domain/tenant"
	ierr "github.com/platformhq/licensing/internal/errors"
)

// InMemoryTenantStore implements tenant.Repository. Monthly billing
// eligibility is approximated with a settable id list since the in-memory
// store has no join to subscriptions.
type InMemoryTenantStore struct {
	mu            sync.RWMutex
	tenants       map[string]*tenant.Tenant
	dueForBilling map[string]bool
}

func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		tenants:       make(map[string]*tenant.Tenant),
		dueForBilling: make(map[string]bool),
	}
}

// Add seeds a tenant
func (s *InMemoryTenantStore) Add(t *tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tenants[t.ID] = &cp
}

// SetDueForMonthlyBilling marks a tenant as due in the next billing run
func (s *InMemoryTenantStore) SetDueForMonthlyBilling(id string, due bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dueForBilling[id] = due
}

func (s *InMemoryTenantStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *InMemoryTenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[t.ID]; !ok {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *InMemoryTenantStore) Activate(ctx context.Context, id string) error {
	return s.setStatus(id, tenant.TenantStatusActive)
}

func (s *InMemoryTenantStore) Suspend(ctx context.Context, id string) error {
	return s.setStatus(id, tenant.TenantStatusSuspended)
}

func (s *InMemoryTenantStore) setStatus(id string, status tenant.TenantStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			Mark(ierr.ErrNotFound)
	}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryTenantStore) SetProcessorCustomerID(ctx context.Context, id, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return ierr.NewError("tenant not found").
			WithHint("Tenant not found").
			Mark(ierr.ErrNotFound)
	}
	t.ProcessorCustomerID = customerID
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryTenantStore) ListDueForMonthlyBilling(ctx context.Context) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*tenant.Tenant
	for id, due := range s.dueForBilling {
		t, ok := s.tenants[id]
		if !due || !ok || t.Status != tenant.TenantStatusActive {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
