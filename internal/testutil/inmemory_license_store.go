package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/domain/license"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
)

// InMemoryLicenseStore implements license.Repository
type InMemoryLicenseStore struct {
	mu       sync.RWMutex
	licenses map[string]*license.License // keyed by tenant id
}

func NewInMemoryLicenseStore() *InMemoryLicenseStore {
	return &InMemoryLicenseStore{
		licenses: make(map[string]*license.License),
	}
}

func (s *InMemoryLicenseStore) Create(ctx context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.licenses[l.TenantID]; exists {
		return ierr.NewError("license exists").
			WithHint("Tenant already has a license").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *l
	s.licenses[l.TenantID] = &cp
	return nil
}

func (s *InMemoryLicenseStore) GetByTenant(ctx context.Context, tenantID string) (*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.licenses[tenantID]
	if !ok {
		return nil, ierr.NewError("license not found").
			WithHint("License not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (s *InMemoryLicenseStore) Update(ctx context.Context, l *license.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.licenses[l.TenantID]
	if !ok || existing.ID != l.ID {
		return ierr.NewError("license not found").
			WithHint("License not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *l
	s.licenses[l.TenantID] = &cp
	return nil
}

func (s *InMemoryLicenseStore) ListExpiringWithin(ctx context.Context, days int) ([]*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := time.Now().UTC().AddDate(0, 0, days).Truncate(24 * time.Hour)
	var out []*license.License
	for _, l := range s.licenses {
		if !isActiveStatus(l.LicenseStatus) {
			continue
		}
		if l.ValidUntil.UTC().Truncate(24 * time.Hour).Equal(target) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryLicenseStore) ListActive(ctx context.Context) ([]*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*license.License
	for _, l := range s.licenses {
		if isActiveStatus(l.LicenseStatus) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemoryLicenseStore) ListRenewalCandidates(ctx context.Context, withinDays int) ([]*license.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	horizon := now.AddDate(0, 0, withinDays)
	var out []*license.License
	for _, l := range s.licenses {
		if !isActiveStatus(l.LicenseStatus) || !l.AutoRenew {
			continue
		}
		if l.ValidUntil.After(now) && !l.ValidUntil.After(horizon) {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func isActiveStatus(s types.LicenseStatus) bool {
	return s == types.LicenseStatusActive || s == types.LicenseStatusTrial
}
