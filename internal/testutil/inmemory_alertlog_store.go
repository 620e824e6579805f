package testutil

import (
	"context"
	"sync"

	"github.com/platformhq/licensing/internal/domain/alertlog"
	ierr "github.com/platformhq/licensing/internal/errors"
)

type alertKey struct {
	licenseID string
	kind      string
	cycleKey  string
}

// InMemoryAlertLogStore implements alertlog.Repository
type InMemoryAlertLogStore struct {
	mu   sync.RWMutex
	logs map[alertKey]*alertlog.AlertLog
}

func NewInMemoryAlertLogStore() *InMemoryAlertLogStore {
	return &InMemoryAlertLogStore{
		logs: make(map[alertKey]*alertlog.AlertLog),
	}
}

func (s *InMemoryAlertLogStore) Create(ctx context.Context, log *alertlog.AlertLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := alertKey{log.LicenseID, log.Kind, log.CycleKey}
	if _, exists := s.logs[key]; exists {
		return ierr.NewError("alert already sent").
			WithHint("Alert already sent this cycle").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *log
	s.logs[key] = &cp
	return nil
}

func (s *InMemoryAlertLogStore) Exists(ctx context.Context, licenseID, kind, cycleKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.logs[alertKey{licenseID, kind, cycleKey}]
	return exists, nil
}

// Count returns the number of recorded alerts, for assertions
func (s *InMemoryAlertLogStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs)
}
