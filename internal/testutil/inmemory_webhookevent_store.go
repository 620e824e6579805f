package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
)

// InMemoryWebhookEventStore implements webhookevent.Repository
type InMemoryWebhookEventStore struct {
	mu     sync.RWMutex
	events map[string]*webhookevent.WebhookEvent
}

func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		events: make(map[string]*webhookevent.WebhookEvent),
	}
}

func (s *InMemoryWebhookEventStore) CreatePending(ctx context.Context, event *webhookevent.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return ierr.NewError("webhook event exists").
			WithHint("Webhook event already received").
			Mark(ierr.ErrAlreadyExists)
	}
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s *InMemoryWebhookEventStore) Get(ctx context.Context, id string) (*webhookevent.WebhookEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ierr.NewError("webhook event not found").
			WithHint("Webhook event not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *event
	return &cp, nil
}

func (s *InMemoryWebhookEventStore) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return ierr.NewError("webhook event not found").
			WithHint("Webhook event not found").
			Mark(ierr.ErrNotFound)
	}
	event.EventStatus = types.WebhookEventStatusProcessed
	event.LastError = ""
	event.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryWebhookEventStore) MarkFailed(ctx context.Context, id string, lastError string) (*webhookevent.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, ierr.NewError("webhook event not found").
			WithHint("Webhook event not found").
			Mark(ierr.ErrNotFound)
	}
	event.EventStatus = types.WebhookEventStatusFailed
	event.LastError = lastError
	event.RetryCount++
	event.UpdatedAt = time.Now().UTC()
	cp := *event
	return &cp, nil
}

func (s *InMemoryWebhookEventStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, event := range s.events {
		if event.EventStatus == types.WebhookEventStatusProcessed && event.UpdatedAt.Before(cutoff) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}
