package testutil

import (
	"context"
	"sync"

	"github.com/platformhq/licensing/internal/notification"
)

// FakeNotifier records every notification it is asked to send
type FakeNotifier struct {
	mu   sync.Mutex
	sent []*notification.Notification

	// Err is returned from Send when set
	Err error
}

func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

func (n *FakeNotifier) Send(_ context.Context, notif *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.Err != nil {
		return n.Err
	}
	cp := *notif
	n.sent = append(n.sent, &cp)
	return nil
}

// Sent returns all recorded notifications
func (n *FakeNotifier) Sent() []*notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*notification.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}

// SentOfType returns recorded notifications of the given type
func (n *FakeNotifier) SentOfType(t notification.Type) []*notification.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []*notification.Notification
	for _, notif := range n.sent {
		if notif.Type == t {
			out = append(out, notif)
		}
	}
	return out
}

// Reset clears recorded notifications
func (n *FakeNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}
