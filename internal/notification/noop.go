package notification

import (
	"context"

	"github.com/platformhq/licensing/internal/logger"
)

// noopNotifier logs notifications without delivering them anywhere
type noopNotifier struct {
	logger *logger.Logger
}

// NewNoopNotifier creates a notifier that only logs
func NewNoopNotifier(log *logger.Logger) Notifier {
	return &noopNotifier{logger: log}
}

func (n *noopNotifier) Send(_ context.Context, notif *Notification) error {
	n.logger.Debugw("notification delivery disabled, dropping",
		"notification_id", notif.ID,
		"notification_type", notif.Type,
		"tenant_id", notif.TenantID,
	)
	return nil
}
