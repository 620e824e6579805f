package notification

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/platformhq/licensing/internal/config"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/httpclient"
	"github.com/platformhq/licensing/internal/logger"
)

// httpNotifier posts notifications as JSON to a configured endpoint
type httpNotifier struct {
	client httpclient.Client
	config *config.NotificationConfig
	logger *logger.Logger
}

// NewNotifier creates a notifier from configuration. When notifications
// are disabled a no-op notifier is returned.
func NewNotifier(cfg *config.Configuration, client httpclient.Client, log *logger.Logger) Notifier {
	if !cfg.Notification.Enabled || cfg.Notification.Endpoint == "" {
		return NewNoopNotifier(log)
	}
	return &httpNotifier{
		client: client,
		config: &cfg.Notification,
		logger: log,
	}
}

func (n *httpNotifier) Send(ctx context.Context, notif *Notification) error {
	payload, err := json.Marshal(notif)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to serialize notification").
			Mark(ierr.ErrValidation)
	}

	req := &httpclient.Request{
		Method:  http.MethodPost,
		URL:     n.config.Endpoint,
		Headers: n.config.Headers,
		Body:    payload,
	}

	n.logger.Debugw("sending notification",
		"notification_id", notif.ID,
		"notification_type", notif.Type,
		"tenant_id", notif.TenantID,
	)

	if _, err := n.client.Send(ctx, req); err != nil {
		n.logger.Errorw("failed to send notification",
			"error", err,
			"notification_id", notif.ID,
			"notification_type", notif.Type,
			"tenant_id", notif.TenantID,
		)
		return err
	}

	return nil
}
