package stripe

import (
	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/stripe/stripe-go/v82"
)

// Client holds the configured Stripe API client and the webhook shared
// secret for signature verification.
type Client struct {
	api           *stripe.Client
	webhookSecret string
	logger        *logger.Logger
}

// NewClient creates a Stripe client from configuration
func NewClient(cfg *config.Configuration, log *logger.Logger) *Client {
	return &Client{
		api:           stripe.NewClient(cfg.Stripe.SecretKey, nil),
		webhookSecret: cfg.Stripe.WebhookSecret,
		logger:        log,
	}
}
