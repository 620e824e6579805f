package webhookevent

import (
	"encoding/json"
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// WebhookEvent is the transient processing record for one processor event.
// ID is the processor's external event id. Processed events are garbage
// collectable; failed ones are retained until retries exhaust.
type WebhookEvent struct {
	ID          string                   `db:"id" json:"id"`
	TenantID    string                   `db:"tenant_id" json:"tenant_id"`
	EventType   types.WebhookEventType   `db:"event_type" json:"event_type"`
	Payload     json.RawMessage          `db:"payload" json:"payload"`
	EventStatus types.WebhookEventStatus `db:"event_status" json:"event_status"`
	RetryCount  int                      `db:"retry_count" json:"retry_count"`
	ReceivedAt  time.Time                `db:"received_at" json:"received_at"`
	UpdatedAt   time.Time                `db:"updated_at" json:"updated_at"`
	LastError   string                   `db:"last_error" json:"last_error,omitempty"`
}

// Envelope is the decoded webhook payload handed to typed handlers.
// It is a tagged union over the known processor event types; unknown types
// keep the raw payload and are acknowledged without side effects.
type Envelope struct {
	ID        string
	Type      types.WebhookEventType
	TenantID  string
	CreatedAt time.Time

	Invoice      *InvoicePayload
	Subscription *SubscriptionPayload

	// Raw carries the original object payload so stored events stay
	// inspectable and reprocessable.
	Raw json.RawMessage
}

// InvoicePayload carries the invoice fields consumed from payment events
type InvoicePayload struct {
	InvoiceID      string  `json:"invoice_id"`
	SubscriptionID string  `json:"subscription_id"`
	AmountPaid     float64 `json:"amount_paid"`
	AmountDue      float64 `json:"amount_due"`
	Currency       string  `json:"currency"`
	HostedURL      string  `json:"hosted_url"`
}

// SubscriptionPayload carries the subscription fields consumed from
// lifecycle events
type SubscriptionPayload struct {
	SubscriptionID     string                   `json:"subscription_id"`
	Status             types.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	CurrentPeriodStart time.Time                `json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `json:"current_period_end"`
	TrialEnd           *time.Time               `json:"trial_end,omitempty"`
}
