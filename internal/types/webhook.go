package types

// WebhookEventType enumerates the processor webhook event types this system
// consumes. Anything else is recorded as unknown and acknowledged without
// side effects.
type WebhookEventType string

const (
	WebhookEventPaymentSucceeded WebhookEventType = "invoice.payment_succeeded"
	WebhookEventPaymentFailed    WebhookEventType = "invoice.payment_failed"
	WebhookEventSubCreated       WebhookEventType = "customer.subscription.created"
	WebhookEventSubUpdated       WebhookEventType = "customer.subscription.updated"
	WebhookEventSubDeleted       WebhookEventType = "customer.subscription.deleted"
	WebhookEventTrialWillEnd     WebhookEventType = "customer.subscription.trial_will_end"
	WebhookEventUnknown          WebhookEventType = "unknown"
)

// Known reports whether the event type has a registered handler
func (t WebhookEventType) Known() bool {
	switch t {
	case WebhookEventPaymentSucceeded, WebhookEventPaymentFailed,
		WebhookEventSubCreated, WebhookEventSubUpdated, WebhookEventSubDeleted,
		WebhookEventTrialWillEnd:
		return true
	}
	return false
}

// WebhookEventStatus is the processing status of a stored webhook event
type WebhookEventStatus string

const (
	WebhookEventStatusPending   WebhookEventStatus = "pending"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)
