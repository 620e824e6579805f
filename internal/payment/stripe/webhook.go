package stripe

import (
	"encoding/json"
	"time"

	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ConstructWebhookEvent verifies the payload signature against the shared
// secret and decodes it into a typed envelope. Verification fails closed:
// a bad signature returns ErrInvalidSignature and no envelope.
func (g *gateway) ConstructWebhookEvent(payload []byte, signature string) (*webhookevent.Envelope, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.client.webhookSecret, options)
	if err != nil {
		g.logger.Errorw("webhook signature verification failed", "error", err)
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrInvalidSignature)
	}

	return buildEnvelope(&event)
}

// buildEnvelope decodes the verified event into the tagged union the
// webhook processor dispatches on. The raw payload always travels with
// the envelope so stored events can be inspected and reprocessed; unknown
// event types carry only the raw payload and are acknowledged without
// side effects.
func buildEnvelope(event *stripe.Event) (*webhookevent.Envelope, error) {
	env := &webhookevent.Envelope{
		ID:        event.ID,
		Type:      types.WebhookEventType(event.Type),
		Raw:       event.Data.Raw,
		CreatedAt: time.Unix(event.Created, 0).UTC(),
	}

	switch env.Type {
	case types.WebhookEventPaymentSucceeded, types.WebhookEventPaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid invoice data in webhook").
				Mark(ierr.ErrValidation)
		}
		env.TenantID = inv.Metadata["tenant_id"]
		var subscriptionID string
		if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
			if inv.Parent.SubscriptionDetails.Subscription != nil {
				subscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
			}
			if env.TenantID == "" {
				env.TenantID = inv.Parent.SubscriptionDetails.Metadata["tenant_id"]
			}
		}
		env.Invoice = &webhookevent.InvoicePayload{
			InvoiceID:      inv.ID,
			SubscriptionID: subscriptionID,
			AmountPaid:     float64(inv.AmountPaid) / 100,
			AmountDue:      float64(inv.AmountDue) / 100,
			Currency:       string(inv.Currency),
			HostedURL:      inv.HostedInvoiceURL,
		}

	case types.WebhookEventSubCreated, types.WebhookEventSubUpdated,
		types.WebhookEventSubDeleted, types.WebhookEventTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid subscription data in webhook").
				Mark(ierr.ErrValidation)
		}
		env.TenantID = sub.Metadata["tenant_id"]
		sp := &webhookevent.SubscriptionPayload{
			SubscriptionID:    sub.ID,
			Status:            mapSubscriptionStatus(sub.Status),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}
		if sub.Items != nil && len(sub.Items.Data) > 0 {
			item := sub.Items.Data[0]
			sp.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
			sp.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
		if sub.TrialEnd > 0 {
			trialEnd := time.Unix(sub.TrialEnd, 0).UTC()
			sp.TrialEnd = &trialEnd
		}
		env.Subscription = sp

	default:
		env.Type = types.WebhookEventUnknown
	}

	return env, nil
}
