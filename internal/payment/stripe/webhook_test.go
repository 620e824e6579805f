package stripe

import (
	"encoding/json"
	"testing"

	"github.com/platformhq/licensing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestBuildEnvelopeSubscriptionUpdated(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_123",
		"status": "active",
		"cancel_at_period_end": false,
		"metadata": {"tenant_id": "tenant_1"},
		"items": {"data": [{"current_period_start": 1756684800, "current_period_end": 1759276800}]}
	}`)
	event := &stripe.Event{
		ID:      "evt_1",
		Type:    stripe.EventType(types.WebhookEventSubUpdated),
		Created: 1756684800,
		Data:    &stripe.EventData{Raw: raw},
	}

	env, err := buildEnvelope(event)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", env.ID)
	assert.Equal(t, types.WebhookEventSubUpdated, env.Type)
	assert.Equal(t, "tenant_1", env.TenantID)
	require.NotNil(t, env.Subscription)
	assert.Equal(t, "sub_123", env.Subscription.SubscriptionID)
	assert.Equal(t, types.SubscriptionStatusActive, env.Subscription.Status)
	assert.False(t, env.Subscription.CurrentPeriodEnd.IsZero())

	// The raw payload travels with every envelope so the stored event can
	// be inspected and reprocessed later.
	assert.JSONEq(t, string(raw), string(env.Raw))
}

func TestBuildEnvelopePaymentSucceededCarriesRaw(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_55",
		"amount_paid": 9900,
		"amount_due": 9900,
		"currency": "usd",
		"metadata": {"tenant_id": "tenant_1"}
	}`)
	event := &stripe.Event{
		ID:      "evt_2",
		Type:    stripe.EventType(types.WebhookEventPaymentSucceeded),
		Created: 1756684800,
		Data:    &stripe.EventData{Raw: raw},
	}

	env, err := buildEnvelope(event)
	require.NoError(t, err)

	require.NotNil(t, env.Invoice)
	assert.Equal(t, "in_55", env.Invoice.InvoiceID)
	assert.Equal(t, 99.0, env.Invoice.AmountPaid)
	assert.JSONEq(t, string(raw), string(env.Raw))
}

func TestBuildEnvelopeUnknownTypeKeepsRaw(t *testing.T) {
	raw := json.RawMessage(`{"id": "cus_9"}`)
	event := &stripe.Event{
		ID:      "evt_3",
		Type:    "customer.created",
		Created: 1756684800,
		Data:    &stripe.EventData{Raw: raw},
	}

	env, err := buildEnvelope(event)
	require.NoError(t, err)

	assert.Equal(t, types.WebhookEventUnknown, env.Type)
	assert.JSONEq(t, string(raw), string(env.Raw))
	assert.Nil(t, env.Invoice)
	assert.Nil(t, env.Subscription)
}
