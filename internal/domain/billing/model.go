package billing

import (
	"encoding/json"
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// Event is one row in the append-only billing audit log. Rows are never
// updated or deleted. For processor-sourced events ExternalEventID carries
// the processor event id and is unique, which is what makes webhook
// processing idempotent under redelivery.
type Event struct {
	ID        string                 `db:"id" json:"id"`
	TenantID  string                 `db:"tenant_id" json:"tenant_id"`
	EventType types.BillingEventType `db:"event_type" json:"event_type"`
	Data      json.RawMessage        `db:"data" json:"data"`

	// ExternalEventID is the processor event id for processor-sourced
	// events; empty for locally originated entries.
	ExternalEventID string `db:"external_event_id" json:"external_event_id,omitempty"`

	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// NewEvent builds a log entry with a marshaled payload. Marshal failures
// degrade to a null payload rather than losing the audit entry.
func NewEvent(tenantID string, eventType types.BillingEventType, data any) *Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return &Event{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_EVENT),
		TenantID:  tenantID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}
}

// WithExternalID sets the idempotency key for processor-sourced events
func (e *Event) WithExternalID(externalEventID string) *Event {
	e.ExternalEventID = externalEventID
	return e
}
