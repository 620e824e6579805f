package notification

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// Type identifies the kind of notification being sent
type Type string

const (
	TypeExpiryAlert          Type = "license.expiry_alert"
	TypeUsageWarning         Type = "license.usage_warning"
	TypeRenewalReminder      Type = "license.renewal_reminder"
	TypeUpgradeSuggestion    Type = "license.upgrade_suggestion"
	TypeComplianceViolation  Type = "license.compliance_violation"
	TypeSubscriptionCreated  Type = "subscription.created"
	TypeSubscriptionUpdated  Type = "subscription.updated"
	TypeSubscriptionCanceled Type = "subscription.canceled"
	TypeTrialEnding          Type = "subscription.trial_ending"
	TypePaymentSucceeded     Type = "payment.succeeded"
	TypePaymentFailed        Type = "payment.failed"
	TypeInvoiceGenerated     Type = "invoice.generated"
	TypeOverageCharged       Type = "billing.overage_charged"
	TypeOperatorAlert        Type = "operator.alert"
)

// Notification is a single outbound notification. Data carries the
// type-specific fields and is serialized as-is to the delivery endpoint.
type Notification struct {
	ID        string         `json:"id"`
	Type      Type           `json:"type"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Subject   string         `json:"subject"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// New builds a notification with a generated id and timestamp
func New(notificationType Type, tenantID, subject string, data map[string]any) *Notification {
	return &Notification{
		ID:        types.GenerateUUIDWithPrefix("notif"),
		Type:      notificationType,
		TenantID:  tenantID,
		Subject:   subject,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier delivers notifications to tenants and operators. Delivery is
// best effort; callers log failures and continue.
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}
