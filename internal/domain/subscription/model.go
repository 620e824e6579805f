package subscription

import (
	"time"

	"github.com/platformhq/licensing/internal/types"
)

// Subscription is the local record of a processor subscription. It is the
// source of truth for intent only; status mirrors the processor and is
// confirmed by webhook processing, never by local calls.
type Subscription struct {
	// ID is the unique identifier for the subscription in our system
	ID string `db:"id" json:"id"`

	// ProcessorSubscriptionID is the id at the payment processor
	ProcessorSubscriptionID string `db:"processor_subscription_id" json:"processor_subscription_id"`

	// ProcessorCustomerID is the processor customer the subscription bills
	ProcessorCustomerID string `db:"processor_customer_id" json:"processor_customer_id"`

	// PlanCode is the plan the subscription pays for
	PlanCode types.PlanCode `db:"plan_code" json:"plan_code"`

	// BillingPeriod is the billing cadence (monthly|annual)
	BillingPeriod types.BillingPeriod `db:"billing_period" json:"billing_period"`

	// SubscriptionStatus mirrors the processor status, advisory until a
	// webhook confirms it
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// CurrentPeriodStart is the start of the invoiced period
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the invoiced period
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelAtPeriodEnd defers cancellation to the period boundary. The
	// transition to canceled happens only when the processor delivers the
	// corresponding webhook.
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`

	// CanceledAt is when cancellation was requested
	CanceledAt *time.Time `db:"canceled_at" json:"canceled_at"`

	types.BaseModel
}
