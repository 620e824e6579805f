package types

// BillingEventType enumerates entries in the append-only billing audit log
type BillingEventType string

const (
	BillingEventSubscriptionCreated  BillingEventType = "subscription_created"
	BillingEventSubscriptionFailed   BillingEventType = "subscription_failed"
	BillingEventSubscriptionUpdated  BillingEventType = "subscription_updated"
	BillingEventSubscriptionCanceled BillingEventType = "subscription_canceled"
	BillingEventPaymentSucceeded     BillingEventType = "payment_succeeded"
	BillingEventPaymentFailed        BillingEventType = "payment_failed"
	BillingEventTrialWillEnd         BillingEventType = "trial_will_end"
	BillingEventInvoiceGenerated     BillingEventType = "invoice_generated"
	BillingEventInvoiceFinalizeFail  BillingEventType = "invoice_finalize_failed"
	BillingEventUsageProcessed       BillingEventType = "usage_processed"
	BillingEventMonthlyBilling       BillingEventType = "monthly_billing_processed"
	BillingEventPaymentMethodAdded   BillingEventType = "payment_method_added"
	BillingEventPaymentMethodRemoved BillingEventType = "payment_method_removed"
)

// Metadata is a free-form string map persisted as JSONB
type Metadata map[string]string
