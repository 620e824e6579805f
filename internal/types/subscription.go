package types

// SubscriptionStatus mirrors the processor-side subscription status. The
// local copy is advisory; the processor remains the system of record and
// only webhook processing updates tenant activation from it.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
)

// IsCurrent reports whether a subscription in this status counts as the
// tenant's one current subscription.
func (s SubscriptionStatus) IsCurrent() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrial, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// Suspends reports whether this status requires suspending the tenant
func (s SubscriptionStatus) Suspends() bool {
	switch s {
	case SubscriptionStatusCanceled, SubscriptionStatusUnpaid, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// BillingPeriod is the billing cadence of a subscription
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodAnnual  BillingPeriod = "annual"
)

func (b BillingPeriod) Validate() bool {
	return b == BillingPeriodMonthly || b == BillingPeriodAnnual
}
