package types

// Job names for the compliance and renewal scheduler. Each name keys the
// job's schedule and enabled flag in config and its dedup rows in storage.
const (
	JobLicenseExpiryCheck = "license-expiry-check"
	JobUsageAggregation   = "usage-data-aggregation"
	JobRenewalReminders   = "renewal-reminders"
	JobComplianceCheck    = "license-compliance-check"
	JobMonthlyBilling     = "monthly-billing-cycle"
	JobWebhookRetention   = "webhook-retention-cleanup"
	JobHealthMonitor      = "job-health-monitor"
)

// ReminderType grades renewal reminders by days until renewal
type ReminderType string

const (
	ReminderUrgent   ReminderType = "urgent"   // ≤ 7 days
	ReminderUpcoming ReminderType = "upcoming" // ≤ 30 days
	ReminderEarly    ReminderType = "early"    // ≤ 60 days
)

// ReminderTypeForDays maps days-until-renewal onto a reminder type.
// Beyond 60 days no reminder is due and the empty type is returned.
func ReminderTypeForDays(days int) ReminderType {
	switch {
	case days <= 7:
		return ReminderUrgent
	case days <= 30:
		return ReminderUpcoming
	case days <= 60:
		return ReminderEarly
	default:
		return ""
	}
}

// Urgency grades expiry alerts
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// UrgencyForDays maps days-until-expiry onto an alert urgency
func UrgencyForDays(days int) Urgency {
	switch {
	case days <= 7:
		return UrgencyHigh
	case days <= 15:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// ViolationType identifies a compliance check dimension
type ViolationType string

const (
	ViolationUserLimit    ViolationType = "user_limit_exceeded"
	ViolationFeatureUsage ViolationType = "feature_usage_exceeded"
	ViolationAPILimit     ViolationType = "api_limit_exceeded"
	ViolationStorageLimit ViolationType = "storage_limit_exceeded"
)
