package dto

import (
	"time"

	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/usage"
	"github.com/platformhq/licensing/internal/validator"
	"github.com/shopspring/decimal"
)

// ProcessBillingRequest triggers an overage billing run from a usage
// reading. When Usage is nil the latest daily snapshot is used.
type ProcessBillingRequest struct {
	Usage *usage.ResourceUsage `json:"usage,omitempty"`
}

// OverageLineItem is one billed overage dimension
type OverageLineItem struct {
	Dimension   string          `json:"dimension"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// BillingRunResponse reports the outcome of an overage billing run. A run
// with no overage produces no invoice and an empty line item list.
type BillingRunResponse struct {
	TenantID  string            `json:"tenant_id"`
	InvoiceID string            `json:"invoice_id,omitempty"`
	LineItems []OverageLineItem `json:"line_items"`
	Total     decimal.Decimal   `json:"total"`
}

// BillingAnalyticsRequest selects the aggregation window
type BillingAnalyticsRequest struct {
	Period string `json:"period" form:"period" validate:"omitempty,oneof=month quarter year"`
}

func (r *BillingAnalyticsRequest) Validate() error {
	if r.Period == "" {
		r.Period = "month"
	}
	return validator.ValidateRequest(r)
}

// BillingAnalyticsResponse aggregates invoice totals over a window
type BillingAnalyticsResponse struct {
	TenantID       string          `json:"tenant_id"`
	Period         string          `json:"period"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	InvoiceCount   int             `json:"invoice_count"`
	TotalBilled    decimal.Decimal `json:"total_billed"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	TotalUnpaid    decimal.Decimal `json:"total_unpaid"`
	AverageInvoice decimal.Decimal `json:"average_invoice"`
}

// ListBillingEventsRequest filters the tenant's billing audit log
type ListBillingEventsRequest struct {
	EventType string `json:"event_type" form:"type"`
	Limit     int    `json:"limit" form:"limit" validate:"omitempty,min=1,max=500"`
}

func (r *ListBillingEventsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = 50
	}
	return validator.ValidateRequest(r)
}

// ListBillingEventsResponse is a page of audit log entries, newest first
type ListBillingEventsResponse struct {
	TenantID string           `json:"tenant_id"`
	Events   []*billing.Event `json:"events"`
	Count    int              `json:"count"`
}

type AddPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
	SetDefault      bool   `json:"set_default"`
}

func (r *AddPaymentMethodRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// PaymentMethodResponse describes a stored payment method
type PaymentMethodResponse struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Brand    string `json:"brand,omitempty"`
	Last4    string `json:"last4,omitempty"`
	ExpMonth int64  `json:"exp_month,omitempty"`
	ExpYear  int64  `json:"exp_year,omitempty"`
	Default  bool   `json:"default"`
}
