package dto

import (
	"github.com/platformhq/licensing/internal/domain/subscription"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/types"
	"github.com/platformhq/licensing/internal/validator"
)

type CreateSubscriptionRequest struct {
	TenantID        string              `json:"tenant_id" validate:"required"`
	PlanCode        types.PlanCode      `json:"plan_code" validate:"required"`
	BillingPeriod   types.BillingPeriod `json:"billing_period" validate:"required"`
	PaymentMethodID string              `json:"payment_method_id,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.PlanCode.Validate() {
		return ierr.NewError("invalid plan code").
			WithHintf("Plan %s does not exist", r.PlanCode).
			WithReportableDetails(map[string]any{"plan_code": r.PlanCode}).
			Mark(ierr.ErrValidation)
	}
	if !r.BillingPeriod.Validate() {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be monthly or annual").
			WithReportableDetails(map[string]any{"billing_period": r.BillingPeriod}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type UpdateSubscriptionRequest struct {
	PlanCode      types.PlanCode      `json:"plan_code" validate:"required"`
	BillingPeriod types.BillingPeriod `json:"billing_period" validate:"required"`
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.PlanCode.Validate() {
		return ierr.NewError("invalid plan code").
			WithHintf("Plan %s does not exist", r.PlanCode).
			Mark(ierr.ErrValidation)
	}
	if !r.BillingPeriod.Validate() {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be monthly or annual").
			Mark(ierr.ErrValidation)
	}
	return nil
}

type CancelSubscriptionRequest struct {
	Immediately bool `json:"immediately"`
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

// NewSubscriptionResponse wraps a subscription for the API surface
func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{Subscription: sub}
}
