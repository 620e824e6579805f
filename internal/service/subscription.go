package service

import (
	"context"
	"time"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/plan"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/payment"
	"github.com/platformhq/licensing/internal/types"
)

// defaultGracePeriodDays extends license usability past expiry
const defaultGracePeriodDays = 7

// SubscriptionService manages subscription intent against the payment
// processor. It never decides tenant activation or suspension: the
// processor is the system of record and only webhook processing flips
// tenant status, because local calls can race with asynchronous
// processor-side changes such as a card decline after apparent success.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*dto.SubscriptionResponse, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)
	GetCurrentSubscription(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	subRepo     subscription.Repository
	tenantRepo  tenant.Repository
	planRepo    plan.Repository
	licenseRepo license.Repository
	billingRepo billing.Repository
	gateway     payment.Gateway
	notifier    notification.Notifier
	licenseSvc  LicenseService
	logger      *logger.Logger
}

func NewSubscriptionService(
	subRepo subscription.Repository,
	tenantRepo tenant.Repository,
	planRepo plan.Repository,
	licenseRepo license.Repository,
	billingRepo billing.Repository,
	gateway payment.Gateway,
	notifier notification.Notifier,
	licenseSvc LicenseService,
	logger *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subRepo:     subRepo,
		tenantRepo:  tenantRepo,
		planRepo:    planRepo,
		licenseRepo: licenseRepo,
		billingRepo: billingRepo,
		gateway:     gateway,
		notifier:    notifier,
		licenseSvc:  licenseSvc,
		logger:      logger,
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.tenantRepo.Get(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.subRepo.GetCurrent(ctx, req.TenantID); err == nil && existing != nil {
		return nil, ierr.NewError("tenant already has a current subscription").
			WithHint("Cancel the existing subscription before creating a new one").
			WithReportableDetails(map[string]any{
				"tenant_id":       req.TenantID,
				"subscription_id": existing.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	} else if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	p, err := s.planRepo.Get(ctx, string(req.PlanCode))
	if err != nil {
		return nil, err
	}

	customerID, err := s.gateway.EnsureCustomer(ctx, t.ID, t.Name, t.Email)
	if err != nil {
		return nil, err
	}
	if t.ProcessorCustomerID != customerID {
		if err := s.tenantRepo.SetProcessorCustomerID(ctx, t.ID, customerID); err != nil {
			return nil, err
		}
	}

	if req.PaymentMethodID != "" {
		if _, err := s.gateway.AttachPaymentMethod(ctx, customerID, req.PaymentMethodID, true); err != nil {
			return nil, err
		}
	}

	procSub, err := s.gateway.CreateSubscription(ctx, payment.CreateSubscriptionParams{
		CustomerID:      customerID,
		PriceID:         p.ProcessorPriceIDs.ID(req.BillingPeriod),
		PaymentMethodID: req.PaymentMethodID,
		Metadata: map[string]string{
			"tenant_id": t.ID,
			"plan_code": string(p.Code),
		},
	})
	if err != nil {
		s.appendEvent(ctx, billing.NewEvent(t.ID, types.BillingEventSubscriptionFailed, map[string]any{
			"plan_code":      req.PlanCode,
			"billing_period": req.BillingPeriod,
			"error":          err.Error(),
		}))
		// No automatic retry at this layer; the caller resubmits
		return nil, err
	}

	sub := &subscription.Subscription{
		ID:                      types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		ProcessorSubscriptionID: procSub.ID,
		ProcessorCustomerID:     customerID,
		PlanCode:                p.Code,
		BillingPeriod:           req.BillingPeriod,
		SubscriptionStatus:      procSub.Status,
		CurrentPeriodStart:      procSub.CurrentPeriodStart,
		CurrentPeriodEnd:        procSub.CurrentPeriodEnd,
		BaseModel:               baseModelFor(ctx, t.ID),
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.provisionLicense(ctx, t.ID, p, sub); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, billing.NewEvent(t.ID, types.BillingEventSubscriptionCreated, map[string]any{
		"subscription_id":           sub.ID,
		"processor_subscription_id": procSub.ID,
		"plan_code":                 p.Code,
		"billing_period":            req.BillingPeriod,
	}))

	s.notify(ctx, notification.New(notification.TypeSubscriptionCreated, t.ID,
		"Your "+p.Name+" subscription is active", map[string]any{
			"subscription_id": sub.ID,
			"plan_code":       p.Code,
			"billing_period":  req.BillingPeriod,
			"period_end":      sub.CurrentPeriodEnd,
		}))

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) UpdateSubscription(ctx context.Context, subscriptionID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("A canceled subscription cannot be changed").
			Mark(ierr.ErrInvalidOperation)
	}

	p, err := s.planRepo.Get(ctx, string(req.PlanCode))
	if err != nil {
		return nil, err
	}

	procSub, err := s.gateway.UpdateSubscriptionPrice(ctx, sub.ProcessorSubscriptionID,
		p.ProcessorPriceIDs.ID(req.BillingPeriod), map[string]string{
			"tenant_id": sub.TenantID,
			"plan_code": string(p.Code),
		})
	if err != nil {
		return nil, err
	}

	sub.PlanCode = p.Code
	sub.BillingPeriod = req.BillingPeriod
	sub.SubscriptionStatus = procSub.Status
	sub.CurrentPeriodStart = procSub.CurrentPeriodStart
	sub.CurrentPeriodEnd = procSub.CurrentPeriodEnd
	sub.UpdatedAt = time.Now().UTC()
	sub.UpdatedBy = types.GetUserID(ctx)
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.provisionLicense(ctx, sub.TenantID, p, sub); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, billing.NewEvent(sub.TenantID, types.BillingEventSubscriptionUpdated, map[string]any{
		"subscription_id": sub.ID,
		"plan_code":       p.Code,
		"billing_period":  req.BillingPeriod,
	}))

	s.notify(ctx, notification.New(notification.TypeSubscriptionUpdated, sub.TenantID,
		"Your subscription changed to "+p.Name, map[string]any{
			"subscription_id": sub.ID,
			"plan_code":       p.Code,
			"billing_period":  req.BillingPeriod,
		}))

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*dto.SubscriptionResponse, error) {
	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription already canceled").
			WithHint("The subscription is already canceled").
			Mark(ierr.ErrInvalidOperation)
	}

	procSub, err := s.gateway.CancelSubscription(ctx, sub.ProcessorSubscriptionID, immediately)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	effectiveEnd := sub.CurrentPeriodEnd
	if immediately {
		// Local status stays advisory even here; the canceled webhook is
		// what suspends the tenant.
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		effectiveEnd = now
	}
	sub.CancelAtPeriodEnd = procSub.CancelAtPeriodEnd
	sub.CanceledAt = &now
	sub.UpdatedAt = now
	sub.UpdatedBy = types.GetUserID(ctx)
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.appendEvent(ctx, billing.NewEvent(sub.TenantID, types.BillingEventSubscriptionCanceled, map[string]any{
		"subscription_id": sub.ID,
		"immediately":     immediately,
		"effective_end":   effectiveEnd,
	}))

	s.notify(ctx, notification.New(notification.TypeSubscriptionCanceled, sub.TenantID,
		"Your subscription has been canceled", map[string]any{
			"subscription_id": sub.ID,
			"effective_end":   effectiveEnd,
			"immediately":     immediately,
		}))

	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.subRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) GetCurrentSubscription(ctx context.Context, tenantID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.subRepo.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

// provisionLicense creates or refreshes the tenant license from the plan.
// Called on subscription create and plan change.
func (s *subscriptionService) provisionLicense(ctx context.Context, tenantID string, p *plan.Plan, sub *subscription.Subscription) error {
	status := types.LicenseStatusActive
	if sub.SubscriptionStatus == types.SubscriptionStatusTrial {
		status = types.LicenseStatusTrial
	}

	existing, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}

	if existing == nil {
		lic := &license.License{
			ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LICENSE),
			LicenseCode:         p.Code,
			Features:            p.Features,
			Dashboards:          p.Dashboards,
			KPILimit:            p.KPILimit,
			MaxUsers:            p.Limits.Users,
			MaxStorageGB:        p.Limits.StorageGB,
			MaxAPICallsPerMonth: p.Limits.APICallsPerMonth,
			ValidUntil:          sub.CurrentPeriodEnd,
			AutoRenew:           true,
			LicenseStatus:       status,
			GracePeriodDays:     defaultGracePeriodDays,
			BaseModel:           baseModelFor(ctx, tenantID),
		}
		if err := s.licenseRepo.Create(ctx, lic); err != nil {
			return err
		}
	} else {
		existing.LicenseCode = p.Code
		existing.Features = p.Features
		existing.Dashboards = p.Dashboards
		existing.KPILimit = p.KPILimit
		existing.MaxUsers = p.Limits.Users
		existing.MaxStorageGB = p.Limits.StorageGB
		existing.MaxAPICallsPerMonth = p.Limits.APICallsPerMonth
		existing.ValidUntil = sub.CurrentPeriodEnd
		existing.LicenseStatus = status
		existing.UpdatedAt = time.Now().UTC()
		existing.UpdatedBy = types.GetUserID(ctx)
		if err := s.licenseRepo.Update(ctx, existing); err != nil {
			return err
		}
	}

	s.licenseSvc.InvalidateCache(ctx, tenantID)
	return nil
}

// appendEvent writes to the audit log, logging failures without breaking
// the caller's operation.
func (s *subscriptionService) appendEvent(ctx context.Context, event *billing.Event) {
	if err := s.billingRepo.Append(ctx, event); err != nil {
		s.logger.Errorw("failed to append billing event",
			"error", err,
			"tenant_id", event.TenantID,
			"event_type", event.EventType,
		)
	}
}

func (s *subscriptionService) notify(ctx context.Context, n *notification.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Errorw("failed to send notification",
			"error", err,
			"notification_type", n.Type,
			"tenant_id", n.TenantID,
		)
	}
}

// baseModelFor builds a base model attributed to the acting user but owned
// by the given tenant.
func baseModelFor(ctx context.Context, tenantID string) types.BaseModel {
	bm := types.GetDefaultBaseModel(ctx)
	bm.TenantID = tenantID
	return bm
}
