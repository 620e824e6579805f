package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/license"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/payment"
	"github.com/platformhq/licensing/internal/types"
)

// WebhookService is the eventual-consistency bridge from the payment
// processor to local state. It is the only writer of tenant activation
// and suspension. Signature verification fails closed; everything after
// it is idempotent under redelivery, keyed on the external event id.
type WebhookService interface {
	// HandleWebhook verifies and processes one raw delivery
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	// ProcessWebhookEvent applies one decoded event. Exposed separately so
	// stored events can be reprocessed.
	ProcessWebhookEvent(ctx context.Context, env *webhookevent.Envelope) error
}

type webhookService struct {
	gateway     payment.Gateway
	webhookRepo webhookevent.Repository
	billingRepo billing.Repository
	subRepo     subscription.Repository
	tenantRepo  tenant.Repository
	licenseRepo license.Repository
	notifier    notification.Notifier
	licenseSvc  LicenseService
	config      *config.WebhookConfig
	logger      *logger.Logger
}

func NewWebhookService(
	gateway payment.Gateway,
	webhookRepo webhookevent.Repository,
	billingRepo billing.Repository,
	subRepo subscription.Repository,
	tenantRepo tenant.Repository,
	licenseRepo license.Repository,
	notifier notification.Notifier,
	licenseSvc LicenseService,
	cfg *config.Configuration,
	logger *logger.Logger,
) WebhookService {
	return &webhookService{
		gateway:     gateway,
		webhookRepo: webhookRepo,
		billingRepo: billingRepo,
		subRepo:     subRepo,
		tenantRepo:  tenantRepo,
		licenseRepo: licenseRepo,
		notifier:    notifier,
		licenseSvc:  licenseSvc,
		config:      &cfg.Webhook,
		logger:      logger,
	}
}

func (s *webhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature == "" {
		return ierr.NewError("missing webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrInvalidSignature)
	}

	env, err := s.gateway.ConstructWebhookEvent(payload, signature)
	if err != nil {
		// Fails closed: no state change on verification failure
		return err
	}

	record := &webhookevent.WebhookEvent{
		ID:          env.ID,
		TenantID:    env.TenantID,
		EventType:   env.Type,
		Payload:     env.Raw,
		EventStatus: types.WebhookEventStatusPending,
		ReceivedAt:  time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.webhookRepo.CreatePending(ctx, record); err != nil {
		if !ierr.IsAlreadyExists(err) {
			return err
		}
		// Redelivery. A processed record means nothing left to do; a
		// pending or failed one gets another processing attempt.
		existing, getErr := s.webhookRepo.Get(ctx, env.ID)
		if getErr != nil {
			return getErr
		}
		if existing.EventStatus == types.WebhookEventStatusProcessed {
			s.logger.Debugw("webhook event already processed",
				"event_id", env.ID, "event_type", env.Type)
			return nil
		}
	}

	return s.processWithRetry(ctx, env)
}

// processWithRetry drives bounded exponential retry over event processing.
// The delay doubles per failed attempt from the configured base; attempts
// beyond the cap escalate to operator alerting instead of being dropped.
func (s *webhookService) processWithRetry(ctx context.Context, env *webhookevent.Envelope) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.RetryBaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	operation := func() error {
		if err := s.ProcessWebhookEvent(ctx, env); err != nil {
			record, markErr := s.webhookRepo.MarkFailed(ctx, env.ID, err.Error())
			if markErr != nil {
				s.logger.Errorw("failed to mark webhook event failed",
					"error", markErr, "event_id", env.ID)
				return backoff.Permanent(err)
			}
			s.logger.Errorw("webhook event processing failed",
				"error", err,
				"event_id", env.ID,
				"event_type", env.Type,
				"retry_count", record.RetryCount,
			)
			if record.RetryCount >= s.config.MaxRetries {
				return backoff.Permanent(err)
			}
			return err
		}
		return s.webhookRepo.MarkProcessed(ctx, env.ID)
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		s.notify(ctx, notification.New(notification.TypeOperatorAlert, env.TenantID,
			"Webhook event processing exhausted retries", map[string]any{
				"event_id":   env.ID,
				"event_type": env.Type,
				"error":      err.Error(),
			}))
		return err
	}
	return nil
}

func (s *webhookService) ProcessWebhookEvent(ctx context.Context, env *webhookevent.Envelope) error {
	switch env.Type {
	case types.WebhookEventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, env)
	case types.WebhookEventPaymentFailed:
		return s.handlePaymentFailed(ctx, env)
	case types.WebhookEventSubCreated, types.WebhookEventSubUpdated, types.WebhookEventSubDeleted:
		return s.handleSubscriptionChange(ctx, env)
	case types.WebhookEventTrialWillEnd:
		return s.handleTrialWillEnd(ctx, env)
	default:
		s.logger.Infow("ignoring unknown webhook event type",
			"event_id", env.ID, "event_type", env.Type)
		return nil
	}
}

func (s *webhookService) handlePaymentSucceeded(ctx context.Context, env *webhookevent.Envelope) error {
	tenantID, err := s.resolveTenant(ctx, env)
	if err != nil {
		return err
	}

	logged, err := s.logOnce(ctx, tenantID, types.BillingEventPaymentSucceeded, env)
	if err != nil || !logged {
		return err
	}

	s.notify(ctx, notification.New(notification.TypePaymentSucceeded, tenantID,
		"Payment received", map[string]any{
			"invoice_id":  env.Invoice.InvoiceID,
			"amount_paid": env.Invoice.AmountPaid,
			"currency":    env.Invoice.Currency,
		}))
	return nil
}

func (s *webhookService) handlePaymentFailed(ctx context.Context, env *webhookevent.Envelope) error {
	tenantID, err := s.resolveTenant(ctx, env)
	if err != nil {
		return err
	}

	logged, err := s.logOnce(ctx, tenantID, types.BillingEventPaymentFailed, env)
	if err != nil || !logged {
		return err
	}

	s.notify(ctx, notification.New(notification.TypePaymentFailed, tenantID,
		"Payment failed", map[string]any{
			"invoice_id": env.Invoice.InvoiceID,
			"amount_due": env.Invoice.AmountDue,
			"currency":   env.Invoice.Currency,
			"retry_url":  env.Invoice.HostedURL,
		}))
	s.notify(ctx, notification.New(notification.TypeOperatorAlert, tenantID,
		"Tenant payment failed", map[string]any{
			"invoice_id": env.Invoice.InvoiceID,
			"amount_due": env.Invoice.AmountDue,
			"priority":   "high",
		}))
	return nil
}

func (s *webhookService) handleSubscriptionChange(ctx context.Context, env *webhookevent.Envelope) error {
	sp := env.Subscription
	sub, err := s.subRepo.GetByProcessorID(ctx, sp.SubscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// A subscription created outside this system; log and ignore
			s.logger.Warnw("webhook for unknown subscription",
				"event_id", env.ID, "processor_subscription_id", sp.SubscriptionID)
			return nil
		}
		return err
	}

	tenantID := env.TenantID
	if tenantID == "" {
		tenantID = sub.TenantID
	}

	// The audit entry for this event id is appended only after the state
	// change lands, so its presence means the event is fully applied and a
	// redelivery has nothing left to do.
	applied, err := s.billingRepo.ExistsExternal(ctx, env.ID)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Debugw("webhook event already applied, skipping",
			"event_id", env.ID, "event_type", env.Type)
		return nil
	}

	status := sp.Status
	if env.Type == types.WebhookEventSubDeleted {
		status = types.SubscriptionStatusCanceled
	}

	sub.SubscriptionStatus = status
	sub.CancelAtPeriodEnd = sp.CancelAtPeriodEnd
	if !sp.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = sp.CurrentPeriodStart
		sub.CurrentPeriodEnd = sp.CurrentPeriodEnd
	}
	if status == types.SubscriptionStatusCanceled && sub.CanceledAt == nil {
		now := time.Now().UTC()
		sub.CanceledAt = &now
	}
	sub.UpdatedAt = time.Now().UTC()
	sub.UpdatedBy = types.DefaultUserID
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return err
	}

	switch {
	case status == types.SubscriptionStatusActive || status == types.SubscriptionStatusTrial:
		if err := s.activateTenant(ctx, tenantID, status, sub.CurrentPeriodEnd); err != nil {
			return err
		}
	case status.Suspends():
		if err := s.suspendTenant(ctx, tenantID); err != nil {
			return err
		}
	}

	// Commit marker last: a transient failure above leaves no audit row,
	// so the retry re-applies the idempotent state change instead of
	// mistaking the event for already processed.
	_, err = s.logOnce(ctx, tenantID, subscriptionEventType(env.Type), env)
	return err
}

func (s *webhookService) handleTrialWillEnd(ctx context.Context, env *webhookevent.Envelope) error {
	tenantID, err := s.resolveTenant(ctx, env)
	if err != nil {
		return err
	}

	logged, err := s.logOnce(ctx, tenantID, types.BillingEventTrialWillEnd, env)
	if err != nil || !logged {
		return err
	}

	data := map[string]any{"subscription_id": env.Subscription.SubscriptionID}
	if env.Subscription.TrialEnd != nil {
		data["trial_end"] = *env.Subscription.TrialEnd
	}
	s.notify(ctx, notification.New(notification.TypeTrialEnding, tenantID,
		"Your trial is ending soon", data))
	return nil
}

// activateTenant flips the tenant and license on, extending license
// validity to the confirmed period end.
func (s *webhookService) activateTenant(ctx context.Context, tenantID string, status types.SubscriptionStatus, periodEnd time.Time) error {
	if err := s.tenantRepo.Activate(ctx, tenantID); err != nil {
		return err
	}

	lic, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	lic.LicenseStatus = types.LicenseStatusActive
	if status == types.SubscriptionStatusTrial {
		lic.LicenseStatus = types.LicenseStatusTrial
	}
	if !periodEnd.IsZero() {
		lic.ValidUntil = periodEnd
	}
	lic.UpdatedAt = time.Now().UTC()
	lic.UpdatedBy = types.DefaultUserID
	if err := s.licenseRepo.Update(ctx, lic); err != nil {
		return err
	}
	s.licenseSvc.InvalidateCache(ctx, tenantID)

	s.logger.Infow("tenant activated from webhook", "tenant_id", tenantID)
	return nil
}

func (s *webhookService) suspendTenant(ctx context.Context, tenantID string) error {
	if err := s.tenantRepo.Suspend(ctx, tenantID); err != nil {
		return err
	}

	lic, err := s.licenseRepo.GetByTenant(ctx, tenantID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}
	lic.LicenseStatus = types.LicenseStatusSuspended
	lic.UpdatedAt = time.Now().UTC()
	lic.UpdatedBy = types.DefaultUserID
	if err := s.licenseRepo.Update(ctx, lic); err != nil {
		return err
	}
	s.licenseSvc.InvalidateCache(ctx, tenantID)

	s.logger.Infow("tenant suspended from webhook", "tenant_id", tenantID)
	return nil
}

// logOnce appends the audit entry keyed on the external event id. For
// notification-only handlers it runs first and returning false is the
// signal to skip the send on a redelivery; for state-changing handlers it
// runs last, as the commit marker checked via ExistsExternal.
func (s *webhookService) logOnce(ctx context.Context, tenantID string, eventType types.BillingEventType, env *webhookevent.Envelope) (bool, error) {
	event := billing.NewEvent(tenantID, eventType, env).WithExternalID(env.ID)
	if err := s.billingRepo.Append(ctx, event); err != nil {
		if ierr.IsAlreadyExists(err) {
			s.logger.Debugw("duplicate webhook event, skipping side effects",
				"event_id", env.ID, "event_type", env.Type)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolveTenant finds the tenant an event belongs to, falling back to the
// subscription linkage when the payload carries no tenant metadata.
func (s *webhookService) resolveTenant(ctx context.Context, env *webhookevent.Envelope) (string, error) {
	if env.TenantID != "" {
		return env.TenantID, nil
	}

	var processorSubID string
	if env.Invoice != nil {
		processorSubID = env.Invoice.SubscriptionID
	} else if env.Subscription != nil {
		processorSubID = env.Subscription.SubscriptionID
	}
	if processorSubID == "" {
		return "", ierr.NewError("cannot resolve tenant for webhook event").
			WithHint("Event carries no tenant or subscription reference").
			WithReportableDetails(map[string]any{"event_id": env.ID}).
			Mark(ierr.ErrValidation)
	}

	sub, err := s.subRepo.GetByProcessorID(ctx, processorSubID)
	if err != nil {
		return "", err
	}
	return sub.TenantID, nil
}

func (s *webhookService) notify(ctx context.Context, n *notification.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Errorw("failed to send notification",
			"error", err,
			"notification_type", n.Type,
			"tenant_id", n.TenantID,
		)
	}
}

func subscriptionEventType(t types.WebhookEventType) types.BillingEventType {
	switch t {
	case types.WebhookEventSubDeleted:
		return types.BillingEventSubscriptionCanceled
	case types.WebhookEventSubCreated:
		return types.BillingEventSubscriptionCreated
	default:
		return types.BillingEventSubscriptionUpdated
	}
}
