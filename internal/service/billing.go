package service

import (
	"context"
	"fmt"
	"time"

	"github.com/platformhq/licensing/internal/api/dto"
	"github.com/platformhq/licensing/internal/domain/billing"
	"github.com/platformhq/licensing/internal/domain/plan"
	"github.com/platformhq/licensing/internal/domain/subscription"
	"github.com/platformhq/licensing/internal/domain/tenant"
	"github.com/platformhq/licensing/internal/domain/usage"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/notification"
	"github.com/platformhq/licensing/internal/payment"
	"github.com/platformhq/licensing/internal/types"
	"github.com/shopspring/decimal"
)

// Overage rates. Whole seats, per-GB, and started 1000-call blocks.
var (
	overageRatePerSeat     = decimal.NewFromInt(10)
	overageRatePerGB       = decimal.RequireFromString("0.50")
	overageRatePerAPIBlock = decimal.RequireFromString("0.10")
)

// apiCallBlockSize is the granularity API overage is billed in
const apiCallBlockSize = 1000

// BillingService converts usage overages into processor invoices and runs
// the monthly billing cycle.
type BillingService interface {
	// ProcessUsageBasedBilling bills the tenant for usage beyond plan
	// limits. Usage within every limit is an exact no-op: no invoice, no
	// alert, no audit entry. A nil reading falls back to the latest daily
	// snapshot.
	ProcessUsageBasedBilling(ctx context.Context, tenantID string, usageData *usage.ResourceUsage) (*dto.BillingRunResponse, error)

	// ProcessMonthlyBilling generates the period invoice (base plan plus
	// overage), auto-pays when enabled, and logs one billing event for the
	// tenant regardless of outcome.
	ProcessMonthlyBilling(ctx context.Context, tenantID string) error

	GetBillingAnalytics(ctx context.Context, tenantID string, period string) (*dto.BillingAnalyticsResponse, error)

	// ListBillingEvents reads the tenant's audit log, newest first,
	// optionally filtered to one event type.
	ListBillingEvents(ctx context.Context, tenantID string, req *dto.ListBillingEventsRequest) (*dto.ListBillingEventsResponse, error)

	AddPaymentMethod(ctx context.Context, tenantID string, req *dto.AddPaymentMethodRequest) (*dto.PaymentMethodResponse, error)
	RemovePaymentMethod(ctx context.Context, tenantID, paymentMethodID string) error
}

type billingService struct {
	subRepo      subscription.Repository
	tenantRepo   tenant.Repository
	planRepo     plan.Repository
	snapshotRepo usage.SnapshotRepository
	billingRepo  billing.Repository
	gateway      payment.Gateway
	notifier     notification.Notifier
	logger       *logger.Logger
}

func NewBillingService(
	subRepo subscription.Repository,
	tenantRepo tenant.Repository,
	planRepo plan.Repository,
	snapshotRepo usage.SnapshotRepository,
	billingRepo billing.Repository,
	gateway payment.Gateway,
	notifier notification.Notifier,
	logger *logger.Logger,
) BillingService {
	return &billingService{
		subRepo:      subRepo,
		tenantRepo:   tenantRepo,
		planRepo:     planRepo,
		snapshotRepo: snapshotRepo,
		billingRepo:  billingRepo,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *billingService) ProcessUsageBasedBilling(ctx context.Context, tenantID string, usageData *usage.ResourceUsage) (*dto.BillingRunResponse, error) {
	sub, err := s.subRepo.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	p, err := s.planRepo.Get(ctx, string(sub.PlanCode))
	if err != nil {
		return nil, err
	}

	if usageData == nil {
		snap, err := s.snapshotRepo.GetLatest(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		usageData = &usage.ResourceUsage{
			ActiveUsers: snap.ActiveUsers,
			StorageGB:   snap.StorageGB,
			APICalls:    snap.APICalls,
		}
	}

	lineItems, total := computeOverage(p.Limits, usageData)
	resp := &dto.BillingRunResponse{
		TenantID:  tenantID,
		LineItems: lineItems,
		Total:     total,
	}
	if total.IsZero() {
		return resp, nil
	}

	invoiceID, err := s.generateInvoice(ctx, tenantID, sub.ProcessorCustomerID, lineItems)
	if err != nil {
		return nil, err
	}
	resp.InvoiceID = invoiceID

	s.appendEvent(ctx, billing.NewEvent(tenantID, types.BillingEventInvoiceGenerated, map[string]any{
		"invoice_id": invoiceID,
		"line_items": lineItems,
		"total":      total,
	}))

	s.notify(ctx, notification.New(notification.TypeOverageCharged, tenantID,
		"Usage overage billed", map[string]any{
			"invoice_id": invoiceID,
			"line_items": lineItems,
			"total":      total,
		}))

	return resp, nil
}

func (s *billingService) ProcessMonthlyBilling(ctx context.Context, tenantID string) error {
	outcome := "success"
	detail := map[string]any{}

	err := s.runMonthlyBilling(ctx, tenantID, detail)
	if err != nil {
		outcome = "failed"
		detail["error"] = err.Error()
	}

	// One event per tenant per run, success or not
	detail["outcome"] = outcome
	s.appendEvent(ctx, billing.NewEvent(tenantID, types.BillingEventMonthlyBilling, detail))
	return err
}

func (s *billingService) runMonthlyBilling(ctx context.Context, tenantID string, detail map[string]any) error {
	t, err := s.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		return err
	}
	sub, err := s.subRepo.GetCurrent(ctx, tenantID)
	if err != nil {
		return err
	}
	p, err := s.planRepo.Get(ctx, string(sub.PlanCode))
	if err != nil {
		return err
	}

	var reading *usage.ResourceUsage
	if snap, err := s.snapshotRepo.GetLatest(ctx, tenantID); err == nil {
		reading = &usage.ResourceUsage{
			ActiveUsers: snap.ActiveUsers,
			StorageGB:   snap.StorageGB,
			APICalls:    snap.APICalls,
		}
	} else if !ierr.IsNotFound(err) {
		return err
	}

	baseAmount := p.Price.Amount(sub.BillingPeriod)
	lineItems := []dto.OverageLineItem{{
		Dimension:   "base_plan",
		Description: p.Name + " (" + string(sub.BillingPeriod) + ")",
		Quantity:    1,
		Amount:      baseAmount,
	}}
	total := baseAmount

	if reading != nil {
		overage, overageTotal := computeOverage(p.Limits, reading)
		lineItems = append(lineItems, overage...)
		total = total.Add(overageTotal)
	}

	invoiceID, err := s.generateInvoice(ctx, tenantID, sub.ProcessorCustomerID, lineItems)
	if err != nil {
		return err
	}
	detail["invoice_id"] = invoiceID
	detail["total"] = total

	if t.AutoPayEnabled {
		inv, err := s.gateway.PayInvoice(ctx, invoiceID)
		if err != nil {
			// The invoice stands; payment failure arrives via webhook too
			s.logger.Errorw("auto-pay failed",
				"error", err, "tenant_id", tenantID, "invoice_id", invoiceID)
			detail["auto_pay"] = "failed"
			return nil
		}
		detail["auto_pay"] = inv.Status
		return nil
	}

	s.notify(ctx, notification.New(notification.TypeInvoiceGenerated, tenantID,
		"Your monthly invoice is ready", map[string]any{
			"invoice_id": invoiceID,
			"total":      total,
		}))
	return nil
}

func (s *billingService) GetBillingAnalytics(ctx context.Context, tenantID string, period string) (*dto.BillingAnalyticsResponse, error) {
	t, err := s.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if t.ProcessorCustomerID == "" {
		return nil, ierr.NewError("tenant has no billing history").
			WithHint("The tenant is not linked to the payment processor yet").
			Mark(ierr.ErrNotFound)
	}

	now := time.Now().UTC()
	var from time.Time
	switch period {
	case "quarter":
		from = now.AddDate(0, -3, 0)
	case "year":
		from = now.AddDate(-1, 0, 0)
	default:
		period = "month"
		from = now.AddDate(0, -1, 0)
	}

	invoices, err := s.gateway.ListInvoices(ctx, t.ProcessorCustomerID, from)
	if err != nil {
		return nil, err
	}

	resp := &dto.BillingAnalyticsResponse{
		TenantID:     tenantID,
		Period:       period,
		From:         from,
		To:           now,
		InvoiceCount: len(invoices),
	}
	for _, inv := range invoices {
		resp.TotalBilled = resp.TotalBilled.Add(inv.AmountDue)
		resp.TotalPaid = resp.TotalPaid.Add(inv.AmountPaid)
	}
	resp.TotalUnpaid = resp.TotalBilled.Sub(resp.TotalPaid)
	if len(invoices) > 0 {
		resp.AverageInvoice = resp.TotalBilled.Div(decimal.NewFromInt(int64(len(invoices)))).Round(2)
	}
	return resp, nil
}

func (s *billingService) ListBillingEvents(ctx context.Context, tenantID string, req *dto.ListBillingEventsRequest) (*dto.ListBillingEventsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.tenantRepo.Get(ctx, tenantID); err != nil {
		return nil, err
	}

	var events []*billing.Event
	var err error
	if req.EventType != "" {
		events, err = s.billingRepo.ListByType(ctx, tenantID, types.BillingEventType(req.EventType), req.Limit)
	} else {
		events, err = s.billingRepo.ListByTenant(ctx, tenantID, req.Limit)
	}
	if err != nil {
		return nil, err
	}

	return &dto.ListBillingEventsResponse{
		TenantID: tenantID,
		Events:   events,
		Count:    len(events),
	}, nil
}

func (s *billingService) AddPaymentMethod(ctx context.Context, tenantID string, req *dto.AddPaymentMethodRequest) (*dto.PaymentMethodResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t, err := s.tenantRepo.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	customerID := t.ProcessorCustomerID
	if customerID == "" {
		customerID, err = s.gateway.EnsureCustomer(ctx, t.ID, t.Name, t.Email)
		if err != nil {
			return nil, err
		}
		if err := s.tenantRepo.SetProcessorCustomerID(ctx, t.ID, customerID); err != nil {
			return nil, err
		}
	}

	method, err := s.gateway.AttachPaymentMethod(ctx, customerID, req.PaymentMethodID, req.SetDefault)
	if err != nil {
		return nil, err
	}

	s.appendEvent(ctx, billing.NewEvent(tenantID, types.BillingEventPaymentMethodAdded, map[string]any{
		"payment_method_id": method.ID,
		"brand":             method.Brand,
		"last4":             method.Last4,
	}))

	return &dto.PaymentMethodResponse{
		ID:       method.ID,
		Type:     method.Type,
		Brand:    method.Brand,
		Last4:    method.Last4,
		ExpMonth: method.ExpMonth,
		ExpYear:  method.ExpYear,
		Default:  method.Default,
	}, nil
}

func (s *billingService) RemovePaymentMethod(ctx context.Context, tenantID, paymentMethodID string) error {
	if err := s.gateway.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
		return err
	}
	s.appendEvent(ctx, billing.NewEvent(tenantID, types.BillingEventPaymentMethodRemoved, map[string]any{
		"payment_method_id": paymentMethodID,
	}))
	return nil
}

// generateInvoice is the two-step processor interaction: create a draft,
// add items, finalize. The steps are not transactional; a finalize failure
// voids the draft so no orphaned items survive, and the next run rebuilds
// from source usage.
func (s *billingService) generateInvoice(ctx context.Context, tenantID, customerID string, lineItems []dto.OverageLineItem) (string, error) {
	invoiceID, err := s.gateway.CreateDraftInvoice(ctx, customerID, map[string]string{
		"tenant_id": tenantID,
	})
	if err != nil {
		return "", err
	}

	for _, item := range lineItems {
		if err := s.gateway.AddInvoiceItem(ctx, customerID, invoiceID, item.Description, item.Amount); err != nil {
			s.voidInvoice(ctx, tenantID, invoiceID, err)
			return "", err
		}
	}

	if _, err := s.gateway.FinalizeInvoice(ctx, invoiceID); err != nil {
		s.voidInvoice(ctx, tenantID, invoiceID, err)
		return "", err
	}
	return invoiceID, nil
}

func (s *billingService) voidInvoice(ctx context.Context, tenantID, invoiceID string, cause error) {
	if err := s.gateway.VoidInvoice(ctx, invoiceID); err != nil {
		s.logger.Errorw("failed to void draft invoice",
			"error", err, "tenant_id", tenantID, "invoice_id", invoiceID)
	}
	s.appendEvent(ctx, billing.NewEvent(tenantID, types.BillingEventInvoiceFinalizeFail, map[string]any{
		"invoice_id": invoiceID,
		"error":      cause.Error(),
	}))
}

// computeOverage prices usage beyond plan limits. Unlimited dimensions
// never bill.
func computeOverage(limits plan.Limits, u *usage.ResourceUsage) ([]dto.OverageLineItem, decimal.Decimal) {
	var items []dto.OverageLineItem
	total := decimal.Zero

	if limits.UserLimitEnforced() && u.ActiveUsers > limits.Users {
		over := int64(u.ActiveUsers - limits.Users)
		amount := overageRatePerSeat.Mul(decimal.NewFromInt(over))
		items = append(items, dto.OverageLineItem{
			Dimension:   "users",
			Description: fmt.Sprintf("%d additional users", over),
			Quantity:    over,
			Amount:      amount,
		})
		total = total.Add(amount)
	}

	if limits.StorageLimitEnforced() && u.StorageGB > float64(limits.StorageGB) {
		overGB := decimal.NewFromFloat(u.StorageGB - float64(limits.StorageGB))
		amount := overageRatePerGB.Mul(overGB).Round(2)
		items = append(items, dto.OverageLineItem{
			Dimension:   "storage",
			Description: fmt.Sprintf("%s GB additional storage", overGB.String()),
			Quantity:    overGB.Ceil().IntPart(),
			Amount:      amount,
		})
		total = total.Add(amount)
	}

	if limits.APILimitEnforced() && u.APICalls > int64(limits.APICallsPerMonth) {
		overCalls := u.APICalls - int64(limits.APICallsPerMonth)
		blocks := (overCalls + apiCallBlockSize - 1) / apiCallBlockSize
		amount := overageRatePerAPIBlock.Mul(decimal.NewFromInt(blocks))
		items = append(items, dto.OverageLineItem{
			Dimension:   "api_calls",
			Description: fmt.Sprintf("%d additional API calls", overCalls),
			Quantity:    blocks,
			Amount:      amount,
		})
		total = total.Add(amount)
	}

	return items, total
}

func (s *billingService) appendEvent(ctx context.Context, event *billing.Event) {
	if err := s.billingRepo.Append(ctx, event); err != nil {
		s.logger.Errorw("failed to append billing event",
			"error", err,
			"tenant_id", event.TenantID,
			"event_type", event.EventType,
		)
	}
}

func (s *billingService) notify(ctx context.Context, n *notification.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Errorw("failed to send notification",
			"error", err,
			"notification_type", n.Type,
			"tenant_id", n.TenantID,
		)
	}
}
