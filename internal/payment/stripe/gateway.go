package stripe

import (
	"context"
	"strings"
	"time"

	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/payment"
	"github.com/platformhq/licensing/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

// gateway implements payment.Gateway against the Stripe API
type gateway struct {
	client *Client
	logger *logger.Logger
}

// NewGateway creates the Stripe-backed payment gateway
func NewGateway(client *Client, log *logger.Logger) payment.Gateway {
	return &gateway{client: client, logger: log}
}

func (g *gateway) EnsureCustomer(ctx context.Context, tenantID, name, email string) (string, error) {
	// Search by our tenant id first so retries never create duplicates
	searchParams := &stripe.CustomerSearchParams{}
	searchParams.Query = "metadata['tenant_id']:'" + tenantID + "'"
	searchParams.Limit = stripe.Int64(1)

	iter := g.client.api.V1Customers.Search(ctx, searchParams)
	for cust, err := range iter {
		if err != nil {
			return "", processorErr(err, "failed to search Stripe customers")
		}
		return cust.ID, nil
	}

	params := &stripe.CustomerCreateParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
		Metadata: map[string]string{
			"tenant_id": tenantID,
		},
	}

	cust, err := g.client.api.V1Customers.Create(ctx, params)
	if err != nil {
		return "", processorErr(err, "failed to create Stripe customer")
	}

	g.logger.Infow("created Stripe customer",
		"tenant_id", tenantID,
		"stripe_customer_id", cust.ID)

	return cust.ID, nil
}

func (g *gateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string, setDefault bool) (*payment.Method, error) {
	pm, err := g.client.api.V1PaymentMethods.Attach(ctx, paymentMethodID, &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	})
	if err != nil {
		return nil, processorErr(err, "failed to attach payment method")
	}

	if setDefault {
		_, err = g.client.api.V1Customers.Update(ctx, customerID, &stripe.CustomerUpdateParams{
			InvoiceSettings: &stripe.CustomerUpdateInvoiceSettingsParams{
				DefaultPaymentMethod: stripe.String(paymentMethodID),
			},
		})
		if err != nil {
			return nil, processorErr(err, "failed to set default payment method")
		}
	}

	method := &payment.Method{
		ID:      pm.ID,
		Type:    string(pm.Type),
		Default: setDefault,
	}
	if pm.Card != nil {
		method.Last4 = pm.Card.Last4
		method.Brand = string(pm.Card.Brand)
		method.ExpMonth = pm.Card.ExpMonth
		method.ExpYear = pm.Card.ExpYear
	}
	return method, nil
}

func (g *gateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	_, err := g.client.api.V1PaymentMethods.Detach(ctx, paymentMethodID, &stripe.PaymentMethodDetachParams{})
	if err != nil {
		return processorErr(err, "failed to detach payment method")
	}
	return nil
}

func (g *gateway) CreateSubscription(ctx context.Context, p payment.CreateSubscriptionParams) (*payment.Subscription, error) {
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(p.CustomerID),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(p.PriceID)},
		},
		Metadata: p.Metadata,
	}
	if p.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(p.PaymentMethodID)
	}

	sub, err := g.client.api.V1Subscriptions.Create(ctx, params)
	if err != nil {
		return nil, processorErr(err, "failed to create Stripe subscription")
	}

	return fromStripeSubscription(sub), nil
}

func (g *gateway) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string, metadata map[string]string) (*payment.Subscription, error) {
	existing, err := g.client.api.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, processorErr(err, "failed to retrieve Stripe subscription")
	}
	if existing.Items == nil || len(existing.Items.Data) == 0 {
		return nil, ierr.NewError("no items found in Stripe subscription").
			WithHint("Stripe subscription must have at least one item").
			Mark(ierr.ErrProcessor)
	}

	params := &stripe.SubscriptionUpdateParams{
		Items: []*stripe.SubscriptionUpdateItemParams{
			{
				ID:    stripe.String(existing.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		Metadata: metadata,
	}

	sub, err := g.client.api.V1Subscriptions.Update(ctx, subscriptionID, params)
	if err != nil {
		return nil, processorErr(err, "failed to update Stripe subscription")
	}

	return fromStripeSubscription(sub), nil
}

func (g *gateway) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*payment.Subscription, error) {
	if immediately {
		sub, err := g.client.api.V1Subscriptions.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{})
		if err != nil {
			return nil, processorErr(err, "failed to cancel Stripe subscription")
		}
		return fromStripeSubscription(sub), nil
	}

	sub, err := g.client.api.V1Subscriptions.Update(ctx, subscriptionID, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, processorErr(err, "failed to flag Stripe subscription for cancellation")
	}
	return fromStripeSubscription(sub), nil
}

func (g *gateway) GetSubscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	sub, err := g.client.api.V1Subscriptions.Retrieve(ctx, subscriptionID, nil)
	if err != nil {
		return nil, processorErr(err, "failed to retrieve Stripe subscription")
	}
	return fromStripeSubscription(sub), nil
}

func (g *gateway) CreateDraftInvoice(ctx context.Context, customerID string, metadata map[string]string) (string, error) {
	params := &stripe.InvoiceCreateParams{
		Customer:    stripe.String(customerID),
		AutoAdvance: stripe.Bool(true),
		Currency:    stripe.String("usd"),
		Metadata:    metadata,
	}

	inv, err := g.client.api.V1Invoices.Create(ctx, params)
	if err != nil {
		return "", processorErr(err, "failed to create Stripe invoice")
	}

	g.logger.Infow("created draft invoice in Stripe", "stripe_invoice_id", inv.ID)
	return inv.ID, nil
}

func (g *gateway) AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount decimal.Decimal) error {
	params := &stripe.InvoiceItemCreateParams{
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(invoiceID),
		Currency:    stripe.String("usd"),
		Description: stripe.String(description),
		Amount:      stripe.Int64(amount.Mul(decimal.NewFromInt(100)).IntPart()),
	}

	_, err := g.client.api.V1InvoiceItems.Create(ctx, params)
	if err != nil {
		return processorErr(err, "failed to add line item to Stripe invoice")
	}
	return nil
}

func (g *gateway) FinalizeInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	inv, err := g.client.api.V1Invoices.FinalizeInvoice(ctx, invoiceID, &stripe.InvoiceFinalizeInvoiceParams{
		AutoAdvance: stripe.Bool(true),
	})
	if err != nil {
		return nil, processorErr(err, "failed to finalize Stripe invoice")
	}

	g.logger.Infow("finalized Stripe invoice",
		"stripe_invoice_id", inv.ID,
		"status", inv.Status,
		"total", inv.Total)

	return fromStripeInvoice(inv), nil
}

func (g *gateway) VoidInvoice(ctx context.Context, invoiceID string) error {
	_, err := g.client.api.V1Invoices.VoidInvoice(ctx, invoiceID, &stripe.InvoiceVoidInvoiceParams{})
	if err != nil {
		return processorErr(err, "failed to void Stripe invoice")
	}
	return nil
}

func (g *gateway) PayInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	inv, err := g.client.api.V1Invoices.Pay(ctx, invoiceID, &stripe.InvoicePayParams{})
	if err != nil {
		return nil, processorErr(err, "failed to pay Stripe invoice")
	}
	return fromStripeInvoice(inv), nil
}

func (g *gateway) ListInvoices(ctx context.Context, customerID string, createdAfter time.Time) ([]*payment.Invoice, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: createdAfter.Unix(),
		},
	}

	var out []*payment.Invoice
	for inv, err := range g.client.api.V1Invoices.List(ctx, params) {
		if err != nil {
			return nil, processorErr(err, "failed to list Stripe invoices")
		}
		out = append(out, fromStripeInvoice(inv))
	}
	return out, nil
}

// fromStripeSubscription maps the processor subscription onto our view.
// Period boundaries live on the first subscription item in the current
// Stripe API version.
func fromStripeSubscription(sub *stripe.Subscription) *payment.Subscription {
	out := &payment.Subscription{
		ID:                sub.ID,
		Status:            mapSubscriptionStatus(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

func fromStripeInvoice(inv *stripe.Invoice) *payment.Invoice {
	return &payment.Invoice{
		ID:         inv.ID,
		Status:     string(inv.Status),
		AmountDue:  decimal.New(inv.AmountDue, -2),
		AmountPaid: decimal.New(inv.AmountPaid, -2),
		Currency:   strings.ToUpper(string(inv.Currency)),
		HostedURL:  inv.HostedInvoiceURL,
		CreatedAt:  time.Unix(inv.Created, 0).UTC(),
	}
}

func mapSubscriptionStatus(s stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return types.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return types.SubscriptionStatusTrial
	case stripe.SubscriptionStatusPastDue:
		return types.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return types.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return types.SubscriptionStatusUnpaid
	default:
		return types.SubscriptionStatusPastDue
	}
}

func processorErr(err error, msg string) error {
	return ierr.WithError(err).
		WithHint(msg).
		Mark(ierr.ErrProcessor)
}
