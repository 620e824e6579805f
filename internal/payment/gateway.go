package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platformhq/licensing/internal/domain/webhookevent"
	"github.com/platformhq/licensing/internal/types"
)

// Gateway abstracts the external payment processor. The processor is the
// system of record for subscription status; local callers treat every
// returned status as advisory until confirmed by webhook.
type Gateway interface {
	// EnsureCustomer resolves or creates the processor customer record for
	// a tenant and returns its processor customer id.
	EnsureCustomer(ctx context.Context, tenantID, name, email string) (string, error)

	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string, setDefault bool) (*Method, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error

	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string, metadata map[string]string) (*Subscription, error)

	// CancelSubscription cancels now when immediately is true, otherwise
	// flags cancel_at_period_end on the processor side.
	CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// Invoice generation is a deliberate two-step interaction: a draft is
	// created and populated, then finalized. The steps are not
	// transactional; VoidInvoice is the compensating action when finalize
	// fails after items were created.
	CreateDraftInvoice(ctx context.Context, customerID string, metadata map[string]string) (string, error)
	AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount decimal.Decimal) error
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	VoidInvoice(ctx context.Context, invoiceID string) error
	PayInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	ListInvoices(ctx context.Context, customerID string, createdAfter time.Time) ([]*Invoice, error)

	// ConstructWebhookEvent verifies the signature against the shared
	// secret and decodes the payload into a typed envelope. Signature
	// mismatch returns ErrInvalidSignature and nothing else happens.
	ConstructWebhookEvent(payload []byte, signature string) (*webhookevent.Envelope, error)
}

// CreateSubscriptionParams are the inputs for subscription creation
type CreateSubscriptionParams struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	Metadata        map[string]string
}

// Subscription is the processor-side view of a subscription
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             types.SubscriptionStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// Invoice is the processor-side view of an invoice
type Invoice struct {
	ID         string
	Status     string
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
	Currency   string
	HostedURL  string
	CreatedAt  time.Time
}

// Method is a stored payment method
type Method struct {
	ID       string
	Type     string
	Last4    string
	Brand    string
	ExpMonth int64
	ExpYear  int64
	Default  bool
}
