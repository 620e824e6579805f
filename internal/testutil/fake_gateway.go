package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/platformhq/licensing/internal/domain/webhookevent"
	ierr "github.com/platformhq/licensing/internal/errors"
	"github.com/platformhq/licensing/internal/payment"
	"github.com/platformhq/licensing/internal/types"
)

// FakeInvoice is a processor invoice with its line items, for assertions
type FakeInvoice struct {
	payment.Invoice
	CustomerID string
	Items      []FakeInvoiceItem
	Finalized  bool
	Voided     bool
	Paid       bool
}

type FakeInvoiceItem struct {
	Description string
	Amount      decimal.Decimal
}

// FakeGateway implements payment.Gateway against in-memory state. Errors
// can be injected per method name to exercise failure paths.
type FakeGateway struct {
	mu sync.Mutex

	customers     map[string]string // tenant id -> customer id
	subscriptions map[string]*payment.Subscription
	invoices      map[string]*FakeInvoice

	// Envelope is returned by ConstructWebhookEvent on valid signatures
	Envelope *webhookevent.Envelope

	// Errs injects an error keyed by method name
	Errs map[string]error

	seq int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		customers:     make(map[string]string),
		subscriptions: make(map[string]*payment.Subscription),
		invoices:      make(map[string]*FakeInvoice),
		Errs:          make(map[string]error),
	}
}

func (g *FakeGateway) fail(method string) error {
	return g.Errs[method]
}

func (g *FakeGateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_fake_%d", prefix, g.seq)
}

func (g *FakeGateway) EnsureCustomer(ctx context.Context, tenantID, name, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("EnsureCustomer"); err != nil {
		return "", err
	}
	if id, ok := g.customers[tenantID]; ok {
		return id, nil
	}
	id := g.nextID("cus")
	g.customers[tenantID] = id
	return id, nil
}

func (g *FakeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string, setDefault bool) (*payment.Method, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("AttachPaymentMethod"); err != nil {
		return nil, err
	}
	return &payment.Method{
		ID:      paymentMethodID,
		Type:    "card",
		Last4:   "4242",
		Brand:   "visa",
		Default: setDefault,
	}, nil
}

func (g *FakeGateway) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fail("DetachPaymentMethod")
}

func (g *FakeGateway) CreateSubscription(ctx context.Context, params payment.CreateSubscriptionParams) (*payment.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("CreateSubscription"); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sub := &payment.Subscription{
		ID:                 g.nextID("sub"),
		CustomerID:         params.CustomerID,
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		Metadata:           params.Metadata,
	}
	g.subscriptions[sub.ID] = sub
	cp := *sub
	return &cp, nil
}

func (g *FakeGateway) UpdateSubscriptionPrice(ctx context.Context, subscriptionID, priceID string, metadata map[string]string) (*payment.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("UpdateSubscriptionPrice"); err != nil {
		return nil, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	sub.Metadata = metadata
	cp := *sub
	return &cp, nil
}

func (g *FakeGateway) CancelSubscription(ctx context.Context, subscriptionID string, immediately bool) (*payment.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("CancelSubscription"); err != nil {
		return nil, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	if immediately {
		sub.Status = types.SubscriptionStatusCanceled
	} else {
		sub.CancelAtPeriodEnd = true
	}
	cp := *sub
	return &cp, nil
}

func (g *FakeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*payment.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("GetSubscription"); err != nil {
		return nil, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewError("subscription not found").Mark(ierr.ErrNotFound)
	}
	cp := *sub
	return &cp, nil
}

func (g *FakeGateway) CreateDraftInvoice(ctx context.Context, customerID string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("CreateDraftInvoice"); err != nil {
		return "", err
	}
	id := g.nextID("in")
	g.invoices[id] = &FakeInvoice{
		Invoice: payment.Invoice{
			ID:        id,
			Status:    "draft",
			Currency:  "usd",
			CreatedAt: time.Now().UTC(),
		},
		CustomerID: customerID,
	}
	return id, nil
}

func (g *FakeGateway) AddInvoiceItem(ctx context.Context, customerID, invoiceID, description string, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("AddInvoiceItem"); err != nil {
		return err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	inv.Items = append(inv.Items, FakeInvoiceItem{Description: description, Amount: amount})
	inv.AmountDue = inv.AmountDue.Add(amount)
	return nil
}

func (g *FakeGateway) FinalizeInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("FinalizeInvoice"); err != nil {
		return nil, err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	inv.Finalized = true
	inv.Status = "open"
	cp := inv.Invoice
	return &cp, nil
}

func (g *FakeGateway) VoidInvoice(ctx context.Context, invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("VoidInvoice"); err != nil {
		return err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	inv.Voided = true
	inv.Status = "void"
	return nil
}

func (g *FakeGateway) PayInvoice(ctx context.Context, invoiceID string) (*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("PayInvoice"); err != nil {
		return nil, err
	}
	inv, ok := g.invoices[invoiceID]
	if !ok {
		return nil, ierr.NewError("invoice not found").Mark(ierr.ErrNotFound)
	}
	inv.Paid = true
	inv.Status = "paid"
	inv.AmountPaid = inv.AmountDue
	cp := inv.Invoice
	return &cp, nil
}

func (g *FakeGateway) ListInvoices(ctx context.Context, customerID string, createdAfter time.Time) ([]*payment.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("ListInvoices"); err != nil {
		return nil, err
	}
	var out []*payment.Invoice
	for _, inv := range g.invoices {
		if inv.CustomerID == customerID && inv.CreatedAt.After(createdAfter) {
			cp := inv.Invoice
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (g *FakeGateway) ConstructWebhookEvent(payload []byte, signature string) (*webhookevent.Envelope, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail("ConstructWebhookEvent"); err != nil {
		return nil, err
	}
	if signature != "valid" {
		return nil, ierr.NewError("signature verification failed").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrInvalidSignature)
	}
	if g.Envelope == nil {
		return nil, ierr.NewError("no envelope configured").Mark(ierr.ErrSystem)
	}
	cp := *g.Envelope
	return &cp, nil
}

// Invoice returns the stored invoice state, for assertions
func (g *FakeGateway) Invoice(id string) (*FakeInvoice, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	inv, ok := g.invoices[id]
	if !ok {
		return nil, false
	}
	cp := *inv
	return &cp, true
}

// Invoices returns all invoices, for assertions
func (g *FakeGateway) Invoices() []*FakeInvoice {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*FakeInvoice, 0, len(g.invoices))
	for _, inv := range g.invoices {
		cp := *inv
		out = append(out, &cp)
	}
	return out
}

// Subscription returns the stored processor subscription, for assertions
func (g *FakeGateway) Subscription(id string) (*payment.Subscription, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	sub, ok := g.subscriptions[id]
	if !ok {
		return nil, false
	}
	cp := *sub
	return &cp, true
}

// SeedSubscription installs a processor subscription directly
func (g *FakeGateway) SeedSubscription(sub *payment.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *sub
	g.subscriptions[sub.ID] = &cp
}
