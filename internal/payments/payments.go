// Package payments wraps the hosted-checkout provider behind small
// interfaces so the checkout flow can be exercised against fakes.
package payments

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when the provider cannot resolve a session id.
var ErrSessionNotFound = errors.New("payment session not found")

// ShippingLineDescription names the shipping line item on every checkout
// session. Finalization partitions line items on this exact description, so
// session creation and retrieval must agree on it.
const ShippingLineDescription = "Shipping"

// Metadata keys attached at session creation and read back at finalization.
// MetadataProductIDs holds a JSON array of catalog ids in the same order as
// the non-shipping line items.
const (
	MetadataProductIDs      = "productIds"
	MetadataShippingAddress = "shippingAddress"
)

// Payment settlement states as reported by the provider.
const (
	SessionPaid              = "paid"
	SessionUnpaid            = "unpaid"
	SessionNoPaymentRequired = "no_payment_required"
)

// LineItem is one settled charge line on a session.
type LineItem struct {
	Description string
	Quantity    int64
	AmountTotal int64
}

// Session is the provider's view of a completed (or pending) checkout,
// read-only from this system's perspective.
type Session struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	AmountSubtotal  int64
	AmountTotal     int64
	LineItems       []LineItem
	Metadata        map[string]string
}

// CreateLineItem describes one product line for a new checkout session.
type CreateLineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
}

// CreateSessionParams carries everything needed to open a hosted checkout.
// LineItems and the ProductIDs metadata list must be in the same order:
// finalization pairs them positionally.
type CreateSessionParams struct {
	CustomerEmail   string
	LineItems       []CreateLineItem
	ShippingAmount  int64
	ProductIDs      string
	ShippingAddress string
	SuccessURL      string
	CancelURL       string
}

// CreatedSession is the handle returned to the storefront client.
type CreatedSession struct {
	ID  string
	URL string
}

// SessionRetriever resolves a session id to its settled payload with line
// items expanded in a single call.
type SessionRetriever interface {
	RetrieveSession(ctx context.Context, sessionID string) (*Session, error)
}

// SessionCreator opens a new hosted checkout session.
type SessionCreator interface {
	CreateSession(ctx context.Context, params CreateSessionParams) (*CreatedSession, error)
}
