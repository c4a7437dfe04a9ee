package checkout

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
)

// ErrSessionNotFound is surfaced when the payment provider cannot resolve the
// session id the caller presented.
var ErrSessionNotFound = payments.ErrSessionNotFound

// MalformedSessionError marks a session that was not produced by this
// system's checkout flow: missing or unparsable metadata, or a product-id
// list that disagrees with the line items.
type MalformedSessionError struct {
	Reason string
}

func (e MalformedSessionError) Error() string {
	return "malformed payment session: " + e.Reason
}

// ProductMissingError marks a derived order item whose product no longer
// exists. The whole finalization aborts; no partial order is created.
type ProductMissingError struct {
	ProductID primitive.ObjectID
}

func (e ProductMissingError) Error() string {
	return "product not found: " + e.ProductID.Hex()
}

// InsufficientStockError marks a conditional decrement that could not be
// satisfied. Reported as a conflict; the buyer must restart from checkout.
type InsufficientStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: have %d, want %d",
		e.ProductID.Hex(), e.Available, e.Requested)
}
