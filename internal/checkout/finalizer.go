// Package checkout implements the order finalization flow: resolving a
// hosted-checkout session to its settled line items and recording the
// purchase while deducting inventory as one atomic unit of work.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/store"
)

// Finalizer turns a completed payment session into a persisted order.
type Finalizer struct {
	sessions payments.SessionRetriever
	products store.ProductStore
	orders   store.OrderStore
	tx       store.TxRunner
	now      func() time.Time
}

func NewFinalizer(sessions payments.SessionRetriever, products store.ProductStore, orders store.OrderStore, tx store.TxRunner) *Finalizer {
	return &Finalizer{
		sessions: sessions,
		products: products,
		orders:   orders,
		tx:       tx,
		now:      time.Now,
	}
}

// Finalize verifies the payment session, derives order items from its line
// items, and atomically decrements stock while inserting the order.
//
// Finalizing the same session twice returns the first order unchanged: a
// pre-check resolves the common replay, and the unique index on
// payment.sessionId settles the race between two concurrent first calls.
func (f *Finalizer) Finalize(ctx context.Context, userID primitive.ObjectID, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, MalformedSessionError{Reason: "session id is required"}
	}

	if existing, err := f.orders.FindBySessionID(ctx, sessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	sess, err := f.sessions.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	items, shipping, err := deriveOrderItems(sess)
	if err != nil {
		return nil, err
	}

	address, err := parseShippingAddress(sess)
	if err != nil {
		return nil, err
	}

	now := f.now()
	order := &models.Order{
		UserID:   userID,
		Items:    items,
		Subtotal: sess.AmountSubtotal - shipping,
		Tax:      sess.AmountTotal - sess.AmountSubtotal,
		Shipping: shipping,
		// Amounts come from the session so the order records exactly what
		// was charged, never a local recomputation.
		Total:           sess.AmountTotal,
		PaymentStatus:   paymentStatusFromSession(sess.PaymentStatus),
		Status:          models.OrderStatusPending,
		StatusHistory:   []models.OrderStatusChange{{Status: models.OrderStatusPending, At: now}},
		ShippingAddress: address,
		Payment: models.OrderPayment{
			SessionID:       sess.ID,
			PaymentIntentID: sess.PaymentIntentID,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		order.PaidAt = &now
	}

	err = f.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		for _, item := range order.Items {
			current, err := f.products.FindByID(txCtx, item.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return ProductMissingError{ProductID: item.ProductID}
			}
			if err != nil {
				return err
			}

			updated, err := f.products.DecrementStock(txCtx, item.ProductID, item.Quantity)
			if errors.Is(err, store.ErrInsufficientStock) {
				return InsufficientStockError{
					ProductID: item.ProductID,
					Available: current.Stock,
					Requested: item.Quantity,
				}
			}
			if err != nil {
				return err
			}

			if updated.Stock == 0 {
				if err := f.products.SetStatus(txCtx, item.ProductID, models.ProductStatusOutOfStock); err != nil {
					return err
				}
			}
		}

		id, err := f.orders.Insert(txCtx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	})
	if errors.Is(err, store.ErrDuplicateSession) {
		// Lost the insert race; the winner's order is the order.
		return f.orders.FindBySessionID(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}

	return order, nil
}

// deriveOrderItems splits the session's line items into shipping and product
// lines, then pairs product lines positionally with the product-id list from
// session metadata. Positional pairing is the only linkage the provider
// offers; session creation serializes both lists in cart order.
func deriveOrderItems(sess *payments.Session) ([]models.OrderItem, int64, error) {
	var shipping int64
	productLines := make([]payments.LineItem, 0, len(sess.LineItems))
	for _, line := range sess.LineItems {
		if line.Description == payments.ShippingLineDescription {
			shipping += line.AmountTotal
			continue
		}
		productLines = append(productLines, line)
	}

	raw, ok := sess.Metadata[payments.MetadataProductIDs]
	if !ok {
		return nil, 0, MalformedSessionError{Reason: "productIds metadata missing"}
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, 0, MalformedSessionError{Reason: "productIds metadata is not a JSON array"}
	}
	if len(ids) != len(productLines) {
		return nil, 0, MalformedSessionError{Reason: "productIds count does not match line items"}
	}
	if len(productLines) == 0 {
		return nil, 0, MalformedSessionError{Reason: "session has no product line items"}
	}

	items := make([]models.OrderItem, 0, len(productLines))
	for i, line := range productLines {
		productID, err := primitive.ObjectIDFromHex(ids[i])
		if err != nil {
			return nil, 0, MalformedSessionError{Reason: "invalid product id in metadata"}
		}
		if line.Quantity <= 0 {
			return nil, 0, MalformedSessionError{Reason: "line item quantity must be positive"}
		}

		items = append(items, models.OrderItem{
			ProductID: productID,
			Name:      line.Description,
			Price:     line.AmountTotal / line.Quantity,
			Quantity:  int(line.Quantity),
		})
	}

	return items, shipping, nil
}

func parseShippingAddress(sess *payments.Session) (models.ShippingAddress, error) {
	raw, ok := sess.Metadata[payments.MetadataShippingAddress]
	if !ok || raw == "" {
		return models.ShippingAddress{}, nil
	}

	var address models.ShippingAddress
	if err := json.Unmarshal([]byte(raw), &address); err != nil {
		return models.ShippingAddress{}, MalformedSessionError{Reason: "shippingAddress metadata is not valid JSON"}
	}
	return address, nil
}

func paymentStatusFromSession(status string) string {
	switch status {
	case payments.SessionPaid, payments.SessionNoPaymentRequired:
		return models.PaymentStatusPaid
	case payments.SessionUnpaid:
		return models.PaymentStatusPending
	default:
		return models.PaymentStatusPending
	}
}
