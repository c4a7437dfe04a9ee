// Package store holds the persistence ports the checkout flow depends on and
// their MongoDB implementations. The interfaces exist so the finalizer can be
// tested against in-memory fakes.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

var (
	// ErrNotFound signals a point lookup that matched no document.
	ErrNotFound = errors.New("document not found")
	// ErrInsufficientStock signals a conditional decrement that matched no
	// document: either the remaining stock was below the requested quantity
	// or the product vanished mid-flight.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicateSession signals an order insert that lost the race on the
	// unique payment.sessionId index.
	ErrDuplicateSession = errors.New("order already exists for session")
)

// ProductStore is the stock-ledger port.
type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)

	// DecrementStock atomically subtracts quantity from the product's stock,
	// but only if the current stock covers it, and returns the updated
	// document. The read-check-write happens as one storage operation.
	DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error)

	SetStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

// OrderStore persists and resolves orders.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) (primitive.ObjectID, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
}

// TxRunner is the unit-of-work capability: fn's storage operations commit or
// roll back as one atomic group.
type TxRunner interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
