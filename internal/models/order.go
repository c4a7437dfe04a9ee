package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment settlement states reported on an order.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Fulfilment lifecycle states, separate from payment settlement.
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

var orderStatusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransitionOrderStatus reports whether an order may move from one
// fulfilment status to another.
func CanTransitionOrderStatus(from, to string) bool {
	for _, allowed := range orderStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsOrderStatus reports whether s names a known fulfilment status.
func IsOrderStatus(s string) bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// OrderItem is a purchased line captured at checkout time. Price is the unit
// amount in cents actually charged, never the current catalog price.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     int64              `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// ShippingAddress is a snapshot taken at checkout, not a reference into the
// user's mutable address book.
type ShippingAddress struct {
	Label      string `bson:"label,omitempty" json:"label,omitempty"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode" json:"postalCode"`
	Country    string `bson:"country" json:"country"`
}

// OrderPayment links an order to the external payment session that settled it.
type OrderPayment struct {
	SessionID       string `bson:"sessionId" json:"sessionId"`
	PaymentIntentID string `bson:"paymentIntentId,omitempty" json:"paymentIntentId,omitempty"`
}

// OrderStatusChange is one entry in an order's fulfilment history.
type OrderStatusChange struct {
	Status string    `bson:"status" json:"status"`
	Note   string    `bson:"note,omitempty" json:"note,omitempty"`
	At     time.Time `bson:"at" json:"at"`
}

// Order is the persisted order document. Amount fields are cents and satisfy
// Total == Subtotal + Tax + Shipping.
type Order struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Items           []OrderItem         `bson:"items" json:"items"`
	Subtotal        int64               `bson:"subtotal" json:"subtotal"`
	Tax             int64               `bson:"tax" json:"tax"`
	Shipping        int64               `bson:"shipping" json:"shipping"`
	Total           int64               `bson:"total" json:"total"`
	PaymentStatus   string              `bson:"paymentStatus" json:"paymentStatus"`
	Status          string              `bson:"status" json:"status"`
	StatusHistory   []OrderStatusChange `bson:"statusHistory" json:"statusHistory"`
	ShippingAddress ShippingAddress     `bson:"shippingAddress" json:"shippingAddress"`
	Payment         OrderPayment        `bson:"payment" json:"payment"`
	PaidAt          *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}
