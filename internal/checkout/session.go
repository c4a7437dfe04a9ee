package checkout

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
)

var ErrEmptyCart = errors.New("cart is empty")

// UnavailableProductError marks a cart line that cannot be checked out:
// the product is gone, unpublished, or short on stock.
type UnavailableProductError struct {
	ProductID primitive.ObjectID
	Reason    string
}

func (e UnavailableProductError) Error() string {
	return fmt.Sprintf("product %s unavailable: %s", e.ProductID.Hex(), e.Reason)
}

// SessionConfig carries the storefront-level knobs for session creation.
type SessionConfig struct {
	ShippingRate int64
	SuccessURL   string
	CancelURL    string
}

// BuildSessionParams validates the cart against the catalog and assembles
// the checkout-session request. Line items and the productIds metadata list
// are emitted in cart order; finalization depends on the two staying aligned.
func BuildSessionParams(cart *models.Cart, catalog map[primitive.ObjectID]models.Product, address models.Address, email string, cfg SessionConfig) (payments.CreateSessionParams, error) {
	if cart == nil || len(cart.Items) == 0 {
		return payments.CreateSessionParams{}, ErrEmptyCart
	}

	lineItems := make([]payments.CreateLineItem, 0, len(cart.Items))
	ids := make([]string, 0, len(cart.Items))

	for _, item := range cart.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return payments.CreateSessionParams{}, UnavailableProductError{ProductID: item.ProductID, Reason: "not found"}
		}
		if product.Status != models.ProductStatusPublished {
			return payments.CreateSessionParams{}, UnavailableProductError{ProductID: item.ProductID, Reason: "not published"}
		}
		if item.Quantity < 1 {
			return payments.CreateSessionParams{}, UnavailableProductError{ProductID: item.ProductID, Reason: "quantity must be at least 1"}
		}
		if product.Stock < item.Quantity {
			return payments.CreateSessionParams{}, UnavailableProductError{ProductID: item.ProductID, Reason: "insufficient stock"}
		}

		lineItems = append(lineItems, payments.CreateLineItem{
			Name:       product.Name,
			UnitAmount: models.EffectiveProductPrice(product.Price, product.SaleEnabled, product.SalePrice),
			Quantity:   int64(item.Quantity),
		})
		ids = append(ids, item.ProductID.Hex())
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return payments.CreateSessionParams{}, err
	}

	snapshot := models.ShippingAddress{
		Label:      address.Label,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
	addressJSON, err := json.Marshal(snapshot)
	if err != nil {
		return payments.CreateSessionParams{}, err
	}

	return payments.CreateSessionParams{
		CustomerEmail:   email,
		LineItems:       lineItems,
		ShippingAmount:  cfg.ShippingRate,
		ProductIDs:      string(idsJSON),
		ShippingAddress: string(addressJSON),
		SuccessURL:      cfg.SuccessURL,
		CancelURL:       cfg.CancelURL,
	}, nil
}
