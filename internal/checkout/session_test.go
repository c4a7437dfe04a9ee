package checkout

import (
	"encoding/json"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
)

func testCatalog(products ...models.Product) map[primitive.ObjectID]models.Product {
	catalog := map[primitive.ObjectID]models.Product{}
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog
}

var testConfig = SessionConfig{
	ShippingRate: 1000,
	SuccessURL:   "https://shop.example/checkout/success",
	CancelURL:    "https://shop.example/cart",
}

func TestBuildSessionParamsKeepsCartOrder(t *testing.T) {
	apple := models.Product{ID: primitive.NewObjectID(), Name: "Apple", Price: 200, Stock: 10, Status: models.ProductStatusPublished}
	pear := models.Product{ID: primitive.NewObjectID(), Name: "Pear", Price: 250, Stock: 10, Status: models.ProductStatusPublished}

	cart := &models.Cart{Items: []models.CartItem{
		{ProductID: pear.ID, Quantity: 2},
		{ProductID: apple.ID, Quantity: 3},
	}}

	params, err := BuildSessionParams(cart, testCatalog(apple, pear), models.Address{Line1: "1 Main St", City: "Valencia", PostalCode: "46001", Country: "ES"}, "buyer@example.com", testConfig)
	if err != nil {
		t.Fatalf("BuildSessionParams returned error: %v", err)
	}

	if len(params.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(params.LineItems))
	}
	if params.LineItems[0].Name != "Pear" || params.LineItems[1].Name != "Apple" {
		t.Fatalf("line items out of cart order: %+v", params.LineItems)
	}

	var ids []string
	if err := json.Unmarshal([]byte(params.ProductIDs), &ids); err != nil {
		t.Fatalf("productIds is not a JSON array: %v", err)
	}
	// the ids list and the line items must stay positionally aligned
	if len(ids) != 2 || ids[0] != pear.ID.Hex() || ids[1] != apple.ID.Hex() {
		t.Fatalf("productIds out of cart order: %v", ids)
	}

	if params.ShippingAmount != 1000 {
		t.Fatalf("expected shipping 1000, got %d", params.ShippingAmount)
	}
	if params.CustomerEmail != "buyer@example.com" {
		t.Fatalf("unexpected email: %s", params.CustomerEmail)
	}

	var snapshot models.ShippingAddress
	if err := json.Unmarshal([]byte(params.ShippingAddress), &snapshot); err != nil {
		t.Fatalf("shippingAddress is not valid JSON: %v", err)
	}
	if snapshot.City != "Valencia" {
		t.Fatalf("unexpected address snapshot: %+v", snapshot)
	}
}

func TestBuildSessionParamsUsesSalePrice(t *testing.T) {
	apple := models.Product{
		ID: primitive.NewObjectID(), Name: "Apple",
		Price: 200, SaleEnabled: true, SalePrice: 150,
		Stock: 10, Status: models.ProductStatusPublished,
	}
	cart := &models.Cart{Items: []models.CartItem{{ProductID: apple.ID, Quantity: 1}}}

	params, err := BuildSessionParams(cart, testCatalog(apple), models.Address{}, "", testConfig)
	if err != nil {
		t.Fatalf("BuildSessionParams returned error: %v", err)
	}
	if params.LineItems[0].UnitAmount != 150 {
		t.Fatalf("expected sale price 150, got %d", params.LineItems[0].UnitAmount)
	}
}

func TestBuildSessionParamsEmptyCart(t *testing.T) {
	_, err := BuildSessionParams(&models.Cart{}, testCatalog(), models.Address{}, "", testConfig)
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestBuildSessionParamsRejectsUnavailableProducts(t *testing.T) {
	draft := models.Product{ID: primitive.NewObjectID(), Name: "Draft", Price: 100, Stock: 10, Status: models.ProductStatusDraft}
	short := models.Product{ID: primitive.NewObjectID(), Name: "Short", Price: 100, Stock: 1, Status: models.ProductStatusPublished}
	missingID := primitive.NewObjectID()

	tests := []struct {
		name string
		item models.CartItem
	}{
		{"not found", models.CartItem{ProductID: missingID, Quantity: 1}},
		{"not published", models.CartItem{ProductID: draft.ID, Quantity: 1}},
		{"insufficient stock", models.CartItem{ProductID: short.ID, Quantity: 2}},
		{"zero quantity", models.CartItem{ProductID: short.ID, Quantity: 0}},
	}

	for _, tc := range tests {
		cart := &models.Cart{Items: []models.CartItem{tc.item}}
		_, err := BuildSessionParams(cart, testCatalog(draft, short), models.Address{}, "", testConfig)

		var unavailable UnavailableProductError
		if !errors.As(err, &unavailable) {
			t.Fatalf("%s: expected UnavailableProductError, got %v", tc.name, err)
		}
		if unavailable.ProductID != tc.item.ProductID {
			t.Fatalf("%s: unexpected product id %s", tc.name, unavailable.ProductID.Hex())
		}
	}
}

func TestShippingLineDescriptionRoundTrips(t *testing.T) {
	// session creation and finalization must agree on the shipping marker
	apple := models.Product{ID: primitive.NewObjectID(), Name: "Apple", Price: 200, Stock: 10, Status: models.ProductStatusPublished}
	cart := &models.Cart{Items: []models.CartItem{{ProductID: apple.ID, Quantity: 1}}}

	params, err := BuildSessionParams(cart, testCatalog(apple), models.Address{}, "", testConfig)
	if err != nil {
		t.Fatalf("BuildSessionParams returned error: %v", err)
	}

	sess := &payments.Session{
		LineItems: []payments.LineItem{
			{Description: "Apple", Quantity: 1, AmountTotal: 200},
			{Description: payments.ShippingLineDescription, Quantity: 1, AmountTotal: params.ShippingAmount},
		},
		Metadata: map[string]string{payments.MetadataProductIDs: params.ProductIDs},
	}

	items, shipping, err := deriveOrderItems(sess)
	if err != nil {
		t.Fatalf("deriveOrderItems returned error: %v", err)
	}
	if shipping != params.ShippingAmount {
		t.Fatalf("expected shipping %d, got %d", params.ShippingAmount, shipping)
	}
	if len(items) != 1 || items[0].ProductID != apple.ID {
		t.Fatalf("unexpected items: %+v", items)
	}
}
