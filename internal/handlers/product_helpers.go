package handlers

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

// finalizeProductView fills the computed response-only fields.
func finalizeProductView(p *models.Product) {
	p.IsOnSale = models.IsProductOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	p.InStock = p.Stock > 0
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	for i := range products {
		finalizeProductView(&products[i])
	}

	return products, nil
}
