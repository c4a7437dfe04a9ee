package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Product lifecycle states. OutOfStock is derived: a successful checkout
// decrement that lands on zero stock sets it, and a restock clears it.
const (
	ProductStatusDraft      = "draft"
	ProductStatusPublished  = "published"
	ProductStatusOutOfStock = "outOfStock"
)

// Product is the catalog document. All money fields are cents.
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	SKU           string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Price         int64              `bson:"price" json:"price"`
	SaleEnabled   bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice     int64              `bson:"salePrice" json:"salePrice"`
	IsOnSale      bool               `bson:"-" json:"isOnSale"`
	Categories    []string           `bson:"categories" json:"categories"`
	Images        []string           `bson:"images,omitempty" json:"images,omitempty"`
	Stock         int                `bson:"stock" json:"stock"`
	InStock       bool               `bson:"-" json:"inStock"`
	Status        string             `bson:"status" json:"status"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
	NumReviews    int                `bson:"numReviews" json:"numReviews"`
	IsDeleted     bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt     *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
