package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is one user's rating of a product. VerifiedPurchase marks that the
// reviewer has a paid order containing the product.
type Review struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID        primitive.ObjectID `bson:"productId" json:"productId"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	UserName         string             `bson:"userName" json:"userName"`
	Rating           int                `bson:"rating" json:"rating"`
	Comment          string             `bson:"comment,omitempty" json:"comment,omitempty"`
	VerifiedPurchase bool               `bson:"verifiedPurchase" json:"verifiedPurchase"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
