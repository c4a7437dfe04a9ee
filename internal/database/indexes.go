package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("users").Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureUserIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	return nil
}

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("products").Indexes()

	skuIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().
			SetName("sku_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{
				"sku": bson.M{
					"$exists": true,
				},
			}),
	}

	log.Println("EnsureProductIndexes: creating sku_unique index")
	_, err := indexes.CreateOne(ctx, skuIndex)
	if err != nil {
		log.Println("EnsureProductIndexes: sku index error:", err)
		return err
	}
	return nil
}

// EnsureOrderIndexes creates the user lookup index and the unique index on
// payment.sessionId. The unique index is the backstop that makes two
// concurrent finalizations of one checkout session produce exactly one order.
func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("orders").Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName("userId_index"),
		},
		{
			Keys: bson.D{{Key: "payment.sessionId", Value: 1}},
			Options: options.Index().
				SetName("payment_session_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"payment.sessionId": bson.M{
						"$exists": true,
					},
				}),
		},
	}

	log.Println("EnsureOrderIndexes: creating userId and payment.sessionId indexes")
	_, err := indexes.CreateMany(ctx, models)
	if err != nil {
		log.Println("EnsureOrderIndexes: index error:", err)
		return err
	}
	return nil
}

func EnsureReviewIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("reviews").Indexes()

	pairIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "productId", Value: 1},
			{Key: "userId", Value: 1},
		},
		Options: options.Index().
			SetName("product_user_unique").
			SetUnique(true),
	}

	log.Println("EnsureReviewIndexes: creating product_user_unique index")
	_, err := indexes.CreateOne(ctx, pairIndex)
	if err != nil {
		log.Println("EnsureReviewIndexes: review index error:", err)
		return err
	}
	return nil
}

func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection("carts").Indexes()

	userIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().
			SetName("userId_unique").
			SetUnique(true),
	}

	log.Println("EnsureCartIndexes: creating userId_unique index")
	_, err := indexes.CreateOne(ctx, userIndex)
	if err != nil {
		log.Println("EnsureCartIndexes: cart index error:", err)
		return err
	}
	return nil
}
