package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type MongoProductStore struct {
	db *mongo.Database
}

func NewMongoProductStore(db *mongo.Database) *MongoProductStore {
	return &MongoProductStore{db: db}
}

func (s *MongoProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.db.Collection("products").FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *MongoProductStore) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	filter := bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
		"stock":     bson.M{"$gte": quantity},
	}
	update := bson.M{"$inc": bson.M{"stock": -quantity}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Product
	err := s.db.Collection("products").FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInsufficientStock
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *MongoProductStore) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := s.db.Collection("products").UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status},
	})
	return err
}
