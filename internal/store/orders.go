package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type MongoOrderStore struct {
	db *mongo.Database
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{db: db}
}

func (s *MongoOrderStore) Insert(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	res, err := s.db.Collection("orders").InsertOne(ctx, order)
	if mongo.IsDuplicateKeyError(err) {
		return primitive.NilObjectID, ErrDuplicateSession
	}
	if err != nil {
		return primitive.NilObjectID, err
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("unexpected inserted id type")
	}
	return id, nil
}

func (s *MongoOrderStore) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Collection("orders").FindOne(ctx, bson.M{
		"payment.sessionId": sessionID,
	}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}
