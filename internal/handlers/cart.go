package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type cartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gte=1"`
}

type cartUpdateRequest struct {
	Items []cartItemRequest `json:"items" binding:"required"`
}

func loadCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := db.Collection("carts").FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func resolveCartItems(ctx context.Context, db *mongo.Database, items []cartItemRequest) ([]models.CartItem, error) {
	out := make([]models.CartItem, 0, len(items))
	seen := map[primitive.ObjectID]int{}

	for _, item := range items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, errors.New("invalid productId")
		}

		// duplicate product lines collapse into one
		if idx, ok := seen[productID]; ok {
			out[idx].Quantity += item.Quantity
			continue
		}

		count, err := db.Collection("products").CountDocuments(ctx, bson.M{
			"_id":       productID,
			"status":    bson.M{"$ne": models.ProductStatusDraft},
			"isDeleted": bson.M{"$ne": true},
		})
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, errors.New("product not found: " + item.ProductID)
		}

		seen[productID] = len(out)
		out = append(out, models.CartItem{ProductID: productID, Quantity: item.Quantity})
	}

	return out, nil
}

func saveCart(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, items []models.CartItem) (*models.Cart, error) {
	var cart models.Cart
	err := db.Collection("carts").FindOneAndUpdate(
		ctx,
		bson.M{"userId": userID},
		bson.M{"$set": bson.M{
			"userId":    userID,
			"items":     items,
			"updatedAt": time.Now(),
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&cart)
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

/*
GET /api/cart
*/
func GetCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, cart)
	}
}

/*
POST /api/cart/items
- adds one line, merging quantity into an existing line for the same product
*/
func AddCartItem(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		merged := make([]cartItemRequest, 0, len(cart.Items)+1)
		for _, existing := range cart.Items {
			merged = append(merged, cartItemRequest{
				ProductID: existing.ProductID.Hex(),
				Quantity:  existing.Quantity,
			})
		}
		merged = append(merged, req)

		items, err := resolveCartItems(ctx, db, merged)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updated, err := saveCart(ctx, db, userID, items)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

/*
PUT /api/cart
- replaces the whole item set
*/
func UpdateCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req cartUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		items, err := resolveCartItems(ctx, db, req.Items)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		updated, err := saveCart(ctx, db, userID, items)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /api/cart
*/
func ClearCart(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if _, err := db.Collection("carts").UpdateOne(
			ctx,
			bson.M{"userId": userID},
			bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": time.Now()}},
		); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.Status(http.StatusNoContent)
	}
}
