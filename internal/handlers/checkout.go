package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/checkout"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/events"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
)

type createSessionRequest struct {
	AddressID string `json:"addressId"`
}

// selectAddress picks the requested address, falling back to the default one.
func selectAddress(user *models.User, addressID string) (models.Address, bool) {
	if addressID != "" {
		for _, a := range user.Addresses {
			if a.ID == addressID {
				return a, true
			}
		}
		return models.Address{}, false
	}
	for _, a := range user.Addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(user.Addresses) > 0 {
		return user.Addresses[0], true
	}
	return models.Address{}, false
}

func loadCatalog(ctx context.Context, db *mongo.Database, items []models.CartItem) (map[primitive.ObjectID]models.Product, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	cursor, err := db.Collection("products").Find(ctx, bson.M{
		"_id":       bson.M{"$in": ids},
		"isDeleted": bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	catalog := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog, nil
}

/*
POST /api/checkout/session
- opens a hosted checkout session for the caller's cart
*/
func CreateCheckoutSession(db *mongo.Database, creator payments.SessionCreator, cfg checkout.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/checkout/session"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		address, ok := selectAddress(&user, strings.TrimSpace(req.AddressID))
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, "shipping address required")
			return
		}

		cart, err := loadCart(ctx, db, userID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		catalog, err := loadCatalog(ctx, db, cart.Items)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		params, err := checkout.BuildSessionParams(cart, catalog, address, user.Email, cfg)
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondWithError(c, http.StatusBadRequest, route, "cart is empty")
			return
		}
		var unavailable checkout.UnavailableProductError
		if errors.As(err, &unavailable) {
			c.JSON(http.StatusConflict, gin.H{"error": unavailable.Error()})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "checkout error")
			return
		}

		created, err := creator.CreateSession(ctx, params)
		if err != nil {
			log.Printf("[%s] session create failed: %v", route, err)
			respondWithError(c, http.StatusBadGateway, route, "payment provider error")
			return
		}

		log.Printf("[%s] session %s created for user %s", route, created.ID, userID.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"sessionId": created.ID,
			"url":       created.URL,
		})
	}
}

/*
GET /api/checkout/verify?sessionId=...
- finalizes a completed session into an order; safe to retry
*/
func VerifyCheckout(db *mongo.Database, finalizer *checkout.Finalizer, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/checkout/verify"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		order, err := finalizer.Finalize(ctx, userID, strings.TrimSpace(c.Query("sessionId")))
		if err != nil {
			respondFinalizeError(c, route, err)
			return
		}

		// clearing the cart is best-effort; the order is already durable
		if _, err := db.Collection("carts").UpdateOne(
			ctx,
			bson.M{"userId": userID},
			bson.M{"$set": bson.M{"items": []models.CartItem{}, "updatedAt": time.Now()}},
		); err != nil {
			log.Printf("[%s] cart clear failed: %v", route, err)
		}

		publisher.OrderCreated(c.Request.Context(), order)

		log.Printf("[%s] order %s finalized from session %s", route, order.ID.Hex(), order.Payment.SessionID)
		c.JSON(http.StatusOK, order)
	}
}

func respondFinalizeError(c *gin.Context, route string, err error) {
	var malformed checkout.MalformedSessionError
	if errors.As(err, &malformed) {
		respondWithError(c, http.StatusBadRequest, route, malformed.Error())
		return
	}
	if errors.Is(err, payments.ErrSessionNotFound) {
		respondWithError(c, http.StatusNotFound, route, "payment session not found")
		return
	}
	var missing checkout.ProductMissingError
	if errors.As(err, &missing) {
		respondWithError(c, http.StatusNotFound, route, missing.Error())
		return
	}
	var insufficient checkout.InsufficientStockError
	if errors.As(err, &insufficient) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     insufficient.Error(),
			"productId": insufficient.ProductID.Hex(),
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
		return
	}

	log.Printf("[%s] finalize failed: %v", route, err)
	respondWithError(c, http.StatusInternalServerError, route, "checkout verification failed")
}
