package handlers

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,gte=1,lte=5"`
	Comment string `json:"comment"`
}

// recomputeRating folds a new rating into the denormalized aggregate.
func recomputeRating(average float64, count, newRating int) (float64, int) {
	total := average*float64(count) + float64(newRating)
	count++
	// round to 2 decimals to keep the stored aggregate stable
	return math.Round(total/float64(count)*100) / 100, count
}

// hasPaidOrderWithProduct backs the verified-purchase flag.
func hasPaidOrderWithProduct(ctx context.Context, db *mongo.Database, userID, productID primitive.ObjectID) (bool, error) {
	count, err := db.Collection("orders").CountDocuments(ctx, bson.M{
		"userId":           userID,
		"paymentStatus":    models.PaymentStatusPaid,
		"items.productId":  productID,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

/*
POST /api/products/:id/reviews
- one review per user per product; duplicate attempts conflict
*/
func CreateReview(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/products/:id/reviews"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req reviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var product models.Product
		err = db.Collection("products").FindOne(ctx, bson.M{
			"_id":       productID,
			"isDeleted": bson.M{"$ne": true},
		}).Decode(&product)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		var user models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		verified, err := hasPaidOrderWithProduct(ctx, db, userID, productID)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		review := models.Review{
			ProductID:        productID,
			UserID:           userID,
			UserName:         user.Name,
			Rating:           req.Rating,
			Comment:          strings.TrimSpace(req.Comment),
			VerifiedPurchase: verified,
			CreatedAt:        time.Now(),
		}

		res, err := db.Collection("reviews").InsertOne(ctx, review)
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "product already reviewed"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		review.ID, _ = res.InsertedID.(primitive.ObjectID)

		average, count := recomputeRating(product.AverageRating, product.NumReviews, req.Rating)
		if _, err := db.Collection("products").UpdateByID(ctx, productID, bson.M{
			"$set": bson.M{
				"averageRating": average,
				"numReviews":    count,
			},
		}); err != nil {
			log.Printf("[%s] rating update failed: %v", route, err)
		}

		c.JSON(http.StatusCreated, review)
	}
}

/*
GET /api/products/:id/reviews
*/
func GetProductReviews(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id/reviews"
		defer handlePanic(c, route)

		productID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("reviews").Find(ctx, bson.M{"productId": productID}, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		reviews := make([]models.Review, 0)
		if err := cursor.All(ctx, &reviews); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		c.JSON(http.StatusOK, reviews)
	}
}
