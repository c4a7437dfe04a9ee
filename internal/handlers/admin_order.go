package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/events"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

type orderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

/*
GET /admin/api/orders
- paginated; filterable by status, paymentStatus and userId
*/
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			if !models.IsOrderStatus(status) {
				respondWithError(c, http.StatusBadRequest, route, "invalid status")
				return
			}
			filter["status"] = status
		}
		if ps := strings.TrimSpace(c.Query("paymentStatus")); ps != "" {
			filter["paymentStatus"] = ps
		}
		if userHex := strings.TrimSpace(c.Query("userId")); userHex != "" {
			userID, err := primitive.ObjectIDFromHex(userHex)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "invalid userId")
				return
			}
			filter["userId"] = userID
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetSkip((page - 1) * limit).
			SetLimit(limit)

		cursor, err := db.Collection("orders").Find(ctx, filter, opts)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer cursor.Close(ctx)

		orders := make([]models.Order, 0)
		if err := cursor.All(ctx, &orders); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "decode error")
			return
		}

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data":  orders,
			"page":  page,
			"limit": limit,
			"total": total,
		})
	}
}

/*
PUT /admin/api/orders/:id/status
- enforces the fulfilment state machine and appends to statusHistory
*/
func UpdateOrderStatus(db *mongo.Database, publisher events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		if !models.IsOrderStatus(req.Status) {
			respondWithError(c, http.StatusBadRequest, route, "invalid status")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var order models.Order
		err = db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		if !models.CanTransitionOrderStatus(order.Status, req.Status) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "cannot transition from " + order.Status + " to " + req.Status,
			})
			return
		}

		now := time.Now()
		change := models.OrderStatusChange{
			Status: req.Status,
			Note:   strings.TrimSpace(req.Note),
			At:     now,
		}

		var updated models.Order
		err = db.Collection("orders").FindOneAndUpdate(
			ctx,
			// status recheck guards against a concurrent admin update
			bson.M{"_id": orderID, "status": order.Status},
			bson.M{
				"$set":  bson.M{"status": req.Status, "updatedAt": now},
				"$push": bson.M{"statusHistory": change},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusConflict, gin.H{"error": "order status changed concurrently"})
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[ORDER] [INFO] order %s moved %s -> %s", orderID.Hex(), order.Status, req.Status)
		publisher.OrderStatusUpdated(c.Request.Context(), &updated, order.Status)

		c.JSON(http.StatusOK, updated)
	}
}

/*
DELETE /admin/api/orders/:id
- only cancelled orders may be removed
*/
func DeleteOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:id"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		result, err := db.Collection("orders").DeleteOne(ctx, bson.M{
			"_id":    orderID,
			"status": models.OrderStatusCancelled,
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		if result.DeletedCount == 0 {
			count, err := db.Collection("orders").CountDocuments(ctx, bson.M{"_id": orderID})
			if err == nil && count > 0 {
				c.JSON(http.StatusConflict, gin.H{"error": "only cancelled orders can be deleted"})
				return
			}
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}

		c.Status(http.StatusNoContent)
	}
}
