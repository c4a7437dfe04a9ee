package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
)

/*
POST /api/webhooks/stripe
- corroborates payment settlement out of band; finalization itself happens on
  the verify endpoint, so an event for an unknown session is acknowledged and
  picked up when the order appears
*/
func StripeWebhook(db *mongo.Database, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/webhooks/stripe"
		defer handlePanic(c, route)

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<16))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "cannot read body")
			return
		}

		event, err := payments.ParseWebhookEvent(payload, c.GetHeader("Stripe-Signature"), webhookSecret)
		if err != nil {
			log.Printf("[%s] signature verification failed: %v", route, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		switch event.Type {
		case payments.EventCheckoutCompleted:
			markOrderPayment(ctx, db, route, bson.M{"payment.sessionId": event.SessionID}, models.PaymentStatusPaid)
		case payments.EventPaymentFailed:
			markOrderPayment(ctx, db, route, bson.M{"payment.paymentIntentId": event.PaymentIntentID}, models.PaymentStatusFailed)
		default:
			log.Printf("[%s] ignoring event type %s", route, event.Type)
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func markOrderPayment(ctx context.Context, db *mongo.Database, route string, filter bson.M, status string) {
	now := time.Now()
	set := bson.M{"paymentStatus": status, "updatedAt": now}
	if status == models.PaymentStatusPaid {
		set["paidAt"] = now
	}

	// paid is terminal; a late failure event must not undo settlement
	filter["paymentStatus"] = bson.M{"$ne": models.PaymentStatusPaid}

	result, err := db.Collection("orders").UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		log.Printf("[%s] order update failed: %v", route, err)
		return
	}
	if result.MatchedCount == 0 {
		log.Printf("[%s] no order matched for %s event", route, status)
	}
}
