// Package events publishes order lifecycle notifications to Kafka. Publishing
// is best-effort: a broker fault is logged and never fails the request that
// produced the event.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
)

const (
	TopicOrderCreated       = "order-created"
	TopicOrderStatusUpdated = "order-status-updated"
)

type Publisher interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderStatusUpdated(ctx context.Context, order *models.Order, previous string)
	Close() error
}

type orderCreatedEvent struct {
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId"`
	Total         int64     `json:"total"`
	PaymentStatus string    `json:"paymentStatus"`
	CreatedAt     time.Time `json:"createdAt"`
}

type orderStatusEvent struct {
	OrderID        string    `json:"orderId"`
	PreviousStatus string    `json:"previousStatus"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// KafkaPublisher holds one writer per topic.
type KafkaPublisher struct {
	created *kafka.Writer
	status  *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		created: newWriter(brokers, TopicOrderCreated),
		status:  newWriter(brokers, TopicOrderStatusUpdated),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *KafkaPublisher) OrderCreated(ctx context.Context, order *models.Order) {
	publish(ctx, p.created, order.ID.Hex(), orderCreatedEvent{
		OrderID:       order.ID.Hex(),
		UserID:        order.UserID.Hex(),
		Total:         order.Total,
		PaymentStatus: order.PaymentStatus,
		CreatedAt:     order.CreatedAt,
	})
}

func (p *KafkaPublisher) OrderStatusUpdated(ctx context.Context, order *models.Order, previous string) {
	publish(ctx, p.status, order.ID.Hex(), orderStatusEvent{
		OrderID:        order.ID.Hex(),
		PreviousStatus: previous,
		Status:         order.Status,
		UpdatedAt:      order.UpdatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	if err := p.created.Close(); err != nil {
		return err
	}
	return p.status.Close()
}

func publish(ctx context.Context, w *kafka.Writer, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		log.Println("[EVENTS] [ERROR] marshal failed:", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := w.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		log.Printf("[EVENTS] [ERROR] publish to %s failed: %v", w.Topic, err)
	}
}

// NopPublisher is wired when KAFKA_BROKERS is unset.
type NopPublisher struct{}

func (NopPublisher) OrderCreated(ctx context.Context, order *models.Order)                    {}
func (NopPublisher) OrderStatusUpdated(ctx context.Context, order *models.Order, prev string) {}
func (NopPublisher) Close() error                                                             { return nil }
