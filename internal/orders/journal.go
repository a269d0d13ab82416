package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const PendingOrdersTopic = "storefront-pending-orders"

// PendingOrder is an order confirmed locally that the order service has not
// seen yet.
type PendingOrder struct {
	LocalID    string              `json:"local_id"`
	Request    domain.OrderRequest `json:"request"`
	RecordedAt time.Time           `json:"recorded_at"`
}

type Journal interface {
	Record(ctx context.Context, order PendingOrder) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaJournal publishes pending orders keyed by local ID.
type KafkaJournal struct {
	writer messageWriter
}

func NewKafkaJournal(brokers ...string) *KafkaJournal {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  PendingOrdersTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaJournal{writer: w}
}

func (j *KafkaJournal) Record(ctx context.Context, order PendingOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal pending order: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.LocalID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order.pending")},
		},
	}
	if err := j.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish pending order %s: %w", order.LocalID, err)
	}
	return nil
}

func (j *KafkaJournal) Close() error {
	return j.writer.Close()
}
