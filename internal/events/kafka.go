// Package events publishes storefront domain events.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/storefront/internal/domain/checkout"
)

// EventOrderPlaced is the value of the "event" header on order.placed messages.
const EventOrderPlaced = "order.placed"

// Writer is the subset of *kafka.Writer used by the publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ checkout.Publisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes checkout events to a Kafka topic, keyed by order id
// so every event of one order lands on the same partition.
type KafkaPublisher struct {
	w     Writer
	topic string
}

// NewKafkaWriter returns a writer for brokers that requires acknowledgement
// from all in-sync replicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		BatchTimeout:           10 * time.Millisecond,
	}
}

// NewKafkaPublisher returns a publisher writing to topic through w.
func NewKafkaPublisher(w Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: w, topic: topic}
}

// PublishOrderPlaced writes e as a single JSON message.
func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, e checkout.OrderPlaced) error {
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(e.OrderID, 10)),
		Value: encodeOrderPlaced(e),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(EventOrderPlaced)},
		},
		Time: e.PlacedAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s for order %d", EventOrderPlaced, e.OrderID)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func encodeOrderPlaced(e checkout.OrderPlaced) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("order_id")
	enc.Int64(e.OrderID)
	enc.FieldStart("user_id")
	enc.Int64(e.UserID)
	if e.CouponCode != "" {
		enc.FieldStart("coupon_code")
		enc.Str(e.CouponCode)
	}
	enc.FieldStart("item_count")
	enc.Int(e.ItemCount)
	enc.FieldStart("total_price")
	enc.Str(e.Total.StringFixed(2))
	enc.FieldStart("discount_amount")
	enc.Str(e.Discount.StringFixed(2))
	enc.FieldStart("final_price")
	enc.Str(e.Final.StringFixed(2))
	enc.FieldStart("placed_at")
	enc.Str(e.PlacedAt.UTC().Format(time.RFC3339))
	enc.ObjEnd()
	return enc.Bytes()
}
