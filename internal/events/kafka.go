package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer; narrow interface for testability.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes order events to one topic keyed by order id, so
// every event of an order lands on the same partition in commit order.
type KafkaPublisher struct {
	writer MessageWriter
	log    zerolog.Logger
}

// NewKafkaWriter builds a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a KafkaPublisher over writer.
func NewKafkaPublisher(writer MessageWriter, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		log:    log.With().Str("component", "kafka_publisher").Logger(),
	}
}

// OrderChanged publishes ev. Failures are logged; the order change itself
// has already committed.
func (p *KafkaPublisher) OrderChanged(ctx context.Context, ev service.Event) {
	if err := p.Publish(ctx, NewMessage(ev)); err != nil {
		p.log.Error().Err(err).Str("type", string(ev.Type)).Int64("order_id", ev.Order.ID).Msg("publish order event")
	}
}

// Publish writes one message.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := msg.Type
	if msg.Order != nil {
		key = strconv.FormatInt(msg.Order.ID, 10)
	}

	ctx, cancel := publishContext(ctx, publishTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.Type)},
			{Key: "event_id", Value: []byte(msg.ID.String())},
		},
		Time: msg.OccurredAt,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
