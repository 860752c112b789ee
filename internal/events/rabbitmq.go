package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/service"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrNack is returned when the broker refuses a message.
var ErrNack = errors.New("publish NACK from broker")

// confirmBuffer holds late confirms between publishes so the connection's
// reader never blocks on them.
const confirmBuffer = 64

// Publisher is satisfied by *amqp.Channel; narrow interface for testability.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitPublisher publishes order events to a fanout exchange with publisher
// confirms. Publishes are serialized and confirms are matched by delivery
// tag, so a confirm that arrives after its publish timed out is skipped.
type RabbitPublisher struct {
	ch       Publisher
	acks     <-chan amqp.Confirmation
	exchange string
	timeout  time.Duration
	closers  []func() error
	log      zerolog.Logger

	mu        sync.Mutex
	published uint64 // delivery tag of the last accepted publish
}

// NewRabbitPublisher wraps an already confirmed channel.
func NewRabbitPublisher(ch Publisher, acks <-chan amqp.Confirmation, exchange string, log zerolog.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		ch:       ch,
		acks:     acks,
		exchange: exchange,
		timeout:  publishTimeout,
		log:      log.With().Str("component", "rabbitmq_publisher").Logger(),
	}
}

// DialRabbit connects to url, declares a durable fanout exchange and enables
// publisher confirms.
func DialRabbit(url, exchange string, log zerolog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))

	p := NewRabbitPublisher(ch, acks, exchange, log)
	p.closers = []func() error{ch.Close, conn.Close}
	return p, nil
}

// OrderChanged publishes ev. Failures are logged; the order change itself
// has already committed.
func (p *RabbitPublisher) OrderChanged(ctx context.Context, ev service.Event) {
	if err := p.Publish(ctx, NewMessage(ev)); err != nil {
		p.log.Error().Err(err).Str("type", string(ev.Type)).Int64("order_id", ev.Order.ID).Msg("publish order event")
	}
}

// Publish sends one persistent message and waits for the broker's confirm.
func (p *RabbitPublisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := publishContext(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, msg.Type, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    msg.ID.String(),
		Type:         msg.Type,
		Timestamp:    msg.OccurredAt.UTC(),
		Body:         body,
	}); err != nil {
		return err
	}
	p.published++
	tag := p.published

	for {
		select {
		case conf, ok := <-p.acks:
			if !ok {
				return errors.New("rabbitmq channel closed")
			}
			if conf.DeliveryTag < tag {
				p.log.Warn().Uint64("delivery_tag", conf.DeliveryTag).Bool("ack", conf.Ack).Msg("late confirm for an abandoned publish")
				continue
			}
			if !conf.Ack {
				return ErrNack
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close closes the channel and connection opened by DialRabbit.
func (p *RabbitPublisher) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
