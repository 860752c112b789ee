// Package events publishes committed order changes to a message broker so
// other systems (kitchen displays, analytics) can follow the order stream.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/kiwari-pos/orderdesk/internal/service"
)

const publishTimeout = 5 * time.Second

// Message is the wire form of an order event.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	Type           string           `json:"type"`
	OccurredAt     time.Time        `json:"occurred_at"`
	Order          *model.Order     `json:"order,omitempty"`
	PreviousStatus enum.OrderStatus `json:"previous_status,omitempty"`
}

// NewMessage wraps ev with a fresh id. Bulk events carry no order.
func NewMessage(ev service.Event) Message {
	msg := Message{
		ID:             uuid.New(),
		Type:           string(ev.Type),
		OccurredAt:     ev.OccurredAt,
		PreviousStatus: ev.Previous,
	}
	if ev.Order.ID != 0 {
		o := ev.Order.Clone()
		msg.Order = &o
	}
	return msg
}

// publishContext detaches from the caller's cancellation since the mutation
// has already committed, but still bounds the wait on the broker.
func publishContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
