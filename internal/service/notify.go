package service

import (
	"context"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
)

// EventType names an order store change.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
	EventOrdersCleared      EventType = "orders.cleared"
)

// Event describes a committed change. Order is a detached copy.
type Event struct {
	Type       EventType        `json:"type"`
	Order      model.Order      `json:"order"`
	Previous   enum.OrderStatus `json:"previous_status,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Notifier receives store-changed notifications after each committed write.
// Implementations must not block for long and must handle their own errors.
type Notifier interface {
	OrderChanged(ctx context.Context, ev Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) OrderChanged(context.Context, Event) {}

// Notifiers fans one event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) OrderChanged(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.OrderChanged(ctx, ev)
		}
	}
}
