package events

import (
	"context"

	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/rs/zerolog"
)

// DefaultQueueSize bounds the events waiting for the broker.
const DefaultQueueSize = 256

type queuedEvent struct {
	ctx context.Context
	ev  service.Event
}

// Queue hands order events to a publisher from its own goroutine so order
// mutations never wait on broker I/O. When the buffer is full the event is
// dropped and logged.
type Queue struct {
	next   service.Notifier
	events chan queuedEvent
	log    zerolog.Logger
}

// NewQueue buffers up to size events for next. Run must be started.
func NewQueue(next service.Notifier, size int, log zerolog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		next:   next,
		events: make(chan queuedEvent, size),
		log:    log.With().Str("component", "event_queue").Logger(),
	}
}

// OrderChanged enqueues ev without blocking.
func (q *Queue) OrderChanged(ctx context.Context, ev service.Event) {
	select {
	case q.events <- queuedEvent{ctx: context.WithoutCancel(ctx), ev: ev}:
	default:
		q.log.Warn().Str("type", string(ev.Type)).Int64("order_id", ev.Order.ID).Msg("event queue full, dropping order event")
	}
}

// Run publishes queued events until ctx is done, then flushes what is
// already buffered.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case item := <-q.events:
			q.next.OrderChanged(item.ctx, item.ev)
		case <-ctx.Done():
			q.flush()
			return nil
		}
	}
}

func (q *Queue) flush() {
	for {
		select {
		case item := <-q.events:
			q.next.OrderChanged(item.ctx, item.ev)
		default:
			return
		}
	}
}
