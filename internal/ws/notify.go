package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/kiwari-pos/orderdesk/internal/service"
)

// EventSnapshotRefreshed tells dashboards new aggregates are available.
const EventSnapshotRefreshed = "snapshot.refreshed"

type snapshotPayload struct {
	Generation uint64    `json:"generation"`
	OrderCount int       `json:"order_count"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// OrderChanged pushes a committed order change to every view.
func (h *Hub) OrderChanged(ctx context.Context, ev service.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", string(ev.Type)).Msg("marshal order event")
		return
	}
	id := uuid.New()
	for _, view := range AllViews {
		h.Broadcast(view, Event{ID: id, Type: string(ev.Type), Payload: payload})
	}
}

// ForwardSnapshots announces every snapshot from updates to the dashboard
// view until ctx is done or updates is closed.
func (h *Hub) ForwardSnapshots(ctx context.Context, updates <-chan refresh.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(snapshotPayload{
				Generation: snap.Generation,
				OrderCount: len(snap.Orders),
				FetchedAt:  snap.FetchedAt,
			})
			if err != nil {
				h.log.Error().Err(err).Msg("marshal snapshot event")
				continue
			}
			h.Broadcast(ViewDashboard, Event{Type: EventSnapshotRefreshed, Payload: payload})
		}
	}
}
