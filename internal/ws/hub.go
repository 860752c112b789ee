package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Views a client can subscribe to. Each view is a broadcast room.
const (
	ViewQueue     = "queue"
	ViewKitchen   = "kitchen"
	ViewDashboard = "dashboard"
)

// AllViews lists the rooms order events are broadcast to.
var AllViews = []string{ViewQueue, ViewKitchen, ViewDashboard}

// ValidView reports whether v names a known room.
func ValidView(v string) bool {
	for _, known := range AllViews {
		if v == known {
			return true
		}
	}
	return false
}

// Event represents a WebSocket message to be broadcast
type Event struct {
	ID      uuid.UUID       `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// viewEvent routes an event to one room
type viewEvent struct {
	View  string
	Event Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by view
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *viewEvent
	done       chan struct{}

	log zerolog.Logger
	mu  sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *viewEvent, 256),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws_hub").Logger(),
	}
}

// Run starts the hub's main loop and returns when ctx is done. Every
// connected client's send channel is closed on exit.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for view, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, view)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.view] == nil {
				h.rooms[client.view] = make(map[*Client]bool)
			}
			h.rooms[client.view][client] = true
			h.mu.Unlock()
			h.log.Debug().Str("client_id", client.id.String()).Str("view", client.view).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.Event)
			if err != nil {
				h.log.Error().Err(err).Str("type", ev.Event.Type).Msg("marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[ev.View] {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it
					h.log.Warn().Str("client_id", client.id.String()).Msg("ws send buffer full, dropping client")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.view]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.view)
	}
}

// Broadcast sends an event to all clients watching view. It drops the event
// once the hub has stopped.
func (h *Hub) Broadcast(view string, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	select {
	case h.broadcast <- &viewEvent{View: view, Event: event}:
	case <-h.done:
	}
}

// ClientCount returns the number of clients watching view.
func (h *Hub) ClientCount(view string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[view])
}
