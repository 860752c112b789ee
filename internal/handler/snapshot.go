package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/rs/zerolog"
)

// Refresher exposes polling state and a synchronous refresh.
// Satisfied by *refresh.Controller; narrow interface for testability.
type Refresher interface {
	SnapshotReader
	Refresh(ctx context.Context) error
}

// SnapshotHandler reports on and triggers snapshot refreshes.
type SnapshotHandler struct {
	refresher Refresher
	log       zerolog.Logger
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(refresher Refresher, log zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{refresher: refresher, log: log}
}

// RegisterRoutes registers snapshot endpoints. Expected to be mounted at /snapshot.
func (h *SnapshotHandler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.Status)
	r.Post("/refresh", h.Refresh)
}

type snapshotStatusResponse struct {
	Available           bool       `json:"available"`
	Stale               bool       `json:"stale"`
	Generation          uint64     `json:"generation"`
	OrderCount          int        `json:"order_count"`
	FetchedAt           *time.Time `json:"fetched_at"`
	InFlight            bool       `json:"in_flight"`
	LastSuccess         *time.Time `json:"last_success"`
	NextAttempt         *time.Time `json:"next_attempt"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           *string    `json:"last_error"`
}

// Status handles GET /snapshot/status.
func (h *SnapshotHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.status())
}

// Refresh handles POST /snapshot/refresh. It polls synchronously and reports
// the resulting state. A failed poll keeps the previous snapshot.
func (h *SnapshotHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.refresher.Refresh(r.Context())
	switch {
	case err == nil:
		writeJSON(w, r, http.StatusOK, h.status())
	case errors.Is(err, refresh.ErrSuperseded):
		// A newer poll is already running and will publish.
		writeJSON(w, r, http.StatusAccepted, h.status())
	default:
		h.log.Warn().Err(err).Msg("manual refresh failed")
		writeJSON(w, r, http.StatusServiceUnavailable, h.status())
	}
}

func (h *SnapshotHandler) status() snapshotStatusResponse {
	snap, state, ok := h.refresher.Current()
	resp := snapshotStatusResponse{
		Available:           ok,
		Stale:               state.Stale(),
		Generation:          state.Generation,
		InFlight:            state.InFlight,
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastSuccess:         timePtr(state.LastSuccess),
		NextAttempt:         timePtr(state.NextAttempt),
	}
	if ok {
		resp.Generation = snap.Generation
		resp.OrderCount = len(snap.Orders)
		resp.FetchedAt = timePtr(snap.FetchedAt)
	}
	if state.LastError != "" {
		msg := state.LastError
		resp.LastError = &msg
	}
	return resp
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
