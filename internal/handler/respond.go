package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kiwari-pos/orderdesk/internal/lifecycle"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// writeJSON logs encode failures through the request logger installed by
// hlog.NewHandler.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps order service errors to HTTP statuses. Unknown
// errors are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCart),
		errors.Is(err, service.ErrInvalidOrderType),
		errors.Is(err, service.ErrMissingCashier),
		errors.Is(err, service.ErrInvalidTable),
		errors.Is(err, service.ErrEmptyReason):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, service.ErrConcurrentUpdate):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg(op)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
