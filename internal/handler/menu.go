package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/rs/zerolog"
)

// MenuHandler serves the menu terminals build carts from.
type MenuHandler struct {
	menu catalog.Source
	log  zerolog.Logger
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(menu catalog.Source, log zerolog.Logger) *MenuHandler {
	return &MenuHandler{menu: menu, log: log}
}

// RegisterRoutes registers menu endpoints. Expected to be mounted at /menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
}

type menuItemResponse struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Price     string  `json:"price"`
	Category  *string `json:"category"`
	Available bool    `json:"available"`
}

// List handles GET /menu. available=true hides items that cannot be ordered.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.GetMenuItems(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list menu items")
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	onlyAvailable := r.URL.Query().Get("available") == "true"
	cat := catalog.New(items)

	resp := make([]menuItemResponse, 0, cat.Len())
	for _, it := range cat.Items() {
		if onlyAvailable && !it.Available {
			continue
		}
		item := menuItemResponse{
			ID:        it.ID,
			Name:      it.Name,
			Price:     money(it.Price),
			Available: it.Available,
		}
		if it.Category != "" {
			c := it.Category
			item.Category = &c
		}
		resp = append(resp, item)
	}

	writeJSON(w, r, http.StatusOK, resp)
}
