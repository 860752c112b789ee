package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/rs/zerolog"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (model.Order, error)
	Get(ctx context.Context, id int64) (model.Order, error)
	ListOrders(ctx context.Context, f service.Filter) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id int64, next enum.OrderStatus) (model.Order, error)
	Advance(ctx context.Context, id int64) (model.Order, error)
	CancelOrder(ctx context.Context, id int64, reason, cancelledBy string) (model.Order, error)
	CountsByStatus(ctx context.Context, statuses ...enum.OrderStatus) (map[enum.OrderStatus]int, error)
}

// OrderHandler handles order and queue endpoints.
type OrderHandler struct {
	svc OrderServicer
	loc *time.Location
	log zerolog.Logger
}

// NewOrderHandler creates a new OrderHandler. Date filters are read as
// calendar days in loc.
func NewOrderHandler(svc OrderServicer, loc *time.Location, log zerolog.Logger) *OrderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderHandler{svc: svc, loc: loc, log: log}
}

// RegisterRoutes registers order endpoints. Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/advance", h.Advance)
	r.Post("/{id}/cancel", h.Cancel)
}

// RegisterQueueRoutes registers queue badge endpoints. Expected to be mounted at /queue.
func (h *OrderHandler) RegisterQueueRoutes(r chi.Router) {
	r.Get("/counts", h.QueueCounts)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType    string                   `json:"order_type"`
	CashierName  string                   `json:"cashier_name"`
	CustomerName string                   `json:"customer_name"`
	TableNumber  *int                     `json:"table_number"`
	Items        []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type cancelOrderRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelled_by"`
}

type orderResponse struct {
	ID                 int64               `json:"id"`
	OrderType          string              `json:"order_type"`
	Status             string              `json:"status"`
	CustomerName       *string             `json:"customer_name"`
	TableNumber        *int                `json:"table_number"`
	CashierName        string              `json:"cashier_name"`
	Total              string              `json:"total"`
	ItemCount          int                 `json:"item_count"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          *time.Time          `json:"updated_at"`
	CancellationReason *string             `json:"cancellation_reason"`
	CancelledBy        *string             `json:"cancelled_by"`
	CancelledAt        *time.Time          `json:"cancelled_at"`
	Items              []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type queueCountsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OrderType == "" {
		writeError(w, r, http.StatusBadRequest, "order_type is required")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one item is required")
		return
	}

	items := make([]model.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.LineItem{ItemID: it.ItemID, Quantity: it.Quantity}
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Items:        items,
		OrderType:    req.OrderType,
		CashierName:  req.CashierName,
		CustomerName: req.CustomerName,
		TableNumber:  req.TableNumber,
	})
	if err != nil {
		writeServiceError(w, r, h.log, "create order", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderResponse(order))
}

// List handles GET /orders. Supports repeated or comma-separated status,
// start_date/end_date (inclusive calendar days) and sort=oldest|newest.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	from, to, err := parseDateFilter(r, h.loc)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sortOrder := r.URL.Query().Get("sort")
	if sortOrder != "" && sortOrder != "oldest" && sortOrder != "newest" {
		writeError(w, r, http.StatusBadRequest, "sort must be oldest or newest")
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), service.Filter{Statuses: statuses, From: from, To: to})
	if err != nil {
		writeServiceError(w, r, h.log, "list orders", err)
		return
	}

	if sortOrder == "oldest" {
		service.SortOldestFirst(orders)
	} else {
		service.SortNewestFirst(orders)
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, "get order", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(order))
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, r, http.StatusBadRequest, "status is required")
		return
	}

	next, err := enum.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.svc.UpdateStatus(r.Context(), id, next)
	if err != nil {
		writeServiceError(w, r, h.log, "update order status", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(order))
}

// Advance handles POST /orders/{id}/advance.
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Advance(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, "advance order", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(order))
}

// Cancel handles POST /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), id, req.Reason, req.CancelledBy)
	if err != nil {
		writeServiceError(w, r, h.log, "cancel order", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toOrderResponse(order))
}

// QueueCounts handles GET /queue/counts. With no status parameter every
// status is counted.
func (h *OrderHandler) QueueCounts(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(statuses) == 0 {
		statuses = enum.AllOrderStatuses
	}

	counts, err := h.svc.CountsByStatus(r.Context(), statuses...)
	if err != nil {
		writeServiceError(w, r, h.log, "count orders", err)
		return
	}
	resp := queueCountsResponse{Counts: make(map[string]int, len(statuses))}
	for _, s := range statuses {
		resp.Counts[string(s)] = counts[s]
		resp.Total += counts[s]
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// --- Helpers ---

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid order ID")
		return 0, false
	}
	return id, true
}

func parseStatuses(r *http.Request) ([]enum.OrderStatus, error) {
	var out []enum.OrderStatus
	seen := make(map[enum.OrderStatus]bool)
	for _, raw := range r.URL.Query()["status"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			s, err := enum.ParseOrderStatus(part)
			if err != nil {
				return nil, err
			}
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// parseDateFilter reads optional start_date and end_date as calendar days in
// loc. The returned end is exclusive (midnight after end_date). Zero times
// mean unbounded.
func parseDateFilter(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	var from, to time.Time

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		from = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		to = t.AddDate(0, 0, 1)
	}

	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must not be after end_date")
	}
	return from, to, nil
}

func toOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		OrderType:   string(o.OrderType),
		Status:      string(o.Status),
		TableNumber: o.TableNumber,
		CashierName: o.CashierName,
		Total:       money(o.Total),
		ItemCount:   o.Quantity(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CancelledAt: o.CancelledAt,
		Items:       make([]orderItemResponse, len(o.Items)),
	}
	if o.CustomerName != "" {
		name := o.CustomerName
		resp.CustomerName = &name
	}
	if o.CancellationReason != "" {
		reason := o.CancellationReason
		resp.CancellationReason = &reason
	}
	if o.CancelledBy != "" {
		by := o.CancelledBy
		resp.CancelledBy = &by
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{ItemID: it.ItemID, Quantity: it.Quantity}
	}
	return resp
}
