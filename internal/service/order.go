package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/docstore"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/lifecycle"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const maxStatusUpdateRetries = 3

// Errors returned by the order service.
var (
	ErrInvalidCart      = errors.New("invalid cart")
	ErrInvalidOrderType = errors.New("invalid order_type")
	ErrMissingCashier   = errors.New("cashier_name is required")
	ErrInvalidTable     = errors.New("table_number must be > 0")
	ErrNotFound         = errors.New("order not found")
	ErrEmptyReason      = errors.New("cancellation reason is required")
	ErrPersistence      = errors.New("persistence failure")
	ErrConcurrentUpdate = errors.New("order status changed, please retry")
)

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	Items        []model.LineItem
	OrderType    string
	CashierName  string
	CustomerName string
	TableNumber  *int
}

// Filter narrows ListOrders. Zero values match everything.
// From is inclusive, To is exclusive.
type Filter struct {
	Statuses []enum.OrderStatus
	From     time.Time
	To       time.Time
}

func (f Filter) match(o model.Order) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// OrderService is the single source of truth for orders. Every creation and
// mutation goes through it so invariants hold whichever terminal calls.
type OrderService struct {
	store    docstore.Store
	menu     catalog.Source
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewOrderService creates a new OrderService. notifier may be nil.
func NewOrderService(store docstore.Store, menu catalog.Source, notifier Notifier, log zerolog.Logger) *OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderService{
		store:    store,
		menu:     menu,
		notifier: notifier,
		log:      log.With().Str("component", "order_service").Logger(),
		now:      time.Now,
	}
}

// CreateOrder validates the cart, prices it from the current catalog and
// stores a pending order under the next store-allocated id.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	orderType, err := enum.ParseOrderType(req.OrderType)
	if err != nil {
		return model.Order{}, ErrInvalidOrderType
	}

	cashier := strings.TrimSpace(req.CashierName)
	if cashier == "" {
		return model.Order{}, ErrMissingCashier
	}

	if req.TableNumber != nil && *req.TableNumber <= 0 {
		return model.Order{}, ErrInvalidTable
	}

	lines, err := normalizeCart(req.Items)
	if err != nil {
		return model.Order{}, err
	}

	cat, err := catalog.Load(ctx, s.menu)
	if err != nil {
		return model.Order{}, persistErr("load catalog", err)
	}

	// total is frozen here; later price edits never touch it.
	total := decimal.Zero
	for i, li := range lines {
		item, ok := cat.Lookup(li.ItemID)
		if !ok {
			return model.Order{}, fmt.Errorf("items[%d]: %w: unknown item %d", i, ErrInvalidCart, li.ItemID)
		}
		if !item.Available {
			return model.Order{}, fmt.Errorf("items[%d]: %w: %s is unavailable", i, ErrInvalidCart, item.Name)
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}

	id, err := s.store.NextID(ctx, enum.CollectionOrders)
	if err != nil {
		return model.Order{}, persistErr("allocate order id", err)
	}

	order := model.Order{
		ID:           id,
		Items:        lines,
		OrderType:    orderType,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Total:        total,
		CashierName:  cashier,
		Status:       enum.OrderStatusPending,
		CreatedAt:    s.now(),
	}
	if orderType == enum.OrderTypeDineIn && req.TableNumber != nil {
		n := *req.TableNumber
		order.TableNumber = &n
	}

	data, err := json.Marshal(order)
	if err != nil {
		return model.Order{}, fmt.Errorf("encode order: %w", err)
	}
	if _, err := s.store.Create(ctx, enum.CollectionOrders, id, data); err != nil {
		return model.Order{}, persistErr("create order", err)
	}

	s.log.Info().
		Int64("order_id", id).
		Str("order_type", string(orderType)).
		Str("cashier", cashier).
		Str("total", total.StringFixed(2)).
		Msg("order created")

	s.notify(ctx, Event{Type: EventOrderCreated, Order: order.Clone(), OccurredAt: order.CreatedAt})
	return order, nil
}

// UpdateStatus moves an order to next. Only forward single-step moves are
// accepted. A legal cancellation still fails with ErrEmptyReason since it
// must go through CancelOrder so a reason is recorded.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, next enum.OrderStatus) (model.Order, error) {
	return s.transition(ctx, id, EventOrderStatusChanged, func(o *model.Order, _ time.Time) error {
		if err := lifecycle.ValidateTransition(o.Status, next); err != nil {
			return err
		}
		if next == enum.OrderStatusCancelled {
			return fmt.Errorf("%w: use cancel", ErrEmptyReason)
		}
		o.Status = next
		return nil
	})
}

// Advance moves an order one step along the forward chain.
func (s *OrderService) Advance(ctx context.Context, id int64) (model.Order, error) {
	return s.transition(ctx, id, EventOrderStatusChanged, func(o *model.Order, _ time.Time) error {
		next, err := lifecycle.Next(o.Status)
		if err != nil {
			return err
		}
		o.Status = next
		return nil
	})
}

// CancelOrder cancels any order that is not completed or already cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, id int64, reason, cancelledBy string) (model.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Order{}, ErrEmptyReason
	}
	cancelledBy = strings.TrimSpace(cancelledBy)

	return s.transition(ctx, id, EventOrderCancelled, func(o *model.Order, now time.Time) error {
		if err := lifecycle.CanCancel(o.Status); err != nil {
			return err
		}
		o.Status = enum.OrderStatusCancelled
		o.CancellationReason = reason
		o.CancelledBy = cancelledBy
		o.CancelledAt = &now
		return nil
	})
}

// transition reads the latest record, applies the change and writes it back
// guarded by the record revision. A lost race re-reads and re-validates
// instead of overwriting the winner.
func (s *OrderService) transition(ctx context.Context, id int64, evType EventType, apply func(o *model.Order, now time.Time) error) (model.Order, error) {
	for attempt := 0; attempt < maxStatusUpdateRetries; attempt++ {
		order, rev, err := s.load(ctx, id)
		if err != nil {
			return model.Order{}, err
		}

		previous := order.Status
		now := s.now()
		if err := apply(&order, now); err != nil {
			return model.Order{}, err
		}
		order.UpdatedAt = &now

		data, err := json.Marshal(order)
		if err != nil {
			return model.Order{}, fmt.Errorf("encode order: %w", err)
		}

		_, err = s.store.Update(ctx, enum.CollectionOrders, id, data, rev)
		if err == nil {
			s.log.Info().
				Int64("order_id", id).
				Str("from", string(previous)).
				Str("to", string(order.Status)).
				Msg("order status changed")
			s.notify(ctx, Event{Type: evType, Order: order.Clone(), Previous: previous, OccurredAt: now})
			return order, nil
		}
		if errors.Is(err, docstore.ErrConflict) {
			s.log.Debug().Int64("order_id", id).Int("attempt", attempt+1).Msg("order revision conflict, retrying")
			continue
		}
		if errors.Is(err, docstore.ErrNotFound) {
			return model.Order{}, ErrNotFound
		}
		return model.Order{}, persistErr("update order", err)
	}
	return model.Order{}, ErrConcurrentUpdate
}

// Get returns one order.
func (s *OrderService) Get(ctx context.Context, id int64) (model.Order, error) {
	order, _, err := s.load(ctx, id)
	return order, err
}

// ListOrders returns a detached copy of the orders matching f, in store order.
func (s *OrderService) ListOrders(ctx context.Context, f Filter) ([]model.Order, error) {
	recs, err := s.store.List(ctx, enum.CollectionOrders)
	if err != nil {
		return nil, persistErr("list orders", err)
	}
	out := make([]model.Order, 0, len(recs))
	for _, rec := range recs {
		o, err := decodeOrder(rec)
		if err != nil {
			return nil, err
		}
		if f.match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

// CountByStatus counts orders currently in any of statuses.
func (s *OrderService) CountByStatus(ctx context.Context, statuses ...enum.OrderStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	orders, err := s.ListOrders(ctx, Filter{Statuses: statuses})
	if err != nil {
		return 0, err
	}
	return len(orders), nil
}

// CountsByStatus counts orders per status from a single listing, so every
// count reflects the same store state. Each requested status is present in
// the result, zero when no order has it.
func (s *OrderService) CountsByStatus(ctx context.Context, statuses ...enum.OrderStatus) (map[enum.OrderStatus]int, error) {
	counts := make(map[enum.OrderStatus]int, len(statuses))
	if len(statuses) == 0 {
		return counts, nil
	}
	for _, st := range statuses {
		counts[st] = 0
	}
	orders, err := s.ListOrders(ctx, Filter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts, nil
}

// ClearAll deletes every order. Ids keep counting from where they were so
// event consumers never see one id used for two orders. Administrative only.
func (s *OrderService) ClearAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx, enum.CollectionOrders); err != nil {
		return persistErr("clear orders", err)
	}
	s.log.Warn().Msg("all orders cleared")
	s.notify(ctx, Event{Type: EventOrdersCleared, OccurredAt: s.now()})
	return nil
}

func (s *OrderService) load(ctx context.Context, id int64) (model.Order, int64, error) {
	recs, err := s.store.List(ctx, enum.CollectionOrders)
	if err != nil {
		return model.Order{}, 0, persistErr("list orders", err)
	}
	for _, rec := range recs {
		if rec.ID != id {
			continue
		}
		o, err := decodeOrder(rec)
		if err != nil {
			return model.Order{}, 0, err
		}
		return o, rec.Rev, nil
	}
	return model.Order{}, 0, ErrNotFound
}

func (s *OrderService) notify(ctx context.Context, ev Event) {
	s.notifier.OrderChanged(ctx, ev)
}

// --- Helpers ---

// normalizeCart rejects empty carts and non-positive quantities and merges
// repeated item ids, keeping first-seen order.
func normalizeCart(items []model.LineItem) ([]model.LineItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}
	index := make(map[int64]int, len(items))
	lines := make([]model.LineItem, 0, len(items))
	for i, li := range items {
		if li.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w: quantity must be > 0", i, ErrInvalidCart)
		}
		if idx, ok := index[li.ItemID]; ok {
			lines[idx].Quantity += li.Quantity
			continue
		}
		index[li.ItemID] = len(lines)
		lines = append(lines, li)
	}
	return lines, nil
}

func decodeOrder(rec docstore.Record) (model.Order, error) {
	var o model.Order
	if err := json.Unmarshal(rec.Data, &o); err != nil {
		return model.Order{}, fmt.Errorf("%w: decode order %d: %w", ErrPersistence, rec.ID, err)
	}
	o.ID = rec.ID
	return o, nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// SortOldestFirst orders by creation time ascending, as queue views show them.
func SortOldestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

// SortNewestFirst orders by creation time descending, as history views show them.
func SortNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
