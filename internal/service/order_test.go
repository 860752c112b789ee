package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/docstore"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/lifecycle"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// hookStore wraps a Memory store and lets tests intercept calls.
type hookStore struct {
	*docstore.Memory
	beforeUpdate func(collection string, id int64)
	listErr      error
	nextIDErr    error
	listCalls    int
}

func (h *hookStore) Update(ctx context.Context, collection string, id int64, data []byte, rev int64) (docstore.Record, error) {
	if h.beforeUpdate != nil {
		hook := h.beforeUpdate
		h.beforeUpdate = nil
		hook(collection, id)
	}
	return h.Memory.Update(ctx, collection, id, data, rev)
}

func (h *hookStore) List(ctx context.Context, collection string) ([]docstore.Record, error) {
	h.listCalls++
	if h.listErr != nil {
		return nil, h.listErr
	}
	return h.Memory.List(ctx, collection)
}

func (h *hookStore) NextID(ctx context.Context, collection string) (int64, error) {
	if h.nextIDErr != nil {
		return 0, h.nextIDErr
	}
	return h.Memory.NextID(ctx, collection)
}

// mockMenu implements catalog.Source.
type mockMenu struct {
	mu    sync.Mutex
	items []model.MenuItem
	err   error
}

func (m *mockMenu) GetMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]model.MenuItem(nil), m.items...), nil
}

func (m *mockMenu) setPrice(id int64, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Price = decimal.NewFromInt(price)
		}
	}
}

// recordingNotifier collects events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) OrderChanged(ctx context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

// --- Test helpers ---

var _ catalog.Source = (*mockMenu)(nil)

func defaultMenu() *mockMenu {
	return &mockMenu{items: []model.MenuItem{
		{ID: 1, Name: "Chicken Adobo", Price: decimal.NewFromInt(150), Available: true},
		{ID: 2, Name: "Iced Tea", Price: decimal.NewFromInt(80), Available: true},
		{ID: 3, Name: "Lechon Kawali", Price: decimal.NewFromInt(220), Available: false},
	}}
}

func newTestService() (*OrderService, *hookStore, *mockMenu, *recordingNotifier) {
	store := &hookStore{Memory: docstore.NewMemory()}
	menu := defaultMenu()
	rec := &recordingNotifier{}
	svc := NewOrderService(store, menu, rec, zerolog.Nop())
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	var tick int
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return svc, store, menu, rec
}

func basicReq() CreateOrderRequest {
	return CreateOrderRequest{
		Items: []model.LineItem{
			{ItemID: 1, Quantity: 2},
			{ItemID: 2, Quantity: 1},
		},
		OrderType:   "dine-in",
		CashierName: "Maria",
	}
}

func mustCreate(t *testing.T, svc *OrderService) model.Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), basicReq())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

// =====================
// Creation
// =====================

func TestCreateOrder_ComputesTotal(t *testing.T) {
	svc, _, _, rec := newTestService()

	o := mustCreate(t, svc)

	if !o.Total.Equal(decimal.NewFromInt(380)) {
		t.Errorf("expected total 380, got %s", o.Total)
	}
	if o.ID != 1 {
		t.Errorf("expected id 1, got %d", o.ID)
	}
	if o.Status != enum.OrderStatusPending {
		t.Errorf("expected status pending, got %s", o.Status)
	}
	if o.UpdatedAt != nil {
		t.Errorf("new order must not have updated_at")
	}
	if got := rec.types(); len(got) != 1 || got[0] != EventOrderCreated {
		t.Errorf("expected one order.created event, got %v", got)
	}
}

func TestCreateOrder_TotalFrozenAfterPriceChange(t *testing.T) {
	svc, _, menu, _ := newTestService()
	created := mustCreate(t, svc)

	menu.setPrice(1, 999)

	got, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Total.Equal(decimal.NewFromInt(380)) {
		t.Fatalf("total changed after catalog edit: %s", got.Total)
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.Items = nil

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got: %v", err)
	}
}

func TestCreateOrder_UnknownItem(t *testing.T) {
	svc, store, _, _ := newTestService()
	req := basicReq()
	req.Items = append(req.Items, model.LineItem{ItemID: 42, Quantity: 1})

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got: %v", err)
	}

	recs, _ := store.List(context.Background(), enum.CollectionOrders)
	if len(recs) != 0 {
		t.Fatalf("rejected cart must not create an order, found %d", len(recs))
	}
}

func TestCreateOrder_UnavailableItem(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.Items = []model.LineItem{{ItemID: 3, Quantity: 1}}

	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got: %v", err)
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.Items = []model.LineItem{{ItemID: 1, Quantity: 0}}

	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrInvalidCart) {
		t.Fatalf("expected ErrInvalidCart, got: %v", err)
	}
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.Items = []model.LineItem{
		{ItemID: 2, Quantity: 1},
		{ItemID: 1, Quantity: 1},
		{ItemID: 2, Quantity: 2},
	}

	o, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if len(o.Items) != 2 || o.Items[0].ItemID != 2 || o.Items[0].Quantity != 3 {
		t.Fatalf("expected merged lines in first-seen order, got %+v", o.Items)
	}
	if !o.Total.Equal(decimal.NewFromInt(390)) {
		t.Errorf("expected total 390, got %s", o.Total)
	}
}

func TestCreateOrder_InvalidOrderType(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.OrderType = "delivery"

	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrInvalidOrderType) {
		t.Fatalf("expected ErrInvalidOrderType, got: %v", err)
	}
}

func TestCreateOrder_MissingCashier(t *testing.T) {
	svc, _, _, _ := newTestService()
	req := basicReq()
	req.CashierName = "  "

	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrMissingCashier) {
		t.Fatalf("expected ErrMissingCashier, got: %v", err)
	}
}

func TestCreateOrder_TableNumber(t *testing.T) {
	svc, _, _, _ := newTestService()

	bad := 0
	req := basicReq()
	req.TableNumber = &bad
	if _, err := svc.CreateOrder(context.Background(), req); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got: %v", err)
	}

	table := 7
	req.TableNumber = &table
	o, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.TableNumber == nil || *o.TableNumber != 7 {
		t.Errorf("expected table 7, got %v", o.TableNumber)
	}

	req.OrderType = "take-out"
	req.CustomerName = "Jun"
	o, err = svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.TableNumber != nil {
		t.Errorf("take-out order must not carry a table number")
	}
	if o.CustomerName != "Jun" {
		t.Errorf("expected customer Jun, got %q", o.CustomerName)
	}
}

func TestCreateOrder_CatalogFailure(t *testing.T) {
	svc, _, menu, _ := newTestService()
	menu.err = errors.New("menu unavailable")

	if _, err := svc.CreateOrder(context.Background(), basicReq()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got: %v", err)
	}
}

func TestCreateOrder_IDAllocationFailure(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.nextIDErr = errors.New("connection reset")

	if _, err := svc.CreateOrder(context.Background(), basicReq()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got: %v", err)
	}
}

func TestCreateOrder_ConcurrentIDsUnique(t *testing.T) {
	store := docstore.NewMemory()
	svc := NewOrderService(store, defaultMenu(), nil, zerolog.Nop())

	const terminals = 25
	var wg sync.WaitGroup
	ids := make(chan int64, terminals)
	for i := 0; i < terminals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := svc.CreateOrder(context.Background(), basicReq())
			if err != nil {
				t.Errorf("CreateOrder: %v", err)
				return
			}
			ids <- o.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate order id %d", id)
		}
		seen[id] = true
	}
	for id := int64(1); id <= terminals; id++ {
		if !seen[id] {
			t.Errorf("missing id %d", id)
		}
	}
}

// =====================
// Status transitions
// =====================

func TestUpdateStatus_FullChainAndSkipRejected(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)

	// Skipping preparation is rejected and leaves the status unchanged.
	_, err := svc.UpdateStatus(ctx, o.ID, enum.OrderStatusReady)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got: %v", err)
	}
	got, _ := svc.Get(ctx, o.ID)
	if got.Status != enum.OrderStatusPending {
		t.Fatalf("status changed after rejected transition: %s", got.Status)
	}

	for _, next := range []enum.OrderStatus{
		enum.OrderStatusPreparing,
		enum.OrderStatusReady,
		enum.OrderStatusServed,
		enum.OrderStatusCompleted,
	} {
		updated, err := svc.UpdateStatus(ctx, o.ID, next)
		if err != nil {
			t.Fatalf("UpdateStatus(%s): %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("expected %s, got %s", next, updated.Status)
		}
		if updated.UpdatedAt == nil {
			t.Fatalf("updated_at not set after %s", next)
		}
		if !updated.CreatedAt.Equal(o.CreatedAt) {
			t.Fatalf("created_at changed")
		}
	}

	if _, err := svc.Advance(ctx, o.ID); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("advancing a completed order: expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_Backwards(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)

	if _, err := svc.Advance(ctx, o.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, o.ID, enum.OrderStatusPending); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateStatus_CancelledRequiresReason(t *testing.T) {
	svc, _, _, _ := newTestService()
	o := mustCreate(t, svc)

	if _, err := svc.UpdateStatus(context.Background(), o.ID, enum.OrderStatusCancelled); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("expected ErrEmptyReason, got %v", err)
	}
}

func TestUpdateStatus_CancelTerminalIsInvalidTransition(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	completed := mustCreate(t, svc)
	for i := 0; i < 4; i++ {
		if _, err := svc.Advance(ctx, completed.ID); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	cancelled := mustCreate(t, svc)
	if _, err := svc.CancelOrder(ctx, cancelled.ID, "Customer left", "mgr"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	for _, id := range []int64{completed.ID, cancelled.ID} {
		_, err := svc.UpdateStatus(ctx, id, enum.OrderStatusCancelled)
		if !errors.Is(err, lifecycle.ErrInvalidTransition) {
			t.Errorf("order %d: expected ErrInvalidTransition, got %v", id, err)
		}
		if errors.Is(err, ErrEmptyReason) {
			t.Errorf("order %d: terminal order reported as missing reason", id)
		}
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.UpdateStatus(context.Background(), 99, enum.OrderStatusPreparing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateStatus_LostRaceRevalidates(t *testing.T) {
	svc, store, _, rec := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)

	// Another terminal advances the order between our read and our write.
	other := NewOrderService(store.Memory, defaultMenu(), nil, zerolog.Nop())
	store.beforeUpdate = func(string, int64) {
		if _, err := other.Advance(ctx, o.ID); err != nil {
			t.Fatalf("other terminal Advance: %v", err)
		}
	}

	_, err := svc.UpdateStatus(ctx, o.ID, enum.OrderStatusPreparing)
	if !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("expected re-validation to reject preparing -> preparing, got %v", err)
	}

	got, _ := svc.Get(ctx, o.ID)
	if got.Status != enum.OrderStatusPreparing {
		t.Fatalf("expected winner's status preparing, got %s", got.Status)
	}
	for _, typ := range rec.types()[1:] {
		if typ == EventOrderStatusChanged {
			t.Fatalf("loser must not publish a status change")
		}
	}
}

func TestAdvance_LostRaceRetries(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)

	other := NewOrderService(store.Memory, defaultMenu(), nil, zerolog.Nop())
	store.beforeUpdate = func(string, int64) {
		if _, err := other.Advance(ctx, o.ID); err != nil {
			t.Fatalf("other terminal Advance: %v", err)
		}
	}

	// The retry re-reads preparing and advances to ready.
	got, err := svc.Advance(ctx, o.ID)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got.Status != enum.OrderStatusReady {
		t.Fatalf("expected ready after retry, got %s", got.Status)
	}
}

// =====================
// Cancellation
// =====================

func TestCancelOrder_EmptyReasonThenSuccess(t *testing.T) {
	svc, _, _, rec := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)

	if _, err := svc.CancelOrder(ctx, o.ID, "", "mgr"); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("expected ErrEmptyReason, got %v", err)
	}
	if _, err := svc.CancelOrder(ctx, o.ID, "   ", "mgr"); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("blank reason: expected ErrEmptyReason, got %v", err)
	}

	cancelled, err := svc.CancelOrder(ctx, o.ID, "Customer left", "mgr")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.Status != enum.OrderStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.CancellationReason != "Customer left" || cancelled.CancelledBy != "mgr" {
		t.Errorf("cancellation details not recorded: %+v", cancelled)
	}
	if cancelled.CancelledAt == nil || cancelled.UpdatedAt == nil {
		t.Errorf("cancelled_at and updated_at must be set")
	}

	types := rec.types()
	if types[len(types)-1] != EventOrderCancelled {
		t.Errorf("expected last event order.cancelled, got %v", types)
	}
}

func TestCancelOrder_TerminalStatuses(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	completed := mustCreate(t, svc)
	for i := 0; i < 4; i++ {
		if _, err := svc.Advance(ctx, completed.ID); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if _, err := svc.CancelOrder(ctx, completed.ID, "too late", "mgr"); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("cancel completed: expected ErrInvalidTransition, got %v", err)
	}

	cancelled := mustCreate(t, svc)
	if _, err := svc.CancelOrder(ctx, cancelled.ID, "stock-out", "mgr"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if _, err := svc.CancelOrder(ctx, cancelled.ID, "again", "mgr"); !errors.Is(err, lifecycle.ErrInvalidTransition) {
		t.Fatalf("cancel cancelled: expected ErrInvalidTransition, got %v", err)
	}

	got, _ := svc.Get(ctx, cancelled.ID)
	if got.CancellationReason != "stock-out" {
		t.Errorf("second cancel overwrote reason: %q", got.CancellationReason)
	}
}

func TestCancelOrder_FromServed(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	o := mustCreate(t, svc)
	for i := 0; i < 3; i++ {
		if _, err := svc.Advance(ctx, o.ID); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	if _, err := svc.CancelOrder(ctx, o.ID, "kitchen error", "mgr"); err != nil {
		t.Fatalf("cancel from served: %v", err)
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.CancelOrder(context.Background(), 5, "x", "mgr"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// =====================
// Reads
// =====================

func TestListOrders_FilterAndSnapshot(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	a := mustCreate(t, svc)
	b := mustCreate(t, svc)
	c := mustCreate(t, svc)
	if _, err := svc.Advance(ctx, b.ID); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	pending, err := svc.ListOrders(ctx, Filter{Statuses: []enum.OrderStatus{enum.OrderStatusPending}})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	ranged, err := svc.ListOrders(ctx, Filter{From: b.CreatedAt, To: c.CreatedAt})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(ranged) != 1 || ranged[0].ID != b.ID {
		t.Fatalf("expected only order %d in [b, c), got %+v", b.ID, ranged)
	}

	// Mutating the snapshot must not leak into the store.
	all, _ := svc.ListOrders(ctx, Filter{})
	all[0].Items[0].Quantity = 100
	all[0].Status = enum.OrderStatusCompleted

	again, _ := svc.ListOrders(ctx, Filter{})
	if again[0].Items[0].Quantity != 2 || again[0].Status != enum.OrderStatusPending {
		t.Fatalf("store state changed through a snapshot: %+v", again[0])
	}

	// Repeated reads are identical.
	if len(again) != 3 || again[0].ID != a.ID {
		t.Fatalf("unexpected second read: %+v", again)
	}
}

func TestListOrders_PersistenceError(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.listErr = errors.New("timeout")

	if _, err := svc.ListOrders(context.Background(), Filter{}); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestCountByStatus(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, svc)
	}
	if _, err := svc.Advance(ctx, 1); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	n, err := svc.CountByStatus(ctx, enum.OrderStatusPending)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pending, got %d", n)
	}

	n, _ = svc.CountByStatus(ctx, enum.OrderStatusPending, enum.OrderStatusPreparing)
	if n != 3 {
		t.Errorf("expected 3 pending+preparing, got %d", n)
	}

	n, _ = svc.CountByStatus(ctx)
	if n != 0 {
		t.Errorf("empty status set must count 0, got %d", n)
	}
}

func TestCountsByStatus_SingleListing(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustCreate(t, svc)
	}
	if _, err := svc.Advance(ctx, 1); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	store.listCalls = 0
	counts, err := svc.CountsByStatus(ctx, enum.OrderStatusPending, enum.OrderStatusPreparing, enum.OrderStatusReady)
	if err != nil {
		t.Fatalf("CountsByStatus: %v", err)
	}
	if store.listCalls != 1 {
		t.Errorf("expected one store listing, got %d", store.listCalls)
	}
	if counts[enum.OrderStatusPending] != 2 || counts[enum.OrderStatusPreparing] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
	if n, ok := counts[enum.OrderStatusReady]; !ok || n != 0 {
		t.Errorf("expected ready present with 0, got %v", counts)
	}

	store.listErr = errors.New("timeout")
	if _, err := svc.CountsByStatus(ctx, enum.OrderStatusPending); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestSortHelpers(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{ID: 2, CreatedAt: base.Add(time.Hour)},
		{ID: 1, CreatedAt: base},
		{ID: 3, CreatedAt: base.Add(time.Hour)},
	}

	SortOldestFirst(orders)
	if orders[0].ID != 1 || orders[1].ID != 2 || orders[2].ID != 3 {
		t.Errorf("oldest first: got %d,%d,%d", orders[0].ID, orders[1].ID, orders[2].ID)
	}

	SortNewestFirst(orders)
	if orders[0].ID != 3 || orders[1].ID != 2 || orders[2].ID != 1 {
		t.Errorf("newest first: got %d,%d,%d", orders[0].ID, orders[1].ID, orders[2].ID)
	}
}

func TestClearAll(t *testing.T) {
	svc, _, _, rec := newTestService()
	ctx := context.Background()
	mustCreate(t, svc)
	mustCreate(t, svc)

	if err := svc.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	orders, _ := svc.ListOrders(ctx, Filter{})
	if len(orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(orders))
	}
	types := rec.types()
	if types[len(types)-1] != EventOrdersCleared {
		t.Errorf("expected orders.cleared event, got %v", types)
	}

	if o := mustCreate(t, svc); o.ID != 3 {
		t.Errorf("expected ids to continue at 3 after clearing, got %d", o.ID)
	}
}
