package refresh

import (
	"context"
	"fmt"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/kiwari-pos/orderdesk/internal/service"
)

// OrderLister is satisfied by *service.OrderService.
type OrderLister interface {
	ListOrders(ctx context.Context, f service.Filter) ([]model.Order, error)
}

// StoreSource snapshots every order plus the menu.
type StoreSource struct {
	Orders OrderLister
	Menu   catalog.Source
}

// Fetch reads the full order collection and the catalog.
func (s StoreSource) Fetch(ctx context.Context) (Snapshot, error) {
	orders, err := s.Orders.ListOrders(ctx, service.Filter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch orders: %w", err)
	}
	cat, err := catalog.Load(ctx, s.Menu)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetch catalog: %w", err)
	}
	return Snapshot{Orders: orders, Catalog: cat}, nil
}
