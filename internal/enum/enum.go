package enum

import "fmt"

// ── Order lifecycle ──

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusServed    OrderStatus = "served"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order.
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusServed,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// ParseOrderStatus validates s as an order status.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range AllOrderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

// IsRealizedSale reports whether orders in this status count toward sales.
// Served and completed orders are economically final.
func (s OrderStatus) IsRealizedSale() bool {
	return s == OrderStatusServed || s == OrderStatusCompleted
}

// ── Order types ──

// OrderType distinguishes dine-in from take-out orders.
type OrderType string

const (
	OrderTypeDineIn  OrderType = "dine-in"
	OrderTypeTakeOut OrderType = "take-out"
)

// ParseOrderType validates s as an order type.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderTypeDineIn, OrderTypeTakeOut:
		return OrderType(s), nil
	}
	return "", fmt.Errorf("invalid order type %q", s)
}

// ── Persistence collections ──

const (
	CollectionOrders    = "orders"
	CollectionMenuItems = "menuItems"
	CollectionCashiers  = "cashiers"
)
