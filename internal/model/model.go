package model

import (
	"time"

	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/shopspring/decimal"
)

// MenuItem is a sellable catalog entry. Owned by menu management; orders only read it.
type MenuItem struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	Cost      *decimal.Decimal `json:"cost,omitempty"`
	Category  string           `json:"category,omitempty"`
	Available bool             `json:"available"`
}

// LineItem is one menu item and its quantity within an order.
type LineItem struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Order is a single customer transaction.
type Order struct {
	ID                 int64            `json:"id"`
	Items              []LineItem       `json:"items"`
	OrderType          enum.OrderType   `json:"order_type"`
	CustomerName       string           `json:"customer_name,omitempty"`
	TableNumber        *int             `json:"table_number,omitempty"`
	Total              decimal.Decimal  `json:"total"`
	CashierName        string           `json:"cashier_name"`
	Status             enum.OrderStatus `json:"status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          *time.Time       `json:"updated_at,omitempty"`
	CancellationReason string           `json:"cancellation_reason,omitempty"`
	CancelledBy        string           `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
}

// Clone returns a deep copy so callers can never alias store-owned state.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.TableNumber != nil {
		n := *o.TableNumber
		c.TableNumber = &n
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return c
}

// Quantity returns the total number of units across all lines.
func (o Order) Quantity() int {
	n := 0
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}
