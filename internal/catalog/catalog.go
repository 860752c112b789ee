// Package catalog provides read access to menu items. Writes belong to menu
// management; the order store only observes the current catalog.
package catalog

import (
	"context"

	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/shopspring/decimal"
)

// Source supplies the current menu.
// Satisfied by *Repository; narrow interface for testability.
type Source interface {
	GetMenuItems(ctx context.Context) ([]model.MenuItem, error)
}

// Catalog is an immutable point-in-time view of the menu indexed by id.
type Catalog struct {
	items []model.MenuItem
	byID  map[int64]int
}

// New builds a Catalog from items. Later duplicates of an id win.
func New(items []model.MenuItem) Catalog {
	c := Catalog{
		items: make([]model.MenuItem, 0, len(items)),
		byID:  make(map[int64]int, len(items)),
	}
	for _, it := range items {
		if idx, ok := c.byID[it.ID]; ok {
			c.items[idx] = it
			continue
		}
		c.byID[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

// Load fetches the menu from src and indexes it.
func Load(ctx context.Context, src Source) (Catalog, error) {
	items, err := src.GetMenuItems(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return New(items), nil
}

// Lookup returns the item with the given id.
func (c Catalog) Lookup(id int64) (model.MenuItem, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return model.MenuItem{}, false
	}
	return c.items[idx], true
}

// Price returns the item price, or zero for unknown ids.
func (c Catalog) Price(id int64) decimal.Decimal {
	if it, ok := c.Lookup(id); ok {
		return it.Price
	}
	return decimal.Zero
}

// Items returns a copy of all items in insertion order.
func (c Catalog) Items() []model.MenuItem {
	return append([]model.MenuItem(nil), c.items...)
}

// Len returns the number of items.
func (c Catalog) Len() int { return len(c.items) }
