package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kiwari-pos/orderdesk/internal/docstore"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/model"
)

// Errors returned by the menu repository.
var (
	ErrMenuItemNotFound = errors.New("menu item not found")
	ErrInvalidMenuItem  = errors.New("invalid menu item")
)

// Repository stores menu items in the menuItems collection.
type Repository struct {
	store docstore.Store
}

// NewRepository creates a Repository over store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// GetMenuItems returns every menu item ordered by id.
func (r *Repository) GetMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	recs, err := r.store.List(ctx, enum.CollectionMenuItems)
	if err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	items := make([]model.MenuItem, 0, len(recs))
	for _, rec := range recs {
		var it model.MenuItem
		if err := json.Unmarshal(rec.Data, &it); err != nil {
			return nil, fmt.Errorf("decode menu item %d: %w", rec.ID, err)
		}
		it.ID = rec.ID
		items = append(items, it)
	}
	return items, nil
}

// CreateMenuItem assigns the next id and stores the item.
func (r *Repository) CreateMenuItem(ctx context.Context, it model.MenuItem) (model.MenuItem, error) {
	if err := validate(it); err != nil {
		return model.MenuItem{}, err
	}
	id, err := r.store.NextID(ctx, enum.CollectionMenuItems)
	if err != nil {
		return model.MenuItem{}, fmt.Errorf("allocate menu item id: %w", err)
	}
	it.ID = id
	data, err := json.Marshal(it)
	if err != nil {
		return model.MenuItem{}, fmt.Errorf("encode menu item: %w", err)
	}
	if _, err := r.store.Create(ctx, enum.CollectionMenuItems, id, data); err != nil {
		return model.MenuItem{}, fmt.Errorf("create menu item: %w", err)
	}
	return it, nil
}

// UpdateMenuItem overwrites an existing item. Orders already placed keep
// their frozen totals.
func (r *Repository) UpdateMenuItem(ctx context.Context, it model.MenuItem) error {
	if err := validate(it); err != nil {
		return err
	}
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode menu item: %w", err)
	}
	if _, err := r.store.Update(ctx, enum.CollectionMenuItems, it.ID, data, 0); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("update menu item: %w", err)
	}
	return nil
}

// DeleteMenuItem removes an item. Historical reports price it at zero afterwards.
func (r *Repository) DeleteMenuItem(ctx context.Context, id int64) error {
	if err := r.store.Delete(ctx, enum.CollectionMenuItems, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

func validate(it model.MenuItem) error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMenuItem)
	}
	if it.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidMenuItem)
	}
	if it.Cost != nil && it.Cost.IsNegative() {
		return fmt.Errorf("%w: cost must be >= 0", ErrInvalidMenuItem)
	}
	return nil
}
