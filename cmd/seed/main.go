package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/config"
	"github.com/kiwari-pos/orderdesk/internal/docstore"
	"github.com/kiwari-pos/orderdesk/internal/enum"
	"github.com/kiwari-pos/orderdesk/internal/logging"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by -file.
type seedFile struct {
	Cashiers  []string       `yaml:"cashiers"`
	MenuItems []seedMenuItem `yaml:"menu_items"`
}

type seedMenuItem struct {
	Name      string `yaml:"name"`
	Price     string `yaml:"price"`
	Cost      string `yaml:"cost"`
	Category  string `yaml:"category"`
	Available *bool  `yaml:"available"`
}

type cashierRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

var defaultSeed = seedFile{
	Cashiers: []string{"Maria", "Jose"},
	MenuItems: []seedMenuItem{
		{Name: "Chicken Adobo", Price: "150", Cost: "60", Category: "Mains"},
		{Name: "Pork Sinigang", Price: "180", Cost: "75", Category: "Mains"},
		{Name: "Lumpiang Shanghai", Price: "120", Cost: "40", Category: "Appetizers"},
		{Name: "Garlic Rice", Price: "35", Cost: "10", Category: "Sides"},
		{Name: "Halo-Halo", Price: "95", Cost: "35", Category: "Desserts"},
		{Name: "Iced Tea", Price: "45", Cost: "8", Category: "Drinks"},
	},
}

func main() {
	// CLI flags
	file := flag.String("file", "", "YAML file with cashiers and menu_items (default: built-in sample menu)")
	reset := flag.Bool("reset", false, "Delete all orders, menu items and cashiers before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Must(cfg.LogLevel, "console")

	if cfg.StoreBackend == config.StoreMemory {
		log.Fatal().Msg("STORE_BACKEND is memory; seeding it would be lost on exit. Set postgres or redis.")
	}

	data := defaultSeed
	if *file != "" {
		data, err = loadSeedFile(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read seed file")
		}
	}

	ctx := context.Background()
	store, closeStore, err := docstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to store")
	}
	defer closeStore()
	log.Info().Str("store", cfg.StoreBackend).Msg("connected to store")

	if err := seed(ctx, store, data, *reset, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func loadSeedFile(path string) (seedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return seedFile{}, err
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return seedFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func seed(ctx context.Context, store docstore.Store, data seedFile, reset bool, log zerolog.Logger) error {
	if reset {
		for _, c := range []string{enum.CollectionOrders, enum.CollectionMenuItems, enum.CollectionCashiers} {
			if err := store.DeleteAll(ctx, c); err != nil {
				return fmt.Errorf("reset %s: %w", c, err)
			}
			log.Warn().Str("collection", c).Msg("collection cleared")
		}
	}

	menu := catalog.NewRepository(store)
	existing, err := menu.GetMenuItems(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info().Int("items", len(existing)).Msg("menu already seeded, skipping (use -reset to replace)")
		return nil
	}

	for _, raw := range data.MenuItems {
		it, err := raw.toMenuItem()
		if err != nil {
			return err
		}
		created, err := menu.CreateMenuItem(ctx, it)
		if err != nil {
			return fmt.Errorf("create %q: %w", raw.Name, err)
		}
		log.Info().Int64("id", created.ID).Str("name", created.Name).Str("price", created.Price.StringFixed(2)).Msg("menu item created")
	}

	for _, name := range data.Cashiers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := store.NextID(ctx, enum.CollectionCashiers)
		if err != nil {
			return fmt.Errorf("allocate cashier id: %w", err)
		}
		rec, err := json.Marshal(cashierRecord{ID: id, Name: name})
		if err != nil {
			return err
		}
		if _, err := store.Create(ctx, enum.CollectionCashiers, id, rec); err != nil {
			return fmt.Errorf("create cashier %q: %w", name, err)
		}
		log.Info().Int64("id", id).Str("name", name).Msg("cashier created")
	}

	log.Info().Int("menu_items", len(data.MenuItems)).Int("cashiers", len(data.Cashiers)).Msg("seed complete")
	return nil
}

func (s seedMenuItem) toMenuItem() (model.MenuItem, error) {
	price, err := decimal.NewFromString(s.Price)
	if err != nil {
		return model.MenuItem{}, fmt.Errorf("menu item %q: invalid price %q: %w", s.Name, s.Price, err)
	}
	it := model.MenuItem{
		Name:      s.Name,
		Price:     price,
		Category:  s.Category,
		Available: s.Available == nil || *s.Available,
	}
	if s.Cost != "" {
		cost, err := decimal.NewFromString(s.Cost)
		if err != nil {
			return model.MenuItem{}, fmt.Errorf("menu item %q: invalid cost %q: %w", s.Name, s.Cost, err)
		}
		it.Cost = &cost
	}
	return it, nil
}
