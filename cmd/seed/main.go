// Command seed fills a local marketplace database with a category tree, one
// approved store and a few products per subcategory. Categories and the seed
// store are reused on later runs; products are added again each time.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository/postgres"
	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/migrations"
	pkgconfig "github.com/utafrali/marketplace/pkg/config"
	"github.com/utafrali/marketplace/pkg/database"
	"github.com/utafrali/marketplace/pkg/logger"
)

type seedConfig struct {
	config.Config

	SellerID  string `env:"SEED_SELLER_ID" envDefault:"00000000-0000-4000-8000-000000000001"`
	StoreName string `env:"SEED_STORE_NAME" envDefault:"Seed Store"`
	ImageURL  string `env:"SEED_IMAGE_URL" envDefault:"https://placehold.co/600x600"`
}

type productDef struct {
	name  string
	desc  string
	price string
	stock int
}

// Top-level categories, their subcategories and the products listed under each.
var catalog = []struct {
	name string
	subs map[string][]productDef
}{
	{"Electronics", map[string][]productDef{
		"Audio": {
			{"Wireless Bluetooth Headphones", "Over-ear noise-cancelling headphones with 30-hour battery life.", "79.99", 40},
			{"Portable Speaker", "Waterproof speaker with 12 hours of playback.", "49.90", 25},
		},
		"Computer Accessories": {
			{"USB-C Hub Adapter", "7-in-1 hub with HDMI 4K output and 100W power delivery.", "34.99", 60},
			{"Mechanical Keyboard", "RGB backlit keyboard with tactile switches.", "89.99", 15},
		},
	}},
	{"Home & Kitchen", map[string][]productDef{
		"Cookware": {
			{"Cast Iron Skillet", "Pre-seasoned 12-inch skillet, oven safe.", "34.99", 30},
			{"Stainless Steel Cookware Set", "10-piece tri-ply set with glass lids.", "149.99", 8},
		},
		"Small Appliances": {
			{"Coffee Maker", "12-cup programmable brewer with thermal carafe.", "49.99", 20},
		},
	}},
	{"Books", map[string][]productDef{
		"Programming": {
			{"The Go Programming Language", "A guide to Go covering fundamentals and advanced topics.", "39.99", 50},
			{"Designing Data-Intensive Applications", "The ideas behind reliable, scalable data systems.", "44.99", 35},
		},
	}},
}

func main() {
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("marketplace-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, &cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete")
}

func run(ctx context.Context, cfg *seedConfig, log *slog.Logger) error {
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	categoryRepo := postgres.NewCategoryRepository(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	productRepo := postgres.NewProductRepository(pool)
	categories := service.NewCategoryService(categoryRepo, log)

	existing, err := categories.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	byName := make(map[string]*domain.Category, len(existing))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	ensure := func(name string, parent *domain.Category) (*domain.Category, error) {
		if c, ok := byName[name]; ok {
			return c, nil
		}
		input := &service.CreateCategoryInput{Name: name}
		if parent != nil {
			input.ParentID = &parent.ID
		}
		c, err := categories.CreateCategory(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("create category %q: %w", name, err)
		}
		byName[name] = c
		log.Info("category created", slog.String("name", c.Name), slog.String("slug", c.Slug))
		return c, nil
	}

	store, err := ensureStore(ctx, storeRepo, cfg)
	if err != nil {
		return err
	}

	count := 0
	for _, top := range catalog {
		root, err := ensure(top.name, nil)
		if err != nil {
			return err
		}
		for subName, defs := range top.subs {
			sub, err := ensure(subName, root)
			if err != nil {
				return err
			}
			for _, def := range defs {
				now := time.Now().UTC()
				p := &domain.Product{
					ID:              uuid.NewString(),
					Name:            def.name,
					Description:     def.desc,
					Price:           decimal.RequireFromString(def.price),
					Stock:           def.stock,
					CategoryID:      root.ID,
					CategoryName:    root.Name,
					SubCategoryID:   &sub.ID,
					SubCategoryName: &sub.Name,
					SellerID:        store.UserID,
					StoreID:         store.ID,
					MainImageURL:    cfg.ImageURL,
					ImageURLs:       []string{},
					Status:          domain.ProductStatusActive,
					CreatedAt:       now,
					UpdatedAt:       now,
				}
				if err := productRepo.Create(ctx, p); err != nil {
					return fmt.Errorf("create product %q: %w", def.name, err)
				}
				count++
			}
		}
	}

	log.Info("products created", slog.Int("count", count), slog.String("store_id", store.ID))
	return nil
}

// ensureStore returns the seller's seed store, creating it approved when missing.
func ensureStore(ctx context.Context, repo *postgres.StoreRepository, cfg *seedConfig) (*domain.Store, error) {
	stores, err := repo.ListByUser(ctx, cfg.SellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller stores: %w", err)
	}
	for i := range stores {
		if stores[i].StoreName == cfg.StoreName {
			return &stores[i], nil
		}
	}

	now := time.Now().UTC()
	store := &domain.Store{
		ID:        uuid.NewString(),
		UserID:    cfg.SellerID,
		StoreName: cfg.StoreName,
		Status:    domain.StoreStatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cfg.DefaultStoreLogo != "" {
		logo := cfg.DefaultStoreLogo
		store.LogoURL = &logo
	}
	if err := repo.Create(ctx, store); err != nil {
		return nil, fmt.Errorf("create seed store: %w", err)
	}
	return store, nil
}
