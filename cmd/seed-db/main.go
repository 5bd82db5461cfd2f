// Command seed-db loads the catalogue and a customer account into PostgreSQL.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/category"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/identity"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

type options struct {
	databaseURL    string
	categoriesFile string
	productsFile   string
	accountID      string
	accountName    string
	accountEmail   string
	apiKey         string
	apiKeyPepper   string
}

func main() {
	var o options

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.categoriesFile, "categories-file", "db/seed/categories.json", "categories JSON file, optionally .gz")
	flag.StringVar(&o.productsFile, "products-file", "db/seed/products.json", "products JSON file, optionally .gz")
	flag.StringVar(&o.accountID, "account-id", "demo", "customer account id")
	flag.StringVar(&o.accountName, "account-name", "Khách hàng mẫu", "customer account name")
	flag.StringVar(&o.accountEmail, "account-email", "", "customer account email; no account is seeded when empty")
	flag.StringVar(&o.apiKey, "api-key", "", "customer API key (or KART_SEED_API_KEY env)")
	flag.StringVar(&o.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.Parse()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if o.apiKey == "" {
		o.apiKey = os.Getenv("KART_SEED_API_KEY")
	}
	if o.apiKeyPepper == "" {
		o.apiKeyPepper = os.Getenv("KART_API_KEY_PEPPER")
	}
	if o.accountEmail != "" && o.apiKey == "" {
		slog.Error("API key is required to seed an account: set --api-key or KART_SEED_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed successfully")
}

func run(ctx context.Context, o options) error {
	var (
		categories []category.Category
		products   []product.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		categories, err = readCategories(gctx, o.categoriesFile)
		return err
	})
	g.Go(func() (err error) {
		products, err = readProducts(gctx, o.productsFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := checkCatalogue(categories, products); err != nil {
		return err
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	categoryRepo := postgres.NewCategoryRepository(pool)
	for _, c := range categories {
		if err := categoryRepo.Upsert(ctx, c); err != nil {
			return errors.Wrap(err, "seed categories")
		}
	}
	slog.Info("upserted categories", slog.Int("count", len(categories)))

	productRepo := postgres.NewProductRepository(pool)
	for _, p := range products {
		if err := productRepo.Upsert(ctx, p); err != nil {
			return errors.Wrap(err, "seed products")
		}
	}
	slog.Info("upserted products", slog.Int("count", len(products)))

	if err := verifyProducts(ctx, productRepo, products); err != nil {
		return err
	}

	if o.accountEmail == "" {
		return nil
	}
	account := identity.Account{
		ID:      o.accountID,
		Name:    o.accountName,
		Email:   o.accountEmail,
		KeyHash: identity.HashKey(o.apiKey, []byte(o.apiKeyPepper)),
	}
	if err := postgres.NewAccountRepository(pool).Upsert(ctx, account); err != nil {
		return errors.Wrap(err, "seed account")
	}
	slog.Info("upserted account", slog.String("id", account.ID), slog.String("email", account.Email))
	return nil
}

// checkCatalogue rejects products that reference unknown categories, which
// would otherwise fail mid-seed on the foreign key.
func checkCatalogue(categories []category.Category, products []product.Product) error {
	known := make(map[int64]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	for _, p := range products {
		if _, ok := known[p.CategoryID]; !ok {
			return errors.Errorf("product %d references unknown category %d", p.ID, p.CategoryID)
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %d has negative price %s", p.ID, p.Price)
		}
	}
	return nil
}

// verifyProducts reads the catalogue back and checks that every seeded
// product is stored with its seeded price and category.
func verifyProducts(ctx context.Context, repo product.Repository, want []product.Product) error {
	stored, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	byID := make(map[int64]product.Product, len(stored))
	for _, p := range stored {
		byID[p.ID] = p
	}
	for _, p := range want {
		got, ok := byID[p.ID]
		if !ok {
			return errors.Errorf("product %d missing after seed", p.ID)
		}
		if !got.Price.Equal(p.Price) || got.CategoryID != p.CategoryID {
			return errors.Errorf("product %d stored as price %s category %d, seeded %s category %d",
				p.ID, got.Price, got.CategoryID, p.Price, p.CategoryID)
		}
	}
	slog.Info("verified products", slog.Int("stored", len(stored)))
	return nil
}
