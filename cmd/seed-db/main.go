package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/discount"
	"github.com/xenking/freshmart/internal/domain/product"
	"github.com/xenking/freshmart/internal/repository"
)

type productJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	Weight     decimal.Decimal `json:"weight"`
	WeightUnit string          `json:"weightUnit"`
	Category   string          `json:"category"`
	Available  bool            `json:"available"`
	Seasonal   bool            `json:"seasonal"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedBulkDiscounts(ctx, repository.NewBulkDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed bulk discounts")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, &product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price,
			Stock:       p.Stock,
			Weight:      p.Weight,
			WeightUnit:  p.WeightUnit,
			Category:    p.Category,
			IsAvailable: p.Available,
			IsSeasonal:  p.Seasonal,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding sample coupons")

	now := time.Now()
	year := now.AddDate(1, 0, 0)
	maxSave := decimal.NewFromInt(100)
	welcomeLimit := 500

	coupons := []coupon.Rule{
		{
			Code:           "WELCOME50",
			Name:           "Welcome offer",
			Description:    "Flat 50 off your first order above 300",
			Type:           coupon.TypeFixed,
			Value:          decimal.NewFromInt(50),
			MinOrderAmount: decimal.NewFromInt(300),
			ValidFrom:      now,
			ValidUntil:     year,
			UsageLimit:     &welcomeLimit,
			Active:         true,
		},
		{
			Code:           "SAVE10",
			Name:           "Save 10%",
			Description:    "10% off orders above 200, up to 100 off",
			Type:           coupon.TypePercentage,
			Value:          decimal.NewFromInt(10),
			MinOrderAmount: decimal.NewFromInt(200),
			MaxDiscount:    &maxSave,
			ValidFrom:      now,
			ValidUntil:     year,
			Active:         true,
		},
		{
			Code:           "FRESHFRUIT",
			Name:           "Fruit week",
			Description:    "15% off orders containing fruits",
			Type:           coupon.TypePercentage,
			Value:          decimal.NewFromInt(15),
			MinOrderAmount: decimal.NewFromInt(100),
			ValidFrom:      now,
			ValidUntil:     now.AddDate(0, 1, 0),
			Categories:     []string{"fruits"},
			Active:         true,
		},
	}

	for i := range coupons {
		c := &coupons[i]
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

func seedBulkDiscounts(ctx context.Context, repo *repository.BulkDiscountRepository) error {
	slog.Info("seeding bulk discount promotions")

	now := time.Now()
	riceCap := decimal.NewFromInt(200)

	promos := []discount.BulkDiscount{
		{
			ID:        "bulk-rice-5kg",
			ProductID: "rice-basmati-5kg",
			Tiers: []discount.Tier{
				{MinQuantity: 3, DiscountPercentage: decimal.NewFromInt(5)},
				{MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(10), MaxDiscount: &riceCap},
			},
			Active:      true,
			StartDate:   now,
			Description: "Stock up on basmati rice",
		},
		{
			ID:       "bulk-vegetables",
			Category: "vegetables",
			Tiers: []discount.Tier{
				{MinQuantity: 6, DiscountPercentage: decimal.NewFromInt(10)},
			},
			Active:      true,
			StartDate:   now,
			Description: "Buy vegetables in bulk",
		},
	}

	for i := range promos {
		bd := &promos[i]
		if err := discount.ValidateTiers(bd.Tiers); err != nil {
			return errors.Wrapf(err, "validate tiers for %s", bd.ID)
		}
		if err := repo.Create(ctx, bd); err != nil {
			return errors.Wrapf(err, "create bulk discount %s", bd.ID)
		}

		slog.Info("created bulk discount", slog.String("id", bd.ID), slog.String("description", bd.Description))
	}

	return nil
}
