package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
)

// Coupons accepted by the storefront since its first release.
var defaultCoupons = []struct {
	code   string
	amount string
}{
	{code: "DISCOUNT_CODE_1", amount: "10.00"},
	{code: "DISCOUNT_CODE_2", amount: "5.00"},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		demoUser     int64
		redisAddr    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or STOREFRONT_DATABASE_URL / DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Int64Var(&demoUser, "demo-user", 1, "user id that receives a demo cart and a tracked order, 0 skips both")
	flag.StringVar(&redisAddr, "redis-addr", "", "Redis address of the catalog cache to invalidate (or STOREFRONT_REDIS_ADDR env)")
	flag.Parse()

	_ = godotenv.Load()
	if databaseURL == "" {
		databaseURL = os.Getenv("STOREFRONT_DATABASE_URL")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url, STOREFRONT_DATABASE_URL or DATABASE_URL")
		os.Exit(1)
	}
	if redisAddr == "" {
		redisAddr = os.Getenv("STOREFRONT_REDIS_ADDR")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, redisAddr, demoUser); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, redisAddr string, demoUser int64) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)

	products, err := seedProducts(ctx, seeder, productsFile)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}
	if redisAddr != "" {
		if err := invalidateCatalog(ctx, redisAddr); err != nil {
			return errors.Wrap(err, "invalidate catalog cache")
		}
	}

	if err := seedCoupons(ctx, seeder, time.Now()); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if demoUser <= 0 {
		return nil
	}
	if err := seedDemoCart(ctx, seeder, postgres.NewCartRepository(pool), demoUser, products); err != nil {
		return errors.Wrap(err, "seed demo cart")
	}
	if err := seedTrackedOrder(ctx, seeder, postgres.NewOrderRepository(pool), demoUser); err != nil {
		return errors.Wrap(err, "seed tracked order")
	}

	return nil
}

// invalidateCatalog drops the cached product listing so the API serves the
// freshly seeded catalog without waiting for the entry to expire.
func invalidateCatalog(ctx context.Context, addr string) error {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer func() { _ = rdb.Close() }()

	if err := redis.NewCatalogCache(rdb, nil, 0).Invalidate(ctx); err != nil {
		return err
	}
	slog.Info("catalog cache invalidated", slog.String("redis", addr))
	return nil
}

// parseProducts reads [{"name","category","price"}] with prices as strings.
func parseProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "name":
				v, err := d.Str()
				p.Name = v
				return err
			case "category":
				v, err := d.Str()
				p.Category = v
				return err
			case "price":
				v, err := d.Str()
				if err != nil {
					return err
				}
				p.Price, err = decimal.NewFromString(v)
				return err
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if p.Name == "" || p.Category == "" {
			return errors.New("product name and category are required")
		}
		if p.Price.IsNegative() {
			return errors.Errorf("product %q has a negative price", p.Name)
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

func seedProducts(ctx context.Context, seeder *postgres.Seeder, productsFile string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	products, err := parseProducts(data)
	if err != nil {
		return nil, err
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for i := range products {
		p := &products[i]
		if err := seeder.UpsertProduct(ctx, p); err != nil {
			return nil, errors.Wrapf(err, "upsert product %q", p.Name)
		}
		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	return products, nil
}

func seedCoupons(ctx context.Context, seeder *postgres.Seeder, now time.Time) error {
	expires := now.AddDate(1, 0, 0)
	for _, c := range defaultCoupons {
		if err := seeder.UpsertCoupon(ctx, coupon.Coupon{
			Code:           c.code,
			DiscountAmount: decimal.RequireFromString(c.amount),
			ExpirationDate: expires,
		}); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("amount", c.amount))
	}
	return nil
}

// seedDemoCart fills the demo user's cart with the first two products unless
// the cart already has items.
func seedDemoCart(ctx context.Context, seeder *postgres.Seeder, carts *postgres.CartRepository, userID int64, products []product.Product) error {
	existing, err := carts.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Info("demo cart already present", slog.Int64("user_id", userID), slog.Int("items", len(existing)))
		return nil
	}

	for i, p := range products[:min(2, len(products))] {
		qty := 2 - i
		if _, err := seeder.AddCartItem(ctx, userID, p.ID, qty, p.Price); err != nil {
			return errors.Wrapf(err, "add %q to cart", p.Name)
		}
		slog.Info("added cart item", slog.Int64("user_id", userID), slog.String("product", p.Name), slog.Int("quantity", qty))
	}
	return nil
}

// seedTrackedOrder gives the demo user one shipped order with tracking history
// unless the user already has orders.
func seedTrackedOrder(ctx context.Context, seeder *postgres.Seeder, orders *postgres.OrderRepository, userID int64) error {
	existing, err := orders.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Info("demo orders already present", slog.Int64("user_id", userID), slog.Int("orders", len(existing)))
		return nil
	}

	orderID, err := seeder.CreateOrder(ctx, userID, decimal.RequireFromString("34.90"))
	if err != nil {
		return err
	}

	warehouse, hub := "Central Warehouse", "City Distribution Hub"
	placed := time.Now().Add(-48 * time.Hour)
	history := []struct {
		status   order.Status
		location *string
		at       time.Time
	}{
		{status: order.StatusProcessing, at: placed.Add(time.Hour)},
		{status: order.StatusShipped, location: &warehouse, at: placed.Add(20 * time.Hour)},
		{status: order.StatusShipped, location: &hub, at: placed.Add(30 * time.Hour)},
	}
	for _, ev := range history {
		if _, err := seeder.AddTrackingEvent(ctx, orderID, ev.status, ev.location, ev.at); err != nil {
			return errors.Wrapf(err, "track order %d", orderID)
		}
	}

	slog.Info("created tracked order", slog.Int64("order_id", orderID), slog.Int("events", len(history)))
	return nil
}
