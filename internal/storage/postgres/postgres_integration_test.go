//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storage/postgres"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	testPool, err = postgres.NewPool(ctx, url)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer testPool.Close()

	if err := postgres.RunMigrations(ctx, testPool); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

var nextUser int64 = 1000

// freshUser hands out a user id no other test touches.
func freshUser() int64 {
	nextUser++
	return nextUser
}

func seedProduct(t *testing.T, name, price string) product.Product {
	t.Helper()
	p := product.Product{Name: name, Category: "Test", Price: decimal.RequireFromString(price)}
	require.NoError(t, postgres.NewSeeder(testPool).UpsertProduct(context.Background(), &p))
	return p
}

func addToCart(t *testing.T, userID int64, p product.Product, qty int) {
	t.Helper()
	_, err := postgres.NewSeeder(testPool).AddCartItem(context.Background(), userID, p.ID, qty, p.Price)
	require.NoError(t, err)
}

func newCheckout(t *testing.T) *checkout.Service {
	t.Helper()
	svc, err := checkout.NewService(postgres.NewTxManager(testPool))
	require.NoError(t, err)
	return svc
}

func TestRunMigrations_Idempotent(t *testing.T) {
	require.NoError(t, postgres.RunMigrations(context.Background(), testPool))
}

func TestCheckout_WithCoupon(t *testing.T) {
	ctx := context.Background()
	seeder := postgres.NewSeeder(testPool)
	require.NoError(t, seeder.UpsertCoupon(ctx, coupon.Coupon{
		Code:           "DISCOUNT_CODE_1",
		DiscountAmount: decimal.RequireFromString("10.00"),
		ExpirationDate: time.Now().AddDate(1, 0, 0),
	}))

	user := freshUser()
	addToCart(t, user, seedProduct(t, "Ten", "10.00"), 2)
	addToCart(t, user, seedProduct(t, "Five", "5.00"), 1)

	res, err := newCheckout(t).Checkout(ctx, checkout.Request{UserID: user, CouponCode: "DISCOUNT_CODE_1"})
	require.NoError(t, err)
	assert.Equal(t, "15.00", res.Final.StringFixed(2))

	orders := postgres.NewOrderRepository(testPool)
	o, err := orders.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "15.00", o.FormattedTotal())
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, user, o.UserID)

	items, err := postgres.NewCartRepository(testPool).ListByUser(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, items)

	var recorded string
	require.NoError(t, testPool.QueryRow(ctx,
		`SELECT final_price::text FROM checkouts WHERE order_id = $1`, res.OrderID,
	).Scan(&recorded))
	assert.Equal(t, "15.00", recorded)
}

func TestCheckout_EmptyCart(t *testing.T) {
	ctx := context.Background()
	user := freshUser()

	res, err := newCheckout(t).Checkout(ctx, checkout.Request{UserID: user})
	require.NoError(t, err)

	o, err := postgres.NewOrderRepository(testPool).GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", o.FormattedTotal())
}

func TestCheckout_UnknownCoupon(t *testing.T) {
	ctx := context.Background()
	user := freshUser()
	addToCart(t, user, seedProduct(t, "Third", "3.33"), 3)

	res, err := newCheckout(t).Checkout(ctx, checkout.Request{UserID: user, CouponCode: "UNKNOWN"})
	require.NoError(t, err)
	assert.Equal(t, "9.99", res.Final.StringFixed(2))
}

func TestCheckout_ConcurrentChargesCartOnce(t *testing.T) {
	ctx := context.Background()
	user := freshUser()
	addToCart(t, user, seedProduct(t, "Once", "7.00"), 1)
	svc := newCheckout(t)

	var wg sync.WaitGroup
	finals := make([]string, 4)
	for i := range finals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Checkout(ctx, checkout.Request{UserID: user})
			if assert.NoError(t, err) {
				finals[i] = res.Final.StringFixed(2)
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"7.00", "0.00", "0.00", "0.00"}, finals)
}

func TestTxManager_WithinTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	user := freshUser()
	addToCart(t, user, seedProduct(t, "Kept", "4.00"), 2)

	errAbort := errors.New("abort checkout")
	var orderID int64
	err := postgres.NewTxManager(testPool).WithinTx(ctx, func(r checkout.Repos) error {
		items, err := r.Carts().ListByUserForUpdate(ctx, user)
		require.NoError(t, err)
		require.Len(t, items, 1)

		orderID, err = r.Orders().Create(ctx, user, decimal.RequireFromString("8.00"))
		require.NoError(t, err)
		_, err = r.Carts().DeleteItems(ctx, user, cart.IDs(items))
		require.NoError(t, err)
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	var daErr *fault.DataAccessError
	assert.False(t, errors.As(err, &daErr), "callback error must come back unwrapped")

	_, err = postgres.NewOrderRepository(testPool).GetByID(ctx, orderID)
	assert.ErrorIs(t, err, fault.ErrNotFound)

	items, err := postgres.NewCartRepository(testPool).ListByUser(ctx, user)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

// lateLineTx adds a cart line from another connection right after checkout
// has locked the cart.
type lateLineTx struct {
	checkout.TxManager
	add func()
}

func (m lateLineTx) WithinTx(ctx context.Context, fn func(r checkout.Repos) error) error {
	return m.TxManager.WithinTx(ctx, func(r checkout.Repos) error {
		return fn(lateLineRepos{Repos: r, add: m.add})
	})
}

type lateLineRepos struct {
	checkout.Repos
	add func()
}

func (r lateLineRepos) Carts() cart.Repository {
	return lateLineCarts{Repository: r.Repos.Carts(), add: r.add}
}

type lateLineCarts struct {
	cart.Repository
	add func()
}

func (c lateLineCarts) ListByUserForUpdate(ctx context.Context, userID int64) ([]cart.Item, error) {
	items, err := c.Repository.ListByUserForUpdate(ctx, userID)
	if err == nil {
		c.add()
	}
	return items, err
}

func TestCheckout_KeepsLineAddedDuringCheckout(t *testing.T) {
	ctx := context.Background()
	user := freshUser()
	addToCart(t, user, seedProduct(t, "Charged", "10.00"), 1)
	late := seedProduct(t, "Late", "6.00")

	svc, err := checkout.NewService(lateLineTx{
		TxManager: postgres.NewTxManager(testPool),
		add:       func() { addToCart(t, user, late, 1) },
	})
	require.NoError(t, err)

	res, err := svc.Checkout(ctx, checkout.Request{UserID: user})
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Final.StringFixed(2))

	items, err := postgres.NewCartRepository(testPool).ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1, "the uncharged line must survive")
	assert.Equal(t, late.ID, items[0].ProductID)
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	_, err := postgres.NewOrderRepository(testPool).GetByID(context.Background(), 987654321)
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestOrderRepository_ListTracking_Chronological(t *testing.T) {
	ctx := context.Background()
	seeder := postgres.NewSeeder(testPool)
	orderID, err := seeder.CreateOrder(ctx, freshUser(), decimal.RequireFromString("12.50"))
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	warehouse := "Warehouse"
	hub := "Hub"
	// Inserted out of order on purpose.
	_, err = seeder.AddTrackingEvent(ctx, orderID, order.StatusShipped, &warehouse, base.Add(2*time.Hour))
	require.NoError(t, err)
	_, err = seeder.AddTrackingEvent(ctx, orderID, order.StatusDelivered, &hub, base.Add(5*time.Hour))
	require.NoError(t, err)
	_, err = seeder.AddTrackingEvent(ctx, orderID, order.StatusProcessing, nil, base)
	require.NoError(t, err)

	events, err := postgres.NewOrderRepository(testPool).ListTracking(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, string(order.StatusProcessing), events[0].Status)
	assert.Nil(t, events[0].Location)
	assert.Equal(t, string(order.StatusShipped), events[1].Status)
	require.NotNil(t, events[1].Location)
	assert.Equal(t, "Warehouse", *events[1].Location)
	assert.Equal(t, string(order.StatusDelivered), events[2].Status)
	for i := 1; i < len(events); i++ {
		assert.True(t, events[i-1].Timestamp.Before(events[i].Timestamp))
	}

	empty, err := postgres.NewOrderRepository(testPool).ListTracking(ctx, 987654321)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCouponRepository_ListActive(t *testing.T) {
	ctx := context.Background()
	seeder := postgres.NewSeeder(testPool)
	now := time.Now()

	require.NoError(t, seeder.UpsertCoupon(ctx, coupon.Coupon{
		Code: "LIST_TODAY", DiscountAmount: decimal.RequireFromString("1.00"), ExpirationDate: now,
	}))
	require.NoError(t, seeder.UpsertCoupon(ctx, coupon.Coupon{
		Code: "LIST_EXPIRED", DiscountAmount: decimal.RequireFromString("1.00"), ExpirationDate: now.AddDate(0, 0, -1),
	}))

	repo := postgres.NewCouponRepository(testPool)
	first, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	second, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	codes := make([]string, 0, len(first))
	for _, c := range first {
		codes = append(codes, c.Code)
	}
	assert.Contains(t, codes, "LIST_TODAY")
	assert.NotContains(t, codes, "LIST_EXPIRED")

	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].ExpirationDate.Before(first[i-1].ExpirationDate))
	}
}

func TestCouponWriter_CopyAndUpsert(t *testing.T) {
	ctx := context.Background()
	w := postgres.NewCouponWriter(testPool)
	exp := time.Now().AddDate(0, 1, 0)

	n, err := w.CopyCoupons(ctx, []coupon.Coupon{
		{Code: "BULK_A", DiscountAmount: decimal.RequireFromString("2.00"), ExpirationDate: exp},
		{Code: "BULK_B", DiscountAmount: decimal.RequireFromString("3.00"), ExpirationDate: exp},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, w.UpsertCoupons(ctx, []coupon.Coupon{
		{Code: "BULK_A", DiscountAmount: decimal.RequireFromString("4.00"), ExpirationDate: exp},
	}))

	c, err := postgres.NewCouponRepository(testPool).FindActiveByCode(ctx, "BULK_A", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "4.00", c.DiscountAmount.StringFixed(2))

	seen := map[string]bool{}
	require.NoError(t, w.ListCouponCodes(ctx, func(code string) { seen[code] = true }))
	assert.True(t, seen["BULK_A"])
	assert.True(t, seen["BULK_B"])
}
