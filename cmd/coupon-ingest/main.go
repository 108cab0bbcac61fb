package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxCodeLen    = 64
)

func main() {
	var (
		dataDir     string
		databaseURL string
		expected    uint
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.gz coupon files (CODE,AMOUNT,YYYY-MM-DD per line)")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or STOREFRONT_DATABASE_URL / DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 10_000_000, "expected number of distinct codes, sizes the bloom filter")
	flag.IntVar(&batchSize, "batch-size", 10_000, "coupons per database round trip")
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, expected, batchSize); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, expected uint, batchSize int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list input files")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.gz files in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ing, err := newIngester(ctx, postgres.NewCouponWriter(pool), expected, batchSize)
	if err != nil {
		return err
	}

	coupons := make(chan coupon.Coupon, batchSize)
	g, gctx := errgroup.WithContext(ctx)

	readers, rctx := errgroup.WithContext(gctx)
	for i, f := range files {
		readers.Go(func() error {
			return readFile(rctx, i+1, f, coupons)
		})
	}
	g.Go(func() error {
		defer close(coupons)
		return readers.Wait()
	})
	g.Go(func() error {
		return ing.consume(gctx, coupons)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest totals",
		slog.Int("files", len(files)),
		slog.Int64("copied", ing.copied),
		slog.Int64("upserted", ing.upserted),
	)
	return nil
}

// parseCouponLine parses "CODE,AMOUNT,YYYY-MM-DD".
func parseCouponLine(line string) (coupon.Coupon, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return coupon.Coupon{}, errors.Errorf("want 3 fields, got %d", len(parts))
	}

	code := strings.TrimSpace(parts[0])
	if code == "" || len(code) > maxCodeLen {
		return coupon.Coupon{}, errors.Errorf("code length %d out of range", len(code))
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse amount")
	}
	if amount.IsNegative() {
		return coupon.Coupon{}, errors.New("negative amount")
	}
	expires, err := time.Parse(time.DateOnly, strings.TrimSpace(parts[2]))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse expiration date")
	}

	return coupon.Coupon{Code: code, DiscountAmount: amount.Round(2), ExpirationDate: expires}, nil
}

// readFile streams a gzip file line by line into out. Malformed lines are
// logged and skipped.
func readFile(ctx context.Context, idx int, path string, out chan<- coupon.Coupon) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var lines, skipped uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		lines++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		c, err := parseCouponLine(text)
		if err != nil {
			skipped++
			if skipped <= 10 {
				slog.Warn("skipping malformed line",
					slog.Int("file", idx),
					slog.Uint64("line", lines),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}

		if lines%progressEvery == 0 {
			slog.Info("read progress", slog.Int("file", idx), slog.Uint64("lines", lines))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("file complete",
		slog.Int("file", idx),
		slog.String("path", path),
		slog.Uint64("lines", lines),
		slog.Uint64("skipped", skipped),
	)
	return nil
}

type couponStore interface {
	ListCouponCodes(ctx context.Context, fn func(code string)) error
	CopyCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error)
	UpsertCoupons(ctx context.Context, coupons []coupon.Coupon) error
}

// ingester routes each coupon to the COPY batch when its code is certainly
// new, or to the upsert batch when the bloom filter has seen it before.
// Only one goroutine may call consume.
type ingester struct {
	store     couponStore
	seen      *bloom.BloomFilter
	batchSize int

	fresh []coupon.Coupon
	dupes []coupon.Coupon

	copied   int64
	upserted int64
}

func newIngester(ctx context.Context, store couponStore, expected uint, batchSize int) (*ingester, error) {
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	seen := bloom.NewWithEstimates(max(expected, 1), bloomFPR)

	var existing int
	if err := store.ListCouponCodes(ctx, func(code string) {
		seen.AddString(code)
		existing++
	}); err != nil {
		return nil, errors.Wrap(err, "load existing codes")
	}
	slog.Info("bloom filter seeded", slog.Int("existing_codes", existing))

	return &ingester{
		store:     store,
		seen:      seen,
		batchSize: batchSize,
	}, nil
}

func (i *ingester) consume(ctx context.Context, in <-chan coupon.Coupon) error {
	for c := range in {
		if i.seen.TestOrAddString(c.Code) {
			i.dupes = append(i.dupes, c)
		} else {
			i.fresh = append(i.fresh, c)
		}
		if len(i.fresh) >= i.batchSize || len(i.dupes) >= i.batchSize {
			if err := i.flush(ctx); err != nil {
				return err
			}
		}
	}
	return i.flush(ctx)
}

// flush writes the COPY batch before the upsert batch, so an upsert never
// races ahead of the first insert of the same code.
func (i *ingester) flush(ctx context.Context) error {
	if len(i.fresh) > 0 {
		n, err := i.store.CopyCoupons(ctx, i.fresh)
		if err != nil {
			return errors.Wrap(err, "copy coupons")
		}
		i.copied += n
		i.fresh = i.fresh[:0]
	}
	if len(i.dupes) > 0 {
		if err := i.store.UpsertCoupons(ctx, i.dupes); err != nil {
			return errors.Wrap(err, "upsert coupons")
		}
		i.upserted += int64(len(i.dupes))
		i.dupes = i.dupes[:0]
	}
	slog.Info("write progress", slog.Int64("copied", i.copied), slog.Int64("upserted", i.upserted))
	return nil
}
