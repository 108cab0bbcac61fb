package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/fault"
	"github.com/xenking/storefront/internal/domain/pricing"
)

const instrumentationName = "github.com/xenking/storefront/internal/domain/checkout"

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified after each committed checkout.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock overrides the clock used for coupon expiry and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for checkout counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithPublishTimeout bounds how long a committed checkout waits on the publisher.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) { s.publishTimeout = d }
}

// Service encapsulates the checkout workflow.
type Service struct {
	tx             TxManager
	publisher      Publisher
	now            func() time.Time
	tracer         trace.Tracer
	meter          metric.Meter
	completed      metric.Int64Counter
	publishTimeout time.Duration
}

// NewService creates a checkout Service running on tx.
func NewService(tx TxManager, opts ...Option) (*Service, error) {
	s := &Service{
		tx:             tx,
		now:            time.Now,
		tracer:         tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:          metricnoop.NewMeterProvider().Meter(instrumentationName),
		publishTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	completed, err := s.meter.Int64Counter("storefront.checkout.completed",
		metric.WithDescription("Number of committed checkouts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout counter")
	}
	s.completed = completed

	return s, nil
}

// Checkout converts the cart of req.UserID into a Pending order.
//
// An empty cart produces an order with a zero total. Any failure rolls back
// the whole checkout, so the cart is only cleared when the order exists.
func (s *Service) Checkout(ctx context.Context, req Request) (_ *Result, rerr error) {
	if req.UserID <= 0 {
		return nil, fault.Invalid("user_id", "must be a positive integer")
	}

	ctx, span := s.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.Int64("storefront.user_id", req.UserID)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "checkout failed")
		}
		span.End()
	}()

	now := s.now()

	var res Result
	err := s.tx.WithinTx(ctx, func(r Repos) error {
		items, err := r.Carts().ListByUserForUpdate(ctx, req.UserID)
		if err != nil {
			return errors.Wrap(err, "fetch cart")
		}

		total := pricing.Total(items)

		discount, err := coupon.DiscountFor(ctx, r.Coupons(), req.CouponCode, now)
		if err != nil {
			return errors.Wrap(err, "apply discount")
		}

		final := pricing.Final(total, discount)

		orderID, err := r.Orders().Create(ctx, req.UserID, final)
		if err != nil {
			return errors.Wrap(err, "persist order")
		}

		if err := r.Checkouts().Create(ctx, &Record{
			UserID:         req.UserID,
			OrderID:        orderID,
			CouponCode:     req.CouponCode,
			TotalPrice:     total,
			DiscountAmount: discount,
			FinalPrice:     final,
			CreatedAt:      now,
		}); err != nil {
			return errors.Wrap(err, "record checkout")
		}

		// Only the charged lines go; a line added meanwhile stays for the next checkout.
		if _, err := r.Carts().DeleteItems(ctx, req.UserID, cart.IDs(items)); err != nil {
			return errors.Wrap(err, "clear cart")
		}

		res = Result{
			OrderID:   orderID,
			ItemCount: len(items),
			Total:     total,
			Discount:  discount,
			Final:     final,
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "checkout")
	}

	span.SetAttributes(attribute.Int64("storefront.order_id", res.OrderID))
	s.completed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("coupon_applied", res.Discount.IsPositive()),
	))

	lg := zctx.From(ctx)
	lg.Info("Checkout completed",
		zap.Int64("user_id", req.UserID),
		zap.Int64("order_id", res.OrderID),
		zap.Int("items", res.ItemCount),
		zap.String("final_price", res.Final.StringFixed(2)),
	)

	s.publish(ctx, lg, req, res, now)

	return &res, nil
}

// publish notifies the publisher about a committed checkout. The order is
// already durable, so delivery failures are only logged.
func (s *Service) publish(ctx context.Context, lg *zap.Logger, req Request, res Result, now time.Time) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.PublishOrderPlaced(pubCtx, OrderPlaced{
		OrderID:    res.OrderID,
		UserID:     req.UserID,
		CouponCode: req.CouponCode,
		ItemCount:  res.ItemCount,
		Total:      res.Total,
		Discount:   res.Discount,
		Final:      res.Final,
		PlacedAt:   now,
	}); err != nil {
		lg.Warn("Publish order placed event failed",
			zap.Int64("order_id", res.OrderID),
			zap.Error(err),
		)
	}
}
