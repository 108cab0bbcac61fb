package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	// StatusPending is the state of every newly checked-out order.
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// Order is the durable record produced by a checkout.
type Order struct {
	ID         int64
	UserID     int64
	TotalPrice decimal.Decimal
	Status     Status
	CreatedAt  time.Time
}

// FormattedTotal returns the total price with exactly two decimal places.
func (o Order) FormattedTotal() string {
	return o.TotalPrice.StringFixed(2)
}

// TrackingEvent is one entry of an order's fulfillment history.
type TrackingEvent struct {
	ID        int64
	OrderID   int64
	Status    string
	Location  *string
	Timestamp time.Time
}

// Repository defines persistence operations for orders and their tracking
// history.
type Repository interface {
	// ListByUser returns the orders placed by userID.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// GetByID returns a single order or fault.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Order, error)
	// ListTracking returns the tracking events of orderID, oldest first.
	ListTracking(ctx context.Context, orderID int64) ([]TrackingEvent, error)
	// Create inserts a Pending order for userID and returns its id.
	Create(ctx context.Context, userID int64, totalPrice decimal.Decimal) (int64, error)
}
