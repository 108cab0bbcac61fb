package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is a product line in a user's cart. Price is the unit price captured
// when the item was added.
type Item struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// LineTotal returns price * quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IDs returns the ids of items in order.
func IDs(items []Item) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Repository defines persistence operations for cart items.
type Repository interface {
	// ListByUser returns the cart of userID. An empty cart is not an error.
	ListByUser(ctx context.Context, userID int64) ([]Item, error)
	// ListByUserForUpdate is ListByUser that also locks the returned rows
	// until the surrounding transaction ends.
	ListByUserForUpdate(ctx context.Context, userID int64) ([]Item, error)
	// DeleteItems removes the cart rows of userID whose ids are listed and
	// reports how many were removed.
	DeleteItems(ctx context.Context, userID int64, ids []int64) (int64, error)
}
