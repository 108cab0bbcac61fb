// Package pricing holds the pure money arithmetic of the storefront.
// All functions use exact decimal arithmetic and perform no I/O.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
)

// Total returns the sum of price * quantity over items. An empty cart totals zero.
func Total(items []cart.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// Final returns total minus discount, floored at zero and rounded to cents.
func Final(total, discount decimal.Decimal) decimal.Decimal {
	final := total.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final.Round(2)
}
