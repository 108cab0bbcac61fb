package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID       int64
	Name     string
	Category string
	Price    decimal.Decimal
}

// Category is a named group of products, in listing order.
type Category struct {
	Name     string
	Products []Product
}

// Repository defines read operations for the product catalog.
type Repository interface {
	// List returns every product ordered by category, then name.
	List(ctx context.Context) ([]Product, error)
}

// GroupByCategory groups products by category. Categories appear in the order
// they are first seen, so a listing sorted by category keeps its order.
func GroupByCategory(products []Product) []Category {
	var (
		out   []Category
		index = make(map[string]int)
	)
	for _, p := range products {
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, Category{Name: p.Category})
		}
		out[i].Products = append(out[i].Products, p)
	}
	return out
}
