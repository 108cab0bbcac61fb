package product

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByCategory(t *testing.T) {
	products := []Product{
		{ID: 3, Name: "Decaf", Category: "Coffee", Price: decimal.RequireFromString("8.75")},
		{ID: 1, Name: "Espresso", Category: "Coffee", Price: decimal.RequireFromString("24.90")},
		{ID: 4, Name: "Grinder", Category: "Equipment", Price: decimal.RequireFromString("65.00")},
		{ID: 7, Name: "Mug", Category: "Merchandise", Price: decimal.RequireFromString("10.00")},
	}

	groups := GroupByCategory(products)
	require.Len(t, groups, 3)

	assert.Equal(t, "Coffee", groups[0].Name)
	require.Len(t, groups[0].Products, 2)
	assert.Equal(t, "Decaf", groups[0].Products[0].Name)
	assert.Equal(t, "Espresso", groups[0].Products[1].Name)

	assert.Equal(t, "Equipment", groups[1].Name)
	assert.Equal(t, "Merchandise", groups[2].Name)
}

func TestGroupByCategory_Empty(t *testing.T) {
	assert.Empty(t, GroupByCategory(nil))
}
