package cart

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastore/m/domain"
	"pharmastore/m/internal/stock"
)

func product(stockUnits int) domain.Product {
	perBox := 10
	return domain.Product{
		ID:             "amox",
		Name:           "Amoxicilina 500mg",
		Price:          decimal.RequireFromString("5.00"),
		Stock:          stockUnits,
		UnitsPerBox:    &perBox,
		BoxPrice:       decimal.NewNullDecimal(decimal.RequireFromString("18.00")),
		PublicBoxPrice: decimal.NewNullDecimal(decimal.RequireFromString("20.00")),
	}
}

func TestAddMergesAndRejects(t *testing.T) {
	p := product(15)
	c := New()

	require.NoError(t, c.Add(p, domain.UnitSingle, 2))
	require.NoError(t, c.Add(p, domain.UnitBox, 1))
	assert.Len(t, c.Lines(), 2)

	before := c.Lines()
	err := c.Add(p, domain.UnitSingle, 4)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	assert.Equal(t, before, c.Lines(), "rejected add must not mutate the cart")

	require.NoError(t, c.Add(p, domain.UnitSingle, 3))
	assert.Len(t, c.Lines(), 2)
	assert.Equal(t, 5, c.Lines()[0].Quantity)
	assert.Equal(t, 0, c.Available(p))
}

func TestAddRejectsBoxWithoutBoxPricing(t *testing.T) {
	p := domain.Product{ID: "x", Name: "Gasas", Price: decimal.NewFromInt(1), Stock: 50}
	c := New()
	err := c.Add(p, domain.UnitBox, 1)
	require.ErrorIs(t, err, domain.ErrInvalid)
	assert.Empty(t, c.Lines())
}

func TestAddRejectsQuantityOutOfRange(t *testing.T) {
	p := product(15)
	c := New()

	for _, qty := range []int{0, -3, domain.MaxQuantity + 1, math.MaxInt/10 + 1, math.MaxInt} {
		err := c.Add(p, domain.UnitBox, qty)
		require.ErrorIs(t, err, domain.ErrInvalid, "qty %d", qty)
	}
	assert.Empty(t, c.Lines())
	assert.Equal(t, 15, c.Available(p))
}

func TestMergedQuantityStaysBounded(t *testing.T) {
	p := product(1_000_000)
	c := New()

	require.NoError(t, c.Add(p, domain.UnitSingle, domain.MaxQuantity))
	err := c.Add(p, domain.UnitSingle, 1)
	require.ErrorIs(t, err, domain.ErrInvalid)
	assert.Equal(t, domain.MaxQuantity, c.Lines()[0].Quantity)
}
