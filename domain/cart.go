package domain

import "math"

// Unit selects how a cart line is sold.
type Unit string

const (
	UnitSingle Unit = "UNIT"
	UnitBox    Unit = "BOX"
)

// Valid reports whether u is a known selling unit.
func (u Unit) Valid() bool {
	return u == UnitSingle || u == UnitBox
}

// MaxQuantity caps the quantity of a single cart or order line.
const MaxQuantity = 10000

// CartItem is a product snapshot plus the requested quantity.
type CartItem struct {
	Product      Product `json:"product"`
	Quantity     int     `json:"quantity"`
	SelectedUnit Unit    `json:"selected_unit"`
}

// Units returns how many base units of stock the line consumes. The result
// saturates at math.MaxInt instead of wrapping.
func (c CartItem) Units() int {
	if c.Quantity <= 0 {
		return 0
	}
	if c.SelectedUnit != UnitBox {
		return c.Quantity
	}
	per := c.Product.BoxUnits()
	if per > 0 && c.Quantity > math.MaxInt/per {
		return math.MaxInt
	}
	return c.Quantity * per
}

// AddUnits sums unit counts, saturating at math.MaxInt.
func AddUnits(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Validate checks quantity and unit selection against the product snapshot.
func (c CartItem) Validate() error {
	if c.Quantity < 1 {
		return invalidf("quantity for %q must be at least 1", c.Product.Name)
	}
	if c.Quantity > MaxQuantity {
		return invalidf("quantity for %q must be at most %d", c.Product.Name, MaxQuantity)
	}
	if !c.SelectedUnit.Valid() {
		return invalidf("unknown unit %q", c.SelectedUnit)
	}
	if c.SelectedUnit == UnitBox && !c.Product.HasBoxPricing() {
		return invalidf("product %q is not sold by the box", c.Product.Name)
	}
	return nil
}
