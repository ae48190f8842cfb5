// Package stock computes how much of a product is already reserved by lines
// that have not yet been written back as a stock decrement.
package stock

import (
	"errors"
	"fmt"

	"pharmastore/m/domain"
)

// ErrInsufficientStock is returned when a request would reserve more units
// than the product has.
var ErrInsufficientStock = errors.New("insufficient stock")

// UnitsFor returns the base units one quantity step of unit consumes.
func UnitsFor(p domain.Product, unit domain.Unit) int {
	if unit == domain.UnitBox {
		return p.BoxUnits()
	}
	return 1
}

// ReservedUnits sums the base units held by lines for productID.
func ReservedUnits(productID string, lines []domain.CartItem) int {
	reserved := 0
	for _, line := range lines {
		if line.Product.ID != productID || line.Quantity <= 0 {
			continue
		}
		reserved = domain.AddUnits(reserved, line.Units())
	}
	return reserved
}

// AvailableUnits returns the units of p still purchasable given lines.
func AvailableUnits(p domain.Product, lines []domain.CartItem) int {
	return max(0, p.Stock-ReservedUnits(p.ID, lines))
}

// CheckAdd reports whether qty more of unit can be reserved for p on top of
// lines. The comparison divides the remaining stock instead of multiplying
// qty, so no quantity can wrap around.
func CheckAdd(p domain.Product, lines []domain.CartItem, unit domain.Unit, qty int) error {
	per := UnitsFor(p, unit)
	reserved := ReservedUnits(p.ID, lines)
	remaining := p.Stock - reserved
	if remaining < 0 || per < 1 || qty > remaining/per {
		return fmt.Errorf("%w: %s has %d units, %d reserved, %d x %d requested",
			ErrInsufficientStock, p.Name, p.Stock, reserved, qty, per)
	}
	return nil
}

// CheckLines validates that every product referenced by lines has enough stock
// in current, keyed by product id.
func CheckLines(lines []domain.CartItem, current map[string]domain.Product) error {
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		id := line.Product.ID
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := current[id]
		if !ok {
			return fmt.Errorf("%w: product %s no longer exists", ErrInsufficientStock, id)
		}
		if reserved := ReservedUnits(id, lines); reserved > p.Stock {
			return fmt.Errorf("%w: %s has %d units, %d requested",
				ErrInsufficientStock, p.Name, p.Stock, reserved)
		}
	}
	return nil
}
