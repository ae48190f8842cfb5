// Package cart holds the lines of a checkout being assembled. Every add is
// checked against the stock ledger and leaves the cart untouched on failure.
package cart

import (
	"pharmastore/m/domain"
	"pharmastore/m/internal/stock"
)

type Cart struct {
	lines []domain.CartItem
}

func New() *Cart {
	return &Cart{}
}

// Lines returns a copy of the current lines.
func (c *Cart) Lines() []domain.CartItem {
	out := make([]domain.CartItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) index(productID string, unit domain.Unit) int {
	for i, line := range c.lines {
		if line.Product.ID == productID && line.SelectedUnit == unit {
			return i
		}
	}
	return -1
}

// Add reserves qty of p sold by unit. Lines for the same product and unit are
// merged, and the merged quantity is held to the same bounds as a new line.
func (c *Cart) Add(p domain.Product, unit domain.Unit, qty int) error {
	item := domain.CartItem{Product: p, Quantity: qty, SelectedUnit: unit}
	if err := item.Validate(); err != nil {
		return err
	}
	i := c.index(p.ID, unit)
	if i >= 0 {
		merged := c.lines[i]
		merged.Quantity += qty
		if err := merged.Validate(); err != nil {
			return err
		}
	}
	if err := stock.CheckAdd(p, c.lines, unit, qty); err != nil {
		return err
	}
	if i >= 0 {
		c.lines[i].Quantity += qty
		c.lines[i].Product = p
		return nil
	}
	c.lines = append(c.lines, item)
	return nil
}

// Available returns the units of p that can still be added.
func (c *Cart) Available(p domain.Product) int {
	return stock.AvailableUnits(p, c.lines)
}
