package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalid marks records rejected at the persistence or API boundary.
var ErrInvalid = errors.New("invalid record")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Product is a catalog entry. Stock is always counted in base units.
type Product struct {
	ID             string              `db:"id" json:"id"`
	Name           string              `db:"name" json:"name"`
	Description    string              `db:"description" json:"description"`
	Category       string              `db:"category" json:"category"`
	Price          decimal.Decimal     `db:"price" json:"price"`
	CostPrice      decimal.NullDecimal `db:"cost_price" json:"cost_price"`
	Stock          int                 `db:"stock" json:"stock"`
	UnitsPerBox    *int                `db:"units_per_box" json:"units_per_box,omitempty"`
	BoxPrice       decimal.NullDecimal `db:"box_price" json:"box_price"`
	PublicBoxPrice decimal.NullDecimal `db:"public_box_price" json:"public_box_price"`
	Barcode        *string             `db:"barcode" json:"barcode,omitempty"`
	ExpiryDate     *time.Time          `db:"expiry_date" json:"expiry_date,omitempty"`
	SupplierID     *string             `db:"supplier_id" json:"supplier_id,omitempty"`
	ImageURL       string              `db:"image_url" json:"image_url"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// HasBoxPricing reports whether the product can be sold by the box.
func (p Product) HasBoxPricing() bool {
	return p.UnitsPerBox != nil && p.BoxPrice.Valid
}

// BoxUnits returns the number of base units in one box, or 1 without box pricing.
func (p Product) BoxUnits() int {
	if p.UnitsPerBox == nil {
		return 1
	}
	return *p.UnitsPerBox
}

// Validate checks the product invariants: stock >= 0, non-negative prices and
// box pricing fields either all present or all absent.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalidf("product name is required")
	}
	if p.Stock < 0 {
		return invalidf("product %q has negative stock %d", p.Name, p.Stock)
	}
	if p.Price.IsNegative() {
		return invalidf("product %q has negative price", p.Name)
	}
	if p.CostPrice.Valid && p.CostPrice.Decimal.IsNegative() {
		return invalidf("product %q has negative cost price", p.Name)
	}

	present := 0
	if p.UnitsPerBox != nil {
		present++
	}
	if p.BoxPrice.Valid {
		present++
	}
	if p.PublicBoxPrice.Valid {
		present++
	}
	if present != 0 && present != 3 {
		return invalidf("product %q must set units_per_box, box_price and public_box_price together", p.Name)
	}
	if p.UnitsPerBox != nil && *p.UnitsPerBox < 1 {
		return invalidf("product %q units_per_box must be at least 1", p.Name)
	}
	if p.BoxPrice.Valid && p.BoxPrice.Decimal.IsNegative() {
		return invalidf("product %q has negative box price", p.Name)
	}
	return nil
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}
