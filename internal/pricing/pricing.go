// Package pricing turns cart lines, a coupon and a points redemption into an
// order breakdown.
package pricing

import (
	"github.com/shopspring/decimal"

	"pharmastore/m/domain"
)

var hundred = decimal.NewFromInt(100)

// LinePrice is the price of one quantity step of line.
func LinePrice(line domain.CartItem) decimal.Decimal {
	if line.SelectedUnit == domain.UnitBox && line.Product.BoxPrice.Valid {
		return line.Product.BoxPrice.Decimal
	}
	return line.Product.Price
}

func LineTotal(line domain.CartItem) decimal.Decimal {
	return LinePrice(line).Mul(decimal.NewFromInt(int64(line.Quantity)))
}

func Subtotal(lines []domain.CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line))
	}
	return sum
}

// CouponDiscount never exceeds subtotal. A nil coupon contributes nothing.
func CouponDiscount(subtotal decimal.Decimal, c *domain.Coupon) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch c.Type {
	case domain.CouponPercentage:
		d = subtotal.Mul(c.Value).Div(hundred)
	case domain.CouponFixed:
		d = c.Value
	default:
		return decimal.Zero
	}
	return decimal.Max(decimal.Zero, decimal.Min(subtotal, d))
}

// Total is subtotal + deliveryFee - discount, clamped at zero.
func Total(subtotal, deliveryFee, discount decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, subtotal.Add(deliveryFee).Sub(discount))
}

// Change returns cashGiven - total. sufficient is false when the cash does not
// cover the total; the negative amount is returned as-is.
func Change(cashGiven, total decimal.Decimal) (change decimal.Decimal, sufficient bool) {
	change = cashGiven.Sub(total)
	return change, !change.IsNegative()
}

// Calculator holds the per-store pricing constants.
type Calculator struct {
	DeliveryFee     decimal.Decimal
	RedemptionValue decimal.Decimal
}

// Request is the input to Quote.
type Request struct {
	Lines    []domain.CartItem
	Coupon   *domain.Coupon
	Redeem   bool
	Delivery bool
}

// Breakdown is the priced result of a Request.
type Breakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	PointsDiscount decimal.Decimal `json:"points_discount"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
}

// Quote prices req. Each component is rounded to cents before the total is
// derived, so the total invariant holds on the rounded values.
func (c Calculator) Quote(req Request) Breakdown {
	subtotal := Subtotal(req.Lines).Round(2)
	fee := decimal.Zero
	if req.Delivery {
		fee = c.DeliveryFee.Round(2)
	}
	couponOff := CouponDiscount(subtotal, req.Coupon).Round(2)
	pointsOff := decimal.Zero
	if req.Redeem {
		pointsOff = c.RedemptionValue.Round(2)
	}
	discount := couponOff.Add(pointsOff)

	return Breakdown{
		Subtotal:       subtotal,
		DeliveryFee:    fee,
		CouponDiscount: couponOff,
		PointsDiscount: pointsOff,
		Discount:       discount,
		Total:          Total(subtotal, fee, discount),
	}
}
