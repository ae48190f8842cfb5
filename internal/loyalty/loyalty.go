// Package loyalty implements the points rules: floor(subtotal) points are
// earned when an order is delivered, and a fixed block of points can be traded
// for a fixed discount.
package loyalty

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInsufficientPoints = errors.New("insufficient loyalty points")

// PointsEarned returns the points credited for a delivered order.
func PointsEarned(subtotal decimal.Decimal) int {
	if !subtotal.IsPositive() {
		return 0
	}
	return int(subtotal.Floor().IntPart())
}

// Policy configures redemption. The discount a redemption is worth lives in
// the pricing calculator.
type Policy struct {
	Threshold int
}

// CanRedeem reports whether balance covers one redemption.
func (p Policy) CanRedeem(balance int) bool {
	return p.Threshold > 0 && balance >= p.Threshold
}

// Redeem returns the points one redemption debits from balance, which is
// always exactly the threshold.
func (p Policy) Redeem(balance int) (int, error) {
	if !p.CanRedeem(balance) {
		return 0, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientPoints, balance, p.Threshold)
	}
	return p.Threshold, nil
}
