package store

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pharmastore/m/domain"
)

// RevenuePoint is the sales total for one day or month. Only DELIVERED
// orders count. Revenue is what customers paid for goods; delivery fees are
// reported apart.
type RevenuePoint struct {
	Period       string          `json:"period"`
	Orders       int             `json:"orders"`
	Revenue      decimal.Decimal `json:"revenue"`
	DeliveryFees decimal.Decimal `json:"delivery_fees"`
}

// ProfitSummary covers the DELIVERED orders of a date range. Delivery fees
// are passed through to drivers and stay out of Revenue and Profit.
type ProfitSummary struct {
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Orders       int             `json:"orders"`
	Revenue      decimal.Decimal `json:"revenue"`
	DeliveryFees decimal.Decimal `json:"delivery_fees"`
	CostOfGoods  decimal.Decimal `json:"cost_of_goods"`
	Expenses     decimal.Decimal `json:"expenses"`
	Profit       decimal.Decimal `json:"profit"`
}

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// SplitTotal divides what the customer paid into goods revenue and the
// delivery fee collected. A discount larger than the subtotal eats into the
// fee, never below zero.
func SplitTotal(o domain.Order) (goods, fee decimal.Decimal) {
	fee = decimal.Min(o.DeliveryFee, o.Total)
	return o.Total.Sub(fee), fee
}

func (s *Store) deliveredOrders(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	return s.ListOrders(ctx, OrderFilter{Status: domain.StatusDelivered, From: &from, To: &to})
}

// DailyRevenue groups orders dated in [from, to) by UTC day.
func (s *Store) DailyRevenue(ctx context.Context, from, to time.Time) ([]RevenuePoint, error) {
	return s.revenueBy(ctx, from, to, dayLayout)
}

// MonthlyRevenue groups orders dated in [from, to) by UTC month.
func (s *Store) MonthlyRevenue(ctx context.Context, from, to time.Time) ([]RevenuePoint, error) {
	return s.revenueBy(ctx, from, to, monthLayout)
}

// Bucketing happens here rather than in SQL because date functions differ
// between sqlite and postgres.
func (s *Store) revenueBy(ctx context.Context, from, to time.Time, layout string) ([]RevenuePoint, error) {
	orders, err := s.deliveredOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]*RevenuePoint)
	for _, o := range orders {
		key := o.Date.UTC().Format(layout)
		pt, ok := buckets[key]
		if !ok {
			pt = &RevenuePoint{Period: key, Revenue: decimal.Zero, DeliveryFees: decimal.Zero}
			buckets[key] = pt
		}
		goods, fee := SplitTotal(o)
		pt.Orders++
		pt.Revenue = pt.Revenue.Add(goods)
		pt.DeliveryFees = pt.DeliveryFees.Add(fee)
	}
	points := make([]RevenuePoint, 0, len(buckets))
	for _, pt := range buckets {
		points = append(points, *pt)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// CostOfGoods prices the base units of an order at each product's cost
// snapshot. Lines without a cost price count as zero.
func CostOfGoods(o domain.Order) decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		if !item.Product.CostPrice.Valid {
			continue
		}
		units := decimal.NewFromInt(int64(item.Units()))
		total = total.Add(item.Product.CostPrice.Decimal.Mul(units))
	}
	return total.Round(2)
}

// Profit computes goods revenue minus cost of goods minus expenses for
// [from, to).
func (s *Store) Profit(ctx context.Context, from, to time.Time) (ProfitSummary, error) {
	sum := ProfitSummary{
		From:        from.UTC(),
		To:          to.UTC(),
		Revenue:      decimal.Zero,
		DeliveryFees: decimal.Zero,
		CostOfGoods:  decimal.Zero,
		Expenses:     decimal.Zero,
	}
	orders, err := s.deliveredOrders(ctx, from, to)
	if err != nil {
		return sum, err
	}
	for _, o := range orders {
		goods, fee := SplitTotal(o)
		sum.Orders++
		sum.Revenue = sum.Revenue.Add(goods)
		sum.DeliveryFees = sum.DeliveryFees.Add(fee)
		sum.CostOfGoods = sum.CostOfGoods.Add(CostOfGoods(o))
	}
	expenses, err := s.ListExpenses(ctx, from, to)
	if err != nil {
		return sum, err
	}
	for _, e := range expenses {
		sum.Expenses = sum.Expenses.Add(e.Amount)
	}
	sum.Profit = sum.Revenue.Sub(sum.CostOfGoods).Sub(sum.Expenses)
	return sum, nil
}
