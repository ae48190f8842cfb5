package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentTransfer
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusInTransit OrderStatus = "IN_TRANSIT"
	StatusDelivered OrderStatus = "DELIVERED"
)

type OrderSource string

const (
	SourceOnline OrderSource = "ONLINE"
	SourcePOS    OrderSource = "POS"
)

// OrderLines is stored as a single JSON document column.
type OrderLines []CartItem

// Value implements driver.Valuer.
func (l OrderLines) Value() (driver.Value, error) {
	if l == nil {
		l = OrderLines{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *OrderLines) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = OrderLines{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("order lines: unsupported source type %T", src)
	}
	return json.Unmarshal(raw, l)
}

// Order is immutable after creation except for Status.
type Order struct {
	ID              string              `db:"id" json:"id"`
	CustomerName    string              `db:"customer_name" json:"customer_name"`
	CustomerPhone   string              `db:"customer_phone" json:"customer_phone"`
	CustomerAddress string              `db:"customer_address" json:"customer_address"`
	CustomerCedula  *string             `db:"customer_cedula" json:"customer_cedula,omitempty"`
	Items           OrderLines          `db:"items" json:"items"`
	Subtotal        decimal.Decimal     `db:"subtotal" json:"subtotal"`
	DeliveryFee     decimal.Decimal     `db:"delivery_fee" json:"delivery_fee"`
	Discount        decimal.Decimal     `db:"discount" json:"discount"`
	CouponCode      *string             `db:"coupon_code" json:"coupon_code,omitempty"`
	PointsRedeemed  int                 `db:"points_redeemed" json:"points_redeemed"`
	Total           decimal.Decimal     `db:"total" json:"total"`
	PaymentMethod   PaymentMethod       `db:"payment_method" json:"payment_method"`
	CashGiven       decimal.NullDecimal `db:"cash_given" json:"cash_given"`
	Change          decimal.NullDecimal `db:"change_due" json:"change"`
	Status          OrderStatus         `db:"status" json:"status"`
	Source          OrderSource         `db:"source" json:"source"`
	UserID          *string             `db:"user_id" json:"user_id,omitempty"`
	Date            time.Time           `db:"date" json:"date"`
}

// Validate checks the stored shape of an order, including the total invariant.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return invalidf("order %s has no items", o.ID)
	}
	for _, item := range o.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	if !o.PaymentMethod.Valid() {
		return invalidf("order %s has unknown payment method %q", o.ID, o.PaymentMethod)
	}
	switch o.Status {
	case StatusPending, StatusInTransit, StatusDelivered:
	default:
		return invalidf("order %s has unknown status %q", o.ID, o.Status)
	}
	if o.Source != SourceOnline && o.Source != SourcePOS {
		return invalidf("order %s has unknown source %q", o.ID, o.Source)
	}
	want := decimal.Max(decimal.Zero, o.Subtotal.Add(o.DeliveryFee).Sub(o.Discount))
	if !o.Total.Equal(want.Round(2)) {
		return invalidf("order %s total %s does not match %s", o.ID, o.Total, want)
	}
	return nil
}

// ProductUnits totals the base units each product consumes in the order.
func (o Order) ProductUnits() map[string]int {
	units := make(map[string]int, len(o.Items))
	for _, item := range o.Items {
		units[item.Product.ID] = AddUnits(units[item.Product.ID], item.Units())
	}
	return units
}
