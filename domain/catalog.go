package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Icon string `db:"icon" json:"icon"`
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalidf("category name is required")
	}
	return nil
}

type CouponType string

const (
	CouponPercentage CouponType = "PERCENTAGE"
	CouponFixed      CouponType = "FIXED"
)

type Coupon struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Type      CouponType      `db:"type" json:"type"`
	Value     decimal.Decimal `db:"value" json:"value"`
	Active    bool            `db:"active" json:"active"`
	ExpiresAt *time.Time      `db:"expires_at" json:"expires_at,omitempty"`
}

func (c Coupon) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return invalidf("coupon code is required")
	}
	if c.Type != CouponPercentage && c.Type != CouponFixed {
		return invalidf("coupon %s has unknown type %q", c.Code, c.Type)
	}
	if c.Value.IsNegative() {
		return invalidf("coupon %s has negative value", c.Code)
	}
	if c.Type == CouponPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return invalidf("coupon %s percentage above 100", c.Code)
	}
	return nil
}

// Usable reports whether the coupon may be applied at time now.
func (c Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// NormalizeCode is the canonical stored form of coupon codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type Banner struct {
	ID       string `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	ImageURL string `db:"image_url" json:"image_url"`
	Link     string `db:"link" json:"link"`
	Active   bool   `db:"active" json:"active"`
	Position int    `db:"position" json:"position"`
}

func (b Banner) Validate() error {
	if strings.TrimSpace(b.ImageURL) == "" {
		return invalidf("banner image_url is required")
	}
	return nil
}

type Supplier struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Contact string `db:"contact" json:"contact"`
	Phone   string `db:"phone" json:"phone"`
	Email   string `db:"email" json:"email"`
}

func (s Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return invalidf("supplier name is required")
	}
	return nil
}
