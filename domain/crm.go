package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SearchLog struct {
	Term         string    `db:"term" json:"term"`
	Count        int       `db:"count" json:"count"`
	LastSearched time.Time `db:"last_searched" json:"last_searched"`
}

type Subscription struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s Subscription) Validate() error {
	if !strings.Contains(s.Email, "@") {
		return invalidf("subscription email %q is not valid", s.Email)
	}
	return nil
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingDone      BookingStatus = "DONE"
)

// ServiceBooking is an appointment for an in-store service such as a blood
// pressure check or an injection.
type ServiceBooking struct {
	ID           string        `db:"id" json:"id"`
	Service      string        `db:"service" json:"service"`
	CustomerName string        `db:"customer_name" json:"customer_name"`
	Phone        string        `db:"phone" json:"phone"`
	Date         time.Time     `db:"date" json:"date"`
	Notes        string        `db:"notes" json:"notes"`
	Status       BookingStatus `db:"status" json:"status"`
	UserID       *string       `db:"user_id" json:"user_id,omitempty"`
}

func (b ServiceBooking) Validate() error {
	if strings.TrimSpace(b.Service) == "" || strings.TrimSpace(b.CustomerName) == "" || strings.TrimSpace(b.Phone) == "" {
		return invalidf("booking service, customer_name and phone are required")
	}
	switch b.Status {
	case BookingPending, BookingConfirmed, BookingDone:
	default:
		return invalidf("booking has unknown status %q", b.Status)
	}
	return nil
}

// StockAlert asks to be told when an out-of-stock product is back.
type StockAlert struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Contact   string    `db:"contact" json:"contact"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Notified  bool      `db:"notified" json:"notified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (a StockAlert) Validate() error {
	if a.ProductID == "" || strings.TrimSpace(a.Contact) == "" {
		return invalidf("stock alert product_id and contact are required")
	}
	return nil
}

type FamilyMember struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Name         string     `db:"name" json:"name"`
	Relationship string     `db:"relationship" json:"relationship"`
	BirthDate    *time.Time `db:"birth_date" json:"birth_date,omitempty"`
}

func (f FamilyMember) Validate() error {
	if f.UserID == "" || strings.TrimSpace(f.Name) == "" {
		return invalidf("family member user_id and name are required")
	}
	return nil
}

// StringList is stored as a JSON array column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("string list: unsupported source type %T", src)
}

type MedicationSchedule struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	FamilyMemberID *string    `db:"family_member_id" json:"family_member_id,omitempty"`
	Medication     string     `db:"medication" json:"medication"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Times          StringList `db:"times" json:"times"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Notes          string     `db:"notes" json:"notes"`
}

func (m MedicationSchedule) Validate() error {
	if m.UserID == "" || strings.TrimSpace(m.Medication) == "" {
		return invalidf("medication user_id and medication are required")
	}
	for _, t := range m.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return invalidf("medication time %q must be HH:MM", t)
		}
	}
	if m.EndDate != nil && m.EndDate.Before(m.StartDate) {
		return invalidf("medication end_date before start_date")
	}
	return nil
}

type Expense struct {
	ID          string          `db:"id" json:"id"`
	Description string          `db:"description" json:"description"`
	Category    string          `db:"category" json:"category"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Date        time.Time       `db:"date" json:"date"`
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return invalidf("expense description is required")
	}
	if !e.Amount.IsPositive() {
		return invalidf("expense amount must be positive")
	}
	return nil
}
