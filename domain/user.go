package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser    Role = "USER"
	RoleAdmin   Role = "ADMIN"
	RoleCashier Role = "CASHIER"
	RoleDriver  Role = "DRIVER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleCashier, RoleDriver:
		return true
	}
	return false
}

// User is a customer or staff account. Points only change on delivery credit
// and redemption debit.
type User struct {
	UID          string    `db:"uid" json:"uid"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Address      *string   `db:"address" json:"address,omitempty"`
	Cedula       *string   `db:"cedula" json:"cedula,omitempty"`
	Role         Role      `db:"role" json:"role"`
	Points       int       `db:"points" json:"points"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return invalidf("user email is required")
	}
	if !u.Role.Valid() {
		return invalidf("user %s has unknown role %q", u.UID, u.Role)
	}
	if u.Points < 0 {
		return invalidf("user %s has negative points", u.UID)
	}
	return nil
}
