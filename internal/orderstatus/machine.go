// Package orderstatus is the one-way delivery state machine:
// PENDING -> IN_TRANSIT -> DELIVERED.
package orderstatus

import (
	"errors"
	"fmt"

	"pharmastore/m/domain"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTerminal          = errors.New("order already delivered")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// Initial returns the status an order is created in.
func Initial(source domain.OrderSource) domain.OrderStatus {
	if source == domain.SourcePOS {
		return domain.StatusDelivered
	}
	return domain.StatusPending
}

// Next returns the only status reachable from s.
func Next(s domain.OrderStatus) (domain.OrderStatus, error) {
	switch s {
	case domain.StatusPending:
		return domain.StatusInTransit, nil
	case domain.StatusInTransit:
		return domain.StatusDelivered, nil
	case domain.StatusDelivered:
		return "", ErrTerminal
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// IsTerminal reports whether s is the status that earns loyalty points.
func IsTerminal(s domain.OrderStatus) bool {
	return s == domain.StatusDelivered
}

// Transition validates from -> to.
func Transition(from, to domain.OrderStatus) error {
	next, err := Next(from)
	if err != nil {
		return err
	}
	if next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
