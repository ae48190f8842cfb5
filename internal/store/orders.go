package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmastore/m/domain"
	"pharmastore/m/internal/feed"
)

const orderColumns = `id, customer_name, customer_phone, customer_address, customer_cedula, items, subtotal,
        delivery_fee, discount, coupon_code, points_redeemed, total, payment_method, cash_given, change_due,
        status, source, user_id, date`

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	Status domain.OrderStatus
	Source domain.OrderSource
	UserID string
	From   *time.Time
	To     *time.Time
}

func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	defer s.track("orders.list")(time.Now())

	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.From != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		clauses = append(clauses, "date < ?")
		args = append(args, f.To.UTC())
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY date DESC"

	var orders []domain.Order
	if err := s.db.SelectContext(ctx, &orders, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return keepValid(s.log, CollOrders, orders), nil
}

func getOrder(ctx context.Context, q sqlx.ExtContext, id string) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, q, &o, q.Rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id)
	if err != nil {
		return o, fmt.Errorf("get order %s: %w", id, classify(err))
	}
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	defer s.track("orders.get")(time.Now())
	return getOrder(ctx, s.db, id)
}

// GetOrder reads an order inside the transaction.
func (t *Tx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return getOrder(ctx, t.tx, id)
}

// InsertOrder assigns id and date when empty and writes o.
func (t *Tx) InsertOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Date.IsZero() {
		o.Date = t.store.now()
	}
	if err := o.Validate(); err != nil {
		return o, err
	}
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES (:id, :customer_name,
        :customer_phone, :customer_address, :customer_cedula, :items, :subtotal, :delivery_fee, :discount,
        :coupon_code, :points_redeemed, :total, :payment_method, :cash_given, :change_due, :status, :source,
        :user_id, :date)`, o)
	if err != nil {
		return o, fmt.Errorf("insert order: %w", classify(err))
	}
	t.emit(CollOrders, feed.OpAdded, o.ID, o)
	return o, nil
}

// CompareAndSetStatus moves order id from -> to. It returns ErrConflict when
// the stored status is no longer from, so a repeated request cannot apply twice.
func (t *Tx) CompareAndSetStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE orders SET status = ? WHERE id = ? AND status = ?`), to, id, from)
	if err != nil {
		return fmt.Errorf("update order status: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("order %s is no longer %s: %w", id, from, ErrConflict)
	}
	if o, err := getOrder(ctx, t.tx, id); err == nil {
		t.emit(CollOrders, feed.OpModified, id, o)
	}
	return nil
}
