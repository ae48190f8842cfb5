package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/feed"
)

const productColumns = `id, name, description, category, price, cost_price, stock, units_per_box, box_price,
        public_box_price, barcode, expiry_date, supplier_id, image_url, created_at, updated_at`

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	Category    string
	Query       string
	InStockOnly bool
	Limit       int
}

func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	defer s.track("products.list")(time.Now())

	var (
		clauses []string
		args    []any
	)
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR barcode = ?)")
		args = append(args, like, like, q)
	}
	if f.InStockOnly {
		clauses = append(clauses, "stock > 0")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var products []domain.Product
	if err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return keepValid(s.log, CollProducts, products), nil
}

func getProduct(ctx context.Context, q sqlx.ExtContext, id string) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, q, &p, q.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if err != nil {
		return p, fmt.Errorf("get product %s: %w", id, classify(err))
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	defer s.track("products.get")(time.Now())
	return getProduct(ctx, s.db, id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	defer s.track("products.get_barcode")(time.Now())
	var p domain.Product
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE barcode = ?`), barcode)
	if err != nil {
		return p, fmt.Errorf("get product by barcode: %w", classify(err))
	}
	return p, p.Validate()
}

// ProductsByID loads the given products keyed by id. Missing ids are absent
// from the result.
func (s *Store) ProductsByID(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	return productsByID(ctx, s.db, ids)
}

func productsByID(ctx context.Context, q sqlx.ExtContext, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := sqlx.SelectContext(ctx, q, &products, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	for _, p := range products {
		if p.Validate() == nil {
			out[p.ID] = p
		}
	}
	return out, nil
}

const productInsert = `INSERT INTO products (` + productColumns + `) VALUES (:id, :name, :description, :category,
        :price, :cost_price, :stock, :units_per_box, :box_price, :public_box_price, :barcode, :expiry_date,
        :supplier_id, :image_url, :created_at, :updated_at)`

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	defer s.track("products.create")(time.Now())
	if p.ID == "" {
		p.ID = newID()
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	p.ExpiryDate = utcPtr(p.ExpiryDate)
	if err := p.Validate(); err != nil {
		return p, err
	}
	if _, err := s.db.NamedExecContext(ctx, productInsert, p); err != nil {
		return p, fmt.Errorf("create product: %w", classify(err))
	}
	s.publish(ctx, feed.NewEvent(CollProducts, feed.OpAdded, p.ID, p))
	return p, nil
}

// UpsertProduct inserts p or replaces the existing product with the same id.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.ID == "" {
		return s.CreateProduct(ctx, p)
	}
	if _, err := s.GetProduct(ctx, p.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return s.CreateProduct(ctx, p)
		}
		return p, err
	}
	return s.UpdateProduct(ctx, p)
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	defer s.track("products.update")(time.Now())
	existing, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return p, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	p.ExpiryDate = utcPtr(p.ExpiryDate)
	if err := p.Validate(); err != nil {
		return p, err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE products SET name = :name, description = :description,
        category = :category, price = :price, cost_price = :cost_price, stock = :stock,
        units_per_box = :units_per_box, box_price = :box_price, public_box_price = :public_box_price,
        barcode = :barcode, expiry_date = :expiry_date, supplier_id = :supplier_id, image_url = :image_url,
        updated_at = :updated_at WHERE id = :id`, p)
	if err != nil {
		return p, fmt.Errorf("update product: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return p, fmt.Errorf("update product %s: %w", p.ID, err)
	}
	s.publish(ctx, feed.NewEvent(CollProducts, feed.OpModified, p.ID, p))
	s.notifyRestock(ctx, p)
	return p, nil
}

// SetStock overwrites the stock count after a physical count or restock.
func (s *Store) SetStock(ctx context.Context, id string, units int) (domain.Product, error) {
	defer s.track("products.set_stock")(time.Now())
	if units < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", domain.ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`), units, s.now(), id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("set stock: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return domain.Product{}, fmt.Errorf("set stock %s: %w", id, err)
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return p, err
	}
	s.publish(ctx, feed.NewEvent(CollProducts, feed.OpModified, p.ID, p))
	s.notifyRestock(ctx, p)
	return p, nil
}

// notifyRestock flags pending stock alerts once p is back in stock.
func (s *Store) notifyRestock(ctx context.Context, p domain.Product) {
	if !p.InStock() {
		return
	}
	alerts, err := s.MarkAlertsNotified(ctx, p.ID)
	if err != nil {
		s.log.Warn("mark stock alerts failed", zap.String("product_id", p.ID), zap.Error(err))
		return
	}
	if len(alerts) > 0 {
		s.log.Info("stock alerts notified", zap.String("product_id", p.ID), zap.Int("alerts", len(alerts)))
	}
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "products", CollProducts, id)
}

// DecrementStock takes units out of product id only if that many are left.
func (t *Tx) DecrementStock(ctx context.Context, id string, units int) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE products SET stock = stock - ?, updated_at = ?
        WHERE id = ? AND stock >= ?`), units, t.store.now(), id, units)
	if err != nil {
		return fmt.Errorf("decrement stock %s: %w", id, classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("decrement stock %s: %w", id, ErrConflict)
	}
	p, err := getProduct(ctx, t.tx, id)
	if err == nil {
		t.emit(CollProducts, feed.OpModified, id, p)
	}
	return nil
}

// ProductsByID loads products inside the transaction.
func (t *Tx) ProductsByID(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	return productsByID(ctx, t.tx, ids)
}

// LowStock lists products at or below threshold units.
func (s *Store) LowStock(ctx context.Context, threshold int) ([]domain.Product, error) {
	defer s.track("products.low_stock")(time.Now())
	var products []domain.Product
	err := s.db.SelectContext(ctx, &products, s.db.Rebind(`SELECT `+productColumns+` FROM products
        WHERE stock <= ? ORDER BY stock ASC, name`), threshold)
	if err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return keepValid(s.log, CollProducts, products), nil
}

// ExpiringProducts lists products whose expiry date falls before now+within.
func (s *Store) ExpiringProducts(ctx context.Context, within time.Duration) ([]domain.Product, error) {
	defer s.track("products.expiring")(time.Now())
	var products []domain.Product
	err := s.db.SelectContext(ctx, &products, s.db.Rebind(`SELECT `+productColumns+` FROM products
        WHERE expiry_date IS NOT NULL AND expiry_date <= ? ORDER BY expiry_date ASC`), s.now().Add(within))
	if err != nil {
		return nil, fmt.Errorf("expiring products: %w", err)
	}
	return keepValid(s.log, CollProducts, products), nil
}

func (s *Store) deleteByID(ctx context.Context, table, collection, id string) error {
	defer s.track(collection + ".delete")(time.Now())
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	s.publish(ctx, feed.NewEvent(collection, feed.OpRemoved, id, nil))
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
