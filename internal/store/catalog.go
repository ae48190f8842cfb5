package store

import (
	"context"
	"time"

	"pharmastore/m/domain"
)

// Categories

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return listAll[domain.Category](ctx, s, CollCategories, `SELECT id, name, icon FROM categories ORDER BY name`)
}

func (s *Store) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.ID = newID()
	err := s.insert(ctx, CollCategories, `INSERT INTO categories (id, name, icon) VALUES (:id, :name, :icon)`, c.ID, c)
	return c, err
}

func (s *Store) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	err := s.update(ctx, CollCategories, `UPDATE categories SET name = :name, icon = :icon WHERE id = :id`, c.ID, c)
	return c, err
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "categories", CollCategories, id)
}

// Coupons

const couponColumns = `id, code, type, value, active, expires_at`

func (s *Store) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	return listAll[domain.Coupon](ctx, s, CollCoupons, `SELECT `+couponColumns+` FROM coupons ORDER BY code`)
}

func (s *Store) GetCouponByCode(ctx context.Context, code string) (domain.Coupon, error) {
	return getOne[domain.Coupon](ctx, s, CollCoupons,
		`SELECT `+couponColumns+` FROM coupons WHERE code = ?`, domain.NormalizeCode(code))
}

func (s *Store) CreateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error) {
	c.ID = newID()
	c.Code = domain.NormalizeCode(c.Code)
	c.ExpiresAt = utcPtr(c.ExpiresAt)
	err := s.insert(ctx, CollCoupons, `INSERT INTO coupons (`+couponColumns+`)
        VALUES (:id, :code, :type, :value, :active, :expires_at)`, c.ID, c)
	return c, err
}

func (s *Store) UpdateCoupon(ctx context.Context, c domain.Coupon) (domain.Coupon, error) {
	c.Code = domain.NormalizeCode(c.Code)
	c.ExpiresAt = utcPtr(c.ExpiresAt)
	err := s.update(ctx, CollCoupons, `UPDATE coupons SET code = :code, type = :type, value = :value,
        active = :active, expires_at = :expires_at WHERE id = :id`, c.ID, c)
	return c, err
}

func (s *Store) DeleteCoupon(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "coupons", CollCoupons, id)
}

// Banners

const bannerColumns = `id, title, image_url, link, active, position`

func (s *Store) ListBanners(ctx context.Context, activeOnly bool) ([]domain.Banner, error) {
	query := `SELECT ` + bannerColumns + ` FROM banners`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	return listAll[domain.Banner](ctx, s, CollBanners, query+` ORDER BY position, title`)
}

func (s *Store) CreateBanner(ctx context.Context, b domain.Banner) (domain.Banner, error) {
	b.ID = newID()
	err := s.insert(ctx, CollBanners, `INSERT INTO banners (`+bannerColumns+`)
        VALUES (:id, :title, :image_url, :link, :active, :position)`, b.ID, b)
	return b, err
}

func (s *Store) UpdateBanner(ctx context.Context, b domain.Banner) (domain.Banner, error) {
	err := s.update(ctx, CollBanners, `UPDATE banners SET title = :title, image_url = :image_url, link = :link,
        active = :active, position = :position WHERE id = :id`, b.ID, b)
	return b, err
}

func (s *Store) DeleteBanner(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "banners", CollBanners, id)
}

// Suppliers

const supplierColumns = `id, name, contact, phone, email`

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return listAll[domain.Supplier](ctx, s, CollSuppliers, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name`)
}

func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	sup.ID = newID()
	err := s.insert(ctx, CollSuppliers, `INSERT INTO suppliers (`+supplierColumns+`)
        VALUES (:id, :name, :contact, :phone, :email)`, sup.ID, sup)
	return sup, err
}

func (s *Store) UpdateSupplier(ctx context.Context, sup domain.Supplier) (domain.Supplier, error) {
	err := s.update(ctx, CollSuppliers, `UPDATE suppliers SET name = :name, contact = :contact, phone = :phone,
        email = :email WHERE id = :id`, sup.ID, sup)
	return sup, err
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "suppliers", CollSuppliers, id)
}

// UsableCoupon looks up code for checkout. Inactive or expired coupons are
// reported as ErrNotFound.
func (s *Store) UsableCoupon(ctx context.Context, code string, now time.Time) (domain.Coupon, error) {
	c, err := s.GetCouponByCode(ctx, code)
	if err != nil {
		return c, err
	}
	if !c.Usable(now) {
		return c, ErrNotFound
	}
	return c, nil
}
