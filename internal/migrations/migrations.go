package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is portable between sqlite and postgres. Money is NUMERIC, ids are
// client generated UUID strings, list-valued fields are JSON text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            uid TEXT PRIMARY KEY,
            display_name TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL DEFAULT '',
            phone TEXT,
            address TEXT,
            cedula TEXT,
            role TEXT NOT NULL DEFAULT 'USER',
            points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS categories (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            icon TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS suppliers (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            contact TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            email TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            price NUMERIC(12,2) NOT NULL,
            cost_price NUMERIC(12,2),
            stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
            units_per_box INTEGER,
            box_price NUMERIC(12,2),
            public_box_price NUMERIC(12,2),
            barcode TEXT,
            expiry_date TIMESTAMP,
            supplier_id TEXT,
            image_url TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category);`,
	`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            customer_name TEXT NOT NULL,
            customer_phone TEXT NOT NULL DEFAULT '',
            customer_address TEXT NOT NULL DEFAULT '',
            customer_cedula TEXT,
            items TEXT NOT NULL,
            subtotal NUMERIC(12,2) NOT NULL,
            delivery_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
            discount NUMERIC(12,2) NOT NULL DEFAULT 0,
            coupon_code TEXT,
            points_redeemed INTEGER NOT NULL DEFAULT 0,
            total NUMERIC(12,2) NOT NULL,
            payment_method TEXT NOT NULL,
            cash_given NUMERIC(12,2),
            change_due NUMERIC(12,2),
            status TEXT NOT NULL,
            source TEXT NOT NULL,
            user_id TEXT,
            date TIMESTAMP NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id);`,
	`CREATE TABLE IF NOT EXISTS coupons (
            id TEXT PRIMARY KEY,
            code TEXT NOT NULL UNIQUE,
            type TEXT NOT NULL,
            value NUMERIC(12,2) NOT NULL,
            active BOOLEAN NOT NULL DEFAULT TRUE,
            expires_at TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS banners (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL DEFAULT '',
            image_url TEXT NOT NULL,
            link TEXT NOT NULL DEFAULT '',
            active BOOLEAN NOT NULL DEFAULT TRUE,
            position INTEGER NOT NULL DEFAULT 0
        );`,
	`CREATE TABLE IF NOT EXISTS search_logs (
            term TEXT PRIMARY KEY,
            count INTEGER NOT NULL DEFAULT 0,
            last_searched TIMESTAMP NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
            id TEXT PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS service_bookings (
            id TEXT PRIMARY KEY,
            service TEXT NOT NULL,
            customer_name TEXT NOT NULL,
            phone TEXT NOT NULL,
            date TIMESTAMP NOT NULL,
            notes TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            user_id TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS stock_alerts (
            id TEXT PRIMARY KEY,
            product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
            contact TEXT NOT NULL,
            user_id TEXT,
            notified BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS family_members (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            name TEXT NOT NULL,
            relationship TEXT NOT NULL DEFAULT '',
            birth_date TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS medication_schedules (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(uid) ON DELETE CASCADE,
            family_member_id TEXT,
            medication TEXT NOT NULL,
            dosage TEXT NOT NULL DEFAULT '',
            times TEXT NOT NULL DEFAULT '[]',
            start_date TIMESTAMP NOT NULL,
            end_date TIMESTAMP,
            notes TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS expenses (
            id TEXT PRIMARY KEY,
            description TEXT NOT NULL,
            category TEXT NOT NULL DEFAULT '',
            amount NUMERIC(12,2) NOT NULL,
            date TIMESTAMP NOT NULL
        );`,
}

// Run creates the database schema required by the store.
func Run(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
