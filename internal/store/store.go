// Package store is the persistence boundary: typed repositories over sqlx that
// validate every document they read and publish a change event for every
// document they write.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pharmastore/m/internal/feed"
	"pharmastore/m/internal/metrics"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Collection names double as change feed channels.
const (
	CollProducts      = "products"
	CollCategories    = "categories"
	CollOrders        = "orders"
	CollUsers         = "users"
	CollCoupons       = "coupons"
	CollBanners       = "banners"
	CollSuppliers     = "suppliers"
	CollSearchLogs    = "search_logs"
	CollSubscriptions = "subscriptions"
	CollBookings      = "bookings"
	CollStockAlerts   = "stock_alerts"
	CollFamily        = "family_members"
	CollMedications   = "medications"
	CollExpenses      = "expenses"
)

// Collections lists every collection that can be streamed.
var Collections = []string{
	CollProducts, CollCategories, CollOrders, CollUsers, CollCoupons, CollBanners,
	CollSuppliers, CollSearchLogs, CollSubscriptions, CollBookings, CollStockAlerts,
	CollFamily, CollMedications, CollExpenses,
}

type Store struct {
	db      *sqlx.DB
	feed    feed.Broker
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(db *sqlx.DB, broker feed.Broker, m *metrics.Metrics, log *zap.Logger) *Store {
	return &Store{
		db:      db,
		feed:    broker,
		metrics: m,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Now returns the store clock in UTC.
func (s *Store) Now() time.Time { return s.now() }

func (s *Store) DB() *sqlx.DB { return s.db }

func newID() string { return uuid.NewString() }

func (s *Store) track(op string) func(time.Time) {
	return s.metrics.TrackDB(op)
}

func (s *Store) publish(ctx context.Context, events ...feed.Event) {
	if s.feed == nil {
		return
	}
	for _, ev := range events {
		if err := s.feed.Publish(ctx, ev); err != nil {
			s.log.Warn("feed publish failed",
				zap.String("collection", ev.Collection),
				zap.String("id", ev.ID),
				zap.Error(err))
		}
	}
}

// Tx is a unit of work. Events queued on it are published after commit.
type Tx struct {
	tx     *sqlx.Tx
	store  *Store
	events []feed.Event
}

func (t *Tx) emit(collection string, op feed.Op, id string, doc any) {
	t.events = append(t.events, feed.NewEvent(collection, op, id, doc))
}

// WithTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx, store: s}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.publish(ctx, tx.events...)
	return nil
}

// classify maps driver errors onto ErrNotFound and ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "23514") {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_CHECK:
			return fmt.Errorf("%w: %s", ErrConflict, liteErr.Error())
		}
	}
	return err
}

type validator interface {
	Validate() error
}

// keepValid drops rows that fail validation, logging each one.
func keepValid[T validator](log *zap.Logger, collection string, rows []T) []T {
	out := rows[:0]
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			log.Warn("skipping malformed document", zap.String("collection", collection), zap.Error(err))
			continue
		}
		out = append(out, row)
	}
	return out
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
