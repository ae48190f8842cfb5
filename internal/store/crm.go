package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pharmastore/m/domain"
	"pharmastore/m/internal/feed"
)

// RecordSearch bumps the counter for term with an atomic upsert.
func (s *Store) RecordSearch(ctx context.Context, term string) error {
	defer s.track("search_logs.record")(time.Now())
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO search_logs (term, count, last_searched) VALUES (?, 1, ?)
        ON CONFLICT (term) DO UPDATE SET count = search_logs.count + 1, last_searched = excluded.last_searched`), term, now)
	if err != nil {
		return fmt.Errorf("record search: %w", classify(err))
	}
	s.publish(ctx, feed.NewEvent(CollSearchLogs, feed.OpModified, term, nil))
	return nil
}

// TopSearches returns the most frequent search terms.
func (s *Store) TopSearches(ctx context.Context, limit int) ([]domain.SearchLog, error) {
	defer s.track("search_logs.top")(time.Now())
	if limit <= 0 {
		limit = 10
	}
	var logs []domain.SearchLog
	err := s.db.SelectContext(ctx, &logs, s.db.Rebind(`SELECT term, count, last_searched FROM search_logs
        ORDER BY count DESC, term LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("top searches: %w", err)
	}
	return logs, nil
}

// Subscriptions

func (s *Store) Subscribe(ctx context.Context, email string) (domain.Subscription, error) {
	sub := domain.Subscription{ID: newID(), Email: strings.ToLower(strings.TrimSpace(email)), CreatedAt: s.now()}
	err := s.insert(ctx, CollSubscriptions, `INSERT INTO subscriptions (id, email, created_at)
        VALUES (:id, :email, :created_at)`, sub.ID, sub)
	return sub, err
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	return listAll[domain.Subscription](ctx, s, CollSubscriptions,
		`SELECT id, email, created_at FROM subscriptions ORDER BY created_at DESC`)
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "subscriptions", CollSubscriptions, id)
}

// Service bookings

const bookingColumns = `id, service, customer_name, phone, date, notes, status, user_id`

func (s *Store) CreateBooking(ctx context.Context, b domain.ServiceBooking) (domain.ServiceBooking, error) {
	b.ID = newID()
	b.Date = b.Date.UTC()
	if b.Status == "" {
		b.Status = domain.BookingPending
	}
	err := s.insert(ctx, CollBookings, `INSERT INTO service_bookings (`+bookingColumns+`)
        VALUES (:id, :service, :customer_name, :phone, :date, :notes, :status, :user_id)`, b.ID, b)
	return b, err
}

func (s *Store) ListBookings(ctx context.Context, userID string) ([]domain.ServiceBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM service_bookings`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	return listAll[domain.ServiceBooking](ctx, s, CollBookings, query+` ORDER BY date`, args...)
}

func (s *Store) SetBookingStatus(ctx context.Context, id string, status domain.BookingStatus) (domain.ServiceBooking, error) {
	b, err := getOne[domain.ServiceBooking](ctx, s, CollBookings,
		`SELECT `+bookingColumns+` FROM service_bookings WHERE id = ?`, id)
	if err != nil {
		return b, err
	}
	b.Status = status
	err = s.update(ctx, CollBookings, `UPDATE service_bookings SET status = :status WHERE id = :id`, b.ID, b)
	return b, err
}

func (s *Store) DeleteBooking(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "service_bookings", CollBookings, id)
}

// Stock alerts

const alertColumns = `id, product_id, contact, user_id, notified, created_at`

func (s *Store) CreateStockAlert(ctx context.Context, a domain.StockAlert) (domain.StockAlert, error) {
	a.ID = newID()
	a.Notified = false
	a.CreatedAt = s.now()
	err := s.insert(ctx, CollStockAlerts, `INSERT INTO stock_alerts (`+alertColumns+`)
        VALUES (:id, :product_id, :contact, :user_id, :notified, :created_at)`, a.ID, a)
	return a, err
}

func (s *Store) ListStockAlerts(ctx context.Context, pendingOnly bool) ([]domain.StockAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM stock_alerts`
	if pendingOnly {
		query += ` WHERE notified = FALSE`
	}
	return listAll[domain.StockAlert](ctx, s, CollStockAlerts, query+` ORDER BY created_at`)
}

// MarkAlertsNotified flags every pending alert for productID and returns them.
func (s *Store) MarkAlertsNotified(ctx context.Context, productID string) ([]domain.StockAlert, error) {
	alerts, err := listAll[domain.StockAlert](ctx, s, CollStockAlerts,
		`SELECT `+alertColumns+` FROM stock_alerts WHERE product_id = ? AND notified = FALSE`, productID)
	if err != nil || len(alerts) == 0 {
		return alerts, err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`UPDATE stock_alerts SET notified = TRUE
        WHERE product_id = ? AND notified = FALSE`), productID)
	if err != nil {
		return nil, fmt.Errorf("mark alerts notified: %w", classify(err))
	}
	for i := range alerts {
		alerts[i].Notified = true
		s.publish(ctx, feed.NewEvent(CollStockAlerts, feed.OpModified, alerts[i].ID, alerts[i]))
	}
	return alerts, nil
}

func (s *Store) DeleteStockAlert(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "stock_alerts", CollStockAlerts, id)
}

// Family members

const familyColumns = `id, user_id, name, relationship, birth_date`

func (s *Store) CreateFamilyMember(ctx context.Context, f domain.FamilyMember) (domain.FamilyMember, error) {
	f.ID = newID()
	f.BirthDate = utcPtr(f.BirthDate)
	err := s.insert(ctx, CollFamily, `INSERT INTO family_members (`+familyColumns+`)
        VALUES (:id, :user_id, :name, :relationship, :birth_date)`, f.ID, f)
	return f, err
}

func (s *Store) ListFamilyMembers(ctx context.Context, userID string) ([]domain.FamilyMember, error) {
	return listAll[domain.FamilyMember](ctx, s, CollFamily,
		`SELECT `+familyColumns+` FROM family_members WHERE user_id = ? ORDER BY name`, userID)
}

func (s *Store) UpdateFamilyMember(ctx context.Context, f domain.FamilyMember) (domain.FamilyMember, error) {
	f.BirthDate = utcPtr(f.BirthDate)
	err := s.update(ctx, CollFamily, `UPDATE family_members SET name = :name, relationship = :relationship,
        birth_date = :birth_date WHERE id = :id AND user_id = :user_id`, f.ID, f)
	return f, err
}

// DeleteFamilyMember removes id only when it belongs to userID.
func (s *Store) DeleteFamilyMember(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, "family_members", CollFamily, userID, id)
}

// Medication schedules

const medicationColumns = `id, user_id, family_member_id, medication, dosage, times, start_date, end_date, notes`

func (s *Store) CreateMedication(ctx context.Context, m domain.MedicationSchedule) (domain.MedicationSchedule, error) {
	m.ID = newID()
	m.StartDate = m.StartDate.UTC()
	m.EndDate = utcPtr(m.EndDate)
	err := s.insert(ctx, CollMedications, `INSERT INTO medication_schedules (`+medicationColumns+`)
        VALUES (:id, :user_id, :family_member_id, :medication, :dosage, :times, :start_date, :end_date, :notes)`, m.ID, m)
	return m, err
}

func (s *Store) ListMedications(ctx context.Context, userID string) ([]domain.MedicationSchedule, error) {
	return listAll[domain.MedicationSchedule](ctx, s, CollMedications,
		`SELECT `+medicationColumns+` FROM medication_schedules WHERE user_id = ? ORDER BY start_date`, userID)
}

func (s *Store) UpdateMedication(ctx context.Context, m domain.MedicationSchedule) (domain.MedicationSchedule, error) {
	m.StartDate = m.StartDate.UTC()
	m.EndDate = utcPtr(m.EndDate)
	err := s.update(ctx, CollMedications, `UPDATE medication_schedules SET family_member_id = :family_member_id,
        medication = :medication, dosage = :dosage, times = :times, start_date = :start_date,
        end_date = :end_date, notes = :notes WHERE id = :id AND user_id = :user_id`, m.ID, m)
	return m, err
}

func (s *Store) DeleteMedication(ctx context.Context, userID, id string) error {
	return s.deleteOwned(ctx, "medication_schedules", CollMedications, userID, id)
}

// Expenses

const expenseColumns = `id, description, category, amount, date`

func (s *Store) CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	e.ID = newID()
	if e.Date.IsZero() {
		e.Date = s.now()
	}
	e.Date = e.Date.UTC()
	err := s.insert(ctx, CollExpenses, `INSERT INTO expenses (`+expenseColumns+`)
        VALUES (:id, :description, :category, :amount, :date)`, e.ID, e)
	return e, err
}

func (s *Store) ListExpenses(ctx context.Context, from, to time.Time) ([]domain.Expense, error) {
	return listAll[domain.Expense](ctx, s, CollExpenses,
		`SELECT `+expenseColumns+` FROM expenses WHERE date >= ? AND date < ? ORDER BY date`, from.UTC(), to.UTC())
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "expenses", CollExpenses, id)
}

func (s *Store) deleteOwned(ctx context.Context, table, collection, userID, id string) error {
	defer s.track(collection + ".delete")(time.Now())
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("delete %s %s: %w", collection, id, err)
	}
	s.publish(ctx, feed.NewEvent(collection, feed.OpRemoved, id, nil))
	return nil
}
