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

const userColumns = `uid, display_name, email, password_hash, phone, address, cedula, role, points, created_at`

func (s *Store) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	defer s.track("users.create")(time.Now())
	if u.UID == "" {
		u.UID = newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.CreatedAt = s.now()
	if err := u.Validate(); err != nil {
		return u, err
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (:uid, :display_name, :email,
        :password_hash, :phone, :address, :cedula, :role, :points, :created_at)`, u)
	if err != nil {
		return u, fmt.Errorf("create user: %w", classify(err))
	}
	s.publish(ctx, feed.NewEvent(CollUsers, feed.OpAdded, u.UID, u))
	return u, nil
}

func getUser(ctx context.Context, q sqlx.ExtContext, where string, arg any) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, q, &u, q.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where+` = ?`), arg)
	if err != nil {
		return u, fmt.Errorf("get user: %w", classify(err))
	}
	if err := u.Validate(); err != nil {
		return u, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (domain.User, error) {
	defer s.track("users.get")(time.Now())
	return getUser(ctx, s.db, "uid", uid)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	defer s.track("users.get_email")(time.Now())
	return getUser(ctx, s.db, "email", strings.ToLower(strings.TrimSpace(email)))
}

// GetUser reads a user inside the transaction.
func (t *Tx) GetUser(ctx context.Context, uid string) (domain.User, error) {
	return getUser(ctx, t.tx, "uid", uid)
}

func (s *Store) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	defer s.track("users.list")(time.Now())
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at DESC`
	var users []domain.User
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return keepValid(s.log, CollUsers, users), nil
}

// ProfileUpdate holds the fields a user may edit on their own account.
type ProfileUpdate struct {
	DisplayName *string
	Phone       *string
	Address     *string
	Cedula      *string
}

func (s *Store) UpdateProfile(ctx context.Context, uid string, up ProfileUpdate) (domain.User, error) {
	defer s.track("users.update_profile")(time.Now())
	u, err := s.GetUser(ctx, uid)
	if err != nil {
		return u, err
	}
	if up.DisplayName != nil {
		u.DisplayName = *up.DisplayName
	}
	if up.Phone != nil {
		u.Phone = up.Phone
	}
	if up.Address != nil {
		u.Address = up.Address
	}
	if up.Cedula != nil {
		u.Cedula = up.Cedula
	}
	_, err = s.db.NamedExecContext(ctx, `UPDATE users SET display_name = :display_name, phone = :phone,
        address = :address, cedula = :cedula WHERE uid = :uid`, u)
	if err != nil {
		return u, fmt.Errorf("update profile: %w", classify(err))
	}
	s.publish(ctx, feed.NewEvent(CollUsers, feed.OpModified, u.UID, u))
	return u, nil
}

func (s *Store) SetRole(ctx context.Context, uid string, role domain.Role) (domain.User, error) {
	defer s.track("users.set_role")(time.Now())
	if !role.Valid() {
		return domain.User{}, fmt.Errorf("%w: unknown role %q", domain.ErrInvalid, role)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET role = ? WHERE uid = ?`), role, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("set role: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return domain.User{}, fmt.Errorf("set role %s: %w", uid, err)
	}
	u, err := s.GetUser(ctx, uid)
	if err == nil {
		s.publish(ctx, feed.NewEvent(CollUsers, feed.OpModified, u.UID, u))
	}
	return u, err
}

func (s *Store) SetPasswordHash(ctx context.Context, uid, hash string) error {
	defer s.track("users.set_password")(time.Now())
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password_hash = ? WHERE uid = ?`), hash, uid)
	if err != nil {
		return fmt.Errorf("set password: %w", classify(err))
	}
	return expectOne(res)
}

// CreditPoints adds n points to uid.
func (t *Tx) CreditPoints(ctx context.Context, uid string, n int) error {
	if n <= 0 {
		return nil
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE users SET points = points + ? WHERE uid = ?`), n, uid)
	if err != nil {
		return fmt.Errorf("credit points: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("credit points %s: %w", uid, err)
	}
	t.emitUser(ctx, uid)
	return nil
}

// DebitPoints removes n points from uid only if the balance covers them.
func (t *Tx) DebitPoints(ctx context.Context, uid string, n int) error {
	if n <= 0 {
		return nil
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE users SET points = points - ? WHERE uid = ? AND points >= ?`), n, uid, n)
	if err != nil {
		return fmt.Errorf("debit points: %w", classify(err))
	}
	if err := expectOne(res); err != nil {
		return fmt.Errorf("debit points %s: %w", uid, ErrConflict)
	}
	t.emitUser(ctx, uid)
	return nil
}

func (t *Tx) emitUser(ctx context.Context, uid string) {
	if u, err := getUser(ctx, t.tx, "uid", uid); err == nil {
		t.emit(CollUsers, feed.OpModified, uid, u)
	}
}
