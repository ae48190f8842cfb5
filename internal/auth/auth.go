// Package auth handles email/password accounts and the JWT sessions issued
// for them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pharmastore/m/domain"
	"pharmastore/m/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
)

const minPasswordLen = 6

// Claims is the session payload.
type Claims struct {
	UID  string      `json:"uid"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *Tokens) Issue(u domain.User) (string, error) {
	now := t.now()
	claims := Claims{
		UID:  u.UID,
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

func (t *Tokens) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Session is what a successful sign-in returns.
type Session struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type RegisterInput struct {
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Phone       *string `json:"phone,omitempty"`
	Address     *string `json:"address,omitempty"`
	Cedula      *string `json:"cedula,omitempty"`
}

type Service struct {
	store  *store.Store
	tokens *Tokens
}

func NewService(st *store.Store, tokens *Tokens) *Service {
	return &Service{store: st, tokens: tokens}
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a customer account. Staff roles are granted afterwards
// by an admin.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if strings.TrimSpace(in.Email) == "" {
		return Session{}, fmt.Errorf("%w: email is required", domain.ErrInvalid)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = strings.SplitN(in.Email, "@", 2)[0]
	}
	u, err := s.store.CreateUser(ctx, domain.User{
		DisplayName:  name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		Address:      in.Address,
		Cedula:       in.Cedula,
		Role:         domain.RoleUser,
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) ResetPassword(ctx context.Context, uid, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.SetPasswordHash(ctx, uid, hash)
}

// EnsureAdmin creates an ADMIN account for email, or promotes the existing one.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		hash, err := HashPassword(password)
		if err != nil {
			return u, err
		}
		return s.store.CreateUser(ctx, domain.User{
			DisplayName:  "Administrador",
			Email:        email,
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
		})
	case err != nil:
		return u, err
	case u.Role == domain.RoleAdmin:
		return u, nil
	}
	return s.store.SetRole(ctx, u.UID, domain.RoleAdmin)
}

func (s *Service) session(u domain.User) (Session, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, User: u}, nil
}

type ctxKey struct{}

// WithClaims stores the authenticated caller in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the authenticated caller, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok && c != nil
}

// HasRole reports whether c holds one of roles.
func (c *Claims) HasRole(roles ...domain.Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
