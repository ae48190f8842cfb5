package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/database"
	"pharmastore/m/internal/migrations"
	"pharmastore/m/internal/store"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(db))
	st := store.New(db, nil, nil, zap.NewNop())
	return NewService(st, NewTokens("test-secret", time.Hour))
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	raw, err := tokens.Issue(domain.User{UID: "u1", Role: domain.RoleCashier})
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UID)
	assert.Equal(t, domain.RoleCashier, claims.Role)
	assert.True(t, claims.HasRole(domain.RoleAdmin, domain.RoleCashier))
	assert.False(t, claims.HasRole(domain.RoleDriver))
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	raw, err := NewTokens("one", time.Hour).Issue(domain.User{UID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)
	_, err = NewTokens("two", time.Hour).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens("one", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err = expired.Issue(domain.User{UID: "u1", Role: domain.RoleUser})
	require.NoError(t, err)
	_, err = NewTokens("one", time.Hour).Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokens("one", time.Hour).Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	sess, err := s.Register(ctx, RegisterInput{Email: "Pedro@Example.com", Password: "secreto1"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "pedro@example.com", sess.User.Email)
	assert.Equal(t, "Pedro", sess.User.DisplayName)
	assert.Equal(t, domain.RoleUser, sess.User.Role)

	_, err = s.Register(ctx, RegisterInput{Email: "pedro@example.com", Password: "secreto1"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Login(ctx, "pedro@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login(ctx, "nobody@example.com", "secreto1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err = s.Login(ctx, "PEDRO@example.com", "secreto1")
	require.NoError(t, err)
	claims, err := s.Tokens().Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.UID, claims.UID)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	s := newService(t)
	_, err := s.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "123"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestEnsureAdminPromotesExisting(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	sess, err := s.Register(ctx, RegisterInput{Email: "boss@example.com", Password: "secreto1"})
	require.NoError(t, err)

	u, err := s.EnsureAdmin(ctx, "boss@example.com", "ignored1")
	require.NoError(t, err)
	assert.Equal(t, sess.User.UID, u.UID)
	assert.Equal(t, domain.RoleAdmin, u.Role)

	fresh, err := s.EnsureAdmin(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, fresh.Role)
	_, err = s.Login(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
}

func TestContextClaims(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), &Claims{UID: "u9", Role: domain.RoleDriver})
	c, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u9", c.UID)
}
