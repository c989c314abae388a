package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

func newStore(t *testing.T, ttl time.Duration) *TokenStore {
	t.Helper()
	s := NewTokenStore(ttl, time.Hour)
	t.Cleanup(s.Close)
	return s
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	users := fakeUsers{
		"alice": {ID: "u1", Username: "alice", PasswordHash: hash, Role: models.RoleAdmin, Active: true},
		"bob":   {ID: "u2", Username: "bob", PasswordHash: hash, Role: models.RoleUser, Active: false},
	}
	a := &Authenticator{Users: users, Tokens: newStore(t, time.Hour)}
	ctx := context.Background()

	token, u, err := a.Login(ctx, " alice ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Len(t, token, 64)

	p, ok := a.Tokens.Lookup(token)
	require.True(t, ok)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "alice", p.Username)

	for _, tc := range []struct{ user, pw string }{{"alice", "bad"}, {"nobody", "pw"}, {"bob", "pw"}} {
		_, _, err := a.Login(ctx, tc.user, tc.pw)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.user)
	}
}

type brokenUsers struct{}

func (brokenUsers) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, errors.New("database is locked")
}

func TestLoginLookupFailure(t *testing.T) {
	a := &Authenticator{Users: brokenUsers{}, Tokens: newStore(t, time.Hour)}

	_, _, err := a.Login(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Zero(t, a.Tokens.Len())
}

func TestTokenExpiry(t *testing.T) {
	s := newStore(t, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	token, _ := s.Issue(&models.User{ID: "u1", Role: models.RoleUser})
	_, ok := s.Lookup(token)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = s.Lookup(token)
	assert.False(t, ok, "expired token must be rejected")

	s.purgeExpired()
	assert.Equal(t, 0, s.Len())
}

func TestRevoke(t *testing.T) {
	s := newStore(t, time.Hour)
	a, _ := s.Issue(&models.User{ID: "u1"})
	b, _ := s.Issue(&models.User{ID: "u1"})
	c, _ := s.Issue(&models.User{ID: "u2"})
	assert.NotEqual(t, a, b)

	s.Revoke(a)
	_, ok := s.Lookup(a)
	assert.False(t, ok)

	s.RevokeUser("u1")
	_, ok = s.Lookup(b)
	assert.False(t, ok)
	_, ok = s.Lookup(c)
	assert.True(t, ok)
}

func TestCleanupLoopPurges(t *testing.T) {
	s := NewTokenStore(time.Millisecond, 2*time.Millisecond)
	defer s.Close()
	s.Issue(&models.User{ID: "u1"})
	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, time.Millisecond)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]struct {
		token string
		ok    bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Basic abc":    {"", false},
		"Bearer":       {"", false},
		"":             {"", false},
	}
	for header, want := range tests {
		token, ok := BearerToken(header)
		assert.Equal(t, want.ok, ok, header)
		assert.Equal(t, want.token, token, header)
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: "u1"})
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", p.UserID)
}
