// Package auth issues bearer tokens for user logins and guards the
// administrative HTTP routes.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

// Principal is the user a bearer token was issued to.
type Principal struct {
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// IsAdmin reports whether the principal may manage rules and users.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// TokenStore keeps issued tokens in memory until they expire.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Principal
	ttl    time.Duration
	now    func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTokenStore returns a store issuing tokens valid for ttl. Expired
// tokens are purged every cleanupEvery until Close.
func NewTokenStore(ttl, cleanupEvery time.Duration) *TokenStore {
	s := &TokenStore{
		tokens: make(map[string]Principal),
		ttl:    ttl,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}
	go s.cleanupLoop(cleanupEvery)
	return s
}

func (s *TokenStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *TokenStore) purgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for token, p := range s.tokens {
		if !now.Before(p.ExpiresAt) {
			delete(s.tokens, token)
		}
	}
}

// Issue creates a token for u.
func (s *TokenStore) Issue(u *models.User) (string, Principal) {
	p := Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		ExpiresAt: s.now().Add(s.ttl),
	}
	token := randomHex(32)

	s.mu.Lock()
	s.tokens[token] = p
	s.mu.Unlock()
	return token, p
}

// Lookup returns the principal for an unexpired token.
func (s *TokenStore) Lookup(token string) (Principal, bool) {
	s.mu.RLock()
	p, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok || !s.now().Before(p.ExpiresAt) {
		return Principal{}, false
	}
	return p, true
}

// Revoke invalidates one token.
func (s *TokenStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// RevokeUser invalidates every token issued to userID.
func (s *TokenStore) RevokeUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, p := range s.tokens {
		if p.UserID == userID {
			delete(s.tokens, token)
		}
	}
}

// Len returns the number of stored tokens, expired ones included.
func (s *TokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Close stops the cleanup goroutine.
func (s *TokenStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
