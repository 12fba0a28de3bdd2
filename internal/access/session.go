package access

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued token stays valid.
const DefaultSessionTTL = 24 * time.Hour

var (
	ErrTokenRequired = errors.New("token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// Session is an unlocked client.
type Session struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions issues bearer tokens for unlocked clients. Only token hashes are
// kept in memory.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	tokens map[string]*Session
}

// NewSessions creates a token store. A zero ttl means DefaultSessionTTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		ttl:    ttl,
		now:    time.Now,
		tokens: make(map[string]*Session),
	}
}

// Issue creates a session for role and returns it with its token.
func (s *Sessions) Issue(role Role) (*Session, string, error) {
	token, err := generateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	session := &Session{
		ID:        uuid.New().String(),
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.tokens[hashToken(token)] = session
	s.mu.Unlock()

	return session, token, nil
}

// Validate returns the session for token.
func (s *Sessions) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	hash := hashToken(token)

	s.mu.RLock()
	session, ok := s.tokens[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidToken
	}

	if s.now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.tokens, hash)
		s.mu.Unlock()
		return nil, ErrTokenExpired
	}
	return session, nil
}

// Revoke drops every session with role, e.g. after the secret word changes.
func (s *Sessions) Revoke(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for hash, session := range s.tokens {
		if session.Role == role {
			delete(s.tokens, hash)
			n++
		}
	}
	return n
}

// Len is the number of live tokens.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Cleanup removes expired sessions every interval until ctx is done.
func (s *Sessions) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *Sessions) removeExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, session := range s.tokens {
		if now.After(session.ExpiresAt) {
			delete(s.tokens, hash)
		}
	}
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type contextKey string

const sessionContextKey contextKey = "session"

// WithSession adds a session to the context.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFrom retrieves the session from the context.
func SessionFrom(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok && session != nil
}
