package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/seismicguard/seismicguard/internal/domain"
)

// ErrNotFound is returned when a token does not resolve to a live session.
var ErrNotFound = errors.New("session not found or expired")

var clock clockwork.Clock = clockwork.NewRealClock()

// SetClock overrides the package clock. Test hook.
func SetClock(c clockwork.Clock) {
	clock = c
}

// Manager issues signed session tokens and holds the per-session state
// behind them. Sessions live in memory: a restart logs everyone out.
type Manager struct {
	secret         []byte
	ttl            time.Duration
	alertThreshold float64

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager signing tokens with secret. Sessions expire
// after ttl; each new session gets an alert evaluator armed at threshold.
func NewManager(secret string, ttl time.Duration, alertThreshold float64) *Manager {
	return &Manager{
		secret:         []byte(secret),
		ttl:            ttl,
		alertThreshold: alertThreshold,
		sessions:       make(map[string]*Session),
	}
}

// Create opens a session for the authenticated user and returns it with
// a signed bearer token.
func (m *Manager) Create(user, email string, isAdmin bool) (*Session, string, error) {
	now := clock.Now()
	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		Email:     email,
		IsAdmin:   isAdmin,
		CreatedAt: now,
		alert:     domain.NewAlertEvaluator(m.alertThreshold),
	}

	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   user,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	m.mu.Lock()
	// Each login also sweeps out sessions whose tokens have expired, so
	// abandoned logins cannot grow the map without bound.
	for id, existing := range m.sessions {
		if now.After(existing.CreatedAt.Add(m.ttl)) {
			delete(m.sessions, id)
		}
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, token, nil
}

// Resolve verifies the token signature and expiry and returns the session
// behind it. A correctly signed but expired token also evicts its session
// state, so abandoned logins do not accumulate in memory.
func (m *Manager) Resolve(token string) (*Session, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(clock.Now))
	if err != nil || !parsed.Valid {
		// Eviction only on expiry: the signature was verified before claim
		// validation, so the ID is trusted.
		if errors.Is(err, jwt.ErrTokenExpired) && claims.ID != "" {
			m.mu.Lock()
			delete(m.sessions, claims.ID)
			m.mu.Unlock()
		}
		return nil, ErrNotFound
	}

	m.mu.RLock()
	s, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Destroy removes the session. The token stays cryptographically valid
// until expiry but no longer resolves.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
