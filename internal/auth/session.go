package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"
)

const defaultSessionTTL = 12 * time.Hour

var (
	// ErrSessionNotFound is returned when a session token is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session has passed its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// Session represents an authenticated browser session.
type Session struct {
	Token     string
	Username  string
	Role      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager tracks active sessions in memory.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a session manager with the given TTL.
// A TTL of zero uses the default.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	m := &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create creates a new session for the given user.
func (m *SessionManager) Create(username, role string) (*Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &Session{
		Token:     token,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[token] = session
	m.mu.Unlock()

	return session, nil
}

// Get returns the session for a token, or an error if the token is
// unknown or expired. Expired sessions are removed on access.
func (m *SessionManager) Get(token string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Delete removes a session, ending it.
func (m *SessionManager) Delete(token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// DeleteForUser removes all sessions belonging to a user. Used when a
// user is deleted or their role changes.
func (m *SessionManager) DeleteForUser(username string) {
	m.mu.Lock()
	for token, session := range m.sessions {
		if session.Username == username {
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
}

// Count returns the number of active sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stop stops the background cleanup goroutine.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// cleanupLoop periodically removes expired sessions.
func (m *SessionManager) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCh:
			return
		}
	}
}

func (m *SessionManager) removeExpired() {
	now := time.Now()
	m.mu.Lock()
	for token, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
}

// generateSessionToken generates a new session token in UUID v4 format.
func generateSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	// Set version (4) and variant bits per RFC 4122.
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80

	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
