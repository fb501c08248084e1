// Package auth provides local account authentication and the Google
// OAuth2 flow for connecting user accounts to the Google Slides and
// Drive APIs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuth2 scopes required for reading Google Slides and Drive content.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/presentations.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

const stateTTL = 10 * time.Minute

var (
	// ErrInvalidState is returned when a callback carries an unknown or
	// expired state token.
	ErrInvalidState = errors.New("invalid or expired state parameter")

	// ErrNoRefreshToken is returned when Google does not issue a
	// refresh token during the exchange.
	ErrNoRefreshToken = errors.New("no refresh token received")
)

// OAuthConfig holds OAuth2 client configuration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// OAuthManager runs the Google OAuth2 flow and keeps each user's
// refresh token in a CredentialStore.
type OAuthManager struct {
	config *oauth2.Config
	store  CredentialStore
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]stateEntry
}

type stateEntry struct {
	username  string
	expiresAt time.Time
}

// NewOAuthManager creates a new OAuth manager.
func NewOAuthManager(config OAuthConfig, store CredentialStore, logger *slog.Logger) *OAuthManager {
	if logger == nil {
		logger = slog.Default()
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	oauth2Config := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		RedirectURL:  config.RedirectURI,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}

	return &OAuthManager{
		config: oauth2Config,
		store:  store,
		logger: logger,
		states: make(map[string]stateEntry),
	}
}

// StartFlow begins the OAuth2 flow for a user and returns the
// authorization URL to redirect them to. The state token binds the
// eventual callback to the user.
func (m *OAuthManager) StartFlow(username string) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.states[state] = stateEntry{
		username:  username,
		expiresAt: time.Now().Add(stateTTL),
	}
	m.mu.Unlock()

	authURL := m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	m.logger.Info("OAuth2 flow initiated",
		slog.String("username", username),
		slog.String("redirect_uri", m.config.RedirectURL),
	)

	return authURL, nil
}

// CompleteFlow validates the state, exchanges the authorization code,
// and stores the user's refresh token. It returns the username the
// flow belongs to.
func (m *OAuthManager) CompleteFlow(ctx context.Context, state, code string) (string, error) {
	m.mu.Lock()
	entry, ok := m.states[state]
	if ok {
		delete(m.states, state)
	}
	m.mu.Unlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return "", ErrInvalidState
	}

	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if token.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	now := time.Now()
	record := &CredentialRecord{
		Username:     entry.username,
		RefreshToken: token.RefreshToken,
		ConnectedAt:  now,
		LastUsed:     now,
	}
	if err := m.store.Store(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store credential: %w", err)
	}

	m.logger.Info("OAuth2 token obtained",
		slog.String("username", entry.username),
		slog.Time("expiry", token.Expiry),
	)

	return entry.username, nil
}

// TokenSource returns a token source for a user backed by their stored
// refresh token. The last_used timestamp is updated on each call.
func (m *OAuthManager) TokenSource(ctx context.Context, username string) (oauth2.TokenSource, error) {
	record, err := m.store.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	if err := m.store.UpdateLastUsed(ctx, username); err != nil {
		m.logger.Warn("failed to update credential last_used",
			slog.String("username", username),
			slog.Any("error", err),
		)
	}

	token := &oauth2.Token{RefreshToken: record.RefreshToken}
	return m.config.TokenSource(ctx, token), nil
}

// Connected reports whether a user has a stored Google credential.
func (m *OAuthManager) Connected(ctx context.Context, username string) bool {
	_, err := m.store.Get(ctx, username)
	return err == nil
}

// Disconnect removes a user's stored Google credential.
func (m *OAuthManager) Disconnect(ctx context.Context, username string) error {
	if err := m.store.Delete(ctx, username); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	m.logger.Info("google credential removed", slog.String("username", username))
	return nil
}

// Config returns the OAuth2 config (for testing).
func (m *OAuthManager) Config() *oauth2.Config {
	return m.config
}
