package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generateState generates a cryptographically secure random state token
// for CSRF protection during the OAuth2 flow.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
