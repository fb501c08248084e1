package auth

import (
	"context"
	"encoding/json"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretLoader loads OAuth2 client configuration from Google Secret
// Manager.
type SecretLoader struct {
	client    *secretmanager.Client
	projectID string
}

// NewSecretLoader creates a new SecretLoader.
func NewSecretLoader(ctx context.Context, projectID string) (*SecretLoader, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &SecretLoader{
		client:    client,
		projectID: projectID,
	}, nil
}

// Close closes the Secret Manager client.
func (l *SecretLoader) Close() error {
	return l.client.Close()
}

// secretPayload is the expected JSON structure of the OAuth secret.
type secretPayload struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// LoadOAuthConfig loads the OAuth2 client ID and secret from the named
// secret. The latest version is always used.
func (l *SecretLoader) LoadOAuthConfig(ctx context.Context, secretName string) (OAuthConfig, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", l.projectID, secretName)

	result, err := l.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		return OAuthConfig{}, fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}

	var payload secretPayload
	if err := json.Unmarshal(result.Payload.Data, &payload); err != nil {
		return OAuthConfig{}, fmt.Errorf("failed to parse secret payload: %w", err)
	}

	if payload.ClientID == "" || payload.ClientSecret == "" {
		return OAuthConfig{}, fmt.Errorf("secret %s is missing client_id or client_secret", secretName)
	}

	return OAuthConfig{
		ClientID:     payload.ClientID,
		ClientSecret: payload.ClientSecret,
	}, nil
}
