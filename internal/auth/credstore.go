package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
)

// ErrCredentialNotFound is returned when no Google credential is stored
// for a user.
var ErrCredentialNotFound = errors.New("google credential not found")

// CredentialRecord represents a user's Google refresh token.
type CredentialRecord struct {
	Username     string    `firestore:"username"`
	RefreshToken string    `firestore:"refresh_token"`
	Email        string    `firestore:"email,omitempty"`
	ConnectedAt  time.Time `firestore:"connected_at"`
	LastUsed     time.Time `firestore:"last_used"`
}

// CredentialStore defines storage for Google credentials.
type CredentialStore interface {
	Store(ctx context.Context, record *CredentialRecord) error
	Get(ctx context.Context, username string) (*CredentialRecord, error)
	UpdateLastUsed(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
	Close() error
}

// FirestoreCredentialStore stores credentials in Firestore. The
// document ID is the username for fast lookups.
type FirestoreCredentialStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreCredentialStore creates a store backed by Firestore.
func NewFirestoreCredentialStore(ctx context.Context, projectID, collection string) (*FirestoreCredentialStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreCredentialStore{
		client:     client,
		collection: collection,
	}, nil
}

// NewFirestoreCredentialStoreWithClient creates a store with an
// existing Firestore client. Useful for testing and dependency
// injection.
func NewFirestoreCredentialStoreWithClient(client *firestore.Client, collection string) *FirestoreCredentialStore {
	return &FirestoreCredentialStore{
		client:     client,
		collection: collection,
	}
}

// Close closes the Firestore client.
func (s *FirestoreCredentialStore) Close() error {
	return s.client.Close()
}

// Store stores a credential record.
func (s *FirestoreCredentialStore) Store(ctx context.Context, record *CredentialRecord) error {
	_, err := s.client.Collection(s.collection).Doc(record.Username).Set(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

// Get retrieves the credential record for a user.
func (s *FirestoreCredentialStore) Get(ctx context.Context, username string) (*CredentialRecord, error) {
	doc, err := s.client.Collection(s.collection).Doc(username).Get(ctx)
	if err != nil {
		if isFirestoreNotFound(err) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	var record CredentialRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential record: %w", err)
	}

	return &record, nil
}

// UpdateLastUsed updates the last_used timestamp for a user's
// credential.
func (s *FirestoreCredentialStore) UpdateLastUsed(ctx context.Context, username string) error {
	_, err := s.client.Collection(s.collection).Doc(username).Update(ctx, []firestore.Update{
		{Path: "last_used", Value: time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update last_used: %w", err)
	}
	return nil
}

// Delete removes the credential record for a user.
func (s *FirestoreCredentialStore) Delete(ctx context.Context, username string) error {
	_, err := s.client.Collection(s.collection).Doc(username).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// isFirestoreNotFound checks if the error is a Firestore "not found"
// error.
func isFirestoreNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NotFound")
}

// Ensure FirestoreCredentialStore implements CredentialStore.
var _ CredentialStore = (*FirestoreCredentialStore)(nil)

// MemoryCredentialStore is an in-memory CredentialStore. It is used
// when no Firestore collection is configured and in tests.
type MemoryCredentialStore struct {
	mu      sync.RWMutex
	records map[string]*CredentialRecord
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		records: make(map[string]*CredentialRecord),
	}
}

// Store stores a credential record.
func (s *MemoryCredentialStore) Store(_ context.Context, record *CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.Username] = &copied
	return nil
}

// Get retrieves the credential record for a user.
func (s *MemoryCredentialStore) Get(_ context.Context, username string) (*CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[username]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *record
	return &copied, nil
}

// UpdateLastUsed updates the last_used timestamp for a user's
// credential.
func (s *MemoryCredentialStore) UpdateLastUsed(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[username]
	if !ok {
		return ErrCredentialNotFound
	}
	record.LastUsed = time.Now()
	return nil
}

// Delete removes the credential record for a user.
func (s *MemoryCredentialStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, username)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryCredentialStore) Close() error {
	return nil
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
