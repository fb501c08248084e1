package auth

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCredentialStore(t *testing.T) {
	store := NewMemoryCredentialStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "alice")
	if err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}

	record := &CredentialRecord{
		Username:     "alice",
		RefreshToken: "refresh-1",
		Email:        "alice@example.com",
		ConnectedAt:  time.Now(),
	}
	if err := store.Store(ctx, record); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RefreshToken != "refresh-1" {
		t.Errorf("unexpected refresh token: %s", got.RefreshToken)
	}

	// The store returns copies, not aliases.
	got.RefreshToken = "mutated"
	again, _ := store.Get(ctx, "alice")
	if again.RefreshToken != "refresh-1" {
		t.Error("store returned aliased record")
	}

	if err := store.UpdateLastUsed(ctx, "alice"); err != nil {
		t.Fatalf("UpdateLastUsed failed: %v", err)
	}
	updated, _ := store.Get(ctx, "alice")
	if updated.LastUsed.IsZero() {
		t.Error("expected last_used to be set")
	}

	if err := store.Delete(ctx, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "alice"); err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound after delete, got %v", err)
	}
}

func TestMemoryCredentialStoreUpdateLastUsedUnknown(t *testing.T) {
	store := NewMemoryCredentialStore()

	err := store.UpdateLastUsed(context.Background(), "nobody")
	if err != ErrCredentialNotFound {
		t.Errorf("expected ErrCredentialNotFound, got %v", err)
	}
}
