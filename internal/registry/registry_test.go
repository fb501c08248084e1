package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	r, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestCreateAndGetUser(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	user := &User{
		Username:     "alice",
		PasswordHash: "$argon2id$...",
	}
	if err := r.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	// Role defaults to member.
	if user.Role != RoleMember {
		t.Errorf("expected default role member, got %s", user.Role)
	}

	got, err := r.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != "alice" || got.Role != RoleMember {
		t.Errorf("unexpected user: %+v", got)
	}
	if got.IsAdmin() {
		t.Error("member should not be admin")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	err := r.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h"})
	if err != ErrUserExists {
		t.Errorf("expected ErrUserExists, got %v", err)
	}
}

func TestCreateUserInvalidRole(t *testing.T) {
	r := openTestRegistry(t)

	err := r.CreateUser(context.Background(), &User{Username: "x", PasswordHash: "h", Role: "superuser"})
	if err != ErrInvalidRole {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.GetUser(context.Background(), "nobody")
	if err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := r.UpdateRole(ctx, "alice", RoleAdmin); err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}

	got, _ := r.GetUser(ctx, "alice")
	if !got.IsAdmin() {
		t.Error("expected alice to be admin")
	}

	if err := r.UpdateRole(ctx, "nobody", RoleAdmin); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := r.UpdateRole(ctx, "alice", "superuser"); err != ErrInvalidRole {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestRecordLogin(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := r.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !got.LastLogin.IsZero() {
		t.Error("last login should be zero before first login")
	}

	if err := r.RecordLogin(ctx, "alice"); err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}

	got, err = r.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.LastLogin.IsZero() {
		t.Error("last login should be set after RecordLogin")
	}

	if err := r.RecordLogin(ctx, "ghost"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateUser(ctx, &User{Username: "alice", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if err := r.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := r.GetUser(ctx, "alice"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := r.DeleteUser(ctx, "alice"); err != ErrUserNotFound {
		t.Errorf("expected ErrUserNotFound for second delete, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "carol"} {
		if err := r.CreateUser(ctx, &User{Username: name, PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", name, err)
		}
	}

	users, err := r.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Errorf("expected 3 users, got %d", len(users))
	}
}

func sampleDeck(id, uploader string, slides int, modified time.Time) *Deck {
	return &Deck{
		ID:           id,
		Title:        "Deck " + id,
		Link:         "https://docs.google.com/presentation/d/" + id + "/edit",
		Uploader:     uploader,
		SlideCount:   slides,
		LastModified: modified,
	}
}

func TestCreateAndGetDeck(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	deck := sampleDeck("pres-1", "alice", 10, time.Now())
	if err := r.CreateDeck(ctx, deck); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}

	if deck.Status != StatusActive {
		t.Errorf("expected default status active, got %s", deck.Status)
	}

	got, err := r.GetDeck(ctx, "pres-1")
	if err != nil {
		t.Fatalf("GetDeck failed: %v", err)
	}
	if got.Title != "Deck pres-1" || got.SlideCount != 10 {
		t.Errorf("unexpected deck: %+v", got)
	}
}

func TestCreateDeckDuplicate(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateDeck(ctx, sampleDeck("pres-1", "alice", 5, time.Now())); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}

	err := r.CreateDeck(ctx, sampleDeck("pres-1", "bob", 7, time.Now()))
	if err != ErrDeckExists {
		t.Errorf("expected ErrDeckExists, got %v", err)
	}
}

func TestUpdateDeckNewerWins(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	deck := sampleDeck("pres-1", "alice", 5, base)
	if err := r.CreateDeck(ctx, deck); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}

	// Newer modification applies.
	newer := sampleDeck("pres-1", "alice", 8, base.Add(time.Hour))
	newer.Title = "Updated Title"
	applied, err := r.UpdateDeck(ctx, newer)
	if err != nil {
		t.Fatalf("UpdateDeck failed: %v", err)
	}
	if !applied {
		t.Error("expected newer update to apply")
	}

	got, _ := r.GetDeck(ctx, "pres-1")
	if got.Title != "Updated Title" || got.SlideCount != 8 {
		t.Errorf("update not applied: %+v", got)
	}

	// Older modification is ignored.
	older := sampleDeck("pres-1", "alice", 3, base.Add(-time.Hour))
	older.Title = "Stale Title"
	applied, err = r.UpdateDeck(ctx, older)
	if err != nil {
		t.Fatalf("UpdateDeck failed: %v", err)
	}
	if applied {
		t.Error("expected stale update to be ignored")
	}

	got, _ = r.GetDeck(ctx, "pres-1")
	if got.Title != "Updated Title" {
		t.Errorf("stale update overwrote: %+v", got)
	}
}

func TestUpdateDeckMixedZones(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	// 07:00 UTC expressed in a +05:00 zone. Stored as-is its text form
	// would sort after any same-day UTC timestamp.
	east := time.FixedZone("UTC+5", 5*60*60)
	stored := time.Date(2024, 6, 1, 12, 0, 0, 0, east)
	if err := r.CreateDeck(ctx, sampleDeck("pres-1", "alice", 5, stored)); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}

	// 08:00 UTC is one hour newer and must win.
	newer := sampleDeck("pres-1", "alice", 8, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	applied, err := r.UpdateDeck(ctx, newer)
	if err != nil {
		t.Fatalf("UpdateDeck failed: %v", err)
	}
	if !applied {
		t.Error("expected newer update across zones to apply")
	}

	// 06:00 UTC is older than the stored 07:00 UTC and must not.
	older := sampleDeck("pres-1", "alice", 3, time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC))
	applied, err = r.UpdateDeck(ctx, older)
	if err != nil {
		t.Fatalf("UpdateDeck failed: %v", err)
	}
	if applied {
		t.Error("expected stale update across zones to be ignored")
	}

	got, _ := r.GetDeck(ctx, "pres-1")
	if got.SlideCount != 8 {
		t.Errorf("unexpected deck after mixed-zone updates: %+v", got)
	}
}

func TestUpdateDeckNotFound(t *testing.T) {
	r := openTestRegistry(t)

	_, err := r.UpdateDeck(context.Background(), sampleDeck("missing", "alice", 1, time.Now()))
	if err != ErrDeckNotFound {
		t.Errorf("expected ErrDeckNotFound, got %v", err)
	}
}

func TestDeleteDeck(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.CreateDeck(ctx, sampleDeck("pres-1", "alice", 5, time.Now())); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}
	if err := r.DeleteDeck(ctx, "pres-1"); err != nil {
		t.Fatalf("DeleteDeck failed: %v", err)
	}
	if _, err := r.GetDeck(ctx, "pres-1"); err != ErrDeckNotFound {
		t.Errorf("expected ErrDeckNotFound, got %v", err)
	}
	if err := r.DeleteDeck(ctx, "pres-1"); err != ErrDeckNotFound {
		t.Errorf("expected ErrDeckNotFound for second delete, got %v", err)
	}
}

func TestListAndSearchDecks(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	now := time.Now()
	d1 := sampleDeck("pres-1", "alice", 5, now)
	d1.Title = "Quarterly Review"
	d2 := sampleDeck("pres-2", "bob", 3, now)
	d2.Title = "Roadmap 2026"
	d2.Description = "planning review"
	d3 := sampleDeck("pres-3", "alice", 7, now)
	d3.Title = "Onboarding"

	for _, d := range []*Deck{d1, d2, d3} {
		if err := r.CreateDeck(ctx, d); err != nil {
			t.Fatalf("CreateDeck(%s) failed: %v", d.ID, err)
		}
	}

	all, err := r.ListDecks(ctx)
	if err != nil {
		t.Fatalf("ListDecks failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 decks, got %d", len(all))
	}

	mine, err := r.ListDecksByUploader(ctx, "alice")
	if err != nil {
		t.Fatalf("ListDecksByUploader failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 decks for alice, got %d", len(mine))
	}

	// Title and description are both searched, case-insensitively.
	found, err := r.SearchDecks(ctx, "review")
	if err != nil {
		t.Fatalf("SearchDecks failed: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 matches for 'review', got %d", len(found))
	}

	found, err = r.SearchDecks(ctx, "nomatch")
	if err != nil {
		t.Fatalf("SearchDecks failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected 0 matches, got %d", len(found))
	}
}

func TestStats(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		if err := r.CreateUser(ctx, &User{Username: name, PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	now := time.Now()
	if err := r.CreateDeck(ctx, sampleDeck("pres-1", "alice", 5, now)); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}
	if err := r.CreateDeck(ctx, sampleDeck("pres-2", "alice", 3, now)); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}
	if err := r.CreateDeck(ctx, sampleDeck("pres-3", "bob", 2, now)); err != nil {
		t.Fatalf("CreateDeck failed: %v", err)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	if stats.Members != 2 {
		t.Errorf("expected 2 members, got %d", stats.Members)
	}
	if stats.Presentations != 3 {
		t.Errorf("expected 3 presentations, got %d", stats.Presentations)
	}
	if stats.TotalSlides != 10 {
		t.Errorf("expected 10 total slides, got %d", stats.TotalSlides)
	}
	if stats.PerUploader["alice"] != 2 || stats.PerUploader["bob"] != 1 {
		t.Errorf("unexpected per-uploader counts: %v", stats.PerUploader)
	}
}

func TestActivityLog(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	if err := r.LogActivity(ctx, "alice", ActionLogin, ""); err != nil {
		t.Fatalf("LogActivity failed: %v", err)
	}
	if err := r.LogActivity(ctx, "alice", ActionUpload, "pres-1"); err != nil {
		t.Fatalf("LogActivity failed: %v", err)
	}
	if err := r.LogActivity(ctx, "bob", ActionLogin, ""); err != nil {
		t.Fatalf("LogActivity failed: %v", err)
	}

	all, err := r.ListActivities(ctx, 0)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 activities, got %d", len(all))
	}
	// Newest first.
	if all[0].Username != "bob" || all[0].Action != ActionLogin {
		t.Errorf("unexpected newest activity: %+v", all[0])
	}

	limited, err := r.ListActivities(ctx, 2)
	if err != nil {
		t.Fatalf("ListActivities failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 activities, got %d", len(limited))
	}

	forAlice, err := r.ListActivitiesForUser(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("ListActivitiesForUser failed: %v", err)
	}
	if len(forAlice) != 2 {
		t.Errorf("expected 2 activities for alice, got %d", len(forAlice))
	}
}
