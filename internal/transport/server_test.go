package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/auth"
	"github.com/smorand/slides-team-hub/internal/middleware"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/report"
	"github.com/smorand/slides-team-hub/internal/retry"
	"github.com/smorand/slides-team-hub/internal/slides"
)

const testDeckID = "pres-test-00000001"

// mockSlidesAPI implements slides.SlidesService.
type mockSlidesAPI struct {
	getPresentationFunc func(ctx context.Context, presentationID string) (*slidesapi.Presentation, error)
	getThumbnailFunc    func(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error)
}

func (m *mockSlidesAPI) GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error) {
	if m.getPresentationFunc == nil {
		return &slidesapi.Presentation{
			PresentationId: presentationID,
			Title:          "Test Deck",
			Slides:         []*slidesapi.Page{{ObjectId: "slide-a"}, {ObjectId: "slide-b"}},
		}, nil
	}
	return m.getPresentationFunc(ctx, presentationID)
}

func (m *mockSlidesAPI) GetThumbnail(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error) {
	if m.getThumbnailFunc == nil {
		return &slidesapi.Thumbnail{ContentUrl: "http://invalid"}, nil
	}
	return m.getThumbnailFunc(ctx, presentationID, pageObjectID)
}

// mockDriveAPI implements slides.DriveService.
type mockDriveAPI struct {
	getFileFunc    func(ctx context.Context, fileID string) (*drive.File, error)
	exportFileFunc func(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)
	listFilesFunc  func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error)
}

func (m *mockDriveAPI) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	if m.getFileFunc == nil {
		return &drive.File{Id: fileID}, nil
	}
	return m.getFileFunc(ctx, fileID)
}

func (m *mockDriveAPI) ExportFile(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	if m.exportFileFunc == nil {
		return io.NopCloser(bytes.NewReader([]byte("%PDF-1.4\n"))), nil
	}
	return m.exportFileFunc(ctx, fileID, mimeType)
}

func (m *mockDriveAPI) ListFiles(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
	if m.listFilesFunc == nil {
		return &drive.FileList{}, nil
	}
	return m.listFilesFunc(ctx, query, maxResults, fields)
}

// staticTokens implements slides.TokenProvider.
type staticTokens struct{}

func (staticTokens) TokenSource(ctx context.Context, username string) (oauth2.TokenSource, error) {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil
}

// openChecker implements slides.PermissionChecker, allowing everything.
type openChecker struct{}

func (openChecker) CheckRead(ctx context.Context, ts oauth2.TokenSource, username, presentationID string) error {
	return nil
}

func (openChecker) Invalidate(presentationID string) {}

type testServer struct {
	server   *Server
	ts       *httptest.Server
	reg      *registry.Registry
	sessions *auth.SessionManager
	slides   *mockSlidesAPI
	drive    *mockDriveAPI
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	reg, err := registry.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	sessions := auth.NewSessionManager(time.Hour)
	t.Cleanup(sessions.Stop)

	slidesMock := &mockSlidesAPI{}
	driveMock := &mockDriveAPI{}

	service := slides.NewService(
		slides.DefaultServiceConfig(),
		reg,
		staticTokens{},
		openChecker{},
		func(ctx context.Context, ts oauth2.TokenSource) (slides.SlidesService, error) {
			return slidesMock, nil
		},
		func(ctx context.Context, ts oauth2.TokenSource) (slides.DriveService, error) {
			return driveMock, nil
		},
		retry.New(retry.Config{MaxRetries: 1, InitialDelay: 1}),
	)

	oauthMgr := auth.NewOAuthManager(auth.OAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "http://localhost/auth/google/callback",
	}, auth.NewMemoryCredentialStore(), slog.Default())

	reports := report.NewGenerator(
		report.GeneratorConfig{Logger: slog.Default()},
		reg, service, nil,
	)

	sessionMW := middleware.NewSessionMiddleware(middleware.SessionMiddlewareConfig{
		Sessions: sessions,
	})

	server := NewServer(ServerConfig{Logger: slog.Default()}, Deps{
		Registry:  reg,
		Sessions:  sessions,
		OAuth:     oauthMgr,
		Slides:    service,
		Reports:   reports,
		SessionMW: sessionMW,
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testServer{
		server:   server,
		ts:       ts,
		reg:      reg,
		sessions: sessions,
		slides:   slidesMock,
		drive:    driveMock,
	}
}

// request performs an HTTP request against the test server, optionally
// authenticated with a session token, and decodes the JSON body.
func (e *testServer) request(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("failed to decode %s: %v", data, err)
		}
	}
	return resp.StatusCode, decoded
}

// signup registers an account through the API and returns a session
// token for it.
func (e *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	status, _ := e.request(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": username,
		"password": "secret123",
		"confirm":  "secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("signup failed with status %d", status)
	}
	session, err := e.sessions.Create(username, registry.RoleMember)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session.Token
}

// adminToken creates an admin account directly and returns its session
// token.
func (e *testServer) adminToken(t *testing.T, username string) string {
	t.Helper()
	err := e.reg.CreateUser(context.Background(), &registry.User{
		Username:     username,
		PasswordHash: "x",
		Role:         registry.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}
	session, err := e.sessions.Create(username, registry.RoleAdmin)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return session.Token
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)

	status, body := e.request(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Errorf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newTestServer(t)

	status, body := e.request(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice",
		"password": "secret123",
		"confirm":  "secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["username"] != "alice" || body["role"] != registry.RoleMember {
		t.Errorf("unexpected user view: %v", body)
	}

	status, body = e.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["google_connected"] != false {
		t.Error("expected google_connected false")
	}

	// Login is recorded in the activity log and on the account.
	user, err := e.reg.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.LastLogin.IsZero() {
		t.Error("expected last login to be recorded")
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{
			name: "password mismatch",
			body: map[string]string{"username": "a", "password": "secret123", "confirm": "other1234"},
			want: http.StatusBadRequest,
		},
		{
			name: "password too short",
			body: map[string]string{"username": "a", "password": "abc", "confirm": "abc"},
			want: http.StatusBadRequest,
		},
		{
			name: "missing username",
			body: map[string]string{"password": "secret123", "confirm": "secret123"},
			want: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := e.request(t, http.MethodPost, "/api/register", "", tt.body)
			if status != tt.want {
				t.Errorf("expected %d, got %d", tt.want, status)
			}
		})
	}

	e.signup(t, "taken")
	status, _ := e.request(t, http.MethodPost, "/api/register", "", map[string]string{
		"username": "taken", "password": "secret123", "confirm": "secret123",
	})
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate username, got %d", status)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	e := newTestServer(t)
	e.signup(t, "alice")

	status, _ := e.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "alice", "password": "wrong-password",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	status, _ = e.request(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": "ghost", "password": "secret123",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", status)
	}
}

func TestLogout(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	status, _ := e.request(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	status, _ = e.request(t, http.MethodPost, "/api/logout", token, nil)
	if status != http.StatusOK {
		t.Fatalf("logout failed with %d", status)
	}

	status, _ = e.request(t, http.MethodGet, "/api/me", token, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	e := newTestServer(t)

	for _, path := range []string{"/api/decks", "/api/me", "/api/activities"} {
		status, _ := e.request(t, http.MethodGet, path, "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("expected 401 for %s, got %d", path, status)
		}
	}
}

func TestDeckLifecycle(t *testing.T) {
	e := newTestServer(t)
	alice := e.signup(t, "alice")
	bob := e.signup(t, "bob")

	// Register a deck.
	status, body := e.request(t, http.MethodPost, "/api/decks", alice, map[string]string{
		"link": "https://docs.google.com/presentation/d/" + testDeckID + "/edit",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", status, body)
	}
	if body["title"] != "Test Deck" || body["uploader"] != "alice" {
		t.Errorf("unexpected deck: %v", body)
	}

	// It shows up on the dashboard with stats.
	status, body = e.request(t, http.MethodGet, "/api/decks", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	decks := body["decks"].([]any)
	if len(decks) != 1 {
		t.Fatalf("expected 1 deck, got %d", len(decks))
	}
	stats := body["stats"].(map[string]any)
	if stats["total_slides"].(float64) != 2 {
		t.Errorf("unexpected stats: %v", stats)
	}

	// The dashboard q filter matches by title.
	status, body = e.request(t, http.MethodGet, "/api/decks?q=test", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := len(body["decks"].([]any)); got != 1 {
		t.Errorf("expected 1 matching deck, got %d", got)
	}
	status, body = e.request(t, http.MethodGet, "/api/decks?q=nomatch", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got := len(body["decks"].([]any)); got != 0 {
		t.Errorf("expected no matching decks, got %d", got)
	}

	// Another member cannot modify or delete it.
	status, _ = e.request(t, http.MethodPatch, "/api/decks/"+testDeckID, bob, map[string]string{
		"description": "hijacked",
	})
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-uploader update, got %d", status)
	}
	status, _ = e.request(t, http.MethodDelete, "/api/decks/"+testDeckID, bob, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for non-uploader delete, got %d", status)
	}

	// The uploader can.
	status, body = e.request(t, http.MethodPatch, "/api/decks/"+testDeckID, alice, map[string]string{
		"description": "quarterly numbers",
	})
	if status != http.StatusOK || body["description"] != "quarterly numbers" {
		t.Errorf("update failed: %d %v", status, body)
	}

	// An admin can delete someone else's deck.
	root := e.adminToken(t, "root")
	status, _ = e.request(t, http.MethodDelete, "/api/decks/"+testDeckID, root, nil)
	if status != http.StatusOK {
		t.Errorf("admin delete failed with %d", status)
	}

	status, body = e.request(t, http.MethodGet, "/api/activities", alice, nil)
	if status != http.StatusOK {
		t.Fatalf("activities failed with %d", status)
	}
	activities := body["activities"].([]any)
	newest := activities[0].(map[string]any)
	if newest["action"] != registry.ActionAdminDelete {
		t.Errorf("expected ADMIN_DELETE as newest activity, got %v", newest["action"])
	}
}

func TestDeckDetailsNotFound(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	status, _ := e.request(t, http.MethodGet, "/api/decks/unknown-deck-id", token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestAdminRoutes(t *testing.T) {
	e := newTestServer(t)
	member := e.signup(t, "alice")
	root := e.adminToken(t, "root")

	status, _ := e.request(t, http.MethodGet, "/api/admin/users", member, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for member, got %d", status)
	}

	status, body := e.request(t, http.MethodGet, "/api/admin/users", root, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", status)
	}
	if len(body["users"].([]any)) != 2 {
		t.Errorf("expected 2 users, got %v", body["users"])
	}

	// Promote alice, which also ends her sessions.
	status, _ = e.request(t, http.MethodPost, "/api/admin/users/alice/role", root, map[string]string{
		"role": registry.RoleAdmin,
	})
	if status != http.StatusOK {
		t.Fatalf("role change failed with %d", status)
	}
	user, err := e.reg.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if !user.IsAdmin() {
		t.Error("alice should be admin now")
	}
	status, _ = e.request(t, http.MethodGet, "/api/me", member, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected old session to be revoked, got %d", status)
	}

	// Admins cannot change their own role.
	status, _ = e.request(t, http.MethodPost, "/api/admin/users/root/role", root, map[string]string{
		"role": registry.RoleMember,
	})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for self role change, got %d", status)
	}
}

func TestGoogleAuthFlow(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	status, body := e.request(t, http.MethodGet, "/auth/google", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	authURL, _ := body["auth_url"].(string)
	if !strings.Contains(authURL, "test-client-id") {
		t.Errorf("auth URL missing client ID: %s", authURL)
	}

	// Callback with a bogus state is rejected.
	status, _ = e.request(t, http.MethodGet, "/auth/google/callback?state=bogus&code=xyz", "", nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid state, got %d", status)
	}

	// Disconnecting without a stored credential is a 404.
	status, _ = e.request(t, http.MethodPost, "/api/google/disconnect", token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestSearchDrive(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	e.drive.listFilesFunc = func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
		return &drive.FileList{Files: []*drive.File{{Id: "found-1", Name: "Found Deck"}}}, nil
	}

	status, body := e.request(t, http.MethodGet, "/api/decks/search?q=quarterly", token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	status, _ = e.request(t, http.MethodGet, "/api/decks/search?q=", token, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for empty query, got %d", status)
	}
}

func TestHTMLReport(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	status, _ := e.request(t, http.MethodGet, "/api/reports/html", token, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 with no decks, got %d", status)
	}

	if _, body := e.request(t, http.MethodPost, "/api/decks", token, map[string]string{
		"link": "https://docs.google.com/presentation/d/" + testDeckID + "/edit",
	}); body["id"] != testDeckID {
		t.Fatalf("deck registration failed: %v", body)
	}

	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+"/api/reports/html", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("unexpected content type: %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "team_slides_report_") {
		t.Errorf("unexpected disposition: %s", resp.Header.Get("Content-Disposition"))
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "Test Deck") {
		t.Error("report missing deck title")
	}
}

func TestRefreshDeck(t *testing.T) {
	e := newTestServer(t)
	token := e.signup(t, "alice")

	if status, body := e.request(t, http.MethodPost, "/api/decks", token, map[string]string{
		"link": "https://docs.google.com/presentation/d/" + testDeckID + "/edit",
	}); status != http.StatusCreated {
		t.Fatalf("deck registration failed: %d %v", status, body)
	}

	status, body := e.request(t, http.MethodPost, "/api/decks/"+testDeckID+"/refresh", token, nil)
	if status != http.StatusOK {
		t.Fatalf("refresh failed: %d %v", status, body)
	}

	status, body = e.request(t, http.MethodPost, "/api/decks/refresh", token, nil)
	if status != http.StatusOK {
		t.Fatalf("refresh all failed: %d %v", status, body)
	}
	if len(body["results"].([]any)) != 1 {
		t.Errorf("expected 1 refresh result, got %v", body["results"])
	}
}
