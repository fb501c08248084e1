package slides

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/retry"
)

// mockSlidesService implements SlidesService with function fields.
type mockSlidesService struct {
	getPresentationFunc func(ctx context.Context, presentationID string) (*slidesapi.Presentation, error)
	getThumbnailFunc    func(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error)
	getCalls            int
}

func (m *mockSlidesService) GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error) {
	m.getCalls++
	return m.getPresentationFunc(ctx, presentationID)
}

func (m *mockSlidesService) GetThumbnail(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error) {
	return m.getThumbnailFunc(ctx, presentationID, pageObjectID)
}

// mockDriveService implements DriveService with function fields.
type mockDriveService struct {
	getFileFunc    func(ctx context.Context, fileID string) (*drive.File, error)
	exportFileFunc func(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)
	listFilesFunc  func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error)
}

func (m *mockDriveService) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	if m.getFileFunc == nil {
		return &drive.File{Id: fileID}, nil
	}
	return m.getFileFunc(ctx, fileID)
}

func (m *mockDriveService) ExportFile(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	return m.exportFileFunc(ctx, fileID, mimeType)
}

func (m *mockDriveService) ListFiles(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
	return m.listFilesFunc(ctx, query, maxResults, fields)
}

// mockTokenProvider always returns a static token source.
type mockTokenProvider struct {
	err error
}

func (m *mockTokenProvider) TokenSource(ctx context.Context, username string) (oauth2.TokenSource, error) {
	if m.err != nil {
		return nil, m.err
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"}), nil
}

// mockChecker implements PermissionChecker.
type mockChecker struct {
	checkReadErr error
	invalidated  []string
}

func (m *mockChecker) CheckRead(ctx context.Context, ts oauth2.TokenSource, username, presentationID string) error {
	return m.checkReadErr
}

func (m *mockChecker) Invalidate(presentationID string) {
	m.invalidated = append(m.invalidated, presentationID)
}

// testEnv bundles a Service with its mocks and a fresh registry.
type testEnv struct {
	service *Service
	reg     *registry.Registry
	slides  *mockSlidesService
	drive   *mockDriveService
	checker *mockChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg, err := registry.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	mockSlides := &mockSlidesService{}
	mockDrive := &mockDriveService{}
	checker := &mockChecker{}

	service := NewService(
		DefaultServiceConfig(),
		reg,
		&mockTokenProvider{},
		checker,
		func(ctx context.Context, ts oauth2.TokenSource) (SlidesService, error) {
			return mockSlides, nil
		},
		func(ctx context.Context, ts oauth2.TokenSource) (DriveService, error) {
			return mockDrive, nil
		},
		retry.New(retry.Config{MaxRetries: 1, InitialDelay: 1}),
	)

	return &testEnv{
		service: service,
		reg:     reg,
		slides:  mockSlides,
		drive:   mockDrive,
		checker: checker,
	}
}

func member(name string) *registry.User {
	return &registry.User{Username: name, Role: registry.RoleMember}
}

func admin(name string) *registry.User {
	return &registry.User{Username: name, Role: registry.RoleAdmin}
}

func samplePresentation(id, title string, slideCount int) *slidesapi.Presentation {
	p := &slidesapi.Presentation{
		PresentationId: id,
		Title:          title,
	}
	for i := 0; i < slideCount; i++ {
		p.Slides = append(p.Slides, &slidesapi.Page{
			ObjectId: "slide-" + string(rune('a'+i)),
		})
	}
	return p
}

var errNotFound404 = errors.New("googleapi: Error 404: File not found, notFound")
