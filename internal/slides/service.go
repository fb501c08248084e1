// Package slides implements the team operations on registered Google
// Slides presentations.
package slides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/cache"
	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/retry"
)

// Common sentinel errors for slides operations.
var (
	ErrPresentationNotFound = errors.New("presentation not found")
	ErrAccessDenied         = errors.New("access denied to presentation")
	ErrSlidesAPIError       = errors.New("slides API error")
	ErrDriveAPIError        = errors.New("drive API error")
	ErrNotUploader          = errors.New("only the uploader or an admin can modify this presentation")
	ErrGoogleNotConnected   = errors.New("google account not connected")
)

// SlidesService abstracts the Google Slides API for testing.
type SlidesService interface {
	GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error)
	GetThumbnail(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error)
}

// DriveService abstracts the Google Drive API for testing.
type DriveService interface {
	GetFile(ctx context.Context, fileID string) (*drive.File, error)
	ExportFile(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error)
	ListFiles(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error)
}

// SlidesServiceFactory creates a Slides service from a token source.
type SlidesServiceFactory func(ctx context.Context, tokenSource oauth2.TokenSource) (SlidesService, error)

// DriveServiceFactory creates a Drive service from a token source.
type DriveServiceFactory func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error)

// realSlidesService wraps the actual Google Slides API.
type realSlidesService struct {
	service *slidesapi.Service
}

func (s *realSlidesService) GetPresentation(ctx context.Context, presentationID string) (*slidesapi.Presentation, error) {
	return s.service.Presentations.Get(presentationID).Context(ctx).Do()
}

func (s *realSlidesService) GetThumbnail(ctx context.Context, presentationID, pageObjectID string) (*slidesapi.Thumbnail, error) {
	return s.service.Presentations.Pages.GetThumbnail(presentationID, pageObjectID).
		ThumbnailPropertiesThumbnailSize("LARGE").
		Context(ctx).
		Do()
}

// NewRealSlidesServiceFactory returns a factory that creates real
// Slides services.
func NewRealSlidesServiceFactory() SlidesServiceFactory {
	return func(ctx context.Context, tokenSource oauth2.TokenSource) (SlidesService, error) {
		service, err := slidesapi.NewService(ctx, option.WithTokenSource(tokenSource))
		if err != nil {
			return nil, err
		}
		return &realSlidesService{service: service}, nil
	}
}

// realDriveService wraps the actual Google Drive API.
type realDriveService struct {
	service *drive.Service
}

func (s *realDriveService) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	return s.service.Files.Get(fileID).
		Fields("id,name,mimeType,modifiedTime").
		Context(ctx).
		Do()
}

func (s *realDriveService) ExportFile(ctx context.Context, fileID, mimeType string) (io.ReadCloser, error) {
	resp, err := s.service.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *realDriveService) ListFiles(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
	return s.service.Files.List().
		Q(query).
		PageSize(maxResults).
		Fields(fields, "nextPageToken").
		Context(ctx).
		Do()
}

// NewRealDriveServiceFactory returns a factory that creates real Drive
// services.
func NewRealDriveServiceFactory() DriveServiceFactory {
	return func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error) {
		service, err := drive.NewService(ctx, option.WithTokenSource(tokenSource))
		if err != nil {
			return nil, err
		}
		return &realDriveService{service: service}, nil
	}
}

// TokenProvider supplies a Google token source for a user.
type TokenProvider interface {
	TokenSource(ctx context.Context, username string) (oauth2.TokenSource, error)
}

// PermissionChecker verifies a user's access to a presentation.
type PermissionChecker interface {
	CheckRead(ctx context.Context, tokenSource oauth2.TokenSource, username, presentationID string) error
	Invalidate(presentationID string)
}

// ServiceConfig holds configuration for the slides service.
type ServiceConfig struct {
	Logger   *slog.Logger
	CacheTTL time.Duration
	CacheMax int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Logger:   slog.Default(),
		CacheTTL: 5 * time.Minute,
		CacheMax: 100,
	}
}

// Service implements the deck operations.
type Service struct {
	config        ServiceConfig
	registry      *registry.Registry
	tokens        TokenProvider
	checker       PermissionChecker
	slidesFactory SlidesServiceFactory
	driveFactory  DriveServiceFactory
	retryer       *retry.Retryer
	detailsCache  *cache.LRU[*DeckDetails]
	thumbCache    *cache.LRU[[]byte]
}

// NewService creates a new slides service.
func NewService(
	config ServiceConfig,
	reg *registry.Registry,
	tokens TokenProvider,
	checker PermissionChecker,
	slidesFactory SlidesServiceFactory,
	driveFactory DriveServiceFactory,
	retryer *retry.Retryer,
) *Service {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.CacheMax == 0 {
		config.CacheMax = 100
	}
	if slidesFactory == nil {
		slidesFactory = NewRealSlidesServiceFactory()
	}
	if driveFactory == nil {
		driveFactory = NewRealDriveServiceFactory()
	}
	if retryer == nil {
		retryer = retry.New(retry.DefaultConfig())
	}

	cacheConfig := cache.Config{
		MaxEntries: config.CacheMax,
		DefaultTTL: config.CacheTTL,
		Logger:     config.Logger,
	}

	return &Service{
		config:        config,
		registry:      reg,
		tokens:        tokens,
		checker:       checker,
		slidesFactory: slidesFactory,
		driveFactory:  driveFactory,
		retryer:       retryer,
		detailsCache:  cache.New[*DeckDetails](cacheConfig),
		thumbCache:    cache.New[[]byte](cacheConfig),
	}
}

// Registry returns the underlying registry.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// DetailsCache returns the deck details cache, for sweep registration.
func (s *Service) DetailsCache() *cache.LRU[*DeckDetails] {
	return s.detailsCache
}

// ThumbnailCache returns the thumbnail cache, for sweep registration.
func (s *Service) ThumbnailCache() *cache.LRU[[]byte] {
	return s.thumbCache
}

// tokenSource resolves the user's Google credential.
func (s *Service) tokenSource(ctx context.Context, username string) (oauth2.TokenSource, error) {
	ts, err := s.tokens.TokenSource(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGoogleNotConnected, err)
	}
	return ts, nil
}

// canModify reports whether the actor may update or delete the deck.
// Only the uploader or an admin can.
func canModify(actor *registry.User, deck *registry.Deck) bool {
	return actor.IsAdmin() || actor.Username == deck.Uploader
}

// isNotFoundError checks if an error indicates a resource was not found.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "notFound") ||
		strings.Contains(errStr, "not found")
}

// isForbiddenError checks if an error indicates access was denied.
func isForbiddenError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "forbidden") ||
		strings.Contains(errStr, "access denied") ||
		strings.Contains(errStr, "permission denied")
}
