// Package permissions verifies a user's access to Google Slides
// presentations via the Drive API.
package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/smorand/slides-team-hub/internal/cache"
)

// Level represents a user's access level on a presentation.
type Level int

const (
	// LevelNone means no access.
	LevelNone Level = iota
	// LevelRead means read-only access (commenter or viewer).
	LevelRead
	// LevelWrite means write access (writer or owner).
	LevelWrite
)

// String returns a human-readable string for the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Sentinel errors for permission checks.
var (
	ErrNoReadPermission = errors.New("user does not have read permission on this presentation")
	ErrPermissionCheck  = errors.New("failed to check permissions")
	ErrFileNotFound     = errors.New("presentation not found")
)

// CheckerConfig holds configuration for the permission checker.
type CheckerConfig struct {
	CacheTTL time.Duration // Default 5 minutes
	Logger   *slog.Logger
}

// DefaultCheckerConfig returns default configuration.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		CacheTTL: 5 * time.Minute,
		Logger:   slog.Default(),
	}
}

// DriveServiceFactory creates a Drive service from a token source.
// This allows for easy mocking in tests.
type DriveServiceFactory func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error)

// DriveService abstracts the Drive API for testing.
type DriveService interface {
	GetFile(ctx context.Context, fileID string) (*drive.File, error)
	GetPermissions(ctx context.Context, fileID string) ([]*drive.Permission, error)
}

// realDriveService wraps the actual Google Drive API.
type realDriveService struct {
	service *drive.Service
}

// GetFile retrieves file metadata including capabilities.
func (s *realDriveService) GetFile(ctx context.Context, fileID string) (*drive.File, error) {
	return s.service.Files.Get(fileID).
		Fields("id,name,mimeType,capabilities").
		Context(ctx).
		Do()
}

// GetPermissions retrieves all permissions for a file.
func (s *realDriveService) GetPermissions(ctx context.Context, fileID string) ([]*drive.Permission, error) {
	var all []*drive.Permission
	pageToken := ""

	for {
		call := s.service.Permissions.List(fileID).
			Fields("permissions(id,emailAddress,role,type),nextPageToken").
			Context(ctx)

		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		result, err := call.Do()
		if err != nil {
			return nil, err
		}

		all = append(all, result.Permissions...)

		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	return all, nil
}

// NewRealDriveServiceFactory returns a factory that creates real Drive
// services.
func NewRealDriveServiceFactory() DriveServiceFactory {
	return func(ctx context.Context, tokenSource oauth2.TokenSource) (DriveService, error) {
		service, err := drive.NewService(ctx, option.WithTokenSource(tokenSource))
		if err != nil {
			return nil, fmt.Errorf("failed to create drive service: %w", err)
		}
		return &realDriveService{service: service}, nil
	}
}

// Checker verifies user access to presentations. Results are cached
// per user and presentation.
type Checker struct {
	config              CheckerConfig
	driveServiceFactory DriveServiceFactory
	levels              *cache.LRU[Level]
	sharing             *cache.LRU[bool]
}

// NewChecker creates a new permission checker.
func NewChecker(config CheckerConfig, factory DriveServiceFactory) *Checker {
	if config.CacheTTL == 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if factory == nil {
		factory = NewRealDriveServiceFactory()
	}

	cacheConfig := cache.Config{
		MaxEntries: 500,
		DefaultTTL: config.CacheTTL,
		Logger:     config.Logger,
	}

	return &Checker{
		config:              config,
		driveServiceFactory: factory,
		levels:              cache.New[Level](cacheConfig),
		sharing:             cache.New[bool](cacheConfig),
	}
}

// cacheKey generates a cache key for a user/file combination.
func cacheKey(username, fileID string) string {
	return username + ":" + fileID
}

// CheckRead verifies the user has at least read access to the
// presentation.
func (c *Checker) CheckRead(ctx context.Context, tokenSource oauth2.TokenSource, username, presentationID string) error {
	level, err := c.GetLevel(ctx, tokenSource, username, presentationID)
	if err != nil {
		return err
	}
	if level < LevelRead {
		return ErrNoReadPermission
	}
	return nil
}

// GetLevel returns the user's access level on a presentation.
func (c *Checker) GetLevel(ctx context.Context, tokenSource oauth2.TokenSource, username, presentationID string) (Level, error) {
	key := cacheKey(username, presentationID)
	if level, ok := c.levels.Get(key); ok {
		return level, nil
	}

	c.config.Logger.Debug("permission cache miss, checking via Drive API",
		slog.String("username", username),
		slog.String("presentation_id", presentationID),
	)

	driveService, err := c.driveServiceFactory(ctx, tokenSource)
	if err != nil {
		return LevelNone, fmt.Errorf("%w: %v", ErrPermissionCheck, err)
	}

	file, err := driveService.GetFile(ctx, presentationID)
	if err != nil {
		if isNotFoundError(err) {
			return LevelNone, ErrFileNotFound
		}
		return LevelNone, fmt.Errorf("%w: %v", ErrPermissionCheck, err)
	}

	// Capabilities reflect the caller's effective access. Being able to
	// fetch the file at all implies at least read access.
	level := LevelRead
	if file.Capabilities != nil && file.Capabilities.CanEdit {
		level = LevelWrite
	}

	c.levels.Set(key, level)

	c.config.Logger.Debug("permission check complete",
		slog.String("username", username),
		slog.String("presentation_id", presentationID),
		slog.String("level", level.String()),
	)

	return level, nil
}

// IsLinkShared reports whether a presentation is visible to anyone
// with the link. Embedded views in reports only render for link-shared
// presentations.
func (c *Checker) IsLinkShared(ctx context.Context, tokenSource oauth2.TokenSource, presentationID string) (bool, error) {
	if shared, ok := c.sharing.Get(presentationID); ok {
		return shared, nil
	}

	driveService, err := c.driveServiceFactory(ctx, tokenSource)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPermissionCheck, err)
	}

	perms, err := driveService.GetPermissions(ctx, presentationID)
	if err != nil {
		if isNotFoundError(err) {
			return false, ErrFileNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrPermissionCheck, err)
	}

	shared := false
	for _, perm := range perms {
		if perm.Type == "anyone" && RoleToLevel(perm.Role) >= LevelRead {
			shared = true
			break
		}
	}

	c.sharing.Set(presentationID, shared)
	return shared, nil
}

// RoleToLevel converts a Drive API role to a Level.
func RoleToLevel(role string) Level {
	switch role {
	case "owner", "organizer", "fileOrganizer", "writer":
		return LevelWrite
	case "commenter", "reader":
		return LevelRead
	default:
		return LevelNone
	}
}

// isNotFoundError checks if an error indicates a file was not found.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "notfound") || strings.Contains(msg, "not found")
}

// Invalidate removes cached results for a presentation.
func (c *Checker) Invalidate(presentationID string) {
	c.sharing.Delete(presentationID)
	c.levels.DeleteSuffix(":" + presentationID)
}

// CacheSize returns the number of cached permission entries.
func (c *Checker) CacheSize() int {
	return c.levels.Size() + c.sharing.Size()
}
