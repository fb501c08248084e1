package slides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/smorand/slides-team-hub/internal/retry"
)

// ErrInvalidQuery is returned for an empty search query.
var ErrInvalidQuery = errors.New("invalid search query")

const presentationMimeType = "application/vnd.google-apps.presentation"

// DriveSearchResult is one presentation found in the actor's Drive.
type DriveSearchResult struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Owner        string `json:"owner,omitempty"`
	ModifiedDate string `json:"modified_date,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Registered   bool   `json:"registered"`
}

// SearchDrivePresentations searches the user's Drive for Google Slides
// presentations matching the query. Results already in the registry
// are flagged.
func (s *Service) SearchDrivePresentations(ctx context.Context, username, query string, maxResults int) ([]*DriveSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}

	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	ts, err := s.tokenSource(ctx, username)
	if err != nil {
		return nil, err
	}

	driveService, err := s.driveFactory(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create drive service: %v", ErrDriveAPIError, err)
	}

	driveQuery := fmt.Sprintf("mimeType='%s' and fullText contains '%s' and trashed=false",
		presentationMimeType, escapeQuery(query))
	fields := googleapi.Field("files(id,name,owners,modifiedTime,thumbnailLink)")

	fileList, err := retry.DoWithResult(ctx, s.retryer, func(ctx context.Context) (*drive.FileList, error) {
		return driveService.ListFiles(ctx, driveQuery, int64(maxResults), fields)
	})
	if err != nil {
		if isForbiddenError(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrDriveAPIError, err)
	}

	results := make([]*DriveSearchResult, 0, len(fileList.Files))
	for _, file := range fileList.Files {
		result := &DriveSearchResult{
			ID:           file.Id,
			Title:        file.Name,
			ModifiedDate: file.ModifiedTime,
			ThumbnailURL: file.ThumbnailLink,
		}
		if len(file.Owners) > 0 && file.Owners[0] != nil {
			result.Owner = file.Owners[0].EmailAddress
		}
		if _, err := s.registry.GetDeck(ctx, file.Id); err == nil {
			result.Registered = true
		}
		results = append(results, result)
	}

	s.config.Logger.Info("drive search completed",
		slog.String("query", query),
		slog.Int("results", len(results)),
	)

	return results, nil
}

// escapeQuery escapes single quotes in a Drive query value.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
