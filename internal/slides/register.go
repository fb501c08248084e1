package slides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/retry"
)

// ErrInvalidLink is returned when a presentation link or ID cannot be
// parsed.
var ErrInvalidLink = errors.New("invalid presentation link or ID")

// RegisterDeckInput represents a registration request.
type RegisterDeckInput struct {
	// Link is a Google Slides URL or bare presentation ID.
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
}

// RegisterDeck registers a presentation for the team. The actor must
// have read access to it through their Google account.
func (s *Service) RegisterDeck(ctx context.Context, actor *registry.User, input RegisterDeckInput) (*registry.Deck, error) {
	presentationID := ParsePresentationID(input.Link)
	if presentationID == "" {
		return nil, ErrInvalidLink
	}

	ts, err := s.tokenSource(ctx, actor.Username)
	if err != nil {
		return nil, err
	}

	if err := s.checker.CheckRead(ctx, ts, actor.Username, presentationID); err != nil {
		return nil, err
	}

	slidesService, err := s.slidesFactory(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create slides service: %v", ErrSlidesAPIError, err)
	}

	presentation, err := retry.DoWithResult(ctx, s.retryer, func(ctx context.Context) (*slidesapi.Presentation, error) {
		return slidesService.GetPresentation(ctx, presentationID)
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrPresentationNotFound
		}
		if isForbiddenError(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrSlidesAPIError, err)
	}

	lastModified, err := s.fetchModifiedTime(ctx, actor.Username, presentationID)
	if err != nil {
		s.config.Logger.Warn("failed to fetch modification time",
			slog.String("presentation_id", presentationID),
			slog.Any("error", err),
		)
		lastModified = time.Now()
	}

	deck := &registry.Deck{
		ID:           presentationID,
		Title:        presentation.Title,
		Link:         EditLink(presentationID),
		Description:  input.Description,
		Uploader:     actor.Username,
		UploadDate:   time.Now(),
		SlideCount:   len(presentation.Slides),
		LastModified: lastModified,
		Status:       registry.StatusActive,
	}

	if err := s.registry.CreateDeck(ctx, deck); err != nil {
		if !errors.Is(err, registry.ErrDeckExists) {
			return nil, err
		}
		return s.reregisterDeck(ctx, actor, deck, input)
	}

	if err := s.registry.LogActivity(ctx, actor.Username, registry.ActionUpload, deck.Title); err != nil {
		s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
	}

	s.config.Logger.Info("deck registered",
		slog.String("presentation_id", presentationID),
		slog.String("title", deck.Title),
		slog.String("uploader", actor.Username),
		slog.Int("slide_count", deck.SlideCount),
	)

	return deck, nil
}

// reregisterDeck handles registering a presentation that is already in
// the registry. That is an update, allowed only for the original
// uploader or an admin; the uploader and upload date are preserved and
// the merge-by-newer rule applies.
func (s *Service) reregisterDeck(ctx context.Context, actor *registry.User, deck *registry.Deck, input RegisterDeckInput) (*registry.Deck, error) {
	existing, err := s.registry.GetDeck(ctx, deck.ID)
	if err != nil {
		return nil, err
	}

	if !canModify(actor, existing) {
		return nil, ErrNotUploader
	}

	deck.Uploader = existing.Uploader
	deck.UploadDate = existing.UploadDate
	if input.Description == "" {
		deck.Description = existing.Description
	}

	applied, err := s.registry.UpdateDeck(ctx, deck)
	if err != nil {
		return nil, err
	}
	if !applied {
		return existing, nil
	}

	s.InvalidateDetails(deck.ID)

	if err := s.registry.LogActivity(ctx, actor.Username, registry.ActionUpdate, deck.Title); err != nil {
		s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
	}

	s.config.Logger.Info("deck re-registered",
		slog.String("presentation_id", deck.ID),
		slog.String("title", deck.Title),
		slog.String("actor", actor.Username),
	)

	return deck, nil
}

// UpdateDeckDescription changes a deck's description. Only the
// uploader or an admin may do this.
func (s *Service) UpdateDeckDescription(ctx context.Context, actor *registry.User, presentationID, description string) (*registry.Deck, error) {
	deck, err := s.registry.GetDeck(ctx, presentationID)
	if err != nil {
		return nil, err
	}

	if !canModify(actor, deck) {
		return nil, ErrNotUploader
	}

	if err := s.registry.UpdateDeckDescription(ctx, presentationID, description); err != nil {
		return nil, err
	}
	deck.Description = description

	if err := s.registry.LogActivity(ctx, actor.Username, registry.ActionManualUpdate, deck.Title); err != nil {
		s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
	}

	return deck, nil
}

// DeleteDeck removes a deck from the registry. Only the uploader or an
// admin may do this; admin deletions of others' decks are logged
// separately.
func (s *Service) DeleteDeck(ctx context.Context, actor *registry.User, presentationID string) error {
	deck, err := s.registry.GetDeck(ctx, presentationID)
	if err != nil {
		return err
	}

	if !canModify(actor, deck) {
		return ErrNotUploader
	}

	if err := s.registry.DeleteDeck(ctx, presentationID); err != nil {
		return err
	}

	s.InvalidateDetails(presentationID)

	action := registry.ActionDelete
	if actor.Username != deck.Uploader {
		action = registry.ActionAdminDelete
	}
	if err := s.registry.LogActivity(ctx, actor.Username, action, deck.Title); err != nil {
		s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
	}

	s.config.Logger.Info("deck deleted",
		slog.String("presentation_id", presentationID),
		slog.String("title", deck.Title),
		slog.String("actor", actor.Username),
	)

	return nil
}

// fetchModifiedTime reads a presentation's modification time from
// Drive.
func (s *Service) fetchModifiedTime(ctx context.Context, username, presentationID string) (time.Time, error) {
	ts, err := s.tokenSource(ctx, username)
	if err != nil {
		return time.Time{}, err
	}

	driveService, err := s.driveFactory(ctx, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: failed to create drive service: %v", ErrDriveAPIError, err)
	}

	file, err := driveService.GetFile(ctx, presentationID)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrDriveAPIError, err)
	}

	if file.ModifiedTime == "" {
		return time.Now(), nil
	}

	modified, err := time.Parse(time.RFC3339, file.ModifiedTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse modification time %q: %w", file.ModifiedTime, err)
	}
	return modified, nil
}
