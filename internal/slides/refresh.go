package slides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/retry"
)

// RefreshResult summarizes one deck refresh.
type RefreshResult struct {
	PresentationID string `json:"presentation_id"`
	Title          string `json:"title"`
	Updated        bool   `json:"updated"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// RefreshDeck re-reads a deck from the Slides API and applies changes
// to the registry. Updates only apply when Google reports a newer
// modification time. Presentations that disappeared are marked
// unavailable instead of removed.
func (s *Service) RefreshDeck(ctx context.Context, actor *registry.User, presentationID string) (*RefreshResult, error) {
	deck, err := s.registry.GetDeck(ctx, presentationID)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		PresentationID: presentationID,
		Title:          deck.Title,
		Status:         deck.Status,
	}

	ts, err := s.tokenSource(ctx, actor.Username)
	if err != nil {
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
		if isNotFoundError(err) || isForbiddenError(err) {
			if markErr := s.registry.UpdateDeckStatus(ctx, presentationID, registry.StatusUnavailable); markErr != nil {
				return nil, markErr
			}
			s.InvalidateDetails(presentationID)
			result.Status = registry.StatusUnavailable
			result.Error = err.Error()

			s.config.Logger.Warn("deck marked unavailable",
				slog.String("presentation_id", presentationID),
				slog.Any("error", err),
			)
			return result, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSlidesAPIError, err)
	}

	lastModified, err := s.fetchModifiedTime(ctx, actor.Username, presentationID)
	if err != nil {
		return nil, err
	}

	updated := &registry.Deck{
		ID:           presentationID,
		Title:        presentation.Title,
		Link:         deck.Link,
		Description:  deck.Description,
		SlideCount:   len(presentation.Slides),
		LastModified: lastModified,
		Status:       registry.StatusActive,
	}

	applied, err := s.registry.UpdateDeck(ctx, updated)
	if err != nil {
		return nil, err
	}

	if applied {
		s.InvalidateDetails(presentationID)
		if err := s.registry.LogActivity(ctx, actor.Username, registry.ActionSlideUpdate, presentation.Title); err != nil {
			s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
		}
	} else if deck.Status == registry.StatusUnavailable {
		// The presentation came back but carries no newer timestamp.
		if err := s.registry.UpdateDeckStatus(ctx, presentationID, registry.StatusActive); err != nil {
			return nil, err
		}
	}

	result.Title = presentation.Title
	result.Updated = applied
	result.Status = registry.StatusActive

	s.config.Logger.Info("deck refreshed",
		slog.String("presentation_id", presentationID),
		slog.Bool("updated", applied),
	)

	return result, nil
}

// RefreshAll refreshes every registered deck with the actor's
// credential. Failures on individual decks are reported per deck, not
// returned as an overall error.
func (s *Service) RefreshAll(ctx context.Context, actor *registry.User) ([]*RefreshResult, error) {
	decks, err := s.registry.ListDecks(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*RefreshResult, 0, len(decks))
	for _, deck := range decks {
		result, err := s.RefreshDeck(ctx, actor, deck.ID)
		if err != nil {
			if errors.Is(err, ErrGoogleNotConnected) {
				return nil, err
			}
			result = &RefreshResult{
				PresentationID: deck.ID,
				Title:          deck.Title,
				Status:         deck.Status,
				Error:          err.Error(),
			}
		}
		results = append(results, result)
	}

	if err := s.registry.LogActivity(ctx, actor.Username, registry.ActionUpdate, fmt.Sprintf("refreshed %d presentations", len(results))); err != nil {
		s.config.Logger.Warn("failed to log activity", slog.Any("error", err))
	}

	return results, nil
}
