package slides

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/retry"
)

// DeckDetails is the live structure of a presentation as reported by
// the Slides API.
type DeckDetails struct {
	PresentationID string         `json:"presentation_id"`
	Title          string         `json:"title"`
	SlideCount     int            `json:"slide_count"`
	Slides         []SlideSummary `json:"slides"`
}

// SlideSummary describes a single slide.
type SlideSummary struct {
	Index    int    `json:"index"` // 1-based
	ObjectID string `json:"object_id"`
	Heading  string `json:"heading,omitempty"`
	EmbedURL string `json:"embed_url"`
}

// GetDeckDetails fetches the current structure of a presentation for a
// user. Results are cached per presentation.
func (s *Service) GetDeckDetails(ctx context.Context, username, presentationID string) (*DeckDetails, error) {
	if presentationID == "" {
		return nil, fmt.Errorf("%w: presentation ID is required", ErrSlidesAPIError)
	}

	if details, ok := s.detailsCache.Get(presentationID); ok {
		return details, nil
	}

	ts, err := s.tokenSource(ctx, username)
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
		if isNotFoundError(err) {
			return nil, ErrPresentationNotFound
		}
		if isForbiddenError(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrSlidesAPIError, err)
	}

	details := buildDeckDetails(presentation)
	s.detailsCache.Set(presentationID, details)

	s.config.Logger.Info("deck details loaded",
		slog.String("presentation_id", presentationID),
		slog.String("title", details.Title),
		slog.Int("slide_count", details.SlideCount),
	)

	return details, nil
}

// InvalidateDetails drops cached details for a presentation.
func (s *Service) InvalidateDetails(presentationID string) {
	s.detailsCache.Delete(presentationID)
	s.thumbCache.DeletePrefix(presentationID + ":")
	s.checker.Invalidate(presentationID)
}

func buildDeckDetails(presentation *slidesapi.Presentation) *DeckDetails {
	details := &DeckDetails{
		PresentationID: presentation.PresentationId,
		Title:          presentation.Title,
		SlideCount:     len(presentation.Slides),
	}

	details.Slides = make([]SlideSummary, len(presentation.Slides))
	for i, slide := range presentation.Slides {
		details.Slides[i] = SlideSummary{
			Index:    i + 1,
			ObjectID: slide.ObjectId,
			Heading:  extractSlideHeading(slide),
			EmbedURL: EmbedURL(presentation.PresentationId, i+1),
		}
	}

	return details
}

// extractSlideHeading returns the first title-like text on the slide.
func extractSlideHeading(slide *slidesapi.Page) string {
	// Prefer the title placeholder.
	for _, element := range slide.PageElements {
		if element.Shape == nil || element.Shape.Text == nil {
			continue
		}
		if element.Shape.Placeholder != nil {
			switch element.Shape.Placeholder.Type {
			case "TITLE", "CENTERED_TITLE":
				if text := extractText(element.Shape.Text); text != "" {
					return text
				}
			}
		}
	}

	// Fallback: first shape with any text.
	for _, element := range slide.PageElements {
		if element.Shape != nil && element.Shape.Text != nil {
			if text := extractText(element.Shape.Text); text != "" {
				return text
			}
		}
	}

	return ""
}

// extractText extracts plain text from a TextContent structure.
func extractText(textContent *slidesapi.TextContent) string {
	if textContent == nil || len(textContent.TextElements) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, element := range textContent.TextElements {
		if element.TextRun != nil && element.TextRun.Content != "" {
			builder.WriteString(element.TextRun.Content)
		}
	}

	return strings.TrimSpace(builder.String())
}
