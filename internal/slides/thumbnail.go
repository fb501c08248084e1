package slides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	slidesapi "google.golang.org/api/slides/v1"

	"github.com/smorand/slides-team-hub/internal/retry"
)

// ErrSlideNotFound is returned when a slide number is out of range.
var ErrSlideNotFound = errors.New("slide not found")

// ExportSlideThumbnail renders one slide as a PNG image. slideNumber
// is 1-based. Results are cached per presentation and slide.
func (s *Service) ExportSlideThumbnail(ctx context.Context, username, presentationID string, slideNumber int) ([]byte, error) {
	cacheKey := fmt.Sprintf("%s:%d", presentationID, slideNumber)
	if data, ok := s.thumbCache.Get(cacheKey); ok {
		return data, nil
	}

	details, err := s.GetDeckDetails(ctx, username, presentationID)
	if err != nil {
		return nil, err
	}

	if slideNumber < 1 || slideNumber > len(details.Slides) {
		return nil, fmt.Errorf("%w: slide %d of %d", ErrSlideNotFound, slideNumber, len(details.Slides))
	}
	objectID := details.Slides[slideNumber-1].ObjectID

	ts, err := s.tokenSource(ctx, username)
	if err != nil {
		return nil, err
	}

	slidesService, err := s.slidesFactory(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create slides service: %v", ErrSlidesAPIError, err)
	}

	thumbnail, err := retry.DoWithResult(ctx, s.retryer, func(ctx context.Context) (*slidesapi.Thumbnail, error) {
		return slidesService.GetThumbnail(ctx, presentationID, objectID)
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

	data, err := fetchImage(ctx, thumbnail.ContentUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlidesAPIError, err)
	}

	s.thumbCache.Set(cacheKey, data)

	s.config.Logger.Info("slide thumbnail exported",
		slog.String("presentation_id", presentationID),
		slog.Int("slide", slideNumber),
		slog.Int("size", len(data)),
	)

	return data, nil
}

// fetchImage downloads the rendered thumbnail from its content URL.
func fetchImage(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("empty thumbnail URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
