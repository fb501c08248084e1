package slides

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/smorand/slides-team-hub/internal/retry"
)

// ErrExportFailed is returned when a PDF export fails.
var ErrExportFailed = errors.New("failed to export presentation")

const pdfMimeType = "application/pdf"

// ExportPDFOutput holds an exported presentation.
type ExportPDFOutput struct {
	Data      []byte
	PageCount int
}

// ExportDeckPDF exports a presentation to PDF via the Drive API using
// the actor's credential.
func (s *Service) ExportDeckPDF(ctx context.Context, username, presentationID string) (*ExportPDFOutput, error) {
	if presentationID == "" {
		return nil, fmt.Errorf("%w: presentation ID is required", ErrExportFailed)
	}

	ts, err := s.tokenSource(ctx, username)
	if err != nil {
		return nil, err
	}

	driveService, err := s.driveFactory(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create drive service: %v", ErrDriveAPIError, err)
	}

	data, err := retry.DoWithResult(ctx, s.retryer, func(ctx context.Context) ([]byte, error) {
		body, err := driveService.ExportFile(ctx, presentationID, pdfMimeType)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return io.ReadAll(body)
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, ErrPresentationNotFound
		}
		if isForbiddenError(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	output := &ExportPDFOutput{
		Data:      data,
		PageCount: countPDFPages(data),
	}

	s.config.Logger.Info("presentation exported to PDF",
		slog.String("presentation_id", presentationID),
		slog.Int("page_count", output.PageCount),
		slog.Int("file_size", len(data)),
	)

	return output, nil
}

// countPDFPages counts pages by looking for /Type /Page markers. A
// heuristic, accurate for the PDFs Drive produces.
func countPDFPages(data []byte) int {
	count := 0
	for _, pattern := range [][]byte{[]byte("/Type /Page"), []byte("/Type/Page")} {
		offset := 0
		for {
			i := bytes.Index(data[offset:], pattern)
			if i < 0 {
				break
			}
			pos := offset + i + len(pattern)
			// Skip /Type /Pages (the page tree, not a page).
			if pos >= len(data) || data[pos] != 's' {
				count++
			}
			offset = pos
		}
	}
	return count
}
