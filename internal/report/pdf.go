package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/slides"
)

// ErrNoDecks is returned when a report is requested with nothing registered.
var ErrNoDecks = errors.New("no presentations registered")

// Exporter provides per-deck PDF exports.
type Exporter interface {
	ExportDeckPDF(ctx context.Context, username, presentationID string) (*slides.ExportPDFOutput, error)
}

// Report is a generated downloadable artifact.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GeneratorConfig holds configuration for the report generator.
type GeneratorConfig struct {
	Logger *slog.Logger
	// TempDir is where merge scratch directories are created. Empty
	// means the system default.
	TempDir string
}

// Generator builds combined team reports from the registry and the
// Google Slides exports of the connected user.
type Generator struct {
	config     GeneratorConfig
	registry   *registry.Registry
	exporter   Exporter
	translator Translator
}

// NewGenerator creates a report generator. The translator may be nil,
// in which case reports are always produced in English.
func NewGenerator(config GeneratorConfig, reg *registry.Registry, exporter Exporter, translator Translator) *Generator {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Generator{
		config:     config,
		registry:   reg,
		exporter:   exporter,
		translator: translator,
	}
}

// GeneratePDF produces the combined PDF report: a cover page with team
// stats and the deck inventory, followed by every registered deck's
// exported PDF, merged into a single document. A deck whose export
// fails is represented by a placeholder page instead of failing the
// whole report. lang optionally localizes the fixed headings.
func (g *Generator) GeneratePDF(ctx context.Context, username, lang string) (*Report, error) {
	decks, err := g.registry.ListDecks(ctx)
	if err != nil {
		return nil, err
	}
	if len(decks) == 0 {
		return nil, ErrNoDecks
	}

	h, err := localizeHeadings(ctx, g.translator, lang, g.config.Logger)
	if err != nil {
		return nil, err
	}

	stats, err := g.registry.Stats(ctx)
	if err != nil {
		return nil, err
	}
	users, err := g.registry.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp(g.config.TempDir, "slides-report-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	coverPath := filepath.Join(tempDir, "cover.pdf")
	if err := os.WriteFile(coverPath, g.coverPage(h, stats, users, decks), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write cover page: %w", err)
	}

	inFiles := []string{coverPath}
	for i, deck := range decks {
		data := g.exportDeck(ctx, username, deck, h)

		deckPath := filepath.Join(tempDir, fmt.Sprintf("deck_%03d.pdf", i))
		if err := os.WriteFile(deckPath, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write deck export: %w", err)
		}
		inFiles = append(inFiles, deckPath)
	}

	outPath := filepath.Join(tempDir, "combined.pdf")
	if err := api.MergeCreateFile(inFiles, outPath, false, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to merge report: %w", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged report: %w", err)
	}

	g.config.Logger.Info("generated combined pdf report",
		slog.String("username", username),
		slog.Int("decks", len(decks)),
		slog.Int("bytes", len(data)),
	)

	return &Report{
		Filename:    reportFilename("report", "pdf"),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// exportDeck fetches a deck's PDF export, substituting a placeholder
// page when the export fails.
func (g *Generator) exportDeck(ctx context.Context, username string, deck *registry.Deck, h headings) []byte {
	out, err := g.exporter.ExportDeckPDF(ctx, username, deck.ID)
	if err == nil && len(out.Data) > 0 {
		return out.Data
	}

	g.config.Logger.Warn("deck export failed, inserting placeholder",
		slog.String("presentation_id", deck.ID),
		slog.Any("error", err),
	)
	return renderTextPDF([]pdfLine{
		{Text: deck.Title, Bold: true, Size: 16},
		{Size: 12},
		{Text: h.Unavailable, Size: 12},
	})
}

// coverPage renders the report cover: title, timestamp, team totals,
// the member list, and one summary line per deck.
func (g *Generator) coverPage(h headings, stats *registry.Stats, users []*registry.User, decks []*registry.Deck) []byte {
	lines := []pdfLine{
		{Text: h.Title, Bold: true, Size: 22},
		{Size: 8},
		{Text: fmt.Sprintf("%s: %s", h.Generated, time.Now().Format("2006-01-02 15:04:05")), Size: 11},
		{Size: 8},
		{Text: fmt.Sprintf("%s: %d    %s: %d    %s: %d",
			h.Members, stats.Members,
			h.Presentations, stats.Presentations,
			h.TotalSlides, stats.TotalSlides), Size: 11},
		{Size: 12},
		{Text: h.MemberList, Bold: true, Size: 14},
	}
	for _, user := range users {
		line := user.Username
		if n := stats.PerUploader[user.Username]; n > 0 {
			line = fmt.Sprintf("%s (%d)", user.Username, n)
		}
		lines = append(lines, pdfLine{Text: line, Size: 11})
	}

	lines = append(lines,
		pdfLine{Size: 12},
		pdfLine{Text: h.DeckList, Bold: true, Size: 14},
	)
	for i, deck := range decks {
		lines = append(lines, pdfLine{
			Text: fmt.Sprintf("%d. %s - %s, %d %s, %s",
				i+1, deck.Title, deck.Uploader, deck.SlideCount, h.Slides,
				deck.UploadDate.Format("2006-01-02")),
			Size: 11,
		})
		if deck.Description != "" {
			lines = append(lines, pdfLine{Text: "   " + deck.Description, Size: 10})
		}
	}

	return renderTextPDF(lines)
}

// reportFilename builds the download filename for a generated report.
func reportFilename(kind, ext string) string {
	return fmt.Sprintf("team_slides_%s_%s.%s", kind, time.Now().Format("20060102_150405"), ext)
}
