package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
)

// ErrInvalidLanguage is returned when a language tag cannot be parsed.
var ErrInvalidLanguage = errors.New("invalid language tag")

// Translator translates a batch of strings into a target language.
type Translator interface {
	Translate(ctx context.Context, texts []string, target language.Tag) ([]string, error)
	Close() error
}

// GoogleTranslator implements Translator using the Cloud Translation API.
type GoogleTranslator struct {
	client *translate.Client
}

// NewGoogleTranslator creates a translator backed by Cloud Translation.
// Credentials come from the environment (application default credentials).
func NewGoogleTranslator(ctx context.Context) (*GoogleTranslator, error) {
	client, err := translate.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create translate client: %w", err)
	}
	return &GoogleTranslator{client: client}, nil
}

// Translate translates texts into the target language, preserving order.
func (t *GoogleTranslator) Translate(ctx context.Context, texts []string, target language.Tag) ([]string, error) {
	translations, err := t.client.Translate(ctx, texts, target, &translate.Options{
		Format: translate.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to translate: %w", err)
	}

	out := make([]string, len(translations))
	for i, tr := range translations {
		out[i] = tr.Text
	}
	return out, nil
}

// Close releases the underlying client.
func (t *GoogleTranslator) Close() error {
	return t.client.Close()
}

var _ Translator = (*GoogleTranslator)(nil)

// headings holds every fixed string that appears in a generated report.
type headings struct {
	Title         string
	Generated     string
	Members       string
	Presentations string
	TotalSlides   string
	MemberList    string
	DeckList      string
	Uploader      string
	Slides        string
	Uploaded      string
	Description   string
	OpenInSlides  string
	Unavailable   string
}

func defaultHeadings() headings {
	return headings{
		Title:         "Team Slides Combined Report",
		Generated:     "Generated",
		Members:       "Members",
		Presentations: "Presentations",
		TotalSlides:   "Total slides",
		MemberList:    "Team members",
		DeckList:      "Presentations in this report",
		Uploader:      "Uploader",
		Slides:        "Slides",
		Uploaded:      "Uploaded",
		Description:   "Description",
		OpenInSlides:  "Open in Google Slides",
		Unavailable:   "This presentation could not be exported",
	}
}

// localizeHeadings returns report headings in the requested language. An
// empty language, or a missing translator, yields the English defaults.
// Translation failures fall back to English rather than failing the report.
func localizeHeadings(ctx context.Context, translator Translator, lang string, logger *slog.Logger) (headings, error) {
	h := defaultHeadings()
	if lang == "" || translator == nil {
		return h, nil
	}

	target, err := language.Parse(lang)
	if err != nil {
		return h, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	if target == language.English {
		return h, nil
	}

	texts := []string{
		h.Title, h.Generated, h.Members, h.Presentations, h.TotalSlides,
		h.MemberList, h.DeckList, h.Uploader, h.Slides, h.Uploaded,
		h.Description, h.OpenInSlides, h.Unavailable,
	}

	translated, err := translator.Translate(ctx, texts, target)
	if err != nil || len(translated) != len(texts) {
		logger.Warn("heading translation failed, using english",
			slog.String("language", lang),
			slog.Any("error", err),
		)
		return h, nil
	}

	return headings{
		Title:         translated[0],
		Generated:     translated[1],
		Members:       translated[2],
		Presentations: translated[3],
		TotalSlides:   translated[4],
		MemberList:    translated[5],
		DeckList:      translated[6],
		Uploader:      translated[7],
		Slides:        translated[8],
		Uploaded:      translated[9],
		Description:   translated[10],
		OpenInSlides:  translated[11],
		Unavailable:   translated[12],
	}, nil
}
