package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/smorand/slides-team-hub/internal/registry"
	"github.com/smorand/slides-team-hub/internal/slides"
)

// EmbedCheck reports whether a presentation can be embedded in an
// iframe for the given user, typically backed by a Drive link-sharing
// lookup. A nil check assumes every deck is embeddable.
type EmbedCheck func(ctx context.Context, username, presentationID string) (bool, error)

// htmlReport is the full view model for the combined HTML report.
type htmlReport struct {
	Headings  headings
	Generated string
	Stats     *registry.Stats
	Members   []string
	Decks     []deckView
}

type deckView struct {
	Index       int
	Title       string
	Uploader    string
	SlideCount  int
	UploadDate  string
	Description string
	EditLink    string
	Embeddable  bool
	Slides      []slideView
}

type slideView struct {
	Index    int
	EmbedURL string
}

// GenerateHTML produces the combined HTML report: team stats followed
// by one section per deck embedding the Slides iframe player per
// slide. Decks that are not link-shared get a plain link instead of
// iframes. lang optionally localizes the fixed headings.
func (g *Generator) GenerateHTML(ctx context.Context, username, lang string, embedCheck EmbedCheck) (*Report, error) {
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

	view := &htmlReport{
		Headings:  h,
		Generated: time.Now().Format("2006-01-02 15:04:05"),
		Stats:     stats,
	}
	for _, user := range users {
		member := user.Username
		if n := stats.PerUploader[user.Username]; n > 0 {
			member = fmt.Sprintf("%s (%d)", user.Username, n)
		}
		view.Members = append(view.Members, member)
	}

	for i, deck := range decks {
		dv := deckView{
			Index:       i + 1,
			Title:       deck.Title,
			Uploader:    deck.Uploader,
			SlideCount:  deck.SlideCount,
			UploadDate:  deck.UploadDate.Format("2006-01-02"),
			Description: deck.Description,
			EditLink:    slides.EditLink(deck.ID),
			Embeddable:  true,
		}

		if embedCheck != nil {
			shared, err := embedCheck(ctx, username, deck.ID)
			if err != nil {
				g.config.Logger.Warn("embed check failed, linking instead",
					slog.String("presentation_id", deck.ID),
					slog.Any("error", err),
				)
				shared = false
			}
			dv.Embeddable = shared
		}

		if dv.Embeddable {
			for n := 1; n <= deck.SlideCount; n++ {
				dv.Slides = append(dv.Slides, slideView{
					Index:    n,
					EmbedURL: slides.EmbedURL(deck.ID, n),
				})
			}
		}

		view.Decks = append(view.Decks, dv)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render html report: %w", err)
	}

	g.config.Logger.Info("generated combined html report",
		slog.String("username", username),
		slog.Int("decks", len(decks)),
		slog.Int("bytes", buf.Len()),
	)

	return &Report{
		Filename:    reportFilename("report", "html"),
		ContentType: "text/html; charset=utf-8",
		Data:        buf.Bytes(),
	}, nil
}

var htmlTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Headings.Title}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; margin: 2em; color: #222; }
h1 { border-bottom: 2px solid #4285f4; padding-bottom: 0.3em; }
h2 { margin-top: 2em; }
.meta { color: #666; font-size: 0.9em; }
.stats span { margin-right: 2em; }
.deck { margin-top: 2.5em; border-top: 1px solid #ddd; padding-top: 1em; }
.slide { margin: 1em 0; }
iframe { border: 1px solid #ccc; }
</style>
</head>
<body>
<h1>{{.Headings.Title}}</h1>
<p class="meta">{{.Headings.Generated}}: {{.Generated}}</p>
<p class="stats">
<span>{{.Headings.Members}}: {{.Stats.Members}}</span>
<span>{{.Headings.Presentations}}: {{.Stats.Presentations}}</span>
<span>{{.Headings.TotalSlides}}: {{.Stats.TotalSlides}}</span>
</p>
<h2>{{.Headings.MemberList}}</h2>
<ul>
{{- range .Members}}
<li>{{.}}</li>
{{- end}}
</ul>
<h2>{{.Headings.DeckList}}</h2>
{{- range .Decks}}
<div class="deck">
<h3>{{.Index}}. {{.Title}}</h3>
<p class="meta">{{$.Headings.Uploader}}: {{.Uploader}} | {{$.Headings.Slides}}: {{.SlideCount}} | {{$.Headings.Uploaded}}: {{.UploadDate}}</p>
{{- if .Description}}
<p>{{$.Headings.Description}}: {{.Description}}</p>
{{- end}}
<p><a href="{{.EditLink}}">{{$.Headings.OpenInSlides}}</a></p>
{{- range .Slides}}
<div class="slide">
<iframe src="{{.EmbedURL}}" width="960" height="569" frameborder="0" allowfullscreen></iframe>
</div>
{{- end}}
</div>
{{- end}}
</body>
</html>
`))
