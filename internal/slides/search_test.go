package slides

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

func TestSearchDrivePresentations(t *testing.T) {
	env := newTestEnv(t)
	seedDeck(t, env, "pres-000000001", "alice")

	var gotQuery string
	env.drive.listFilesFunc = func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
		gotQuery = query
		return &drive.FileList{
			Files: []*drive.File{
				{
					Id:            "pres-000000001",
					Name:          "Registered Deck",
					ModifiedTime:  "2026-01-15T10:00:00.000Z",
					ThumbnailLink: "https://example.com/thumb1",
					Owners:        []*drive.User{{DisplayName: "Alice"}},
				},
				{
					Id:   "pres-000000002",
					Name: "New Deck",
				},
			},
		}, nil
	}

	results, err := env.service.SearchDrivePresentations(context.Background(), "alice", "quarterly", 0)
	if err != nil {
		t.Fatalf("SearchDrivePresentations failed: %v", err)
	}

	if !strings.Contains(gotQuery, "fullText contains 'quarterly'") {
		t.Errorf("query missing search term: %s", gotQuery)
	}
	if !strings.Contains(gotQuery, "trashed=false") {
		t.Errorf("query should exclude trashed files: %s", gotQuery)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Registered {
		t.Error("expected first result to be flagged as registered")
	}
	if results[1].Registered {
		t.Error("expected second result to not be registered")
	}
	if results[0].Owner != "Alice" {
		t.Errorf("unexpected owner: %s", results[0].Owner)
	}
}

func TestSearchDrivePresentationsEmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.SearchDrivePresentations(context.Background(), "alice", "  ", 0)
	if err != ErrInvalidQuery {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearchDrivePresentationsEscapesQuotes(t *testing.T) {
	env := newTestEnv(t)

	var gotQuery string
	env.drive.listFilesFunc = func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
		gotQuery = query
		return &drive.FileList{}, nil
	}

	if _, err := env.service.SearchDrivePresentations(context.Background(), "alice", "bob's deck", 0); err != nil {
		t.Fatalf("SearchDrivePresentations failed: %v", err)
	}
	if !strings.Contains(gotQuery, `bob\'s deck`) {
		t.Errorf("expected escaped quote in query: %s", gotQuery)
	}
}

func TestSearchDrivePresentationsLimitCap(t *testing.T) {
	env := newTestEnv(t)

	var gotMax int64
	env.drive.listFilesFunc = func(ctx context.Context, query string, maxResults int64, fields googleapi.Field) (*drive.FileList, error) {
		gotMax = maxResults
		return &drive.FileList{}, nil
	}

	if _, err := env.service.SearchDrivePresentations(context.Background(), "alice", "x", 500); err != nil {
		t.Fatalf("SearchDrivePresentations failed: %v", err)
	}
	if gotMax != 100 {
		t.Errorf("expected limit capped at 100, got %d", gotMax)
	}
}
