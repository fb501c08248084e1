package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Deck statuses.
const (
	StatusActive      = "active"
	StatusUnavailable = "unavailable"
)

var (
	// ErrDeckExists is returned when registering a presentation that is
	// already in the registry.
	ErrDeckExists = errors.New("presentation already registered")

	// ErrDeckNotFound is returned when a deck does not exist.
	ErrDeckNotFound = errors.New("presentation not found")
)

// Deck is a registered Google Slides presentation.
type Deck struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	Description  string    `json:"description"`
	Uploader     string    `json:"uploader"`
	UploadDate   time.Time `json:"upload_date"`
	SlideCount   int       `json:"slide_count"`
	LastModified time.Time `json:"last_modified"`
	Status       string    `json:"status"`
}

// CreateDeck inserts a new deck. Returns ErrDeckExists if the
// presentation ID is already registered.
func (r *Registry) CreateDeck(ctx context.Context, deck *Deck) error {
	if deck.Status == "" {
		deck.Status = StatusActive
	}
	if deck.UploadDate.IsZero() {
		deck.UploadDate = time.Now()
	}
	if deck.LastModified.IsZero() {
		deck.LastModified = deck.UploadDate
	}
	// Timestamps are stored as text, so mixed zones would compare
	// lexicographically instead of chronologically.
	deck.UploadDate = deck.UploadDate.UTC()
	deck.LastModified = deck.LastModified.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decks (id, title, link, description, uploader, upload_date, slide_count, last_modified, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		deck.ID, deck.Title, deck.Link, deck.Description, deck.Uploader,
		deck.UploadDate, deck.SlideCount, deck.LastModified, deck.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDeckExists
		}
		return fmt.Errorf("failed to create deck: %w", err)
	}
	return nil
}

// UpdateDeck applies the deck's current fields only when its
// last_modified is newer than the stored row. Returns true when the
// update was applied.
func (r *Registry) UpdateDeck(ctx context.Context, deck *Deck) (bool, error) {
	deck.LastModified = deck.LastModified.UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE decks SET title = ?, link = ?, description = ?, slide_count = ?, last_modified = ?, status = ?
		 WHERE id = ? AND last_modified < ?`,
		deck.Title, deck.Link, deck.Description, deck.SlideCount,
		deck.LastModified, deck.Status, deck.ID, deck.LastModified,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update deck: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish a stale update from a missing deck.
	if _, err := r.GetDeck(ctx, deck.ID); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateDeckDescription replaces a deck's description regardless of
// modification time.
func (r *Registry) UpdateDeckDescription(ctx context.Context, id, description string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE decks SET description = ? WHERE id = ?`, description, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update description: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// UpdateDeckStatus sets a deck's status.
func (r *Registry) UpdateDeckStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE decks SET status = ? WHERE id = ?`, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// GetDeck returns a deck by presentation ID.
func (r *Registry) GetDeck(ctx context.Context, id string) (*Deck, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, title, link, description, uploader, upload_date, slide_count, last_modified, status
		 FROM decks WHERE id = ?`, id,
	)
	return scanDeck(row)
}

// ListDecks returns all decks ordered by upload date, newest first.
func (r *Registry) ListDecks(ctx context.Context) ([]*Deck, error) {
	return r.queryDecks(ctx,
		`SELECT id, title, link, description, uploader, upload_date, slide_count, last_modified, status
		 FROM decks ORDER BY upload_date DESC`,
	)
}

// ListDecksByUploader returns the decks registered by one user.
func (r *Registry) ListDecksByUploader(ctx context.Context, uploader string) ([]*Deck, error) {
	return r.queryDecks(ctx,
		`SELECT id, title, link, description, uploader, upload_date, slide_count, last_modified, status
		 FROM decks WHERE uploader = ? ORDER BY upload_date DESC`,
		uploader,
	)
}

// SearchDecks returns decks whose title, description, or uploader
// matches the query, case-insensitively.
func (r *Registry) SearchDecks(ctx context.Context, query string) ([]*Deck, error) {
	pattern := "%" + query + "%"
	return r.queryDecks(ctx,
		`SELECT id, title, link, description, uploader, upload_date, slide_count, last_modified, status
		 FROM decks
		 WHERE title LIKE ? OR description LIKE ? OR uploader LIKE ?
		 ORDER BY upload_date DESC`,
		pattern, pattern, pattern,
	)
}

// DeleteDeck removes a deck from the registry.
func (r *Registry) DeleteDeck(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrDeckNotFound
	}
	return nil
}

func (r *Registry) queryDecks(ctx context.Context, query string, args ...any) ([]*Deck, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	decks := []*Deck{}
	for rows.Next() {
		var deck Deck
		if err := rows.Scan(&deck.ID, &deck.Title, &deck.Link, &deck.Description, &deck.Uploader,
			&deck.UploadDate, &deck.SlideCount, &deck.LastModified, &deck.Status); err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, &deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decks: %w", err)
	}
	return decks, nil
}

func scanDeck(row *sql.Row) (*Deck, error) {
	var deck Deck
	err := row.Scan(&deck.ID, &deck.Title, &deck.Link, &deck.Description, &deck.Uploader,
		&deck.UploadDate, &deck.SlideCount, &deck.LastModified, &deck.Status)
	if err == sql.ErrNoRows {
		return nil, ErrDeckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deck: %w", err)
	}
	return &deck, nil
}

// isUniqueViolation checks for a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
