// Package registry persists users, registered decks, and the team
// activity log in SQLite.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'member',
	created_at    TIMESTAMP NOT NULL,
	last_login    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS decks (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	link          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	uploader      TEXT NOT NULL,
	upload_date   TIMESTAMP NOT NULL,
	slide_count   INTEGER NOT NULL DEFAULT 0,
	last_modified TIMESTAMP NOT NULL,
	status        TEXT NOT NULL DEFAULT 'active'
);

CREATE INDEX IF NOT EXISTS idx_decks_uploader ON decks(uploader);

CREATE TABLE IF NOT EXISTS activities (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username   TEXT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at DESC);
`

// Registry is the SQLite-backed store for the hub.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the registry database at path.
func Open(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("registry opened", slog.String("path", path))

	return &Registry{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Stats summarizes the team's registered content.
type Stats struct {
	Members       int            `json:"members"`
	Presentations int            `json:"presentations"`
	TotalSlides   int            `json:"total_slides"`
	PerUploader   map[string]int `json:"per_uploader"`
}

// Stats returns counts of members, registered presentations, total
// slides, and presentations per uploader.
func (r *Registry) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{PerUploader: make(map[string]int)}

	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	if err := row.Scan(&stats.Members); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	row = r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(slide_count), 0) FROM decks`)
	if err := row.Scan(&stats.Presentations, &stats.TotalSlides); err != nil {
		return nil, fmt.Errorf("failed to count decks: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT uploader, COUNT(*) FROM decks GROUP BY uploader`)
	if err != nil {
		return nil, fmt.Errorf("failed to count decks per uploader: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uploader string
		var count int
		if err := rows.Scan(&uploader, &count); err != nil {
			return nil, fmt.Errorf("failed to scan uploader count: %w", err)
		}
		stats.PerUploader[uploader] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploader counts: %w", err)
	}

	return stats, nil
}
