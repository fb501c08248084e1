package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Activity log actions.
const (
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionRegister         = "REGISTER"
	ActionUpload           = "UPLOAD"
	ActionUpdate           = "UPDATE"
	ActionManualUpdate     = "MANUAL_UPDATE"
	ActionSlideUpdate      = "SLIDE_UPDATE"
	ActionDelete           = "DELETE"
	ActionAdminDelete      = "ADMIN_DELETE"
	ActionRoleChange       = "ROLE_CHANGE"
	ActionGoogleAuth       = "GOOGLE_AUTH"
	ActionGoogleDisconnect = "GOOGLE_DISCONNECT"
)

// Activity is one entry in the team activity log.
type Activity struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// LogActivity appends an entry to the activity log.
func (r *Registry) LogActivity(ctx context.Context, username, action, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activities (username, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		username, action, detail, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

// ListActivities returns the most recent activity entries, newest
// first. A limit of zero returns all entries.
func (r *Registry) ListActivities(ctx context.Context, limit int) ([]*Activity, error) {
	query := `SELECT id, username, action, detail, created_at FROM activities ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

// ListActivitiesForUser returns a user's recent activity, newest first.
func (r *Registry) ListActivitiesForUser(ctx context.Context, username string, limit int) ([]*Activity, error) {
	query := `SELECT id, username, action, detail, created_at FROM activities WHERE username = ? ORDER BY created_at DESC, id DESC`
	args := []any{username}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]*Activity, error) {
	activities := []*Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Username, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}
