package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

var (
	// ErrUserExists is returned when creating a user whose name is
	// already taken.
	ErrUserExists = errors.New("username already exists")

	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRole is returned for roles other than member or admin.
	ErrInvalidRole = errors.New("invalid role")
)

// User is a local hub account. LastLogin is zero until the first login.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CreateUser inserts a new user. Returns ErrUserExists if the username
// is taken and ErrInvalidRole for unknown roles.
func (r *Registry) CreateUser(ctx context.Context, user *User) error {
	if user.Role == "" {
		user.Role = RoleMember
	}
	if user.Role != RoleMember && user.Role != RoleAdmin {
		return ErrInvalidRole
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	var exists int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username = ?`, user.Username)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if exists > 0 {
		return ErrUserExists
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns a user by name.
func (r *Registry) GetUser(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT username, password_hash, role, created_at, last_login FROM users WHERE username = ?`,
		username,
	)

	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(scan func(dest ...any) error) (*User, error) {
	var user User
	var lastLogin sql.NullTime
	if err := scan(&user.Username, &user.PasswordHash, &user.Role, &user.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = lastLogin.Time
	}
	return &user, nil
}

// ListUsers returns all users ordered by creation time.
func (r *Registry) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, password_hash, role, created_at, last_login FROM users ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateRole changes a user's role.
func (r *Registry) UpdateRole(ctx context.Context, username, role string) error {
	if role != RoleMember && role != RoleAdmin {
		return ErrInvalidRole
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE username = ?`, role, username,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordLogin stamps a user's last_login.
func (r *Registry) RecordLogin(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE username = ?`, time.Now().UTC(), username,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user account.
func (r *Registry) DeleteUser(ctx context.Context, username string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
