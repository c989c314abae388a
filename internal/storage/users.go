package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

const userColumns = `id, username, email, password, role, organization, preferences, active, created_at, updated_at`

// UserStore manages user accounts. Passwords arrive already hashed.
type UserStore struct {
	db *sql.DB
}

// CreateUserParams holds the input for a new account.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         models.Role
	Organization string
	Preferences  map[string]any
}

// UpdateUserParams holds replacement values. Nil fields keep their value.
type UpdateUserParams struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *models.Role
	Organization *string
	Preferences  map[string]any
	Active       *bool
}

// List returns every user ordered by username.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Get looks up a user by id.
func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", id, err)
	}
	return u, nil
}

// GetByUsername looks up a user by username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return u, nil
}

// Create inserts a new account. Emails are stored lowercased.
func (s *UserStore) Create(ctx context.Context, p CreateUserParams) (*models.User, error) {
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	prefs, err := encodePreferences(p.Preferences)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, role, organization, preferences) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, strings.TrimSpace(p.Username), strings.ToLower(strings.TrimSpace(p.Email)), p.PasswordHash,
		string(p.Role), strings.TrimSpace(p.Organization), prefs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username or email: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.Get(ctx, id)
}

// Update replaces the provided fields.
func (s *UserStore) Update(ctx context.Context, id string, p UpdateUserParams) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Username != nil {
		u.Username = strings.TrimSpace(*p.Username)
	}
	if p.Email != nil {
		u.Email = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Organization != nil {
		u.Organization = strings.TrimSpace(*p.Organization)
	}
	if p.Preferences != nil {
		u.Preferences = p.Preferences
	}
	if p.Active != nil {
		u.Active = *p.Active
	}

	prefs, err := encodePreferences(u.Preferences)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, email = ?, password = ?, role = ?, organization = ?, preferences = ?, active = ?,
		 updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		u.Username, u.Email, u.PasswordHash, string(u.Role), u.Organization, prefs, u.Active, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("username or email: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes an account and returns what was deleted.
func (s *UserStore) Delete(ctx context.Context, id string) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	return u, nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u     models.User
		role  string
		prefs string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.Organization, &prefs, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Role = models.Role(role)
	if err := json.Unmarshal([]byte(prefs), &u.Preferences); err != nil {
		return nil, fmt.Errorf("decode preferences of user %q: %w", u.ID, err)
	}
	if u.Preferences == nil {
		u.Preferences = map[string]any{}
	}
	return &u, nil
}

func encodePreferences(prefs map[string]any) (string, error) {
	if prefs == nil {
		return "{}", nil
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return "", fmt.Errorf("encode preferences: %w", err)
	}
	return string(data), nil
}
