package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/rules"
)

const ruleColumns = `id, name, description, type, content, version, created_by, created_at, updated_at`

// RuleStore manages rule records.
type RuleStore struct {
	db *sql.DB
}

// RuleFilter narrows List results. Zero values match everything.
type RuleFilter struct {
	Type models.Category
	Name string
}

// CreateRuleParams holds the input for a new rule record.
type CreateRuleParams struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        models.Category `json:"type"`
	Content     map[string]any  `json:"content"`
	CreatedBy   string          `json:"-"`
}

// UpdateRuleParams holds replacement values. Nil fields keep their value.
type UpdateRuleParams struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Type        *models.Category `json:"type,omitempty"`
	Content     map[string]any   `json:"content,omitempty"`
}

// Empty reports whether no field would change.
func (p UpdateRuleParams) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Type == nil && p.Content == nil
}

// List returns rules matching the filter ordered by creation time.
// Name matches case-insensitively on substrings.
func (s *RuleStore) List(ctx context.Context, filter RuleFilter) ([]models.RuleRecord, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE 1 = 1`
	var args []any
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Name != "" {
		query += ` AND instr(lower(name), lower(?)) > 0`
		args = append(args, filter.Name)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	out := []models.RuleRecord{}
	for rows.Next() {
		rec, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListByCategory returns every rule tagged with category.
func (s *RuleStore) ListByCategory(ctx context.Context, category models.Category) ([]models.RuleRecord, error) {
	return s.List(ctx, RuleFilter{Type: category})
}

// Count returns the number of stored rules.
func (s *RuleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	return n, nil
}

// Get looks up a rule by id.
func (s *RuleStore) Get(ctx context.Context, id string) (*models.RuleRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rec, err := scanRule(row)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", id, err)
	}
	return rec, nil
}

// Create inserts a rule at the initial version.
func (s *RuleStore) Create(ctx context.Context, p CreateRuleParams) (*models.RuleRecord, error) {
	content, err := json.Marshal(p.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, name, description, type, content, version, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, strings.TrimSpace(p.Name), strings.TrimSpace(p.Description), string(p.Type), string(content),
		rules.InitialVersion, nullString(p.CreatedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("rule %q: %w", p.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("insert rule: %w", err)
	}
	return s.Get(ctx, id)
}

// Update replaces the provided fields and bumps the patch version.
func (s *RuleStore) Update(ctx context.Context, id string, p UpdateRuleParams) (*models.RuleRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanRule(tx.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", id, err)
	}

	if p.Name != nil {
		current.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		current.Description = strings.TrimSpace(*p.Description)
	}
	if p.Type != nil {
		current.Type = *p.Type
	}
	if p.Content != nil {
		current.Content = p.Content
	}
	next, err := rules.IncrementPatch(current.Version)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", id, err)
	}

	content, err := json.Marshal(current.Content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rules SET name = ?, description = ?, type = ?, content = ?, version = ?,
		 updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`,
		current.Name, current.Description, string(current.Type), string(content), next, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("rule %q: %w", current.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("update rule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete removes a rule and returns what was deleted.
func (s *RuleStore) Delete(ctx context.Context, id string) (*models.RuleRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete rule: %w", err)
	}
	return rec, nil
}

// Seed inserts params only when the table is empty.
func (s *RuleStore) Seed(ctx context.Context, params []CreateRuleParams) error {
	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, p := range params {
		if _, err := s.Create(ctx, p); err != nil {
			return fmt.Errorf("seed rule %q: %w", p.Name, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*models.RuleRecord, error) {
	var (
		r         models.RuleRecord
		typ       string
		content   string
		createdBy sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &typ, &content, &r.Version, &createdBy, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	r.Type = models.Category(typ)
	r.CreatedBy = createdBy.String
	if err := json.Unmarshal([]byte(content), &r.Content); err != nil {
		return nil, fmt.Errorf("decode content of rule %q: %w", r.ID, err)
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
