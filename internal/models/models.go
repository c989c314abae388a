package models

import "encoding/json"

// Category tags a rule record with the editor concern it configures.
type Category string

const (
	CategoryCursor    Category = "cursor"
	CategoryAnalyzer  Category = "analyzer"
	CategoryFormatter Category = "formatter"
	CategoryLinter    Category = "linter"
	CategoryOther     Category = "other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{CategoryCursor, CategoryAnalyzer, CategoryFormatter, CategoryLinter, CategoryOther}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// RuleRecord is a stored rule definition.
type RuleRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        Category       `json:"type"`
	Content     map[string]any `json:"content"`
	Version     string         `json:"version"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// RulePayload is the wire document delivered to an editor client.
type RulePayload struct {
	Version string   `json:"version"`
	Rules   []string `json:"rules"`
	Context Context  `json:"context"`

	// Raw is the document the payload was decoded from, if any. When set it
	// is marshaled verbatim, so fields the struct does not declare survive.
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON emits Raw when present and the typed fields otherwise.
func (p RulePayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	type plain RulePayload
	return json.Marshal(plain(p))
}

// Context carries the business context attached to a payload.
type Context struct {
	BusinessDomain    string           `json:"businessDomain"`
	PreferredPatterns []string         `json:"preferredPatterns,omitempty"`
	CodingStandards   *CodingStandards `json:"coding_standards,omitempty"`
}

// CodingStandards describes the house code style.
type CodingStandards struct {
	Naming      string `json:"naming"`
	Indentation string `json:"indentation"`
	Bracing     string `json:"bracing"`
}

// Snapshot is the envelope persisted to the static snapshot file.
type Snapshot struct {
	BusinessCentralRules *RulePayload `json:"businessCentralRules"`
}

// Role is a user's authorization level.
type Role string

const (
	RoleUser        Role = "user"
	RoleAdmin       Role = "admin"
	RoleContributor Role = "contributor"
)

// User is an account allowed to manage rules.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         Role           `json:"role"`
	Organization string         `json:"organization,omitempty"`
	Preferences  map[string]any `json:"preferences"`
	Active       bool           `json:"active"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}
