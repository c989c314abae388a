// Package rules holds the built-in AL rule sets and the pure functions
// that convert, merge and validate rule sets.
package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// RuleSet is a rule definition outside the database: a built-in default,
// a seed record, or a document passed to a tool.
type RuleSet struct {
	ID          string          `yaml:"id" json:"id,omitempty"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Type        models.Category `yaml:"type" json:"type"`
	Content     map[string]any  `yaml:"content" json:"content"`
	Version     string          `yaml:"version" json:"version,omitempty"`
}

type catalog struct {
	Defaults []RuleSet `yaml:"defaults"`
	Samples  []RuleSet `yaml:"samples"`
}

var builtin = mustLoadCatalog(defaultsYAML)

// defaultIDs maps a category to the id of its built-in rule set.
var defaultIDs = map[models.Category]string{
	models.CategoryCursor:    "al-cursor-behavior",
	models.CategoryAnalyzer:  "al-code-analysis",
	models.CategoryFormatter: "al-formatting",
}

func mustLoadCatalog(data []byte) catalog {
	c, err := loadCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

func loadCatalog(data []byte) (catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return catalog{}, fmt.Errorf("parse rule catalog: %w", err)
	}
	for _, list := range [][]RuleSet{c.Defaults, c.Samples} {
		for i := range list {
			// yaml decodes integers as int; normalize to what JSON clients send.
			content, err := normalize(list[i].Content)
			if err != nil {
				return catalog{}, fmt.Errorf("rule set %q: %w", list[i].Name, err)
			}
			list[i].Content = content
		}
	}
	return c, nil
}

// Defaults returns copies of every built-in rule set.
func Defaults() []RuleSet {
	return cloneAll(builtin.Defaults)
}

// Samples returns copies of the sample records used to seed an empty
// ephemeral database.
func Samples() []RuleSet {
	return cloneAll(builtin.Samples)
}

// BuiltinTypes lists the categories that have a built-in rule set, in
// category order.
func BuiltinTypes() []models.Category {
	var out []models.Category
	for _, c := range models.Categories {
		if _, ok := defaultIDs[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ByType returns the built-in rule set for category. Only cursor,
// analyzer and formatter have one.
func ByType(category models.Category) (RuleSet, bool) {
	id, ok := defaultIDs[category]
	if !ok {
		return RuleSet{}, false
	}
	for _, rs := range builtin.Defaults {
		if rs.ID == id {
			return rs.clone(), true
		}
	}
	return RuleSet{}, false
}

func (rs RuleSet) clone() RuleSet {
	out := rs
	out.Content = cloneMap(rs.Content)
	return out
}

func cloneAll(in []RuleSet) []RuleSet {
	out := make([]RuleSet, len(in))
	for i, rs := range in {
		out[i] = rs.clone()
	}
	return out
}

// normalize converts a decoded document into the shapes encoding/json
// produces: map[string]any, []any, float64, string, bool.
func normalize(doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	return out, nil
}
