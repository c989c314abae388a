package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

// CursorFormatVersion is the version stamped on every .cursorrules document.
const CursorFormatVersion = "1.0"

// CursorRules is a rule set converted to the .cursorrules layout.
type CursorRules struct {
	Version string         `json:"version"`
	Rules   map[string]any `json:"rules"`
}

type transformFunc func(content map[string]any) (map[string]any, error)

// transforms holds one conversion per category with a .cursorrules mapping.
var transforms = map[models.Category]transformFunc{
	models.CategoryCursor:    cursorTransform,
	models.CategoryAnalyzer:  analyzerTransform,
	models.CategoryFormatter: formatterTransform,
}

// ToCursorFormat converts rs to the .cursorrules layout. Categories
// without a mapping produce an empty rules object.
func ToCursorFormat(rs RuleSet) (CursorRules, error) {
	out := CursorRules{Version: CursorFormatVersion, Rules: map[string]any{}}
	fn, ok := transforms[rs.Type]
	if !ok {
		return out, nil
	}
	rules, err := fn(rs.Content)
	if err != nil {
		return CursorRules{}, fmt.Errorf("convert %s rule set %q: %w", rs.Type, rs.Name, err)
	}
	out.Rules = rules
	return out, nil
}

// decodeContent re-decodes a free-form document into a typed view.
func decodeContent(content map[string]any, dst any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}
	return nil
}

type cursorContent struct {
	AutoCompletion *struct {
		Enabled           bool     `json:"enabled"`
		SuggestVariables  bool     `json:"suggestVariables"`
		SuggestFields     bool     `json:"suggestFields"`
		SuggestFunctions  bool     `json:"suggestFunctions"`
		SuggestKeywords   bool     `json:"suggestKeywords"`
		TriggerCharacters []string `json:"triggerCharacters"`
	} `json:"autoCompletion"`
	CodeActions map[string]bool `json:"codeActions"`
	Snippets    *struct {
		Enabled  bool              `json:"enabled"`
		Triggers map[string]string `json:"triggers"`
	} `json:"snippets"`
}

type autocompletion struct {
	Enabled bool `json:"enabled"`
	Suggest struct {
		Variables bool `json:"variables"`
		Fields    bool `json:"fields"`
		Functions bool `json:"functions"`
		Keywords  bool `json:"keywords"`
	} `json:"suggest"`
	TriggerCharacters []string `json:"triggerCharacters"`
}

type toggle struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type codeActions struct {
	Enabled bool     `json:"enabled"`
	Actions []toggle `json:"actions"`
}

type snippet struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

type snippets struct {
	Enabled bool      `json:"enabled"`
	Items   []snippet `json:"items"`
}

func cursorTransform(content map[string]any) (map[string]any, error) {
	var c cursorContent
	if err := decodeContent(content, &c); err != nil {
		return nil, err
	}

	out := map[string]any{}
	if ac := c.AutoCompletion; ac != nil {
		a := autocompletion{Enabled: ac.Enabled, TriggerCharacters: ac.TriggerCharacters}
		a.Suggest.Variables = ac.SuggestVariables
		a.Suggest.Fields = ac.SuggestFields
		a.Suggest.Functions = ac.SuggestFunctions
		a.Suggest.Keywords = ac.SuggestKeywords
		out["autocompletion"] = a
	}
	if c.CodeActions != nil {
		actions := []toggle{}
		for _, name := range sortedKeys(c.CodeActions) {
			if c.CodeActions[name] {
				actions = append(actions, toggle{Name: name, Enabled: true})
			}
		}
		out["codeActions"] = codeActions{Enabled: true, Actions: actions}
	}
	if s := c.Snippets; s != nil && s.Enabled {
		items := []snippet{}
		for _, trigger := range sortedKeys(s.Triggers) {
			items = append(items, snippet{Name: trigger, Body: s.Triggers[trigger]})
		}
		out["snippets"] = snippets{Enabled: true, Items: items}
	}
	return out, nil
}

type formatterContent struct {
	Indentation *struct {
		Size      int  `json:"size"`
		UseSpaces bool `json:"useSpaces"`
	} `json:"indentation"`
	Braces *struct {
		BracesOnNewLine *bool `json:"bracesOnNewLine"`
	} `json:"braces"`
	NewLines *struct {
		MaxEmptyLines int `json:"maxEmptyLines"`
	} `json:"newLines"`
	Spacing *struct {
		SpaceAroundOperators   *bool `json:"spaceAroundOperators"`
		SpaceAfterComma        *bool `json:"spaceAfterComma"`
		SpaceBeforeParentheses *bool `json:"spaceBeforeParentheses"`
	} `json:"spacing"`
}

type formatting struct {
	Indent struct {
		Size      int  `json:"size"`
		UseSpaces bool `json:"useSpaces"`
	} `json:"indent"`
	NewLine struct {
		BeforeOpenBrace *bool `json:"beforeOpenBrace,omitempty"`
		AfterCloseBrace bool  `json:"afterCloseBrace"`
		MaxEmpty        int   `json:"maxEmpty"`
	} `json:"newLine"`
	Spacing struct {
		AroundOperators *bool `json:"aroundOperators,omitempty"`
		AfterComma      *bool `json:"afterComma,omitempty"`
		BeforeParens    *bool `json:"beforeParens,omitempty"`
	} `json:"spacing"`
}

var errNoIndentation = errors.New("content has no indentation section")

func formatterTransform(content map[string]any) (map[string]any, error) {
	var c formatterContent
	if err := decodeContent(content, &c); err != nil {
		return nil, err
	}
	if c.Indentation == nil {
		return nil, errNoIndentation
	}

	var f formatting
	f.Indent.Size = c.Indentation.Size
	f.Indent.UseSpaces = c.Indentation.UseSpaces
	if c.Braces != nil {
		f.NewLine.BeforeOpenBrace = c.Braces.BracesOnNewLine
	}
	f.NewLine.AfterCloseBrace = true
	f.NewLine.MaxEmpty = 1
	if c.NewLines != nil && c.NewLines.MaxEmptyLines > 0 {
		f.NewLine.MaxEmpty = c.NewLines.MaxEmptyLines
	}
	if s := c.Spacing; s != nil {
		f.Spacing.AroundOperators = s.SpaceAroundOperators
		f.Spacing.AfterComma = s.SpaceAfterComma
		f.Spacing.BeforeParens = s.SpaceBeforeParentheses
	}
	return map[string]any{"formatting": f}, nil
}

type analyzerContent struct {
	Naming *struct {
		VariableNaming  any `json:"variableNaming"`
		ProcedureNaming any `json:"procedureNaming"`
		TableNaming     any `json:"tableNaming"`
		PageNaming      any `json:"pageNaming"`
	} `json:"naming"`
	Complexity map[string]json.RawMessage `json:"complexity"`
}

type analyzerRule struct {
	ID       string         `json:"id"`
	Enabled  bool           `json:"enabled"`
	Severity string         `json:"severity"`
	Options  map[string]any `json:"options"`
}

type analyzer struct {
	Enabled bool           `json:"enabled"`
	Rules   []analyzerRule `json:"rules"`
}

func analyzerTransform(content map[string]any) (map[string]any, error) {
	var c analyzerContent
	if err := decodeContent(content, &c); err != nil {
		return nil, err
	}

	a := analyzer{Enabled: true, Rules: []analyzerRule{}}
	if n := c.Naming; n != nil {
		a.Rules = append(a.Rules, analyzerRule{
			ID:       "naming",
			Enabled:  true,
			Severity: "warning",
			Options: map[string]any{
				"variables":  n.VariableNaming,
				"procedures": n.ProcedureNaming,
				"tables":     n.TableNaming,
				"pages":      n.PageNaming,
			},
		})
	}
	for _, id := range sortedKeys(c.Complexity) {
		// Only object-valued entries carry an enabled switch.
		var opts map[string]any
		if err := json.Unmarshal(c.Complexity[id], &opts); err != nil {
			continue
		}
		if enabled, _ := opts["enabled"].(bool); !enabled {
			continue
		}
		a.Rules = append(a.Rules, analyzerRule{ID: id, Enabled: true, Severity: "warning", Options: opts})
	}
	return map[string]any{"analyzer": a}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
