package rules

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

func TestIncrementPatch(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "1.0.0", want: "1.0.1"},
		{in: "2.3.9", want: "2.3.10"},
		{in: "1.0", wantErr: true},
		{in: "a.b.c", wantErr: true},
		{in: "1.0.-1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := IncrementPatch(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestIncrementPatchTwice(t *testing.T) {
	v := InitialVersion
	for range 2 {
		var err error
		v, err = IncrementPatch(v)
		require.NoError(t, err)
	}
	assert.Equal(t, "1.0.2", v)
}

func TestDefaultsCatalog(t *testing.T) {
	defaults := Defaults()
	require.Len(t, defaults, 3)

	ids := make([]string, len(defaults))
	for i, rs := range defaults {
		ids[i] = rs.ID
		assert.Equal(t, "1.0.0", rs.Version, rs.ID)
		assert.True(t, Check(rs.Name, string(rs.Type), rs.Content).Valid, rs.ID)
	}
	assert.Equal(t, []string{"al-formatting", "al-code-analysis", "al-cursor-behavior"}, ids)

	assert.Equal(t, []models.Category{models.CategoryCursor, models.CategoryAnalyzer, models.CategoryFormatter}, BuiltinTypes())
	for _, c := range BuiltinTypes() {
		_, ok := ByType(c)
		assert.True(t, ok, c)
	}

	samples := Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, "AL Formatting Rules", samples[0].Name)
	assert.Equal(t, models.CategoryCursor, samples[0].Type)
	assert.Equal(t, models.CategoryAnalyzer, samples[1].Type)
}

func TestDefaultsContentIsNormalized(t *testing.T) {
	rs, ok := ByType(models.CategoryFormatter)
	require.True(t, ok)
	indent := rs.Content["indentation"].(map[string]any)
	assert.Equal(t, float64(4), indent["size"])
}

func TestByType(t *testing.T) {
	tests := map[models.Category]string{
		models.CategoryCursor:    "al-cursor-behavior",
		models.CategoryAnalyzer:  "al-code-analysis",
		models.CategoryFormatter: "al-formatting",
	}
	for cat, id := range tests {
		rs, ok := ByType(cat)
		require.True(t, ok, cat)
		assert.Equal(t, id, rs.ID)
		assert.Equal(t, cat, rs.Type)
	}

	for _, cat := range []models.Category{models.CategoryLinter, models.CategoryOther, "bogus"} {
		_, ok := ByType(cat)
		assert.False(t, ok, cat)
	}
}

func TestByTypeReturnsCopy(t *testing.T) {
	rs, _ := ByType(models.CategoryCursor)
	rs.Content["autoCompletion"].(map[string]any)["enabled"] = false

	again, _ := ByType(models.CategoryCursor)
	assert.Equal(t, true, again.Content["autoCompletion"].(map[string]any)["enabled"])
}

func toJSON(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestToCursorFormatCursor(t *testing.T) {
	rs := RuleSet{Name: "c", Type: models.CategoryCursor, Content: map[string]any{
		"autoCompletion": map[string]any{
			"enabled":           true,
			"suggestVariables":  true,
			"suggestFields":     false,
			"suggestFunctions":  true,
			"suggestKeywords":   false,
			"triggerCharacters": []any{".", ":"},
		},
		"codeActions": map[string]any{"sortVariables": true, "addRegion": true, "extractProcedure": false},
		"snippets": map[string]any{
			"enabled":  true,
			"triggers": map[string]any{"tif": "if x then", "tproc": "procedure"},
		},
	}}

	got, err := ToCursorFormat(rs)
	require.NoError(t, err)

	want := map[string]any{
		"version": "1.0",
		"rules": map[string]any{
			"autocompletion": map[string]any{
				"enabled": true,
				"suggest": map[string]any{
					"variables": true, "fields": false, "functions": true, "keywords": false,
				},
				"triggerCharacters": []any{".", ":"},
			},
			"codeActions": map[string]any{
				"enabled": true,
				"actions": []any{
					map[string]any{"name": "addRegion", "enabled": true},
					map[string]any{"name": "sortVariables", "enabled": true},
				},
			},
			"snippets": map[string]any{
				"enabled": true,
				"items": []any{
					map[string]any{"name": "tif", "body": "if x then"},
					map[string]any{"name": "tproc", "body": "procedure"},
				},
			},
		},
	}
	if diff := cmp.Diff(want, toJSON(t, got)); diff != "" {
		t.Errorf("ToCursorFormat mismatch (-want +got):\n%s", diff)
	}
}

func TestToCursorFormatDisabledSnippets(t *testing.T) {
	got, err := ToCursorFormat(RuleSet{Type: models.CategoryCursor, Content: map[string]any{
		"snippets": map[string]any{"enabled": false, "triggers": map[string]any{"a": "b"}},
	}})
	require.NoError(t, err)
	assert.Empty(t, got.Rules)
}

func TestToCursorFormatFormatter(t *testing.T) {
	rs, _ := ByType(models.CategoryFormatter)
	got, err := ToCursorFormat(rs)
	require.NoError(t, err)

	want := map[string]any{
		"version": "1.0",
		"rules": map[string]any{
			"formatting": map[string]any{
				"indent":  map[string]any{"size": float64(4), "useSpaces": true},
				"newLine": map[string]any{"beforeOpenBrace": true, "afterCloseBrace": true, "maxEmpty": float64(1)},
				"spacing": map[string]any{"aroundOperators": true, "afterComma": true, "beforeParens": true},
			},
		},
	}
	if diff := cmp.Diff(want, toJSON(t, got)); diff != "" {
		t.Errorf("ToCursorFormat mismatch (-want +got):\n%s", diff)
	}
}

func TestToCursorFormatFormatterDefaults(t *testing.T) {
	got, err := ToCursorFormat(RuleSet{Type: models.CategoryFormatter, Content: map[string]any{
		"indentation": map[string]any{"size": 2, "useSpaces": false},
	}})
	require.NoError(t, err)

	f := toJSON(t, got)["rules"].(map[string]any)["formatting"].(map[string]any)
	assert.Equal(t, map[string]any{"afterCloseBrace": true, "maxEmpty": float64(1)}, f["newLine"])
	assert.Equal(t, map[string]any{}, f["spacing"])
}

func TestToCursorFormatFormatterWithoutIndentation(t *testing.T) {
	_, err := ToCursorFormat(RuleSet{Name: "broken", Type: models.CategoryFormatter, Content: map[string]any{}})
	assert.ErrorIs(t, err, errNoIndentation)
}

func TestToCursorFormatAnalyzer(t *testing.T) {
	rs, _ := ByType(models.CategoryAnalyzer)
	got, err := ToCursorFormat(rs)
	require.NoError(t, err)

	a := toJSON(t, got)["rules"].(map[string]any)["analyzer"].(map[string]any)
	assert.Equal(t, true, a["enabled"])

	list := a["rules"].([]any)
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.(map[string]any)["id"].(string)
		assert.Equal(t, "warning", r.(map[string]any)["severity"])
	}
	assert.Equal(t, []string{"naming", "cyclomaticComplexity", "maxNestedBlocks", "maxParameters", "maxProcedureLength"}, ids)

	opts := list[4].(map[string]any)["options"].(map[string]any)
	assert.Equal(t, map[string]any{"enabled": true, "maxLines": float64(100)}, opts)
}

func TestToCursorFormatAnalyzerSkipsDisabledAndScalar(t *testing.T) {
	got, err := ToCursorFormat(RuleSet{Type: models.CategoryAnalyzer, Content: map[string]any{
		"complexity": map[string]any{
			"maxMethodLength": 100,
			"maxDepth":        map[string]any{"enabled": false},
		},
	}})
	require.NoError(t, err)
	a := toJSON(t, got)["rules"].(map[string]any)["analyzer"].(map[string]any)
	assert.Equal(t, []any{}, a["rules"])
}

func TestToCursorFormatUnmappedCategories(t *testing.T) {
	for _, cat := range []models.Category{models.CategoryLinter, models.CategoryOther} {
		got, err := ToCursorFormat(RuleSet{Type: cat, Content: map[string]any{"x": 1}})
		require.NoError(t, err)
		assert.Equal(t, CursorRules{Version: "1.0", Rules: map[string]any{}}, got)
	}
}

func TestDeepMerge(t *testing.T) {
	base := map[string]any{
		"indentation": map[string]any{"size": 4, "useSpaces": true},
		"prefixes":    []any{"l", "g"},
		"casing":      "PascalCase",
	}
	override := map[string]any{
		"indentation": map[string]any{"size": 2},
		"prefixes":    []any{"t"},
		"casing":      map[string]any{"keywords": "lowercase"},
		"extra":       true,
	}

	got := DeepMerge(base, override)
	want := map[string]any{
		"indentation": map[string]any{"size": 2, "useSpaces": true},
		"prefixes":    []any{"t"},
		"casing":      map[string]any{"keywords": "lowercase"},
		"extra":       true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeepMerge mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 4, base["indentation"].(map[string]any)["size"], "base must not be modified")
	got["indentation"].(map[string]any)["size"] = 8
	assert.Equal(t, 2, override["indentation"].(map[string]any)["size"], "result must not alias override")
}

func TestDeepMergeNilTarget(t *testing.T) {
	got := DeepMerge(nil, map[string]any{"a": 1})
	assert.Equal(t, map[string]any{"a": 1}, got)
}

func TestMergeRules(t *testing.T) {
	base := &RuleSet{
		Name:        "base",
		Description: "base rules",
		Type:        models.CategoryFormatter,
		Version:     "1.0.0",
		Content:     map[string]any{"indentation": map[string]any{"size": 4, "useSpaces": true}},
	}
	override := &RuleSet{
		Name:    "custom",
		Type:    models.CategoryLinter,
		Content: map[string]any{"indentation": map[string]any{"size": 2}},
	}

	got := MergeRules(base, override)
	assert.Equal(t, "custom", got.Name)
	assert.Equal(t, "base rules", got.Description)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, models.CategoryFormatter, got.Type, "category comes from base")
	assert.Equal(t, map[string]any{"indentation": map[string]any{"size": 2, "useSpaces": true}}, got.Content)
}

func TestMergeRulesMissingSide(t *testing.T) {
	only := &RuleSet{Name: "only"}
	assert.Equal(t, "only", MergeRules(only, nil).Name)
	assert.Equal(t, "only", MergeRules(nil, only).Name)
	assert.Equal(t, RuleSet{}, MergeRules(nil, nil))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want ValidationResult
	}{
		{
			name: "valid",
			doc:  map[string]any{"name": "r", "type": "cursor", "content": map[string]any{}},
			want: ValidationResult{Valid: true, Errors: []string{}},
		},
		{
			name: "empty",
			doc:  map[string]any{},
			want: ValidationResult{Errors: []string{
				"Rule set must have a name",
				"Rule set must have a type",
				"Rule set must have a content object",
			}},
		},
		{
			name: "bad type and scalar content",
			doc:  map[string]any{"name": "r", "type": "bogus", "content": "text"},
			want: ValidationResult{Errors: []string{
				"Rule type must be one of: cursor, analyzer, formatter, linter, other",
				"Rule set must have a content object",
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Validate(tt.doc)); diff != "" {
				t.Errorf("Validate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
