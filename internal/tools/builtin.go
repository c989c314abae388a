package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/rules"
)

// --- Input types ---

type HelpInput struct {
	Topic string `json:"topic" jsonschema:"Topic to get help with, for example tables, pages or events"`
}

type RulesByTypeInput struct {
	Type string `json:"type" jsonschema:"Rule category"`
}

type ValidateInput struct {
	Rule map[string]any `json:"rule" jsonschema:"Rule set to validate"`
}

type MergeInput struct {
	Base     map[string]any `json:"base" jsonschema:"Base rule set"`
	Override map[string]any `json:"override" jsonschema:"Rule set whose values win"`
}

// --- Results ---

// HelpResult answers a bc_help call.
type HelpResult struct {
	Topic  string   `json:"topic"`
	Help   string   `json:"help"`
	Topics []string `json:"topics"`
}

// RulesByTypeResult answers a get_rules_by_type call.
type RulesByTypeResult struct {
	Type        models.Category   `json:"type"`
	RuleSet     rules.RuleSet     `json:"ruleSet"`
	CursorRules rules.CursorRules `json:"cursorRules"`
}

var helpTopics = map[string]string{
	"tables": "Tables hold the data model. Prefix custom objects with your affix, give every table a " +
		"primary key, and use FlowFields for derived values instead of storing them.",
	"pages": "Pages present table data. Set SourceTable, pick the PageType that matches the task " +
		"(Card, List, Document, API) and keep business logic out of page triggers.",
	"codeunits": "Codeunits hold business logic. Keep procedures small, mark helpers local, and use " +
		"TryFunction or Error handling for operations that can fail.",
	"events": "Extend base behavior through event subscribers instead of modifying base objects. " +
		"Publish integration events from your own code so others can extend it.",
	"reports": "Reports combine a dataset with layouts. Filter data items early and prefer Word or " +
		"Excel layouts for end-user editable output.",
	"extensions": "Ship changes as AppSource or per-tenant extensions. Use tableextension and " +
		"pageextension objects and never change objects you do not own.",
	"performance": "Call SetLoadFields before reading records, use FindSet for loops, filter with " +
		"SetRange or SetFilter before Find, and avoid repeated database calls in loops.",
	"naming": "Use PascalCase for object and procedure names, descriptive variable names, and the " +
		"configured affix on every custom object.",
	"rules": "Editor rules are delivered on connect. Use get_rules_by_type to read the built-in " +
		"cursor, analyzer and formatter sets, validate_rule to check a rule set and merge_rules to combine two.",
}

// HelpTopics lists every topic bc_help has specific guidance for.
func HelpTopics() []string {
	topics := make([]string, 0, len(helpTopics))
	for t := range helpTopics {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Help returns guidance for a Business Central development topic.
// Unknown topics get a pointer to the topics that exist.
func Help(in HelpInput) (HelpResult, error) {
	topic := strings.ToLower(strings.TrimSpace(in.Topic))
	if topic == "" {
		return HelpResult{}, fmt.Errorf("%w: topic is required", ErrInvalidParams)
	}
	text, ok := helpTopics[topic]
	if !ok {
		text = fmt.Sprintf("No specific guidance for %q. Try one of: %s.", in.Topic, strings.Join(HelpTopics(), ", "))
	}
	return HelpResult{Topic: topic, Help: text, Topics: HelpTopics()}, nil
}

// RulesByType returns the built-in rule set for a category and its
// .cursorrules conversion.
func RulesByType(in RulesByTypeInput) (RulesByTypeResult, error) {
	cat := models.Category(strings.TrimSpace(in.Type))
	if cat == "" {
		return RulesByTypeResult{}, fmt.Errorf("%w: type is required", ErrInvalidParams)
	}
	rs, ok := rules.ByType(cat)
	if !ok {
		return RulesByTypeResult{}, fmt.Errorf("no built-in rule set for type %q", in.Type)
	}
	cr, err := rules.ToCursorFormat(rs)
	if err != nil {
		return RulesByTypeResult{}, err
	}
	return RulesByTypeResult{Type: cat, RuleSet: rs, CursorRules: cr}, nil
}

// ValidateRule checks a rule set document.
func ValidateRule(in ValidateInput) (rules.ValidationResult, error) {
	if in.Rule == nil {
		return rules.ValidationResult{}, fmt.Errorf("%w: rule is required", ErrInvalidParams)
	}
	return rules.Validate(in.Rule), nil
}

// Merge deep merges override into base.
func Merge(in MergeInput) (rules.RuleSet, error) {
	base, err := decodeRuleSet(in.Base)
	if err != nil {
		return rules.RuleSet{}, fmt.Errorf("%w: base: %v", ErrInvalidParams, err)
	}
	override, err := decodeRuleSet(in.Override)
	if err != nil {
		return rules.RuleSet{}, fmt.Errorf("%w: override: %v", ErrInvalidParams, err)
	}
	return rules.MergeRules(base, override), nil
}

func decodeRuleSet(doc map[string]any) (*rules.RuleSet, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var rs rules.RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}
