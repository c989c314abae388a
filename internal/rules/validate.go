package rules

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/vanachterjacob/BC-MCP/internal/models"
)

// ruleValidate is shared; validator caches struct metadata per instance.
var ruleValidate *validator.Validate

func init() {
	ruleValidate = validator.New()
	_ = ruleValidate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.Category(fl.Field().String()).Valid()
	})
}

// ValidationResult reports whether a rule set is acceptable and why not.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type candidate struct {
	Name    string         `validate:"required"`
	Type    string         `validate:"required,category"`
	Content map[string]any `validate:"required"`
}

var messages = map[string]string{
	"Name.required":    "Rule set must have a name",
	"Type.required":    "Rule set must have a type",
	"Type.category":    "Rule type must be one of: cursor, analyzer, formatter, linter, other",
	"Content.required": "Rule set must have a content object",
}

// Check validates the three fields every rule set needs.
func Check(name, typ string, content map[string]any) ValidationResult {
	res := ValidationResult{Valid: true, Errors: []string{}}

	err := ruleValidate.Struct(candidate{Name: name, Type: typ, Content: content})
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return res
	}
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		res.Errors = append(res.Errors, msg)
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// Validate checks an arbitrary decoded document. Fields of the wrong
// JSON type count as missing.
func Validate(doc map[string]any) ValidationResult {
	name, _ := doc["name"].(string)
	typ, _ := doc["type"].(string)
	content, _ := doc["content"].(map[string]any)
	return Check(name, typ, content)
}
