// =============================================================================
// BC3 Budget Converter - Rewrite Engine
// =============================================================================
//
// This module rewrites budget text before validation and output. Profiles
// configure a chain of actions per field; typical uses are trimming
// descriptions exported with padding, upper-casing units, or mapping legacy
// item codes to a new price base.
//
// FIELDS:
//   code, unit, description  apply to items
//   title                    applies to chapters
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var rewriteFields = []string{config.FieldCode, config.FieldUnit, config.FieldDescription, config.FieldTitle}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies rewrite rules to a budget tree.
type Transformer struct {
	rules   []config.RewriteRule
	regexes map[string]*regexp.Regexp
}

// NewTransformer checks and compiles the rules.
//
// RETURNS:
//   - An error naming the first rule with an unknown field, an unknown action
//     type or an invalid regular expression.
func NewTransformer(rules []config.RewriteRule) (*Transformer, error) {
	t := &Transformer{rules: rules, regexes: make(map[string]*regexp.Regexp)}

	for _, rule := range rules {
		if !slices.Contains(rewriteFields, rule.Field) {
			return nil, fmt.Errorf("unknown rewrite field %q", rule.Field)
		}
		for _, action := range rule.Actions {
			if !slices.Contains(actionTypes, action.Type) {
				return nil, fmt.Errorf("unknown rewrite action %q on field %q", action.Type, rule.Field)
			}
			if action.Type != "regex_replace" || action.Find == "" {
				continue
			}
			re, err := regexp.Compile(action.Find)
			if err != nil {
				return nil, fmt.Errorf("invalid regex pattern %q: %w", action.Find, err)
			}
			t.regexes[action.Find] = re
		}
	}
	return t, nil
}

// Apply rewrites every targeted field in place and returns the number of
// values that changed.
func (t *Transformer) Apply(b *budget.Budget) (int, error) {
	if len(t.rules) == 0 {
		return 0, nil
	}

	changed := 0
	rewrite := func(field string, value *string) error {
		out, err := t.Transform(field, *value)
		if err != nil {
			return err
		}
		if out != *value {
			*value = out
			changed++
		}
		return nil
	}

	err := budget.Walk(b, func(n budget.Node) error {
		if n.Kind == budget.KindChapter {
			return rewrite(config.FieldTitle, &n.Chapter.Title)
		}
		if err := rewrite(config.FieldCode, &n.Item.Code); err != nil {
			return err
		}
		if err := rewrite(config.FieldUnit, &n.Item.Unit); err != nil {
			return err
		}
		return rewrite(config.FieldDescription, &n.Item.Description)
	})
	return changed, err
}

// Transform runs every rule for field over value, in order.
func (t *Transformer) Transform(field, value string) (string, error) {
	result := value
	for _, rule := range t.rules {
		if rule.Field != field {
			continue
		}
		for _, action := range rule.Actions {
			var err error
			result, err = t.apply(result, action)
			if err != nil {
				return "", fmt.Errorf("rewrite '%s' on %s failed: %w", action.Type, field, err)
			}
		}
	}
	return result, nil
}

var actionTypes = []string{
	"trim", "trim_left", "trim_right",
	"uppercase", "lowercase", "title_case",
	"prepend_string", "append_string",
	"replace", "regex_replace",
	"lookup", "lookup_with_default",
	"pad_zeros_to_length", "truncate", "remove_leading_zeros",
}

var titleCaser = cases.Title(language.Spanish)

func (t *Transformer) apply(value string, action config.RewriteAction) (string, error) {
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "trim":
		return strings.TrimSpace(value), nil

	case "trim_left":
		if action.Value != "" {
			return strings.TrimLeft(value, action.Value), nil
		}
		return strings.TrimLeft(value, " \t\n\r"), nil

	case "trim_right":
		if action.Value != "" {
			return strings.TrimRight(value, action.Value), nil
		}
		return strings.TrimRight(value, " \t\n\r"), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "title_case":
		// "EXCAVACIÓN EN ZANJA" -> "Excavación En Zanja"
		return titleCaser.String(strings.ToLower(value)), nil

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		// Find "\s{2,}" with Value " " collapses runs of spaces.
		re, ok := t.regexes[action.Find]
		if !ok {
			return value, nil
		}
		return re.ReplaceAllString(value, action.Value), nil

	// =========================================================================
	// LOOKUP TABLE REPLACEMENTS
	// =========================================================================

	case "lookup":
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	case "lookup_with_default":
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return action.Value, nil

	// =========================================================================
	// LENGTH
	// =========================================================================

	case "pad_zeros_to_length":
		// "123" with value "6" -> "000123"
		n, err := strconv.Atoi(action.Value)
		if err != nil || n <= 0 {
			return "", fmt.Errorf("invalid length %q", action.Value)
		}
		return PadLeft(value, n, '0'), nil

	case "truncate":
		n, err := strconv.Atoi(action.Value)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid length %q", action.Value)
		}
		return Truncate(value, n), nil

	case "remove_leading_zeros":
		result := strings.TrimLeft(value, "0")
		if result == "" && value != "" {
			return "0", nil
		}
		return result, nil
	}

	return "", fmt.Errorf("unknown rewrite action %q", action.Type)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads s on the left with padChar up to length runes.
func PadLeft(s string, length int, padChar rune) string {
	n := utf8.RuneCountInString(s)
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}

// Truncate cuts s to at most length runes.
func Truncate(s string, length int) string {
	if utf8.RuneCountInString(s) <= length {
		return s
	}
	runes := []rune(s)
	return string(runes[:length])
}
