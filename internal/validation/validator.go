// =============================================================================
// BC3 Budget Converter - Validation Engine
// =============================================================================
//
// This module checks a budget tree before it is written out. Parsing is
// tolerant and never rejects a file, so validation is where a converted
// budget is judged fit for delivery.
//
// CHECKS:
//   errors:   empty code, negative price, negative quantity, reserved root
//             code used as a node, same code bound to different definitions
//   warnings: empty description, zero quantity, description over the length
//             limit, separator characters in text, code with several parents
//
// ERROR HANDLING:
//   - Problems are collected, never returned as Go errors
//   - Each problem carries the code and the path of the node it was found on
//   - Warnings can be promoted to errors with TreatWarningsAsErrors
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleEmptyCode         = "empty_code"
	RuleEmptyDescription  = "empty_description"
	RuleNegativePrice     = "negative_price"
	RuleQuantity          = "quantity"
	RuleConflictingCode   = "conflicting_code"
	RuleSharedCode        = "shared_code"
	RuleDescriptionLength = "description_length"
	RuleReservedCode      = "reserved_code"
	RuleSeparator         = "separator_in_text"
)

// reservedCode is the BC3 root code, which cannot name a real node.
const reservedCode = "##"

const separators = `~|\`

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError is a single problem found in the budget.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Rule is the check that failed.
	Rule string

	// Code is the code of the offending node.
	Code string

	// Path lists the chapter codes from the top down to the node.
	Path []string

	// Field is the offending field name.
	Field string

	// Value is the offending value.
	Value string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	location := strings.Join(e.Path, " > ")
	if location == "" {
		location = "(root)"
	}
	return fmt.Sprintf("[%s] %s, code '%s', field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		location,
		e.Code,
		e.Field,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains every problem, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// NodesValidated counts chapters and items visited.
	NodesValidated int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// ValidationOptions contains options for validation.
type ValidationOptions struct {
	// MaxDescriptionLength flags longer descriptions and titles, in runes.
	// Zero disables the check.
	// Default: 500
	MaxDescriptionLength int

	// TreatWarningsAsErrors promotes every warning to an error.
	// Default: false
	TreatWarningsAsErrors bool
}

// DefaultValidationOptions returns the default validation options.
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxDescriptionLength:  500,
		TreatWarningsAsErrors: false,
	}
}

// Validator checks budget trees.
type Validator struct {
	options ValidationOptions
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{options: DefaultValidationOptions()}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options ValidationOptions) *Validator {
	return &Validator{options: options}
}

// Validate checks a budget with the default options.
func Validate(b *budget.Budget) *ValidationResult {
	return NewValidator().Validate(b)
}

// run holds the state of one Validate call.
type run struct {
	options ValidationOptions
	result  *ValidationResult

	// definitions remembers the first definition seen for every code.
	definitions map[string]string
	parents     map[string]map[string]bool
	reported    map[string]bool
}

// Validate checks every node of b.
func (v *Validator) Validate(b *budget.Budget) *ValidationResult {
	r := &run{
		options:     v.options,
		result:      &ValidationResult{IsValid: true, Errors: []*ValidationError{}},
		definitions: make(map[string]string),
		parents:     make(map[string]map[string]bool),
		reported:    make(map[string]bool),
	}

	r.checkText(nil, "", "title", b.Metadata.Title)

	var path []string
	_ = budget.Walk(b, func(n budget.Node) error {
		r.result.NodesValidated++

		// Walk is depth-first, so the path is cut back to the node's depth.
		if len(path) >= n.Depth {
			path = path[:n.Depth-1]
		}

		parent := reservedCode
		if n.Parent != nil {
			parent = n.Parent.Code
		}

		if n.Kind == budget.KindChapter {
			r.validateChapter(path, parent, n.Chapter)
			path = append(path, n.Chapter.Code)
			return nil
		}
		r.validateItem(path, parent, n.Item)
		return nil
	})

	for _, e := range r.result.Errors {
		if e.Severity == SeverityError {
			r.result.ErrorCount++
		} else {
			r.result.WarningCount++
		}
	}
	r.result.IsValid = r.result.ErrorCount == 0
	return r.result
}

// =============================================================================
// NODE CHECKS
// =============================================================================

func (r *run) validateChapter(path []string, parent string, c *budget.Chapter) {
	r.checkCode(path, c.Code)
	r.checkDefinition(path, c.Code, "chapter\x00"+c.Title)
	r.checkParent(path, parent, c.Code)
	r.checkText(path, c.Code, "title", c.Title)
}

func (r *run) validateItem(path []string, parent string, it *budget.Item) {
	r.checkCode(path, it.Code)
	r.checkDefinition(path, it.Code, strings.Join([]string{"item", it.Unit, it.Description, it.Price.String()}, "\x00"))
	r.checkParent(path, parent, it.Code)

	if strings.TrimSpace(it.Description) == "" {
		r.add(path, SeverityWarning, RuleEmptyDescription, it.Code, "description", "", "item has no description")
	}
	r.checkText(path, it.Code, "description", it.Description)
	r.checkText(path, it.Code, "unit", it.Unit)

	if it.Price.IsNegative() {
		r.add(path, SeverityError, RuleNegativePrice, it.Code, "price", it.Price.String(), "price must not be negative")
	}
	switch {
	case it.Quantity.IsNegative():
		r.add(path, SeverityError, RuleQuantity, it.Code, "quantity", it.Quantity.String(), "quantity must not be negative")
	case it.Quantity.IsZero():
		r.add(path, SeverityWarning, RuleQuantity, it.Code, "quantity", "0", "quantity is zero, item contributes nothing")
	}
}

func (r *run) checkCode(path []string, code string) {
	switch strings.TrimSpace(code) {
	case "":
		r.add(path, SeverityError, RuleEmptyCode, code, "code", code, "node has no code")
	case reservedCode:
		r.add(path, SeverityError, RuleReservedCode, code, "code", code, "code is reserved for the budget root")
	}
}

// checkDefinition flags a code that names two different things. Shared codes
// with identical definitions are fine.
func (r *run) checkDefinition(path []string, code, definition string) {
	if code == "" {
		return
	}
	prev, seen := r.definitions[code]
	if !seen {
		r.definitions[code] = definition
		return
	}
	if prev != definition && !r.reported["def:"+code] {
		r.reported["def:"+code] = true
		r.add(path, SeverityError, RuleConflictingCode, code, "code", code, "code is used for different concepts")
	}
}

func (r *run) checkParent(path []string, parent, code string) {
	if code == "" {
		return
	}
	set, ok := r.parents[code]
	if !ok {
		set = make(map[string]bool)
		r.parents[code] = set
	}
	set[parent] = true
	if len(set) > 1 && !r.reported["parent:"+code] {
		r.reported["parent:"+code] = true
		r.add(path, SeverityWarning, RuleSharedCode, code, "code", code, "code appears under several parents")
	}
}

func (r *run) checkText(path []string, code, field, value string) {
	if strings.ContainsAny(value, separators) {
		r.add(path, SeverityWarning, RuleSeparator, code, field, value, "text contains BC3 separator characters, they will be replaced by spaces")
	}
	if limit := r.options.MaxDescriptionLength; limit > 0 && utf8.RuneCountInString(value) > limit {
		r.add(path, SeverityWarning, RuleDescriptionLength, code, field, Truncated(value, 40),
			fmt.Sprintf("text is %d characters long, limit is %d", utf8.RuneCountInString(value), limit))
	}
}

func (r *run) add(path []string, severity, rule, code, field, value, message string) {
	if severity == SeverityWarning && r.options.TreatWarningsAsErrors {
		severity = SeverityError
	}
	r.result.Errors = append(r.result.Errors, &ValidationError{
		Severity: severity,
		Rule:     rule,
		Code:     code,
		Path:     append([]string(nil), path...),
		Field:    field,
		Value:    value,
		Message:  message,
	})
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors renders the problems for a log file or terminal, errors
// first.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors found."
	}

	var sb strings.Builder
	var errorCount, warningCount int
	for _, e := range errors {
		if e.Severity == SeverityError {
			errorCount++
		} else {
			warningCount++
		}
	}
	sb.WriteString(fmt.Sprintf("Validation found %d error(s) and %d warning(s):\n\n", errorCount, warningCount))

	for _, severity := range []string{SeverityError, SeverityWarning} {
		for _, e := range errors {
			if e.Severity == severity {
				sb.WriteString("  ")
				sb.WriteString(e.Error())
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// Truncated shortens s to n runes, marking the cut with "...".
func Truncated(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
