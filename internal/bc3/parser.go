package bc3

import (
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"go.uber.org/zap"
)

// =============================================================================
// PARSER
// =============================================================================

// ParserOptions configures a Parser.
type ParserOptions struct {
	// Encodings are tried in order to decode the input.
	// Default: DefaultInputEncodings
	Encodings []string

	// MaxDepth bounds chapter nesting.
	// Default: DefaultMaxDepth
	MaxDepth int

	// Logger receives one entry per diagnostic.
	// Default: a no-op logger
	Logger *zap.Logger

	// Now supplies the ingestion time used as the default budget date.
	// Default: time.Now
	Now func() time.Time
}

// DefaultParserOptions returns the default parser options.
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		Encodings: DefaultInputEncodings,
		MaxDepth:  DefaultMaxDepth,
		Logger:    zap.NewNop(),
		Now:       time.Now,
	}
}

// Parser turns BC3 bytes into a budget tree. A Parser only holds immutable
// options; every call to Parse uses its own record store, so one Parser can
// serve concurrent callers.
type Parser struct {
	options ParserOptions
}

// NewParser creates a Parser. Zero-valued options take their defaults.
func NewParser(options ParserOptions) *Parser {
	defaults := DefaultParserOptions()
	if len(options.Encodings) == 0 {
		options.Encodings = defaults.Encodings
	}
	if options.MaxDepth <= 0 {
		options.MaxDepth = defaults.MaxDepth
	}
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}
	if options.Now == nil {
		options.Now = defaults.Now
	}
	return &Parser{options: options}
}

// Result is the outcome of a successful parse.
type Result struct {
	Budget *budget.Budget

	// Version is the free text of the V record, if any.
	Version string

	// Encoding is the charset the input was decoded with.
	Encoding string

	// Diagnostics lists every defect that was recovered from.
	Diagnostics []Diagnostic
}

// Parse decodes, tokenizes and builds the budget in one pass.
//
// RETURNS:
//   - ErrUndecodable when no configured encoding fits the input.
//   - ErrEmptyBudget when the input holds no concept at all.
//
// Every other defect is recovered from and listed in Result.Diagnostics.
func (p *Parser) Parse(data []byte) (*Result, error) {
	text, enc, err := Decode(data, p.options.Encodings)
	if err != nil {
		return nil, err
	}

	logger := p.options.Logger.With(zap.String("encoding", enc))
	diags := newDiagnostics(logger)

	records := tokenize(text, diags)

	store := NewStore()
	meta := budget.NewMetadata(p.options.Now())
	version := ""

	for _, rec := range records {
		switch rec.Tag {
		case TagVersion:
			version = rec.Field(0)
		case TagMetadata:
			applyMetadata(&meta, rec, diags)
		case TagConcept:
			recordConcept(store, rec, diags)
		case TagDecomposition:
			recordDecomposition(store, rec, diags)
		}
	}

	b, err := build(store, meta, p.options.MaxDepth, diags)
	if err != nil {
		return nil, err
	}

	logger.Debug("parsed budget",
		zap.Int("records", len(records)),
		zap.Int("concepts", store.ConceptCount()),
		zap.Int("chapters", b.TotalChapters()),
		zap.Int("items", b.TotalItems()),
		zap.Int("diagnostics", len(diags.list)),
	)

	return &Result{
		Budget:      b,
		Version:     version,
		Encoding:    enc,
		Diagnostics: diags.list,
	}, nil
}

// Parse parses BC3 bytes with the default options.
func Parse(data []byte) (*budget.Budget, error) {
	res, err := NewParser(DefaultParserOptions()).Parse(data)
	if err != nil {
		return nil, err
	}
	return res.Budget, nil
}

func applyMetadata(meta *budget.Metadata, rec Record, diags *diagnostics) {
	value := rec.Field(1)

	switch rec.Field(0) {
	case MetaTitle:
		if value != "" {
			meta.Title = value
		}
	case MetaOwner:
		meta.Owner = value
	case MetaDate:
		date, err := ParseDate(value)
		if err != nil {
			diags.add(DiagDate, "", rec.Index, "keeping default date: %v", err)
			return
		}
		meta.Date = date
	case MetaCurrency:
		if value != "" {
			meta.Currency = value
		}
	default:
		diags.add(DiagUnknownRecord, "", rec.Index, "ignoring metadata subtype %q", rec.Field(0))
	}
}

// C fields: code, unit, description, price, unused, type.
func recordConcept(store *Store, rec Record, diags *diagnostics) {
	code := rec.Field(0)

	price := rec.Field(3)
	value, err := ParseDecimal(price)
	if err != nil && price != "" {
		diags.add(DiagNumeric, code, rec.Index, "price %q replaced by zero: %v", price, err)
	}

	if store.RecordConcept(code, rec.Field(1), rec.Field(2), value, rec.Field(5)) {
		diags.add(DiagCodeCollision, code, rec.Index, "concept %q defined again, later definition wins", code)
	}
}

// D fields: parent, children.
func recordDecomposition(store *Store, rec Record, diags *diagnostics) {
	parent := rec.Field(0)

	edges, rejected := DecodeChildren(rec.Field(1))
	for _, code := range rejected {
		diags.add(DiagNumeric, code, rec.Index, "quantity of %q under %q replaced by zero", code, parent)
	}

	store.RecordDecomposition(parent, edges)
}
