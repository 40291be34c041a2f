// =============================================================================
// BC3 Budget Converter - FIEBDC-3 Format Core
// =============================================================================
//
// Package bc3 converts between the FIEBDC-3 ("BC3") line-record text format
// and the budget tree in package budget.
//
// WIRE FORMAT:
//   ~  separates records
//   |  separates fields
//   \  separates subfields
//
//   V|FIEBDC-3/2004|                      version
//   K|1|Obra Test|                        metadata (1 title, 2 owner, 3 date, 4 currency)
//   C|code|unit|description|price||type|  concept (type 0 chapter, 1 item)
//   D|parent|code\qty\\\code\qty\\|       decomposition, four subfields per child
//
// PIPELINES:
//   parse:    bytes -> Decode -> Tokenize -> Store -> Build -> Budget
//   generate: Budget -> Generator -> Encode -> bytes
//
// =============================================================================

package bc3

import "errors"

// Separators shared by the parse and generate directions.
const (
	RecordSeparator   = "~"
	FieldSeparator    = "|"
	SubfieldSeparator = `\`
)

// Record type tags.
const (
	TagVersion       = 'V'
	TagMetadata      = 'K'
	TagConcept       = 'C'
	TagDecomposition = 'D'
)

// Metadata subtypes carried in the first field of a K record.
const (
	MetaTitle    = "1"
	MetaOwner    = "2"
	MetaDate     = "3"
	MetaCurrency = "4"
)

// Concept type tags.
const (
	TypeChapter = "0"
	TypeItem    = "1"
)

const (
	// RootCode is the privileged code whose children are the top-level
	// chapters.
	RootCode = "##"

	// FormatVersion is written in the V record.
	FormatVersion = "FIEBDC-3/2004"

	// DefaultChapterCode and DefaultChapterTitle name the chapter
	// synthesised for items that hang from no chapter.
	DefaultChapterCode  = "GENERAL"
	DefaultChapterTitle = "General"

	// DefaultMaxDepth bounds chapter nesting during a build.
	DefaultMaxDepth = 64

	// childGroupSize is the number of subfields describing one child in a
	// D record: code, quantity, factor, unused.
	childGroupSize = 4
)

var (
	// ErrUndecodable is returned when no configured encoding can decode the
	// input.
	ErrUndecodable = errors.New("bc3: input could not be decoded with any supported encoding")

	// ErrEmptyBudget is returned when the input has no root candidate and no
	// concept at all.
	ErrEmptyBudget = errors.New("bc3: input contains no concepts")
)
