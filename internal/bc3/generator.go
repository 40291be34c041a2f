package bc3

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"go.uber.org/zap"
)

// =============================================================================
// GENERATOR
// =============================================================================
//
// OUTPUT ORDER:
//   V record, K records for populated metadata, D record of "##" listing the
//   top-level chapters, then one block per chapter in depth-first order:
//     C of the chapter (type 0, price = chapter total)
//     D of the chapter (items with their quantity, subchapters with 1)
//     C of each item not emitted yet (type 1)
//     blocks of the subchapters
//
// CODES:
//   Codes are settled before anything is written. An empty code gets a
//   positional one (C01, C01.02, C01.02.003). A code seen again with an
//   identical definition is only referenced; with a different definition, or
//   when it collides with "##", it is renamed to code_N.
//
// =============================================================================

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// Encoding is the output charset.
	// Default: DefaultOutputEncoding
	Encoding string

	// Logger receives one entry per diagnostic.
	// Default: a no-op logger
	Logger *zap.Logger
}

// DefaultGeneratorOptions returns the default generator options.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Encoding: DefaultOutputEncoding,
		Logger:   zap.NewNop(),
	}
}

// Generator serialises budget trees to BC3. It holds no per-call state.
type Generator struct {
	options GeneratorOptions
}

// NewGenerator creates a Generator. Zero-valued options take their defaults.
func NewGenerator(options GeneratorOptions) *Generator {
	if options.Encoding == "" {
		options.Encoding = DefaultOutputEncoding
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	return &Generator{options: options}
}

// Generate renders b as BC3 bytes in the configured charset. Assigned and
// renamed codes are reported to the options Logger only; callers that need
// them as values use GenerateText followed by Encode.
func (g *Generator) Generate(b *budget.Budget) ([]byte, error) {
	text, _ := g.GenerateText(b)
	out, err := Encode(text, g.options.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to generate BC3: %w", err)
	}
	return out, nil
}

// GenerateText renders b as BC3 text before charset encoding, together with
// the codes that had to be assigned or renamed.
func (g *Generator) GenerateText(b *budget.Budget) (string, []Diagnostic) {
	em := newEmission(newDiagnostics(g.options.Logger))

	for i, c := range b.Chapters {
		em.assignChapter(c, fmt.Sprintf("C%02d", i+1))
	}

	em.header(b.Metadata)

	var top []string
	for _, c := range b.Chapters {
		top = append(top, childRef(em.chapterCodes[c], "1"))
	}
	em.write(TagDecomposition, RootCode, strings.Join(top, SubfieldSeparator))

	for _, c := range b.Chapters {
		em.chapter(c)
	}

	return strings.Join(em.records, RecordSeparator) + RecordSeparator, em.diags.list
}

// Generate renders b with the default options. The default logger is a no-op,
// so code assignment diagnostics are not visible here.
func Generate(b *budget.Budget) ([]byte, error) {
	return NewGenerator(DefaultGeneratorOptions()).Generate(b)
}

// =============================================================================
// EMISSION STATE
// =============================================================================

type conceptKind int

const (
	conceptChapter conceptKind = iota
	conceptItem
)

// definition is what a code has been bound to during assignment.
type definition struct {
	kind      conceptKind
	signature string
}

type emission struct {
	diags   *diagnostics
	records []string

	defined      map[string]definition
	chapterCodes map[*budget.Chapter]string
	itemCodes    map[*budget.Item]string
	emitted      map[string]bool
}

func newEmission(diags *diagnostics) *emission {
	return &emission{
		diags:        diags,
		defined:      make(map[string]definition),
		chapterCodes: make(map[*budget.Chapter]string),
		itemCodes:    make(map[*budget.Item]string),
		emitted:      make(map[string]bool),
	}
}

// bind settles the output code for a node. It reports whether the code was
// already defined identically, in which case the node is only referenced.
func (em *emission) bind(code, fallback string, def definition) (string, bool) {
	code = sanitize(code)
	if code == "" {
		code = fallback
	}

	if code == RootCode {
		renamed := em.unique(code)
		em.diags.add(DiagCodeRenamed, code, 0, "code %q is reserved, renamed to %q", code, renamed)
		code = renamed
	} else if prev, ok := em.defined[code]; ok {
		if prev == def {
			return code, true
		}
		renamed := em.unique(code)
		em.diags.add(DiagCodeRenamed, code, 0, "code %q already defined differently, renamed to %q", code, renamed)
		code = renamed
	}

	em.defined[code] = def
	return code, false
}

func (em *emission) unique(code string) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d", code, n)
		if _, taken := em.defined[candidate]; !taken {
			return candidate
		}
	}
}

// assignChapter walks the subtree in emission order so that the first
// occurrence of a code is also the one that gets written.
func (em *emission) assignChapter(c *budget.Chapter, fallback string) {
	code, referenced := em.bind(c.Code, fallback, definition{kind: conceptChapter, signature: chapterSignature(c)})
	em.chapterCodes[c] = code
	if referenced {
		return
	}

	for i, it := range c.Items {
		itemCode, _ := em.bind(it.Code, fmt.Sprintf("%s.%03d", code, i+1), definition{kind: conceptItem, signature: itemSignature(it)})
		em.itemCodes[it] = itemCode
	}
	for i, sub := range c.Subchapters {
		em.assignChapter(sub, fmt.Sprintf("%s.%02d", code, i+1))
	}
}

// =============================================================================
// RECORDS
// =============================================================================

func (em *emission) write(tag byte, fields ...string) {
	var sb strings.Builder
	sb.WriteByte(tag)
	sb.WriteString(FieldSeparator)
	for _, f := range fields {
		sb.WriteString(f)
		sb.WriteString(FieldSeparator)
	}
	em.records = append(em.records, sb.String())
}

func (em *emission) header(meta budget.Metadata) {
	em.write(TagVersion, FormatVersion)

	if meta.Title != "" {
		em.write(TagMetadata, MetaTitle, sanitize(meta.Title))
	}
	if meta.Owner != "" {
		em.write(TagMetadata, MetaOwner, sanitize(meta.Owner))
	}
	if !meta.Date.IsZero() {
		em.write(TagMetadata, MetaDate, FormatDate(meta.Date))
	}
	if meta.Currency != "" {
		em.write(TagMetadata, MetaCurrency, sanitize(meta.Currency))
	}
}

func (em *emission) chapter(c *budget.Chapter) {
	code := em.chapterCodes[c]
	if em.emitted[code] {
		return
	}
	em.emitted[code] = true

	em.write(TagConcept, code, "", sanitize(c.Title), FormatPrice(c.Total()), "", TypeChapter)

	var children []string
	for _, it := range c.Items {
		children = append(children, childRef(em.itemCodes[it], FormatQuantity(it.Quantity)))
	}
	for _, sub := range c.Subchapters {
		children = append(children, childRef(em.chapterCodes[sub], "1"))
	}
	if len(children) > 0 {
		em.write(TagDecomposition, code, strings.Join(children, SubfieldSeparator))
	}

	for _, it := range c.Items {
		itemCode := em.itemCodes[it]
		if em.emitted[itemCode] {
			continue
		}
		em.emitted[itemCode] = true
		em.write(TagConcept, itemCode, sanitize(it.Unit), sanitize(it.Description), FormatPrice(it.Price), "", TypeItem)
	}

	for _, sub := range c.Subchapters {
		em.chapter(sub)
	}
}

// childRef renders one child group: code, quantity, factor, unused.
func childRef(code, quantity string) string {
	return code + SubfieldSeparator + quantity + SubfieldSeparator + SubfieldSeparator
}

var separatorReplacer = strings.NewReplacer(
	RecordSeparator, " ",
	FieldSeparator, " ",
	SubfieldSeparator, " ",
	"\r", " ",
	"\n", " ",
)

// sanitize removes characters that would break record framing.
func sanitize(s string) string {
	return strings.TrimSpace(separatorReplacer.Replace(s))
}

func itemSignature(it *budget.Item) string {
	return strings.Join([]string{
		it.Code,
		it.Unit,
		it.Description,
		it.Price.String(),
	}, "\x00")
}

// chapterSignature identifies a chapter by its title and full contents, so
// two chapters sharing a code are merged only when they would serialise the
// same.
func chapterSignature(c *budget.Chapter) string {
	var sb strings.Builder
	sb.WriteString(c.Code)
	sb.WriteByte(0)
	sb.WriteString(c.Title)
	for _, it := range c.Items {
		sb.WriteString("\x00i:")
		sb.WriteString(itemSignature(it))
		sb.WriteByte(0)
		sb.WriteString(it.Quantity.String())
	}
	for _, sub := range c.Subchapters {
		sb.WriteString("\x00c:[")
		sb.WriteString(chapterSignature(sub))
		sb.WriteString("]")
	}
	return sb.String()
}
