package bc3

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Edge is one child reference of a decomposition. Quantity belongs to the
// edge, not to the child concept.
type Edge struct {
	Code     string
	Quantity decimal.Decimal
}

// Entry is everything seen so far for one concept code.
type Entry struct {
	Code        string
	Unit        string
	Description string
	Price       decimal.Decimal
	Type        string
	Children    []Edge

	// HasConcept is false for placeholders created by a decomposition that
	// arrived before the concept record.
	HasConcept bool
}

// HasChildren reports whether the entry owns a non-empty decomposition.
func (e *Entry) HasChildren() bool {
	return len(e.Children) > 0
}

// Store accumulates concept and decomposition records keyed by code,
// remembering first-seen order. A Store belongs to a single parse.
type Store struct {
	entries map[string]*Entry
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Get returns the entry for code.
func (s *Store) Get(code string) (*Entry, bool) {
	e, ok := s.entries[code]
	return e, ok
}

// Codes returns every known code in first-seen order.
func (s *Store) Codes() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len is the number of known codes, placeholders included.
func (s *Store) Len() int {
	return len(s.order)
}

func (s *Store) entry(code string) *Entry {
	if e, ok := s.entries[code]; ok {
		return e
	}
	e := &Entry{Code: code}
	s.entries[code] = e
	s.order = append(s.order, code)
	return e
}

// RecordConcept creates or overwrites the scalar fields of code. It reports
// whether a concept record for the code had already been seen.
func (s *Store) RecordConcept(code, unit, description string, price decimal.Decimal, typeTag string) bool {
	e := s.entry(code)
	existed := e.HasConcept

	e.Unit = unit
	e.Description = description
	e.Price = price
	e.Type = typeTag
	e.HasConcept = true

	return existed
}

// RecordDecomposition appends children to parent, creating a placeholder when
// the parent's concept has not been seen yet.
func (s *Store) RecordDecomposition(parent string, children []Edge) {
	e := s.entry(parent)
	e.Children = append(e.Children, children...)
}

// ChildCodes returns the set of codes that appear as someone's child.
func (s *Store) ChildCodes() map[string]bool {
	set := make(map[string]bool)
	for _, code := range s.order {
		for _, child := range s.entries[code].Children {
			set[child.Code] = true
		}
	}
	return set
}

// ConceptCount is the number of codes with an actual concept record.
func (s *Store) ConceptCount() int {
	n := 0
	for _, code := range s.order {
		if s.entries[code].HasConcept {
			n++
		}
	}
	return n
}

// DecodeChildren reads a flat subfield list in groups of four
// (code, quantity, factor, unused). Only code and quantity are kept. A
// missing quantity means one; groups with an empty code are skipped.
// Quantities that fail to parse become zero and are returned as rejections.
func DecodeChildren(subfields string) ([]Edge, []string) {
	parts := strings.Split(subfields, SubfieldSeparator)

	var edges []Edge
	var rejected []string
	for i := 0; i < len(parts); i += childGroupSize {
		code := strings.TrimSpace(parts[i])
		if code == "" {
			continue
		}

		quantity := decimal.NewFromInt(1)
		if i+1 < len(parts) && strings.TrimSpace(parts[i+1]) != "" {
			q, err := ParseDecimal(parts[i+1])
			if err != nil {
				rejected = append(rejected, code)
			}
			quantity = q
		}

		edges = append(edges, Edge{Code: code, Quantity: quantity})
	}
	return edges, rejected
}
