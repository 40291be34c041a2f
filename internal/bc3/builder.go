package bc3

import (
	"strings"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// TREE BUILDER
// =============================================================================
//
// ROOT FINDING (first rule that applies wins):
//   1. The reserved code "##" owns children: they are the top-level chapters.
//   2. Some code owns children and is nobody's child: the first one found is
//      the root. If none of its children own children, the root itself is the
//      only top-level chapter.
//   3. Codes typed "0" that own children become top-level chapters.
//   4. Every concept without children and not typed "0" goes into a single
//      default chapter, in store order.
//
// CLASSIFICATION:
//   A child that owns children is a subchapter, anything else is an item whose
//   quantity comes from the parent's edge.
//
// MALFORMED INPUT:
//   - references to unknown codes are dropped
//   - a code already on the current descent path is a cycle and is dropped
//   - descent deeper than MaxDepth is truncated
//   - a code reached through several paths is built once per path
//
// =============================================================================

// BuildOptions tunes Build.
type BuildOptions struct {
	// MaxDepth bounds chapter nesting. Zero means DefaultMaxDepth.
	MaxDepth int

	// Logger receives one entry per diagnostic. Nil discards them.
	Logger *zap.Logger
}

// Build resolves a record store into a budget tree. Recoverable defects are
// returned as diagnostics; the only error is ErrEmptyBudget.
func Build(store *Store, meta budget.Metadata, opts BuildOptions) (*budget.Budget, []Diagnostic, error) {
	diags := newDiagnostics(opts.Logger)
	b, err := build(store, meta, opts.MaxDepth, diags)
	return b, diags.list, err
}

type builder struct {
	store    *Store
	diags    *diagnostics
	maxDepth int

	visited  map[string]bool
	reported map[string]bool
}

func build(store *Store, meta budget.Metadata, maxDepth int, diags *diagnostics) (*budget.Budget, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if store.Len() == 0 {
		return nil, ErrEmptyBudget
	}

	b := &builder{
		store:    store,
		diags:    diags,
		maxDepth: maxDepth,
		visited:  make(map[string]bool),
		reported: make(map[string]bool),
	}

	out := &budget.Budget{Metadata: meta, Chapters: []*budget.Chapter{}}

	// Rule 1: explicit root.
	if root, ok := store.Get(RootCode); ok && root.HasChildren() {
		out.Chapters = b.topLevel(root)
		return out, nil
	}

	// Rule 2: inferred root.
	if root := b.findRootCandidate(); root != nil {
		if b.hasSubchapters(root) {
			out.Chapters = b.topLevel(root)
		} else {
			b.diags.add(DiagRootInference, root.Code, 0, "root %q owns only items, using it as the single chapter", root.Code)
			out.Chapters = []*budget.Chapter{b.chapter(root, map[string]bool{}, 1)}
		}
		return out, nil
	}

	// Rule 3: chapters typed "0".
	for _, code := range store.Codes() {
		e, _ := store.Get(code)
		if e.Type == TypeChapter && e.HasChildren() {
			out.Chapters = append(out.Chapters, b.chapter(e, map[string]bool{}, 1))
		}
	}
	if len(out.Chapters) > 0 {
		b.diags.add(DiagRootInference, "", 0, "no root found, using %d chapter(s) typed %q", len(out.Chapters), TypeChapter)
		return out, nil
	}

	// Rule 4: default chapter.
	if store.ConceptCount() == 0 {
		return nil, ErrEmptyBudget
	}
	def := budget.NewChapter(DefaultChapterCode, DefaultChapterTitle)
	for _, code := range store.Codes() {
		e, _ := store.Get(code)
		if e.HasConcept && !e.HasChildren() && e.Type != TypeChapter {
			def.AddItem(b.item(e, decimal.NewFromInt(1)))
		}
	}
	if !def.IsEmpty() {
		b.diags.add(DiagRootInference, DefaultChapterCode, 0, "no hierarchy found, placing %d item(s) in a default chapter", len(def.Items))
		out.Chapters = append(out.Chapters, def)
	}
	return out, nil
}

// findRootCandidate returns the first code that owns children and is no one's
// child.
func (b *builder) findRootCandidate() *Entry {
	children := b.store.ChildCodes()

	var found *Entry
	var ignored []string
	for _, code := range b.store.Codes() {
		e, _ := b.store.Get(code)
		if !e.HasChildren() || children[code] {
			continue
		}
		if found == nil {
			found = e
			continue
		}
		ignored = append(ignored, code)
	}

	if found != nil && len(ignored) > 0 {
		b.diags.add(DiagRootInference, found.Code, 0, "several root candidates, using %q and ignoring %s", found.Code, strings.Join(ignored, ", "))
	}
	return found
}

// hasSubchapters reports whether any child of e owns children itself.
func (b *builder) hasSubchapters(e *Entry) bool {
	for _, edge := range e.Children {
		if child, ok := b.store.Get(edge.Code); ok && child.HasChildren() {
			return true
		}
	}
	return false
}

// topLevel turns the children of a root into top-level chapters. Children
// without a decomposition become empty chapters when typed "0"; other leaves
// are collected into a default chapter placed where the first one appeared.
func (b *builder) topLevel(root *Entry) []*budget.Chapter {
	path := map[string]bool{root.Code: true}
	chapters := []*budget.Chapter{}
	var def *budget.Chapter

	for _, edge := range root.Children {
		child, ok := b.resolve(root.Code, edge.Code, path)
		if !ok {
			continue
		}

		switch {
		case child.HasChildren():
			chapters = append(chapters, b.chapter(child, path, 1))
		case child.Type == TypeChapter:
			b.visit(child.Code)
			chapters = append(chapters, budget.NewChapter(child.Code, b.title(child)))
		default:
			if def == nil {
				def = budget.NewChapter(DefaultChapterCode, DefaultChapterTitle)
				chapters = append(chapters, def)
				b.diags.add(DiagRootInference, child.Code, 0, "item %q hangs directly from the root, moving it to chapter %q", child.Code, DefaultChapterCode)
			}
			def.AddItem(b.item(child, edge.Quantity))
		}
	}
	return chapters
}

// chapter builds the subtree rooted at e. path holds the codes on the current
// descent and is restored before returning.
func (b *builder) chapter(e *Entry, path map[string]bool, depth int) *budget.Chapter {
	b.visit(e.Code)
	ch := budget.NewChapter(e.Code, b.title(e))

	if depth > b.maxDepth {
		b.diags.add(DiagDepth, e.Code, 0, "nesting deeper than %d, contents of %q dropped", b.maxDepth, e.Code)
		return ch
	}

	path[e.Code] = true
	defer delete(path, e.Code)

	for _, edge := range e.Children {
		child, ok := b.resolve(e.Code, edge.Code, path)
		if !ok {
			continue
		}
		switch {
		case child.HasChildren():
			ch.AddSubchapter(b.chapter(child, path, depth+1))
		case child.Type == TypeChapter:
			// Empty subchapter, kept as a chapter rather than a zero item.
			b.visit(child.Code)
			ch.AddSubchapter(budget.NewChapter(child.Code, b.title(child)))
		default:
			ch.AddItem(b.item(child, edge.Quantity))
		}
	}
	return ch
}

// resolve looks up a child reference, reporting dangling references and
// cycles.
func (b *builder) resolve(parent, code string, path map[string]bool) (*Entry, bool) {
	if path[code] {
		b.diags.add(DiagCycle, code, 0, "%q is its own ancestor via %q, reference dropped", code, parent)
		return nil, false
	}
	child, ok := b.store.Get(code)
	if !ok || (!child.HasConcept && !child.HasChildren()) {
		b.diags.add(DiagDanglingRef, code, 0, "%q references undefined concept %q, reference dropped", parent, code)
		return nil, false
	}
	return child, true
}

func (b *builder) item(e *Entry, quantity decimal.Decimal) *budget.Item {
	b.visit(e.Code)
	it := budget.NewItem(e.Code, e.Description, e.Price)
	if e.Unit != "" {
		it.Unit = e.Unit
	}
	it.Quantity = quantity
	return it
}

func (b *builder) title(e *Entry) string {
	if !e.HasConcept {
		b.diags.add(DiagMissingConcept, e.Code, 0, "chapter %q has no concept record, using its code as title", e.Code)
	}
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

func (b *builder) visit(code string) {
	if b.visited[code] && !b.reported[code] {
		b.reported[code] = true
		b.diags.add(DiagSharedRef, code, 0, "%q is referenced more than once, building one copy per reference", code)
	}
	b.visited[code] = true
}
