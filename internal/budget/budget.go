// =============================================================================
// BC3 Budget Converter - Budget Tree Model
// =============================================================================
//
// This package holds the in-memory budget tree that every reader produces and
// every writer consumes:
//
//   Budget
//   ├── Metadata
//   └── Chapter (top level)
//       ├── Item ...
//       └── Chapter (subchapter)
//           └── Item ...
//
// Totals are always computed from the tree, never stored.
//
// =============================================================================

package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultUnit is the unit token meaning "each".
	DefaultUnit = "ud"

	// DefaultTitle is the budget title used when the source carries none.
	DefaultTitle = "Presupuesto"

	// DefaultCurrency is the ISO code used when the source carries none.
	DefaultCurrency = "EUR"

	// DefaultVersion is the budget revision label.
	DefaultVersion = "1.0"
)

// =============================================================================
// ITEM
// =============================================================================

// Item is a priced line concept.
type Item struct {
	// Code is the concept code. Unique within a budget.
	Code string `json:"code"`

	// Unit is the measurement unit (m2, kg, ud, ...).
	Unit string `json:"unit"`

	// Description is free text. It is the only field rewritten after
	// construction.
	Description string `json:"description"`

	// Price is the unit price.
	Price decimal.Decimal `json:"price"`

	// Quantity is the measured amount. It lives on the parent edge in BC3.
	Quantity decimal.Decimal `json:"quantity"`
}

// NewItem returns an item with the default unit and a quantity of one.
func NewItem(code, description string, price decimal.Decimal) *Item {
	return &Item{
		Code:        code,
		Unit:        DefaultUnit,
		Description: description,
		Price:       price,
		Quantity:    decimal.NewFromInt(1),
	}
}

// Total returns Price * Quantity.
func (i *Item) Total() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

// =============================================================================
// CHAPTER
// =============================================================================

// Chapter is a named grouping node.
type Chapter struct {
	Code        string     `json:"code"`
	Title       string     `json:"title"`
	Items       []*Item    `json:"items"`
	Subchapters []*Chapter `json:"subchapters"`
}

// NewChapter returns an empty chapter.
func NewChapter(code, title string) *Chapter {
	return &Chapter{
		Code:        code,
		Title:       title,
		Items:       []*Item{},
		Subchapters: []*Chapter{},
	}
}

// AddItem appends an item and returns the chapter for chaining.
func (c *Chapter) AddItem(item *Item) *Chapter {
	c.Items = append(c.Items, item)
	return c
}

// AddSubchapter appends a subchapter and returns the chapter for chaining.
func (c *Chapter) AddSubchapter(sub *Chapter) *Chapter {
	c.Subchapters = append(c.Subchapters, sub)
	return c
}

// Total is the sum of item totals plus the sum of subchapter totals.
// An empty chapter totals zero.
func (c *Chapter) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Total())
	}
	for _, sub := range c.Subchapters {
		total = total.Add(sub.Total())
	}
	return total
}

// IsEmpty reports whether the chapter has neither items nor subchapters.
func (c *Chapter) IsEmpty() bool {
	return len(c.Items) == 0 && len(c.Subchapters) == 0
}

// CountItems counts leaf items at every depth below the chapter.
func (c *Chapter) CountItems() int {
	count := len(c.Items)
	for _, sub := range c.Subchapters {
		count += sub.CountItems()
	}
	return count
}

// =============================================================================
// METADATA
// =============================================================================

// Metadata holds document-level descriptors.
type Metadata struct {
	Title    string    `json:"title"`
	Owner    string    `json:"owner,omitempty"`
	Date     time.Time `json:"date"`
	Version  string    `json:"version"`
	Currency string    `json:"currency"`
	Comments string    `json:"comments,omitempty"`
}

// NewMetadata returns metadata with the defaults applied and the date set to
// now.
func NewMetadata(now time.Time) Metadata {
	return Metadata{
		Title:    DefaultTitle,
		Date:     now,
		Version:  DefaultVersion,
		Currency: DefaultCurrency,
	}
}

// =============================================================================
// BUDGET
// =============================================================================

// Budget is the root aggregate.
type Budget struct {
	Metadata Metadata   `json:"metadata"`
	Chapters []*Chapter `json:"chapters"`
}

// New returns an empty budget with default metadata dated now.
func New(now time.Time) *Budget {
	return &Budget{
		Metadata: NewMetadata(now),
		Chapters: []*Chapter{},
	}
}

// AddChapter appends a top-level chapter.
func (b *Budget) AddChapter(c *Chapter) *Budget {
	b.Chapters = append(b.Chapters, c)
	return b
}

// Total is the sum of the top-level chapter totals.
func (b *Budget) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.Chapters {
		total = total.Add(c.Total())
	}
	return total
}

// TotalItems counts leaf items across the full depth of the tree.
func (b *Budget) TotalItems() int {
	count := 0
	for _, c := range b.Chapters {
		count += c.CountItems()
	}
	return count
}

// TotalChapters counts chapters and subchapters at every depth.
func (b *Budget) TotalChapters() int {
	count := 0
	_ = Walk(b, func(n Node) error {
		if n.Kind == KindChapter {
			count++
		}
		return nil
	})
	return count
}
