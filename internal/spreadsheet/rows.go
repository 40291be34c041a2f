// =============================================================================
// BC3 Budget Converter - Spreadsheet Row Model
// =============================================================================
//
// Spreadsheets carry a budget as a flat list of rows, one per chapter or
// item, in depth-first order. The tree is recovered from the Level column:
//
//   Level | Kind    | Code   | Description | Unit | Quantity | Price | Total
//   1     | chapter | C01    | Movimiento  |      |          |       | 70.00
//   2     | item    | E01    | Excavación  | m3   | 4        | 12.50 | 50.00
//   2     | chapter | C01.01 | Rellenos    |      |          |       | 20.00
//   3     | item    | E02    | Relleno     | ud   | 2.5      | 8.00  | 20.00
//
// Level is the node depth: top-level chapters are 1 and an item sits one
// level below its chapter. Totals are written for readers and ignored on
// input; they are always recomputed from the tree.
//
// =============================================================================

package spreadsheet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/shopspring/decimal"
)

// Header is the title row written above the data.
var Header = []string{"Level", "Kind", "Code", "Description", "Unit", "Quantity", "Price", "Total"}

// Row is one flattened node.
type Row struct {
	Level       int
	Kind        budget.NodeKind
	Code        string
	Description string
	Unit        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Total       decimal.Decimal
}

// =============================================================================
// COLUMN CONFIGURATION
// =============================================================================

// Columns maps each field to a 0-based column index. Reading uses these
// positions so sheets with reordered or extra columns can still be imported.
// A negative index means the column is absent.
type Columns struct {
	Level       int
	Kind        int
	Code        int
	Description int
	Unit        int
	Quantity    int
	Price       int
}

// DefaultColumns returns the layout written by this package.
func DefaultColumns() Columns {
	return Columns{
		Level:       0, // Column A
		Kind:        1, // Column B
		Code:        2, // Column C
		Description: 3, // Column D
		Unit:        4, // Column E
		Quantity:    5, // Column F
		Price:       6, // Column G
	}
}

// =============================================================================
// TREE <-> ROWS
// =============================================================================

// Rows flattens a budget in depth-first order, items before subchapters.
func Rows(b *budget.Budget) []Row {
	var rows []Row
	_ = budget.Walk(b, func(n budget.Node) error {
		if n.Kind == budget.KindChapter {
			rows = append(rows, Row{
				Level:       n.Depth,
				Kind:        budget.KindChapter,
				Code:        n.Chapter.Code,
				Description: n.Chapter.Title,
				Total:       n.Chapter.Total(),
			})
			return nil
		}
		rows = append(rows, Row{
			Level:       n.Depth,
			Kind:        budget.KindItem,
			Code:        n.Item.Code,
			Description: n.Item.Description,
			Unit:        n.Item.Unit,
			Quantity:    n.Item.Quantity,
			Price:       n.Item.Price,
			Total:       n.Item.Total(),
		})
		return nil
	})
	return rows
}

// FromRows rebuilds a budget from flattened rows.
//
// PARAMETERS:
//   - rows: Rows in depth-first order.
//   - meta: Metadata for the new budget.
//
// RETURNS:
//   - The rebuilt budget.
//   - An error naming the first row whose level does not fit the open
//     chapters (a chapter skipping a level, or an item outside any chapter).
func FromRows(rows []Row, meta budget.Metadata) (*budget.Budget, error) {
	b := &budget.Budget{Metadata: meta, Chapters: []*budget.Chapter{}}

	// open[d-1] is the chapter currently open at depth d.
	var open []*budget.Chapter

	for i, row := range rows {
		switch row.Kind {
		case budget.KindChapter:
			if row.Level < 1 || row.Level > len(open)+1 {
				return nil, fmt.Errorf("row %d: chapter %q at level %d has no parent at level %d", i+1, row.Code, row.Level, row.Level-1)
			}
			open = open[:row.Level-1]
			chapter := budget.NewChapter(row.Code, row.Description)
			if row.Level == 1 {
				b.AddChapter(chapter)
			} else {
				open[row.Level-2].AddSubchapter(chapter)
			}
			open = append(open, chapter)

		case budget.KindItem:
			if row.Level < 2 || row.Level > len(open)+1 {
				return nil, fmt.Errorf("row %d: item %q at level %d is outside any chapter", i+1, row.Code, row.Level)
			}
			open = open[:row.Level-1]
			unit := row.Unit
			if unit == "" {
				unit = budget.DefaultUnit
			}
			open[row.Level-2].AddItem(&budget.Item{
				Code:        row.Code,
				Unit:        unit,
				Description: row.Description,
				Price:       row.Price,
				Quantity:    row.Quantity,
			})

		default:
			return nil, fmt.Errorf("row %d: unknown kind %d", i+1, row.Kind)
		}
	}
	return b, nil
}

// =============================================================================
// CELL CONVERSION
// =============================================================================

// record renders a row as cell text in Header order.
func record(row Row) []string {
	out := []string{
		strconv.Itoa(row.Level),
		row.Kind.String(),
		row.Code,
		row.Description,
		row.Unit,
		"",
		"",
		row.Total.StringFixed(2),
	}
	if row.Kind == budget.KindItem {
		out[5] = row.Quantity.String()
		out[6] = row.Price.StringFixed(2)
	}
	return out
}

// parseRecord reads one data row. Empty rows return ok == false.
func parseRecord(cells []string, columns Columns, line int) (Row, bool, error) {
	cell := func(index int) string {
		if index >= 0 && index < len(cells) {
			return strings.TrimSpace(cells[index])
		}
		return ""
	}

	if isRowEmpty(cells) {
		return Row{}, false, nil
	}

	row := Row{
		Code:        cell(columns.Code),
		Description: cell(columns.Description),
		Unit:        cell(columns.Unit),
		Quantity:    decimal.NewFromInt(1),
	}

	level, err := strconv.Atoi(cell(columns.Level))
	if err != nil {
		return Row{}, false, fmt.Errorf("line %d: invalid level %q", line, cell(columns.Level))
	}
	row.Level = level

	kind, ok := budget.ParseNodeKind(strings.ToLower(cell(columns.Kind)))
	if !ok {
		return Row{}, false, fmt.Errorf("line %d: invalid kind %q", line, cell(columns.Kind))
	}
	row.Kind = kind

	if kind == budget.KindItem {
		if raw := cell(columns.Quantity); raw != "" {
			if row.Quantity, err = bc3.ParseDecimal(raw); err != nil {
				return Row{}, false, fmt.Errorf("line %d: invalid quantity %q: %w", line, raw, err)
			}
		}
		if raw := cell(columns.Price); raw != "" {
			if row.Price, err = bc3.ParseDecimal(raw); err != nil {
				return Row{}, false, fmt.Errorf("line %d: invalid price %q: %w", line, raw, err)
			}
		}
	}
	return row, true, nil
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// parseRecords converts raw rows to Rows, skipping headerRows leading rows
// and blank rows.
func parseRecords(raw [][]string, headerRows int, columns Columns) ([]Row, error) {
	var rows []Row
	for i := headerRows; i < len(raw); i++ {
		row, ok, err := parseRecord(raw[i], columns, i+1)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
