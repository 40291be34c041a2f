// =============================================================================
// BC3 Budget Converter - XLSX Reader and Writer
// =============================================================================
//
// Workbooks hold the budget rows on one sheet (default "Presupuesto") and the
// document metadata as key/value pairs on a second sheet named "Metadata".
// The metadata sheet is optional on input.
//
// =============================================================================

package spreadsheet

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/xuri/excelize/v2"
)

// MetadataSheet is the worksheet holding the document metadata.
const MetadataSheet = "Metadata"

const metadataDateLayout = "2006-01-02"

// Options controls reading and writing of flat budget sheets.
type Options struct {
	// SheetName is the worksheet holding the rows.
	// Default: "Presupuesto"
	SheetName string

	// Delimiter separates csv fields. Names such as "tab" or "semicolon"
	// are accepted.
	// Default: ","
	Delimiter string

	// HeaderRows are skipped when reading. Writing always emits one.
	// Default: 1
	HeaderRows int

	// Columns locates the fields when reading.
	Columns Columns
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		SheetName:  "Presupuesto",
		Delimiter:  ",",
		HeaderRows: 1,
		Columns:    DefaultColumns(),
	}
}

// OptionsFromSettings builds options from a profile's spreadsheet settings.
// Unset settings keep their defaults.
func OptionsFromSettings(settings config.SpreadsheetSettings) Options {
	options := DefaultOptions()
	if settings.SheetName != "" {
		options.SheetName = settings.SheetName
	}
	if settings.Delimiter != "" {
		options.Delimiter = settings.Delimiter
	}
	if settings.HeaderRows > 0 {
		options.HeaderRows = settings.HeaderRows
	}
	return options
}

// =============================================================================
// WRITING
// =============================================================================

// WriteXLSX writes the budget as a workbook.
//
// PARAMETERS:
//   - w: Destination for the workbook bytes.
//   - b: The budget to write.
//   - options: Sheet name is taken from here.
//
// RETURNS:
//   - An error if the workbook cannot be built or written.
func WriteXLSX(w io.Writer, b *budget.Budget, options Options) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := options.SheetName
	if sheet == "" {
		sheet = DefaultOptions().SheetName
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "H1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range Rows(b) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{row.Level, row.Kind.String(), row.Code, row.Description, nil, nil, nil, row.Total.InexactFloat64()}
		if row.Kind == budget.KindItem {
			values[4] = row.Unit
			values[5] = row.Quantity.InexactFloat64()
			values[6] = row.Price.InexactFloat64()
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "C", "C", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "D", "D", 60); err != nil {
		return err
	}

	if err := writeMetadataSheet(f, b.Metadata); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeMetadataSheet(f *excelize.File, meta budget.Metadata) error {
	if _, err := f.NewSheet(MetadataSheet); err != nil {
		return fmt.Errorf("failed to create metadata sheet: %w", err)
	}
	pairs := [][]interface{}{
		{"title", meta.Title},
		{"owner", meta.Owner},
		{"date", meta.Date.Format(metadataDateLayout)},
		{"version", meta.Version},
		{"currency", meta.Currency},
		{"comments", meta.Comments},
	}
	for i, pair := range pairs {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MetadataSheet, cell, &pair); err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
	}
	return nil
}

// =============================================================================
// READING
// =============================================================================

// ReadXLSX reads a workbook written by WriteXLSX or laid out the same way.
// When the configured sheet is missing, the first sheet is read.
//
// PARAMETERS:
//   - r: Source of the workbook bytes.
//   - options: Sheet name, header rows and column positions.
//   - now: Date used when the workbook carries no metadata.
//
// RETURNS:
//   - The rebuilt budget.
//   - An error if the workbook or any row cannot be read.
func ReadXLSX(r io.Reader, options Options, now time.Time) (*budget.Budget, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := options.SheetName
	if index, err := f.GetSheetIndex(sheet); err != nil || index < 0 {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	rows, err := parseRecords(raw, options.HeaderRows, options.Columns)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}

	meta, err := readMetadataSheet(f, now)
	if err != nil {
		return nil, err
	}
	return FromRows(rows, meta)
}

func readMetadataSheet(f *excelize.File, now time.Time) (budget.Metadata, error) {
	meta := budget.NewMetadata(now)
	if index, err := f.GetSheetIndex(MetadataSheet); err != nil || index < 0 {
		return meta, nil
	}

	raw, err := f.GetRows(MetadataSheet)
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata: %w", err)
	}
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		value := strings.TrimSpace(pair[1])
		if value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(pair[0])) {
		case "title":
			meta.Title = value
		case "owner":
			meta.Owner = value
		case "date":
			date, err := time.Parse(metadataDateLayout, value)
			if err != nil {
				return meta, fmt.Errorf("invalid metadata date %q: %w", value, err)
			}
			meta.Date = date
		case "version":
			meta.Version = value
		case "currency":
			meta.Currency = value
		case "comments":
			meta.Comments = value
		}
	}
	return meta, nil
}
