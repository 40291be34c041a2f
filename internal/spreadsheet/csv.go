package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
)

// WriteCSV writes the budget rows under a single header row. Metadata is not
// carried by csv files.
func WriteCSV(w io.Writer, b *budget.Budget, options Options) error {
	writer := csv.NewWriter(w)
	writer.Comma = delimiter(options.Delimiter)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range Rows(b) {
		if err := writer.Write(record(row)); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.Code, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV reads budget rows from a csv file.
//
// PARAMETERS:
//   - r: The csv source.
//   - options: Delimiter, header rows and column positions.
//   - now: Date of the default metadata.
//
// RETURNS:
//   - The rebuilt budget with default metadata.
//   - An error if the file or any row cannot be read.
func ReadCSV(r io.Reader, options Options, now time.Time) (*budget.Budget, error) {
	reader := csv.NewReader(r)
	configureReader(reader, options.Delimiter)

	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(raw) < options.HeaderRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	rows, err := parseRecords(raw, options.HeaderRows, options.Columns)
	if err != nil {
		return nil, err
	}
	return FromRows(rows, budget.NewMetadata(now))
}

// configureReader applies the delimiter and the lenient parsing settings.
func configureReader(reader *csv.Reader, name string) {
	reader.Comma = delimiter(name)

	// Allow variable number of fields per row.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// delimiter resolves a delimiter setting, accepting common names.
func delimiter(name string) rune {
	switch name {
	case "\\t", "\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	default:
		if len(name) > 0 {
			return rune(name[0])
		}
		return ','
	}
}
