package converter

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/spreadsheet"
	"github.com/ginjaninja78/bc3-budget-converter/internal/xmlwriter"
	"github.com/ginjaninja78/bc3-budget-converter/pkg/utils"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for inputs that are not a readable budget
// and for unknown output format names.
var ErrUnsupportedFormat = errors.New("unsupported format")

// =============================================================================
// FORMAT DETECTION
// =============================================================================

// DetectFormat names the budget format of an input. The extension decides
// first, ignoring a .gz or .zst suffix; unknown extensions fall back to
// content sniffing.
func DetectFormat(path string, data []byte) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(utils.TrimCompressionExtension(path)), "."))
	switch ext {
	case config.FormatBC3, config.FormatJSON, config.FormatXLSX, config.FormatCSV:
		return ext, nil
	}

	if looksLikeBC3(data) {
		return config.FormatBC3, nil
	}

	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return config.FormatXLSX, nil
	case mtype.Is("application/json"):
		return config.FormatJSON, nil
	case mtype.Is("text/csv"):
		return config.FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, filepath.Base(path), mtype.String())
}

// looksLikeBC3 reports whether the data opens with a known record tag and a
// field separator, after optional whitespace and record separator.
func looksLikeBC3(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	trimmed = bytes.TrimPrefix(trimmed, []byte(bc3.RecordSeparator))
	if len(trimmed) < 2 || trimmed[1] != '|' {
		return false
	}
	switch trimmed[0] {
	case bc3.TagVersion, bc3.TagMetadata, bc3.TagConcept, bc3.TagDecomposition:
		return true
	}
	return false
}

// =============================================================================
// READING
// =============================================================================

// LoadOptions carries what Load needs besides the data.
type LoadOptions struct {
	Encodings   []string
	MaxDepth    int
	Spreadsheet config.SpreadsheetSettings
	Logger      *zap.Logger
	Now         func() time.Time
}

// LoadOptionsFor builds load options from the main configuration and the
// selected profile.
func LoadOptionsFor(cfg *config.MainConfig, profile *config.Profile, logger *zap.Logger) LoadOptions {
	options := LoadOptions{
		Encodings: cfg.InputEncodings,
		MaxDepth:  cfg.MaxDepth,
		Logger:    logger,
		Now:       time.Now,
	}
	if profile != nil {
		options.Spreadsheet = profile.Spreadsheet
	}
	return options
}

// Load reads a budget in the given format. Only BC3 input yields
// diagnostics.
func Load(format string, data []byte, options LoadOptions) (*budget.Budget, []bc3.Diagnostic, error) {
	if options.Now == nil {
		options.Now = time.Now
	}

	switch format {
	case config.FormatBC3:
		res, err := bc3.NewParser(bc3.ParserOptions{
			Encodings: options.Encodings,
			MaxDepth:  options.MaxDepth,
			Logger:    options.Logger,
			Now:       options.Now,
		}).Parse(data)
		if err != nil {
			return nil, nil, err
		}
		return res.Budget, res.Diagnostics, nil

	case config.FormatJSON:
		b, err := budget.Decode(data, options.Now())
		return b, nil, err

	case config.FormatXLSX:
		b, err := spreadsheet.ReadXLSX(bytes.NewReader(data), spreadsheet.OptionsFromSettings(options.Spreadsheet), options.Now())
		return b, nil, err

	case config.FormatCSV:
		b, err := spreadsheet.ReadCSV(bytes.NewReader(data), spreadsheet.OptionsFromSettings(options.Spreadsheet), options.Now())
		return b, nil, err
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// =============================================================================
// WRITING
// =============================================================================

// RenderOptions carries what Render needs besides the budget.
type RenderOptions struct {
	Encoding    string
	Spreadsheet config.SpreadsheetSettings
	Logger      *zap.Logger
}

// Render writes b in the given format. Only BC3 output yields diagnostics,
// for codes that had to be assigned or renamed.
func Render(format string, b *budget.Budget, options RenderOptions) ([]byte, []bc3.Diagnostic, error) {
	switch format {
	case config.FormatBC3:
		text, diags := bc3.NewGenerator(bc3.GeneratorOptions{
			Encoding: options.Encoding,
			Logger:   options.Logger,
		}).GenerateText(b)
		out, err := bc3.Encode(text, options.Encoding)
		if err != nil {
			return nil, diags, fmt.Errorf("failed to generate BC3: %w", err)
		}
		return out, diags, nil

	case config.FormatJSON:
		out, err := budget.Encode(b)
		return out, nil, err

	case config.FormatXLSX:
		var buf bytes.Buffer
		err := spreadsheet.WriteXLSX(&buf, b, spreadsheet.OptionsFromSettings(options.Spreadsheet))
		return buf.Bytes(), nil, err

	case config.FormatCSV:
		var buf bytes.Buffer
		err := spreadsheet.WriteCSV(&buf, b, spreadsheet.OptionsFromSettings(options.Spreadsheet))
		return buf.Bytes(), nil, err

	case config.FormatXML:
		out, err := xmlwriter.Generate(b)
		return out, nil, err
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
