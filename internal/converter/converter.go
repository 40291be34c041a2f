// =============================================================================
// BC3 Budget Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It orchestrates the whole
// pipeline for a single input file, from reading the budget to archiving the
// input.
//
// CONVERSION PIPELINE:
//   1. Read the input, decompressing .gz and .zst files
//   2. Detect the input format (extension, then content)
//   3. Load the budget tree (bc3, json, xlsx or csv)
//   4. Apply the profile's rewrite rules
//   5. Validate the budget
//   6. Write every configured output format
//   7. Archive the input
//
// CONCURRENCY:
//   A Converter handles one file and shares nothing mutable, so the convert
//   command runs several of them at once.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/validation"
	"github.com/ginjaninja78/bc3-budget-converter/pkg/utils"
	"go.uber.org/zap"
)

// ErrValidation marks a budget that failed validation. Its outputs are not
// written.
var ErrValidation = errors.New("budget failed validation")

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Format is the detected input format.
	Format string

	// OutputFiles are the generated files, in output_formats order.
	// Empty if processing failed.
	OutputFiles []string

	// ArchivePath is where the input was moved, empty if it was not.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Diagnostics lists the defects recovered from while reading and
	// writing BC3.
	Diagnostics []bc3.Diagnostic

	// Validation holds the validation outcome, nil if the budget was never
	// loaded.
	Validation *validation.ValidationResult

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	Chapters int
	Items    int

	// Rewrites counts fields changed by rewrite rules.
	Rewrites int

	Diagnostics      int
	ValidationErrors int

	// Total is the budget grand total with two decimals.
	Total string

	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single budget file.
type Converter struct {
	inputPath string
	cfg       *config.MainConfig
	profile   *config.Profile
	files     *utils.FileManager
	logger    *zap.Logger
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The path to the input file.
//   - cfg: The main application configuration.
//   - profile: The profile selected for this file; nil uses the default.
//   - logger: Receives progress and diagnostics; nil discards them.
func New(inputPath string, cfg *config.MainConfig, profile *config.Profile, logger *zap.Logger) *Converter {
	if profile == nil {
		profile = config.DefaultProfile()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	files.Compression = cfg.ArchiveCompression

	return &Converter{
		inputPath: inputPath,
		cfg:       cfg,
		profile:   profile,
		files:     files,
		logger:    logger.With(zap.String("file", filepath.Base(inputPath)), zap.String("profile", profile.Code)),
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file. It never panics on bad
// input; every failure is reported through Result.Error.
func (c *Converter) Run() Result {
	startTime := time.Now()
	result := Result{FilePath: c.inputPath}
	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
	}()

	c.logger.Info("processing file")

	// =========================================================================
	// STEP 1-3: READ, DETECT AND LOAD
	// =========================================================================

	data, err := utils.ReadFile(c.inputPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input: %w", err)
		return c.fail(result)
	}

	result.Format, err = DetectFormat(c.inputPath, data)
	if err != nil {
		result.Error = err
		return c.fail(result)
	}

	b, diags, err := Load(result.Format, data, LoadOptionsFor(c.cfg, c.profile, c.logger))
	if err != nil {
		result.Error = fmt.Errorf("failed to load %s budget: %w", result.Format, err)
		return c.fail(result)
	}
	result.Diagnostics = append(result.Diagnostics, diags...)
	c.logger.Debug("loaded budget", zap.String("format", result.Format), zap.Int("diagnostics", len(diags)))

	// =========================================================================
	// STEP 4: APPLY REWRITE RULES
	// =========================================================================

	transformer, err := NewTransformer(c.profile.RewriteRules)
	if err != nil {
		result.Error = fmt.Errorf("invalid rewrite rules in profile %s: %w", c.profile.Code, err)
		return c.fail(result)
	}
	if result.Stats.Rewrites, err = transformer.Apply(b); err != nil {
		result.Error = fmt.Errorf("failed to apply rewrite rules: %w", err)
		return c.fail(result)
	}

	// =========================================================================
	// STEP 5: VALIDATE
	// =========================================================================

	c.collectStats(&result, b)

	validator := validation.NewValidatorWithOptions(validation.ValidationOptions{
		MaxDescriptionLength:  c.cfg.Validation.MaxDescriptionLength,
		TreatWarningsAsErrors: c.cfg.Validation.FailOnWarnings,
	})
	result.Validation = validator.Validate(b)
	result.Stats.ValidationErrors = len(result.Validation.Errors)

	for _, ve := range result.Validation.Errors {
		if ve.Severity == validation.SeverityError {
			c.logger.Warn("validation error", zap.String("rule", ve.Rule), zap.String("code", ve.Code), zap.String("detail", ve.Message))
		} else {
			c.logger.Debug("validation warning", zap.String("rule", ve.Rule), zap.String("code", ve.Code), zap.String("detail", ve.Message))
		}
	}
	if !result.Validation.IsValid {
		result.Error = fmt.Errorf("%w with %d error(s)", ErrValidation, result.Validation.ErrorCount)
		return c.fail(result)
	}

	// =========================================================================
	// STEP 6: WRITE OUTPUTS
	// =========================================================================

	for _, format := range c.cfg.OutputFormats {
		outputPath, err := c.writeOutput(format, b, &result)
		if err != nil {
			result.Error = fmt.Errorf("failed to write %s output: %w", format, err)
			return c.fail(result)
		}
		result.OutputFiles = append(result.OutputFiles, outputPath)
		c.logger.Info("wrote output", zap.String("format", format), zap.String("path", outputPath))
	}
	result.Stats.Diagnostics = len(result.Diagnostics)

	// =========================================================================
	// STEP 7: ARCHIVE INPUT
	// =========================================================================

	if c.cfg.InputArchiveDir != "" {
		archivePath, err := c.files.ArchiveInputFile(c.inputPath)
		if err != nil {
			// Log the error but don't fail the processing.
			c.logger.Warn("failed to archive input", zap.Error(err))
		} else {
			result.ArchivePath = archivePath
		}
	}

	result.Success = true
	c.logger.Info("converted file",
		zap.Int("chapters", result.Stats.Chapters),
		zap.Int("items", result.Stats.Items),
		zap.String("total", result.Stats.Total),
		zap.Int("outputs", len(result.OutputFiles)),
	)
	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (c *Converter) fail(result Result) Result {
	result.Stats.Diagnostics = len(result.Diagnostics)
	c.logger.Error("conversion failed", zap.Error(result.Error))
	return result
}

func (c *Converter) collectStats(result *Result, b *budget.Budget) {
	result.Stats.Chapters = b.TotalChapters()
	result.Stats.Items = b.TotalItems()
	result.Stats.Total = b.Total().StringFixed(2)
}

// writeOutput renders b in one format and writes it to the output directory.
//
// FILE NAMING:
//   The name comes from output_name_format with {uuid}, {timestamp} and
//   {original} replaced, plus the format's extension.
func (c *Converter) writeOutput(format string, b *budget.Budget, result *Result) (string, error) {
	data, diags, err := Render(format, b, RenderOptions{
		Encoding:    c.cfg.OutputEncoding,
		Spreadsheet: c.profile.Spreadsheet,
		Logger:      c.logger,
	})
	result.Diagnostics = append(result.Diagnostics, diags...)
	if err != nil {
		return "", err
	}

	fileName := utils.GenerateOutputFileName(c.cfg.OutputNameFormat, "."+format, map[string]string{
		"original": utils.OriginalName(c.inputPath),
	})
	outputPath := filepath.Join(c.cfg.OutputDir, fileName)

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return outputPath, nil
}
