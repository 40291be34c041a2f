// =============================================================================
// BC3 Budget Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main batch command. It runs
// the conversion pipeline over every input file.
//
// COMMAND USAGE:
//   bc3conv convert [flags]
//
// FLAGS:
//   --dry-run         : Load and validate without writing or archiving
//   --file            : Convert only this file
//   --profile         : Use this profile code for every file
//   --prune-archives  : Remove archived inputs older than this duration
//
// PROCESSING PIPELINE:
//   1. Load profiles
//   2. Discover input files (input_patterns under input_dir)
//   3. Match each file to a profile
//   4. Convert files concurrently, at most max_concurrency at a time
//   5. Write the error log and the run summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/converter"
	"github.com/ginjaninja78/bc3-budget-converter/internal/report"
	"github.com/ginjaninja78/bc3-budget-converter/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	dryRun        bool
	filePath      string
	profileCode   string
	pruneArchives time.Duration
)

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert budget files to the configured output formats",
	Long: `The convert command scans the input directory for budget files, matches
each one to a profile and converts it to every format listed in output_formats.

Files are converted concurrently. With continue_on_error (the default) a failed
file does not stop the others; without it the first failure cancels the files
that have not started yet.

On success:
  - The outputs are written to the output directory
  - The input is moved to the input archive, compressed if configured

On error:
  - The input stays in the input directory
  - The error and any validation problems go to the error log`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Load and validate without writing outputs or archiving")
	convertCmd.Flags().StringVar(&filePath, "file", "", "Convert only this file")
	convertCmd.Flags().StringVar(&profileCode, "profile", "", "Use the profile with this code for every file")
	convertCmd.Flags().DurationVar(&pruneArchives, "prune-archives", 0, "Remove archived inputs older than this duration (e.g. 720h)")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runConvert(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()
	out := cmd.OutOrStdout()

	cfg := *mainConfig
	if dryRun {
		cfg.OutputFormats = nil
		cfg.InputArchiveDir = ""
	}
	files := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, mainConfig.InputArchiveDir, cfg.OutputArchiveDir)
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	// =========================================================================
	// STEP 1-3: PROFILES, DISCOVERY AND MATCHING
	// =========================================================================

	profiles, err := config.LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	logger.Debug("loaded profiles", zap.Int("count", len(profiles)))

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = files.DiscoverInputFiles(cfg.InputPatterns)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Fprintln(out, "No budget files found in the input directory.")
		return nil
	}
	fmt.Fprintf(out, "Found %d file(s) to convert\n", len(inputFiles))

	// =========================================================================
	// STEP 4: CONVERT CONCURRENTLY
	// =========================================================================

	results := make([]converter.Result, len(inputFiles))
	started := make([]bool, len(inputFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for i, file := range inputFiles {
		profile, err := profileFor(profiles, cfg.InputDir, file)
		if err != nil {
			return err
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			started[i] = true
			results[i] = converter.New(file, &cfg, profile, logger).Run()
			if !results[i].Success && !cfg.ContinueOnError {
				return fmt.Errorf("%s: %w", filepath.Base(file), results[i].Error)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	// =========================================================================
	// STEP 5: REPORT
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}
	var errorLog []utils.ErrorLogEntry

	for i, result := range results {
		if !started[i] {
			fmt.Fprintf(out, "  - %s: skipped\n", filepath.Base(inputFiles[i]))
			continue
		}
		summary.Diagnostics += len(result.Diagnostics)
		summary.ValidationErrors += result.Stats.ValidationErrors
		errorLog = append(errorLog, errorEntries(result)...)

		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalChapters += result.Stats.Chapters
			summary.TotalItems += result.Stats.Items
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				OutputFiles: result.OutputFiles,
				Chapters:    result.Stats.Chapters,
				Items:       result.Stats.Items,
				Total:       result.Stats.Total,
				ProcessTime: result.Stats.ProcessingTime,
			})
			fmt.Fprintf(out, "  %s %s -> %s\n", report.OK(), filepath.Base(result.FilePath), outputNames(result))
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: result.Error.Error(),
		})
		fmt.Fprintf(out, "  %s %s: %v\n", report.Failed(), filepath.Base(result.FilePath), result.Error)
	}
	summary.EndTime = time.Now()

	fmt.Fprintln(out, "\n=== Conversion Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if !dryRun {
		if path, err := utils.WriteErrorLog(errorLog, cfg.OutputArchiveDir); err != nil {
			logger.Warn("failed to write error log", zap.Error(err))
		} else if path != "" {
			fmt.Fprintf(out, "Error log:       %s\n", path)
		}
		if path, err := utils.WriteSummaryLog(summary, cfg.OutputArchiveDir); err != nil {
			logger.Warn("failed to write summary", zap.Error(err))
		} else {
			fmt.Fprintf(out, "Summary:         %s\n", path)
		}
	}

	if pruneArchives > 0 {
		removed, err := utils.CleanOldArchives(mainConfig.InputArchiveDir, pruneArchives)
		if err != nil {
			logger.Warn("failed to prune archives", zap.Error(err))
		} else {
			logger.Info("pruned archives", zap.Int("removed", removed))
		}
	}

	if groupErr != nil {
		return groupErr
	}
	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// profileFor picks the profile for a file: the --profile flag when set,
// otherwise the first profile whose patterns match the path relative to the
// input directory.
func profileFor(profiles []*config.Profile, inputDir, file string) (*config.Profile, error) {
	if profileCode != "" {
		for _, p := range profiles {
			if p.Code == profileCode {
				return p, nil
			}
		}
		return nil, fmt.Errorf("profile %q not found", profileCode)
	}

	rel, err := filepath.Rel(inputDir, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(file)
	}
	return config.SelectProfile(profiles, rel), nil
}

// errorEntries turns a failed conversion and its validation problems into
// error log entries.
func errorEntries(result converter.Result) []utils.ErrorLogEntry {
	now := time.Now()
	name := filepath.Base(result.FilePath)

	var entries []utils.ErrorLogEntry
	if result.Error != nil {
		entries = append(entries, utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     name,
			ErrorType:    "conversion",
			ErrorMessage: result.Error.Error(),
		})
	}
	if result.Validation != nil {
		for _, ve := range result.Validation.Errors {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    now,
				FileName:     name,
				ErrorType:    "validation " + ve.Severity,
				ErrorMessage: ve.Message,
				Code:         ve.Code,
				Path:         strings.Join(ve.Path, " > "),
				FieldName:    ve.Field,
				FieldValue:   ve.Value,
			})
		}
	}
	return entries
}

func outputNames(result converter.Result) string {
	if len(result.OutputFiles) == 0 {
		return "(dry run)"
	}
	names := make([]string, len(result.OutputFiles))
	for i, f := range result.OutputFiles {
		names[i] = filepath.Base(f)
	}
	return strings.Join(names, ", ")
}
