// =============================================================================
// BC3 Budget Converter - Run Logs
// =============================================================================
//
// Every convert run leaves two plain-text files in the output archive
// directory:
//   - error_log_<timestamp>.txt          : conversion failures and validation
//                                          problems, grouped by input file
//   - processing_summary_<timestamp>.txt : counts, per-file totals and outputs
//
// =============================================================================

package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ruleHeavy = "================================================================================"
	ruleLight = "--------------------------------------------------------------------------------"

	logTimeFormat = "2006-01-02 15:04:05"
)

// =============================================================================
// ERROR LOG
// =============================================================================

// ErrorLogEntry is one problem found while converting a file.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string

	// Code and Path locate the offending budget node, when there is one.
	Code string
	Path string

	FieldName  string
	FieldValue string
}

// WriteErrorLog writes the entries, grouped by file in first-seen order.
//
// RETURNS:
//   - The path to the error log file, empty when there is nothing to log.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	var order []string
	byFile := make(map[string][]ErrorLogEntry)
	for _, e := range entries {
		if _, ok := byFile[e.FileName]; !ok {
			order = append(order, e.FileName)
		}
		byFile[e.FileName] = append(byFile[e.FileName], e)
	}

	return writeRunFile(outputDir, "error_log", func(w io.Writer) {
		fmt.Fprintf(w, "BC3 Budget Converter - Error Log\n")
		fmt.Fprintf(w, "Generated:    %s\n", time.Now().Format(logTimeFormat))
		fmt.Fprintf(w, "Files:        %d\n", len(order))
		fmt.Fprintf(w, "Total Errors: %d\n", len(entries))
		fmt.Fprintln(w, ruleHeavy)

		for _, name := range order {
			fileEntries := byFile[name]
			fmt.Fprintf(w, "\n%s (%d problem(s))\n%s\n", name, len(fileEntries), ruleLight)
			for _, e := range fileEntries {
				writeErrorEntry(w, e)
			}
		}

		fmt.Fprintf(w, "\n%s\nEnd of Error Log\n", ruleHeavy)
	})
}

func writeErrorEntry(w io.Writer, e ErrorLogEntry) {
	fmt.Fprintf(w, "  %s [%s] %s\n", e.Timestamp.Format(logTimeFormat), e.ErrorType, e.ErrorMessage)
	if e.Code != "" {
		fmt.Fprintf(w, "      Code:  %s\n", e.Code)
	}
	if e.Path != "" {
		fmt.Fprintf(w, "      Path:  %s\n", e.Path)
	}
	switch {
	case e.FieldName != "" && e.FieldValue != "":
		fmt.Fprintf(w, "      Field: %s = %q\n", e.FieldName, e.FieldValue)
	case e.FieldName != "":
		fmt.Fprintf(w, "      Field: %s\n", e.FieldName)
	}
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes one convert run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	SuccessfulFiles  int
	FailedFiles      int
	TotalChapters    int
	TotalItems       int
	Diagnostics      int
	ValidationErrors int
	ProcessedFiles   []ProcessedFileInfo
	FailedFilesList  []FailedFileInfo
}

// ProcessedFileInfo describes a converted file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFiles []string
	Chapters    int
	Items       int

	// Total is the budget grand total, two decimals.
	Total string

	ProcessTime time.Duration
}

// FailedFileInfo describes a file that could not be converted.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// BudgetTotal sums the totals of every converted budget. Unparsable totals
// are skipped.
func (s ProcessingSummary) BudgetTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, pf := range s.ProcessedFiles {
		if d, err := decimal.NewFromString(pf.Total); err == nil {
			sum = sum.Add(d)
		}
	}
	return sum
}

// WriteSummaryLog writes the run summary.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	return writeRunFile(outputDir, "processing_summary", func(w io.Writer) {
		fmt.Fprintf(w, "BC3 Budget Converter - Processing Summary\n%s\n\n", ruleHeavy)

		fmt.Fprintf(w, "Run Information:\n")
		fmt.Fprintf(w, "  Start Time:        %s\n", summary.StartTime.Format(logTimeFormat))
		fmt.Fprintf(w, "  End Time:          %s\n", summary.EndTime.Format(logTimeFormat))
		fmt.Fprintf(w, "  Duration:          %s\n\n", summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))

		fmt.Fprintf(w, "Statistics:\n")
		fmt.Fprintf(w, "  Total Files:       %d\n", summary.TotalFiles)
		fmt.Fprintf(w, "  Successful:        %d\n", summary.SuccessfulFiles)
		fmt.Fprintf(w, "  Failed:            %d\n", summary.FailedFiles)
		fmt.Fprintf(w, "  Total Chapters:    %d\n", summary.TotalChapters)
		fmt.Fprintf(w, "  Total Items:       %d\n", summary.TotalItems)
		fmt.Fprintf(w, "  Budget Total:      %s\n", summary.BudgetTotal().StringFixed(2))
		fmt.Fprintf(w, "  Diagnostics:       %d\n", summary.Diagnostics)
		fmt.Fprintf(w, "  Validation Errors: %d\n", summary.ValidationErrors)

		if len(summary.ProcessedFiles) > 0 {
			fmt.Fprintf(w, "\nSuccessful Files:\n%s\n", ruleLight)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "  FILE\tCHAPTERS\tITEMS\tTOTAL\tTIME\tOUTPUTS")
			for _, pf := range summary.ProcessedFiles {
				outputs := make([]string, len(pf.OutputFiles))
				for i, out := range pf.OutputFiles {
					outputs[i] = filepath.Base(out)
				}
				fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\t%s\t%s\n",
					filepath.Base(pf.InputFile), pf.Chapters, pf.Items, pf.Total,
					pf.ProcessTime.Round(time.Millisecond), strings.Join(outputs, ", "))
			}
			tw.Flush()
		}

		if len(summary.FailedFilesList) > 0 {
			fmt.Fprintf(w, "\nFailed Files:\n%s\n", ruleLight)
			for _, ff := range summary.FailedFilesList {
				fmt.Fprintf(w, "  %s: %s\n", filepath.Base(ff.InputFile), ff.ErrorMessage)
			}
		}

		fmt.Fprintf(w, "\n%s\nEnd of Summary\n", ruleHeavy)
	})
}

// writeRunFile renders a timestamped run file named <prefix>_<timestamp>.txt
// into dir.
func writeRunFile(dir, prefix string, render func(w io.Writer)) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.txt", prefix, time.Now().Format("20060102_150405")))

	var buf bytes.Buffer
	render(&buf)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return path, nil
}
