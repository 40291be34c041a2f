// =============================================================================
// BC3 Budget Converter - Main Entry Point
// =============================================================================
//
// This is the main entry point for the bc3conv CLI application. It hands
// control to the cmd package, which builds the Cobra command tree.
//
// USAGE:
//   bc3conv convert         - Convert every budget file in the input directory
//   bc3conv inspect <file>  - Print a budget tree with totals and diagnostics
//   bc3conv validate        - Validate configuration, profiles or budget files
//   bc3conv version         - Display the application version
//
// ARCHITECTURE:
//   - cmd/                  : CLI command definitions (Cobra)
//   - internal/bc3          : FIEBDC-3 tokenizer, parser and generator
//   - internal/budget       : Budget tree model, traversal and JSON form
//   - internal/converter    : Per-file pipeline, format detection, rewrite rules
//   - internal/spreadsheet  : Flat xlsx and csv budget layouts
//   - internal/validation   : Budget checks run before any output is written
//   - internal/xmlwriter    : XML export
//   - internal/report       : Terminal rendering
//   - pkg/utils             : File discovery, archiving and run logs
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/bc3-budget-converter/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
