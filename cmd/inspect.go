// =============================================================================
// BC3 Budget Converter - Inspect Command
// =============================================================================
//
// COMMAND USAGE:
//   bc3conv inspect <file> [--json]
//
// OUTPUT:
//   The budget metadata, the chapter tree with every total and the
//   diagnostics raised while reading. With --json the budget is printed in
//   its JSON form instead.
//
// The file is read with the profile its name matches, so spreadsheet layouts
// apply, but no rewrite rules are run and nothing is written or archived.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/budget"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/converter"
	"github.com/ginjaninja78/bc3-budget-converter/internal/report"
	"github.com/ginjaninja78/bc3-budget-converter/pkg/utils"
	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print a budget tree with totals and diagnostics",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0], inspectJSON)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the budget as JSON")
	inspectCmd.Flags().StringVar(&profileCode, "profile", "", "Read the file with the profile with this code")
}

func runInspect(out io.Writer, path string, asJSON bool) error {
	loaded, err := loadBudget(path)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := budget.Encode(loaded.budget)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintln(out, report.Header("Budget"))
	fmt.Fprint(out, report.Metadata(loaded.budget))
	fmt.Fprintf(out, "%s %s (profile %s)\n\n", report.StyleDim.Render("Format:  "), loaded.format, loaded.profile.Code)
	fmt.Fprint(out, report.Tree(loaded.budget))

	if len(loaded.diagnostics) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Header("Diagnostics"))
		fmt.Fprint(out, report.Diagnostics(loaded.diagnostics))
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadedBudget is a budget read by inspect or validate.
type loadedBudget struct {
	budget      *budget.Budget
	diagnostics []bc3.Diagnostic
	format      string
	profile     *config.Profile
}

// loadBudget reads, detects and parses one file with the profile its name
// matches. It runs the same load step as a conversion.
func loadBudget(path string) (*loadedBudget, error) {
	profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	profile, err := profileFor(profiles, mainConfig.InputDir, path)
	if err != nil {
		return nil, err
	}

	data, err := utils.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	format, err := converter.DetectFormat(path, data)
	if err != nil {
		return nil, err
	}

	b, diags, err := converter.Load(format, data, converter.LoadOptionsFor(mainConfig, profile, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s budget: %w", format, err)
	}
	return &loadedBudget{budget: b, diagnostics: diags, format: format, profile: profile}, nil
}
