// =============================================================================
// BC3 Budget Converter - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   bc3conv validate              - Check the configuration and profiles
//   bc3conv validate <file>...    - Check budget files without converting
//
// Configuration is checked before any subcommand runs, so with no arguments
// this command loads every profile and compiles its rewrite rules.
//
// Budget files go through the load, rewrite and validation steps of a
// conversion. Nothing is written or archived. The command fails if any file
// fails to load or has validation errors.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/converter"
	"github.com/ginjaninja78/bc3-budget-converter/internal/report"
	"github.com/ginjaninja78/bc3-budget-converter/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate the configuration, or budget files without converting them",

	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runValidateConfig(cmd.OutOrStdout())
		}
		return runValidateFiles(cmd.OutOrStdout(), args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&profileCode, "profile", "", "Validate every file with the profile with this code")
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func runValidateConfig(out io.Writer) error {
	fmt.Fprintf(out, "%s main configuration\n", report.OK())

	profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		fmt.Fprintf(out, "%s profiles: %v\n", report.Failed(), err)
		return fmt.Errorf("invalid profiles: %w", err)
	}

	failed := 0
	for _, p := range profiles {
		if _, err := converter.NewTransformer(p.RewriteRules); err != nil {
			failed++
			fmt.Fprintf(out, "%s profile %s: %v\n", report.Failed(), p.Code, err)
			continue
		}
		fmt.Fprintf(out, "%s profile %s (%d pattern(s), %d rule(s))\n", report.OK(), p.Code, len(p.FileMatchingPatterns), len(p.RewriteRules))
	}
	logger.Debug("validated profiles", zap.Int("count", len(profiles)), zap.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("%d profile(s) have invalid rewrite rules", failed)
	}
	fmt.Fprintf(out, "Configuration is valid (%d profile(s)).\n", len(profiles))
	return nil
}

// =============================================================================
// BUDGET FILES
// =============================================================================

func runValidateFiles(out io.Writer, paths []string) error {
	validator := validation.NewValidatorWithOptions(validation.ValidationOptions{
		MaxDescriptionLength:  mainConfig.Validation.MaxDescriptionLength,
		TreatWarningsAsErrors: mainConfig.Validation.FailOnWarnings,
	})

	failed := 0
	for _, path := range paths {
		name := filepath.Base(path)

		result, diags, err := validateFile(validator, path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s %s: %v\n", report.Failed(), name, err)
			continue
		}
		if !result.IsValid {
			failed++
		}
		fmt.Fprint(out, report.Validation(name, result))
		fmt.Fprint(out, report.Diagnostics(diags))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(paths))
	}
	return nil
}

func validateFile(validator *validation.Validator, path string) (*validation.ValidationResult, []bc3.Diagnostic, error) {
	loaded, err := loadBudget(path)
	if err != nil {
		return nil, nil, err
	}

	transformer, err := converter.NewTransformer(loaded.profile.RewriteRules)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid rewrite rules in profile %s: %w", loaded.profile.Code, err)
	}
	if _, err := transformer.Apply(loaded.budget); err != nil {
		return nil, nil, fmt.Errorf("failed to apply rewrite rules: %w", err)
	}
	return validator.Validate(loaded.budget), loaded.diagnostics, nil
}
