// =============================================================================
// BC3 Budget Converter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (bc3conv)
//   ├── convertCmd  (bc3conv convert)
//   ├── inspectCmd  (bc3conv inspect <file>)
//   ├── validateCmd (bc3conv validate [file...])
//   └── versionCmd  (bc3conv version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the main configuration (--config, then BC3CONV_* variables)
//   2. Builds the logger from the log settings and --verbose
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ginjaninja78/bc3-budget-converter/internal/config"
	"github.com/ginjaninja78/bc3-budget-converter/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// defaultConfigFile is read when --config is not given. It may be absent.
const defaultConfigFile = "config.yaml"

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// mainConfig and logger are set up before every subcommand runs.
var (
	mainConfig *config.MainConfig
	logger     *zap.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "bc3conv",
	Short: "BC3 Budget Converter - Read, check and convert FIEBDC-3 construction budgets",
	Long: `bc3conv converts construction budgets between the FIEBDC-3 (BC3)
interchange format and JSON, XLSX, CSV and XML.

Key Features:
  - Tolerant BC3 parsing with a diagnostic for every recovered defect
  - Chapter/item budget trees with exact decimal totals
  - Per-source profiles with rewrite rules and spreadsheet layouts
  - Validation before any output is written
  - Concurrent batch conversion with archival of processed inputs

Example Usage:
  bc3conv convert                      # Convert every file in the input directory
  bc3conv convert --file obra.bc3      # Convert one file
  bc3conv inspect obra.bc3             # Print the budget tree and diagnostics
  bc3conv validate                     # Check configuration and profiles`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the main configuration file (YAML, or TOML by extension)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stderr"},
	}
	if verbose {
		logCfg.Level = "debug"
	}
	if cfg.LogFile != "" {
		logCfg.OutputPaths = append(logCfg.OutputPaths, cfg.LogFile)
	}

	l, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	mainConfig = cfg
	logger = l.Logger
	return nil
}

// loadConfig reads the main configuration. A missing default file falls back
// to defaults plus environment; a missing file named with --config is an
// error.
func loadConfig(path string, explicit bool) (*config.MainConfig, error) {
	cfg, err := config.LoadMainConfig(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.LoadFromEnv()
	}
	return nil, fmt.Errorf("failed to load main config: %w", err)
}
