// =============================================================================
// BC3 Budget Converter - Configuration Module
// =============================================================================
//
// This module loads the main converter configuration and the optional
// per-source profiles.
//
// CONFIGURATION SOURCES (later wins):
//   1. Built-in defaults (Default)
//   2. Main config file: config.yaml, or config.toml when the extension is .toml
//   3. Environment variables prefixed with BC3CONV_ (BC3CONV_LOG_LEVEL, ...)
//
// PROFILES:
//   Each YAML file in the profiles directory describes one kind of source
//   file: which file names it applies to, how its spreadsheets are laid out
//   and which rewrite rules clean up its text.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BC3CONV"

// Output formats a conversion can write.
const (
	FormatBC3  = "bc3"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatXML  = "xml"
)

// SupportedFormats lists every format name accepted in output_formats.
var SupportedFormats = []string{FormatBC3, FormatJSON, FormatXLSX, FormatCSV, FormatXML}

// Archive compression modes.
const (
	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionZstd = "zstd"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global converter configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for budget files to convert.
	// Default: "./input"
	InputDir string `yaml:"input_dir" toml:"input_dir" split_words:"true"`

	// OutputDir receives the converted files.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" toml:"output_dir" split_words:"true"`

	// InputArchiveDir receives inputs after a successful conversion.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" toml:"input_archive_dir" split_words:"true"`

	// OutputArchiveDir keeps the error log and run summaries.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir" toml:"output_archive_dir" split_words:"true"`

	// ProfilesDir holds per-source profiles. Missing is fine.
	// Default: "./profiles"
	ProfilesDir string `yaml:"profiles_dir" toml:"profiles_dir" split_words:"true"`

	// InputPatterns select input files relative to InputDir. Patterns use
	// doublestar syntax, so "**" descends into subdirectories.
	// Default: ["*.bc3", "*.BC3", "*.json", "*.xlsx", "*.csv"]
	InputPatterns []string `yaml:"input_patterns" toml:"input_patterns" split_words:"true"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `yaml:"log_file" toml:"log_file" split_words:"true"`

	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level" toml:"log_level" split_words:"true"`

	// LogDevelopment switches to the human-readable console encoder.
	LogDevelopment bool `yaml:"log_development" toml:"log_development" split_words:"true"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat is the output file name without extension.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {original}  - Input file name without extension
	// Default: "{original}_{timestamp}"
	OutputNameFormat string `yaml:"output_name_format" toml:"output_name_format" split_words:"true"`

	// OutputFormats are written for every converted input.
	// Default: ["bc3", "json"]
	OutputFormats []string `yaml:"output_formats" toml:"output_formats" split_words:"true"`

	// =========================================================================
	// BC3 SETTINGS
	// =========================================================================

	// InputEncodings are tried in order when decoding BC3 input.
	// Default: ["UTF-8", "windows-1252", "ISO-8859-1"]
	InputEncodings []string `yaml:"input_encodings" toml:"input_encodings" split_words:"true"`

	// OutputEncoding is the charset of generated BC3 files.
	// Default: "ISO-8859-1"
	OutputEncoding string `yaml:"output_encoding" toml:"output_encoding" split_words:"true"`

	// MaxDepth bounds chapter nesting while building the tree.
	// Default: 64
	MaxDepth int `yaml:"max_depth" toml:"max_depth" split_words:"true"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the number of files converted at the same time.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" toml:"max_concurrency" split_words:"true"`

	// ContinueOnError keeps converting the remaining files after a failure.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error" toml:"continue_on_error" split_words:"true"`

	// ArchiveCompression compresses archived inputs: "none", "gzip" or "zstd".
	// Default: "none"
	ArchiveCompression string `yaml:"archive_compression" toml:"archive_compression" split_words:"true"`

	// Validation tunes the budget checks run before writing outputs.
	Validation ValidationSettings `yaml:"validation" toml:"validation"`
}

// ValidationSettings tunes budget validation.
type ValidationSettings struct {
	// MaxDescriptionLength flags longer descriptions as warnings. Zero
	// disables the check.
	// Default: 500
	MaxDescriptionLength int `yaml:"max_description_length" toml:"max_description_length" split_words:"true"`

	// FailOnWarnings treats warnings as errors.
	FailOnWarnings bool `yaml:"fail_on_warnings" toml:"fail_on_warnings" split_words:"true"`
}

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile adapts the converter to one family of source files.
type Profile struct {
	// Name is used in logs.
	Name string `yaml:"name"`

	// Code identifies the profile. Defaults to the profile file name.
	Code string `yaml:"code"`

	// FileMatchingPatterns are doublestar patterns matched against the input
	// file name. The first profile with a matching pattern is used.
	// Examples:
	//   - "obra_*.bc3"
	//   - "presto/**/*.bc3"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Spreadsheet describes the layout of xlsx and csv sources.
	Spreadsheet SpreadsheetSettings `yaml:"spreadsheet"`

	// RewriteRules clean up budget text before validation and output.
	RewriteRules []RewriteRule `yaml:"rewrite_rules"`
}

// SpreadsheetSettings describes flat budget sheets.
type SpreadsheetSettings struct {
	// SheetName is the worksheet read and written in xlsx files.
	// Default: "Presupuesto"
	SheetName string `yaml:"sheet_name"`

	// Delimiter separates csv fields.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// HeaderRows are skipped when reading.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`
}

// =============================================================================
// REWRITE RULE STRUCTURE
// =============================================================================

// Fields a rewrite rule can target.
const (
	FieldCode        = "code"
	FieldUnit        = "unit"
	FieldDescription = "description"
	FieldTitle       = "title"
)

// RewriteRule applies a chain of actions to one budget field.
type RewriteRule struct {
	// Field is one of "code", "unit", "description" (items) or "title"
	// (chapters).
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []RewriteAction `yaml:"actions"`
}

// RewriteAction is a single rewrite step.
type RewriteAction struct {
	// Type is one of:
	//   - "trim", "uppercase", "lowercase"
	//   - "prepend_string", "append_string"     : Value is the text
	//   - "replace", "regex_replace"            : Find is replaced by Value
	//   - "lookup"                              : LookupTable maps whole values
	//   - "pad_zeros_to_length", "truncate"     : Value is the length
	Type string `yaml:"type"`

	Value string `yaml:"value"`

	Find string `yaml:"find,omitempty"`

	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration used when no file is given.
func Default() *MainConfig {
	cfg := &MainConfig{ContinueOnError: true}
	applyMainConfigDefaults(cfg)
	return cfg
}

// LoadMainConfig loads the main configuration from a YAML or TOML file and
// applies environment overrides.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read or parsed, or the result is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &MainConfig{ContinueOnError: true}
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		err = toml.Unmarshal(data, config)
	} else {
		err = yaml.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return finish(config)
}

// LoadFromEnv returns the defaults with environment overrides applied.
func LoadFromEnv() (*MainConfig, error) {
	return finish(&MainConfig{ContinueOnError: true})
}

func finish(config *MainConfig) (*MainConfig, error) {
	applyMainConfigDefaults(config)

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyMainConfigDefaults sets default values for any unset option.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = "./output_archive"
	}
	if config.ProfilesDir == "" {
		config.ProfilesDir = "./profiles"
	}
	if len(config.InputPatterns) == 0 {
		config.InputPatterns = []string{"*.bc3", "*.BC3", "*.json", "*.xlsx", "*.csv"}
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "{original}_{timestamp}"
	}
	if len(config.OutputFormats) == 0 {
		config.OutputFormats = []string{FormatBC3, FormatJSON}
	}
	if len(config.InputEncodings) == 0 {
		config.InputEncodings = slices.Clone(bc3.DefaultInputEncodings)
	}
	if config.OutputEncoding == "" {
		config.OutputEncoding = bc3.DefaultOutputEncoding
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = bc3.DefaultMaxDepth
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.ArchiveCompression == "" {
		config.ArchiveCompression = CompressionNone
	}
	if config.Validation.MaxDescriptionLength == 0 {
		config.Validation.MaxDescriptionLength = 500
	}
}

// validateMainConfig rejects values no component can work with.
func validateMainConfig(config *MainConfig) error {
	for i, format := range config.OutputFormats {
		format = strings.ToLower(strings.TrimSpace(format))
		if !slices.Contains(SupportedFormats, format) {
			return fmt.Errorf("unsupported output format %q (supported: %s)", format, strings.Join(SupportedFormats, ", "))
		}
		config.OutputFormats[i] = format
	}

	switch config.ArchiveCompression {
	case CompressionNone, CompressionGzip, CompressionZstd:
	default:
		return fmt.Errorf("unsupported archive compression %q", config.ArchiveCompression)
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}
	if config.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", config.MaxDepth)
	}

	for _, pattern := range config.InputPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid input pattern %q", pattern)
		}
	}
	return nil
}

// EnsureDirectories creates the working directories that do not exist yet.
func (c *MainConfig) EnsureDirectories() error {
	for _, dir := range []string{c.InputDir, c.OutputDir, c.InputArchiveDir, c.OutputArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LoadProfiles loads every profile in a directory, in file name order. A
// missing directory yields no profiles.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile YAML files.
//
// RETURNS:
//   - The profiles, sorted by file name.
//   - An error if any file cannot be parsed.
func LoadProfiles(profilesDir string) ([]*Profile, error) {
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)
	slices.Sort(files)

	var profiles []*Profile
	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func loadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if profile.Code == "" {
		profile.Code = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}
	for _, pattern := range profile.FileMatchingPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid file matching pattern %q", pattern)
		}
	}

	applyProfileDefaults(&profile)
	return &profile, nil
}

// DefaultProfile is used for files no profile matches.
func DefaultProfile() *Profile {
	p := &Profile{Name: "default", Code: "default"}
	applyProfileDefaults(p)
	return p
}

func applyProfileDefaults(profile *Profile) {
	if profile.Name == "" {
		profile.Name = profile.Code
	}
	if profile.Spreadsheet.SheetName == "" {
		profile.Spreadsheet.SheetName = "Presupuesto"
	}
	if profile.Spreadsheet.Delimiter == "" {
		profile.Spreadsheet.Delimiter = ","
	}
	if profile.Spreadsheet.HeaderRows == 0 {
		profile.Spreadsheet.HeaderRows = 1
	}
}

// SelectProfile returns the first profile with a pattern matching the path,
// relative to the input directory, or DefaultProfile when none does.
func SelectProfile(profiles []*Profile, relPath string) *Profile {
	relPath = filepath.ToSlash(relPath)
	for _, p := range profiles {
		for _, pattern := range p.FileMatchingPatterns {
			if ok, _ := doublestar.Match(pattern, relPath); ok {
				return p
			}
		}
	}
	return DefaultProfile()
}
