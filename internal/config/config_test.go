package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/bc3-budget-converter/internal/bc3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{FormatBC3, FormatJSON}, cfg.OutputFormats)
	assert.Equal(t, "ISO-8859-1", cfg.OutputEncoding)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.True(t, cfg.ContinueOnError)
	assert.Equal(t, CompressionNone, cfg.ArchiveCompression)
	assert.Equal(t, 500, cfg.Validation.MaxDescriptionLength)
}

func TestDefaultFollowsBC3Defaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, bc3.DefaultInputEncodings, cfg.InputEncodings)
	assert.Equal(t, bc3.DefaultOutputEncoding, cfg.OutputEncoding)
	assert.Equal(t, bc3.DefaultMaxDepth, cfg.MaxDepth)

	// The config gets its own copy of the encoding list.
	cfg.InputEncodings[0] = "ISO-8859-15"
	assert.Equal(t, "UTF-8", bc3.DefaultInputEncodings[0])
}

func TestLoadMainConfigYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
input_dir: ./obras
output_formats: [BC3, xlsx, xml]
max_concurrency: 2
continue_on_error: false
archive_compression: zstd
validation:
  max_description_length: 120
  fail_on_warnings: true
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./obras", cfg.InputDir)
	assert.Equal(t, "./output", cfg.OutputDir)
	assert.Equal(t, []string{"bc3", "xlsx", "xml"}, cfg.OutputFormats)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.False(t, cfg.ContinueOnError)
	assert.Equal(t, CompressionZstd, cfg.ArchiveCompression)
	assert.Equal(t, 120, cfg.Validation.MaxDescriptionLength)
	assert.True(t, cfg.Validation.FailOnWarnings)
}

func TestLoadMainConfigTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", `
input_dir = "./toml_in"
output_formats = ["json", "csv"]
input_encodings = ["windows-1252"]

[validation]
max_description_length = 80
`)

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./toml_in", cfg.InputDir)
	assert.Equal(t, []string{"json", "csv"}, cfg.OutputFormats)
	assert.Equal(t, []string{"windows-1252"}, cfg.InputEncodings)
	assert.Equal(t, 80, cfg.Validation.MaxDescriptionLength)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BC3CONV_LOG_LEVEL", "debug")
	t.Setenv("BC3CONV_MAX_CONCURRENCY", "8")
	t.Setenv("BC3CONV_OUTPUT_FORMATS", "xml,csv")
	t.Setenv("BC3CONV_VALIDATION_FAIL_ON_WARNINGS", "true")

	path := writeFile(t, t.TempDir(), "config.yaml", "log_level: warn\nmax_concurrency: 1\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, []string{"xml", "csv"}, cfg.OutputFormats)
	assert.True(t, cfg.Validation.FailOnWarnings)

	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMainConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadMainConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	tests := map[string]string{
		"broken.yaml":      "input_dir: [unterminated",
		"format.yaml":      "output_formats: [pdf]",
		"compression.yaml": "archive_compression: rar",
		"concurrency.yaml": "max_concurrency: -1",
		"pattern.yaml":     "input_patterns: ['[']",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadMainConfig(writeFile(t, dir, name, content))
			assert.Error(t, err)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.InputDir = filepath.Join(root, "in")
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.InputArchiveDir = filepath.Join(root, "archive", "in")
	cfg.OutputArchiveDir = filepath.Join(root, "archive", "out")

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir} {
		assert.DirExists(t, dir)
	}
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_presto.yaml", `
name: Presto exports
file_matching_patterns: ["presto/**/*.bc3"]
rewrite_rules:
  - field: description
    actions:
      - type: trim
`)
	writeFile(t, dir, "a_sheets.yml", `
code: sheets
file_matching_patterns: ["*.xlsx", "*.csv"]
spreadsheet:
  sheet_name: Mediciones
  delimiter: ";"
`)

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	assert.Equal(t, "sheets", profiles[0].Code)
	assert.Equal(t, "Mediciones", profiles[0].Spreadsheet.SheetName)
	assert.Equal(t, ";", profiles[0].Spreadsheet.Delimiter)
	assert.Equal(t, 1, profiles[0].Spreadsheet.HeaderRows)

	assert.Equal(t, "b_presto", profiles[1].Code)
	assert.Equal(t, "Presto exports", profiles[1].Name)
	require.Len(t, profiles[1].RewriteRules, 1)
	assert.Equal(t, FieldDescription, profiles[1].RewriteRules[0].Field)

	assert.Equal(t, "b_presto", SelectProfile(profiles, "presto/2024/obra.bc3").Code)
	assert.Equal(t, "sheets", SelectProfile(profiles, "mediciones.csv").Code)

	def := SelectProfile(profiles, "obra.bc3")
	assert.Equal(t, "default", def.Code)
	assert.Equal(t, "Presupuesto", def.Spreadsheet.SheetName)
}

func TestLoadProfilesMissingDir(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadProfilesInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "file_matching_patterns: ['[']\n")

	_, err := LoadProfiles(dir)
	assert.Error(t, err)
}
