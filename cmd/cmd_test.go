package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBC3 = `~V|FIEBDC-3/2004|~K|1|Obra Test|~D|##|CAP1\1\\|~C|CAP1||Capítulo 1|0||0|~D|CAP1|I1\2\\|~C|I1|m2|Item uno|10,50||1|~`

// workspace is a temporary set of converter directories with a config file
// pointing at them.
type workspace struct {
	root   string
	config string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()
	cfg := fmt.Sprintf(`input_dir: %[1]s/input
output_dir: %[1]s/output
input_archive_dir: %[1]s/input_archive
output_archive_dir: %[1]s/output_archive
profiles_dir: %[1]s/profiles
output_formats: [json, xml]
output_name_format: "{original}"
max_concurrency: 2
log_level: error
`, filepath.ToSlash(root))

	ws := &workspace{root: root, config: filepath.Join(root, "config.yaml")}
	require.NoError(t, os.WriteFile(ws.config, []byte(cfg), 0644))
	for _, dir := range []string{"input", "profiles"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	}
	return ws
}

func (ws *workspace) path(parts ...string) string {
	return filepath.Join(append([]string{ws.root}, parts...)...)
}

func (ws *workspace) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := ws.path(rel)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with fresh flag values and returns what it
// printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dryRun, filePath, profileCode, pruneArchives = false, "", "", 0
	inspectJSON, verbose = false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "input/obra.bc3", sampleBC3)
	ws.write(t, "input/vacio.bc3", "~V|FIEBDC-3/2004|~")

	out, err := execute(t, "convert", "--config", ws.config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 file(s) failed")

	assert.Contains(t, out, "Found 2 file(s) to convert")
	assert.Contains(t, out, "✓ obra.bc3 -> obra.json, obra.xml")
	assert.Contains(t, out, "✗ vacio.bc3")
	assert.Contains(t, out, "Successful:      1")

	assert.FileExists(t, ws.path("output", "obra.json"))
	assert.FileExists(t, ws.path("output", "obra.xml"))
	assert.FileExists(t, ws.path("input_archive", "obra.bc3"))
	assert.FileExists(t, ws.path("input", "vacio.bc3"))

	logs, err := filepath.Glob(ws.path("output_archive", "error_log_*.txt"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	summaries, err := filepath.Glob(ws.path("output_archive", "processing_summary_*.txt"))
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestConvertDryRun(t *testing.T) {
	ws := newWorkspace(t)
	input := ws.write(t, "input/obra.bc3", sampleBC3)

	out, err := execute(t, "convert", "--config", ws.config, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ obra.bc3 -> (dry run)")

	assert.FileExists(t, input)
	entries, err := os.ReadDir(ws.path("output"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvertUnknownProfile(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "input/obra.bc3", sampleBC3)

	_, err := execute(t, "convert", "--config", ws.config, "--profile", "nope")
	assert.ErrorContains(t, err, `profile "nope" not found`)
}

func TestConvertNothingToDo(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "convert", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "No budget files found")
}

func TestInspectCommand(t *testing.T) {
	ws := newWorkspace(t)
	input := ws.write(t, "input/obra.bc3", sampleBC3)

	out, err := execute(t, "inspect", input, "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "BUDGET")
	assert.Contains(t, out, "Title:    Obra Test")
	assert.Contains(t, out, "bc3 (profile default)")
	assert.Contains(t, out, "└─ CAP1 Capítulo 1")
	assert.Contains(t, out, "I1 Item uno  2 m2 x 10.50")
	assert.Contains(t, out, "21.00")
	assert.NotContains(t, out, "DIAGNOSTICS")

	out, err = execute(t, "inspect", input, "--config", ws.config, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"title": "Obra Test"`)

	// Nothing is moved by inspect.
	assert.FileExists(t, input)
}

func TestInspectReportsDiagnostics(t *testing.T) {
	ws := newWorkspace(t)
	input := ws.write(t, "input/roto.bc3", `~V|FIEBDC-3/2004|~D|##|CAP1\1\\|~C|CAP1||Capítulo|0||0|~D|CAP1|FALTA\1\\|~`)

	out, err := execute(t, "inspect", input, "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "DIAGNOSTICS")
	assert.Contains(t, out, "FALTA")
}

func TestValidateConfiguration(t *testing.T) {
	ws := newWorkspace(t)
	ws.write(t, "profiles/presto.yaml", `
file_matching_patterns: ["presto_*.bc3"]
rewrite_rules:
  - field: description
    actions:
      - type: trim
`)

	out, err := execute(t, "validate", "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ profile presto (1 pattern(s), 1 rule(s))")
	assert.Contains(t, out, "Configuration is valid (1 profile(s)).")

	ws.write(t, "profiles/roto.yaml", `
rewrite_rules:
  - field: description
    actions:
      - type: shout
`)
	out, err = execute(t, "validate", "--config", ws.config)
	assert.ErrorContains(t, err, "1 profile(s) have invalid rewrite rules")
	assert.Contains(t, out, "✗ profile roto")
}

func TestValidateFiles(t *testing.T) {
	ws := newWorkspace(t)
	good := ws.write(t, "input/obra.bc3", sampleBC3)
	bad := ws.write(t, "input/malo.json", `{"chapters":[{"code":"C01","title":"Uno","items":[{"code":"E01","description":"x","price":"-1"}]}]}`)

	out, err := execute(t, "validate", good, "--config", ws.config)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ obra.bc3: valid")

	out, err = execute(t, "validate", good, bad, "--config", ws.config)
	assert.ErrorContains(t, err, "1 of 2 file(s) failed validation")
	assert.Contains(t, out, "✗ malo.json: 1 error(s)")
	assert.Contains(t, out, "price must not be negative")

	assert.FileExists(t, good)
}

func TestMissingExplicitConfig(t *testing.T) {
	_, err := execute(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load main config")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "BC3 Format: FIEBDC-3/2004")
}
