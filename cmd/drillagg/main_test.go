package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drillagg/internal/config"
	"drillagg/internal/infrastructure"
	"drillagg/internal/services"
	"drillagg/internal/workbook/workbooktest"
)

const holeRecords = "hole_number,depth,date\nH1,12.3,2024-01-01\nH2,9.8,2024-01-02\n"

// isolate points config and run state lookups at empty temp directories
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DRILLAGG_CONFIG", "")
	t.Setenv("DRILLAGG_LOGGING_LEVEL", "error")
	t.Setenv("DRILLAGG_AGGREGATE_INPUT_DIR", "")
	t.Setenv("DRILLAGG_AGGREGATE_OUTPUT_FILE", "")
	t.Setenv("DRILLAGG_DATABASE_URL", "")

	infrastructure.ResetLoggerForTesting()
	t.Cleanup(infrastructure.ResetLoggerForTesting)
}

func holeLogDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	header := []any{"Hole Number", "Depth"}
	workbooktest.Write(t, dir, "A.xlsx", "A", workbooktest.HoleLog("2024-01-01", header, []any{"H1", 12.3}))
	workbooktest.Write(t, dir, "B.xlsx", "B", workbooktest.HoleLog("2024-01-02", header, []any{"H2", 9.8}))
	return dir
}

// execute runs a fresh root command and returns what it wrote to stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, "flag", fallback("flag", "config", "state"))
	assert.Equal(t, "config", fallback("", "config", "state"))
	assert.Equal(t, "state", fallback("", "", "state"))
	assert.Equal(t, "", fallback("", ""))
}

func TestLastRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	assert.Equal(t, config.LastRun{}, lastRun(path))
	assert.Equal(t, config.LastRun{}, lastRun(""))

	require.NoError(t, config.SaveState(path, &config.State{
		LastRun: &config.LastRun{InputDir: "/data/holes", OutputFile: "out.csv"},
	}))
	last := lastRun(path)
	assert.Equal(t, "/data/holes", last.InputDir)
	assert.Equal(t, "out.csv", last.OutputFile)
}

func TestWritePreview(t *testing.T) {
	var buf bytes.Buffer
	err := writePreview(&buf, &services.Preview{
		Header:  []string{"hole_number", "date"},
		Records: [][]string{{"H1", "2024-01-01"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hole_number,date\nH1,2024-01-01\n", buf.String())
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["list"])
	assert.True(t, names["serve"])

	run, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	for _, flag := range []string{"input", "output", "format", "bom", "strict", "remarks-mode", "workers", "sheet", "db-table"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
}

func TestRunCommandPrintsWithoutOutput(t *testing.T) {
	isolate(t)
	dir := holeLogDir(t)

	out, err := execute(t, "run", "--input", dir)
	require.NoError(t, err)
	assert.Equal(t, holeRecords, out)
}

func TestRunCommandOutputFallback(t *testing.T) {
	isolate(t)
	dir := holeLogDir(t)
	target := filepath.Join(t.TempDir(), "combined.txt")

	out, err := execute(t, "run", "-i", dir, "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, holeRecords, readFile(t, target))

	// A new input without --output prints and leaves the earlier file alone.
	require.NoError(t, os.WriteFile(target, []byte("edited\n"), 0o644))
	out, err = execute(t, "run", "-i", dir)
	require.NoError(t, err)
	assert.Equal(t, holeRecords, out)
	assert.Equal(t, "edited\n", readFile(t, target))

	// Repeating the previous run reuses its output file.
	_, err = execute(t, "run", "-i", dir, "-o", target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target, []byte("edited\n"), 0o644))
	out, err = execute(t, "run")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, holeRecords, readFile(t, target))

	// "-" prints even when the repeated run had an output file.
	require.NoError(t, os.WriteFile(target, []byte("edited\n"), 0o644))
	out, err = execute(t, "run", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, holeRecords, out)
	assert.Equal(t, "edited\n", readFile(t, target))
}

func TestRunCommandConfiguredOutput(t *testing.T) {
	isolate(t)
	dir := holeLogDir(t)
	target := filepath.Join(t.TempDir(), "configured.txt")
	t.Setenv("DRILLAGG_AGGREGATE_OUTPUT_FILE", target)

	out, err := execute(t, "run", "-i", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, holeRecords, readFile(t, target))

	require.NoError(t, os.Remove(target))
	out, err = execute(t, "run", "-i", dir, "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, holeRecords, out)
	assert.NoFileExists(t, target)
}

func TestRunCommandRequiresInput(t *testing.T) {
	isolate(t)

	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no input directory")
}

func TestListCommand(t *testing.T) {
	isolate(t)
	dir := holeLogDir(t)

	out, err := execute(t, "list", "--input", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "  1  A.xlsx")
	assert.Contains(t, out, "  2  B.xlsx")
}
