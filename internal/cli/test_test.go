package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

const passingScenario = `name: tiny
description: one insert
steps:
  - op: insert_one
    document: { name: ann }
    expect:
      result: { insertedId: doc-1 }
assertions:
  - type: count
    filter: { name: ann }
    count: 1
`

const failingScenario = `name: broken
description: count assertion off by one
steps:
  - op: insert_one
    document: { name: ann }
assertions:
  - type: count
    filter: { name: ann }
    count: 2
`

func newTestCmd(format string, args ...string) (*bytes.Buffer, func() error) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute
}

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, execute := newTestCmd("text")
	err := execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, execute := newTestCmd("text", "/nonexistent/scenarios")
	err := execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, execute := newTestCmd("text", t.TempDir())
	require.NoError(t, execute())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, execute := newTestCmd("json", t.TempDir())
	require.NoError(t, execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestHelpText(t *testing.T) {
	buf, execute := newTestCmd("text", "--help")
	require.NoError(t, execute())

	output := buf.String()
	assert.Contains(t, output, "scenarios")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--golden")
	assert.Contains(t, output, "scenarios-dir")
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	buf, execute := newTestCmd("json", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, execute())

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 7, response.Data.Total)
	assert.Equal(t, 7, response.Data.Passed)
	for _, s := range response.Data.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	buf, execute := newTestCmd("text", harnessScenarios, "--golden", harnessGolden, "--filter", "scenario_*")
	require.NoError(t, execute())

	output := buf.String()
	assert.Contains(t, output, "✓ scenario_a_insert_find")
	assert.NotContains(t, output, "operators")
	assert.Contains(t, output, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, execute := newTestCmd("text", harnessScenarios, "--filter", "[")
	err := execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "tiny.yaml", passingScenario)

	buf, execute := newTestCmd("text", dir, "--update")
	require.NoError(t, execute())
	assert.Contains(t, buf.String(), "✓ tiny (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "tiny.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "tiny"`)

	buf, execute = newTestCmd("text", dir)
	require.NoError(t, execute())
	assert.Contains(t, buf.String(), "✓ All scenarios passed")

	// A stale golden file fails the scenario.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "tiny.golden"), []byte("{}\n"), 0o644))
	buf, execute = newTestCmd("text", dir)
	err = execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestTestCommand_Failures(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "tiny.yaml", passingScenario)
	writeScenario(t, dir, "broken.yaml", failingScenario)
	writeScenario(t, dir, "invalid.yml", "name: invalid\ndescription: no steps\nsteps: []\n")

	buf, execute := newTestCmd("json", dir)
	err := execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var response struct {
		Status string `json:"status"`
		Error  struct {
			Code    string     `json:"code"`
			Message string     `json:"message"`
			Details TestResult `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, "TEST_FAILED", response.Error.Code)
	assert.Equal(t, "2 scenario(s) failed", response.Error.Message)
	assert.Equal(t, 1, response.Error.Details.Passed)
}
