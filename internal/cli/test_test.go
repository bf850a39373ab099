package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_ReportsFailures(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, stdout, "✓ offices")
	assert.Contains(t, stdout, "✗ wrong-count")
	assert.Contains(t, stdout, "Expected: 7 statements")
	assert.Contains(t, stdout, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios", "--filter", "off*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, stdout, "✓ All scenarios passed")
}

func TestTestCommand_NoMatches(t *testing.T) {
	stdout, _, err := execute(t, "test", "testdata/scenarios", "--filter", "zzz*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestTestCommand_JSON(t *testing.T) {
	stdout, _, err := execute(t, "--format", "json", "test", "testdata/scenarios")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.Equal(t, "offices", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[1].Errors)
}

func TestTestCommand_Golden(t *testing.T) {
	golden := t.TempDir()

	stdout, _, err := execute(t, "test", "testdata/scenarios/offices.yaml", "--golden", golden, "--update")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ offices (golden updated)")

	data, err := os.ReadFile(filepath.Join(golden, "offices.golden"))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(officesStatements, "\n")+"\n", string(data))

	_, _, err = execute(t, "test", "testdata/scenarios/offices.yaml", "--golden", golden)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "offices.golden"), []byte("stale\n"), 0644))
	stdout, _, err = execute(t, "test", "testdata/scenarios/offices.yaml", "--golden", golden)
	require.Error(t, err)
	assert.Contains(t, stdout, "do not match golden file")
}

func TestTestCommand_MissingGoldenUsesAssertions(t *testing.T) {
	_, _, err := execute(t, "test", "testdata/scenarios/offices.yaml", "--golden", t.TempDir())
	require.NoError(t, err)
}

func TestTestCommand_CommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing path", []string{"test", "testdata/none"}, "failed to find scenarios"},
		{"update without golden", []string{"test", "testdata/scenarios", "--update"}, "--update requires --golden"},
		{"bad filter", []string{"test", "testdata/scenarios", "--filter", "["}, "invalid filter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestTestCommand_LoadErrorFailsScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\n"), 0644))

	stdout, _, err := execute(t, "test", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ bad.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}
