package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a template and a scenario into dir and returns the
// scenario path.
func writeScenario(t *testing.T, dir, body string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.json"), []byte(`{"@id": "<http://example.com/{id}>"}`), 0o644))
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: valid
description: a valid scenario
templates: [t.json]
csv: |
  id
  1
bindings:
  region: North
expect:
  status: succeeded
assertions:
  - type: count
    count: 0
  - type: row_state
    row: 1
    state: skipped
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "valid", s.Name)
	assert.Equal(t, []string{filepath.Join(dir, "t.json")}, s.Templates, "paths resolve against the scenario directory")
	assert.Equal(t, "id\n1\n", s.CSV)
	assert.Equal(t, map[string]string{"region": "North"}, s.Bindings)
	assert.Equal(t, "succeeded", s.Expect.Status)
	require.Len(t, s.Assertions, 2)
	assert.Equal(t, AssertRowState, s.Assertions[1].Type)
	assert.Equal(t, "skipped", s.Assertions[1].State)
}

func TestLoadScenario_InputPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.csv"), []byte("id\n1\n"), 0o644))
	path := writeScenario(t, dir, `
name: input
description: reads a csv file
templates: [t.json]
input: in.csv
expect:
  status: succeeded
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "in.csv"), s.Input)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: typo
description: misspelled key
templates: [t.json]
csv: "id\n1\n"
expect:
  status: succeeded
assertion: []
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no name", "description: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\n", "name is required"},
		{"no description", "name: n\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\n", "description is required"},
		{"no templates", "name: n\ndescription: d\ncsv: x\nexpect: {status: succeeded}\n", "templates list is required"},
		{"missing template", "name: n\ndescription: d\ntemplates: [gone.json]\ncsv: x\nexpect: {status: succeeded}\n", "template file not found"},
		{"no input", "name: n\ndescription: d\ntemplates: [t.json]\nexpect: {status: succeeded}\n", "one of input or csv"},
		{"both inputs", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\ninput: t.json\nexpect: {status: succeeded}\n", "mutually exclusive"},
		{"missing input", "name: n\ndescription: d\ntemplates: [t.json]\ninput: gone.csv\nexpect: {status: succeeded}\n", "input file not found"},
		{"no expectation", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\n", "expect needs a status or an error"},
		{"bad status", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: done}\n", `unknown status "done"`},
		{"assertion without type", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{count: 1}]\n", "assertions[0]: type is required"},
		{"unknown assertion", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: trace_order}]\n", `unknown assertion type "trace_order"`},
		{"contains without triples", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: contains}]\n", "triples list is required for contains"},
		{"row_state without row", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: row_state, state: failed}]\n", "row is required"},
		{"row_state without state", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: row_state, row: 1}]\n", "state is required"},
		{"diagnostic without code", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: diagnostic, row: 1}]\n", "code is required"},
		{"select without patterns", "name: n\ndescription: d\ntemplates: [t.json]\ncsv: x\nexpect: {status: succeeded}\nassertions: [{type: select, count: 1}]\n", "patterns list is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tc.body)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDiscover(t *testing.T) {
	paths, err := Discover(scenarioDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(scenarioDir, "abort.yaml"),
		filepath.Join(scenarioDir, "concept-scheme.yaml"),
		filepath.Join(scenarioDir, "graph-lookup.yaml"),
		filepath.Join(scenarioDir, "hierarchy-levels.yaml"),
		filepath.Join(scenarioDir, "lookup-miss.yaml"),
		filepath.Join(scenarioDir, "no-root.yaml"),
	}, paths)

	one := filepath.Join(scenarioDir, "abort.yaml")
	paths, err = Discover(one)
	require.NoError(t, err)
	assert.Equal(t, []string{one}, paths)

	_, err = Discover(filepath.Join(scenarioDir, "missing"))
	var nf *ScenarioNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, filepath.Join(scenarioDir, "missing"), nf.Path)
}
