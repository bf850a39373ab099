package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conversion test scenario: templates, an input table
// and the outcome the conversion must have.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Templates lists template documents to load, in order.
	// Paths are relative to the scenario file location.
	Templates []string `yaml:"templates"`

	// Input is the path of the CSV file to convert. Exactly one of Input
	// and CSV is set.
	Input string `yaml:"input,omitempty"`

	// CSV is the input table written inline.
	CSV string `yaml:"csv,omitempty"`

	// Root names the root template; empty selects it from the header.
	Root string `yaml:"root,omitempty"`

	// Base overrides $base.
	Base string `yaml:"base,omitempty"`

	// Bindings are extra globals, as with --bind on the command line.
	Bindings map[string]string `yaml:"bindings,omitempty"`

	// Graph holds N-Triples statements stored before the conversion runs,
	// for graph lookup sources to query.
	Graph []string `yaml:"graph,omitempty"`

	// MaxDepth overrides the delegation depth limit.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Expect is the outcome of the run as a whole.
	Expect Expect `yaml:"expect"`

	// Assertions validate the produced statements and diagnostics.
	// Supported types: contains, not_contains, count, row_state,
	// diagnostic, select
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect describes how the run must end.
type Expect struct {
	// Status is the run status: succeeded, failed or aborted.
	Status string `yaml:"status,omitempty"`

	// Error is a substring of the error that ended the run early. A
	// scenario expecting an error passes only if the run returned one.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the conversion output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "contains": every statement in Triples was emitted
	// - "not_contains": no statement in Triples was emitted
	// - "count": exactly Count statements were emitted
	// - "row_state": row Row ended in State
	// - "diagnostic": row Row has a diagnostic with Code
	// - "select": the query of Patterns has Count solutions in the store
	Type string `yaml:"type"`

	// Triples are N-Triples statements (used by contains, not_contains).
	Triples []string `yaml:"triples,omitempty"`

	// Count is the expected number of statements or solutions.
	Count int `yaml:"count,omitempty"`

	// Row is a 1-based data row number (used by row_state, diagnostic).
	Row int `yaml:"row,omitempty"`

	// State is the expected row state (used by row_state).
	State string `yaml:"state,omitempty"`

	// Code is the expected diagnostic code (used by diagnostic).
	Code string `yaml:"code,omitempty"`

	// Patterns are triple patterns such as "?s skos:broader ?p"
	// (used by select). Terms are ?variables, N-Triples terms, prefixed
	// names or "a" for rdf:type.
	Patterns []string `yaml:"patterns,omitempty"`
}

// Assertion type constants.
const (
	AssertContains    = "contains"
	AssertNotContains = "not_contains"
	AssertCount       = "count"
	AssertRowState    = "row_state"
	AssertDiagnostic  = "diagnostic"
	AssertSelect      = "select"
)

// Run statuses a scenario may expect.
var validStatuses = map[string]bool{
	"succeeded": true,
	"failed":    true,
	"aborted":   true,
}

// LoadScenario reads and parses a scenario YAML file. Template and input
// paths are resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving template and input paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so "assertion:" vs "assertions:" typos surface.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if basePath != "" {
		for i, p := range scenario.Templates {
			scenario.Templates[i] = resolve(basePath, p)
		}
		if scenario.Input != "" {
			scenario.Input = resolve(basePath, scenario.Input)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Templates) == 0 {
		return fmt.Errorf("templates list is required and must be non-empty")
	}
	for _, p := range s.Templates {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("template file not found: %s", p)
		}
	}

	switch {
	case s.Input == "" && s.CSV == "":
		return fmt.Errorf("one of input or csv is required")
	case s.Input != "" && s.CSV != "":
		return fmt.Errorf("input and csv are mutually exclusive")
	case s.Input != "":
		if _, err := os.Stat(s.Input); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", s.Input)
		}
	}

	if s.Expect.Status == "" && s.Expect.Error == "" {
		return fmt.Errorf("expect needs a status or an error")
	}
	if s.Expect.Status != "" && !validStatuses[s.Expect.Status] {
		return fmt.Errorf("expect: unknown status %q", s.Expect.Status)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertContains, AssertNotContains:
		if len(a.Triples) == 0 {
			return fmt.Errorf("assertions[%d]: triples list is required for %s", index, a.Type)
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for count", index)
		}
	case AssertRowState:
		if a.Row < 1 {
			return fmt.Errorf("assertions[%d]: row is required for row_state", index)
		}
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for row_state", index)
		}
	case AssertDiagnostic:
		if a.Row < 0 {
			return fmt.Errorf("assertions[%d]: row must be non-negative for diagnostic", index)
		}
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for diagnostic", index)
		}
	case AssertSelect:
		if len(a.Patterns) == 0 {
			return fmt.Errorf("assertions[%d]: patterns list is required for select", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for select", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
