package harness

import "github.com/epimorphics/dclib-sub000/internal/convert"

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expected outcome and every assertion matched.
	Pass bool `json:"pass"`

	// RunID is the id of the conversion run.
	RunID string `json:"run_id,omitempty"`

	// Status is the run status, empty if no run started.
	Status string `json:"status,omitempty"`

	// RunError is the error that ended the run early, if any.
	RunError string `json:"run_error,omitempty"`

	// Statements are the emitted statements as N-Triples lines, in
	// emission order. Used for golden comparison.
	Statements []string `json:"statements"`

	// Rows holds the final state of each data row, indexed from row 1.
	Rows []string `json:"rows,omitempty"`

	// Diagnostics are the run's per-row messages.
	Diagnostics []convert.Diagnostic `json:"diagnostics,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Statements: []string{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record copies a conversion result in.
func (r *Result) record(res *convert.Result) {
	r.RunID = res.RunID
	r.Status = string(res.Status)
	r.Diagnostics = res.Diagnostics
	r.Rows = make([]string, len(res.Rows))
	for i, row := range res.Rows {
		r.Rows[i] = row.State.String()
	}
}
