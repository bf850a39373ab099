package convert

import (
	"log/slog"

	"github.com/epimorphics/dclib-sub000/internal/value"
)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one message about the run. Row is 0 for the preamble.
type Diagnostic struct {
	Row      int          `json:"row"`
	Line     int          `json:"line,omitempty"`
	Severity Severity     `json:"severity"`
	Code     RowErrorCode `json:"code,omitempty"`
	Message  string       `json:"message"`
}

// Diagnostics collects the messages of one run, numbered by the row being
// processed. It implements pattern.Reporter so error values found while
// evaluating patterns land on the current row.
//
// Diagnostics belongs to one run and is not safe for concurrent use.
type Diagnostics struct {
	logger *slog.Logger
	items  []Diagnostic
	row    int
	line   int
	failed bool
}

// NewDiagnostics creates an empty collection logging through logger.
func NewDiagnostics(logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{logger: logger}
}

// Begin starts collecting for a row; row 0 is the preamble.
func (d *Diagnostics) Begin(row, line int) {
	d.row = row
	d.line = line
	d.failed = false
}

// Report records an error value. Fatal values fail the current row.
func (d *Diagnostics) Report(e value.Error) {
	if e.Fatal {
		d.add(Diagnostic{Severity: SeverityError, Code: ErrCodeFatalValue, Message: e.Msg})
		return
	}
	d.add(Diagnostic{Severity: SeverityWarning, Message: e.Msg})
}

// Fail records a hard row failure.
func (d *Diagnostics) Fail(err *RowError) {
	d.add(Diagnostic{Severity: SeverityError, Code: err.Code, Message: err.Message})
}

func (d *Diagnostics) add(diag Diagnostic) {
	diag.Row = d.row
	diag.Line = d.line
	d.items = append(d.items, diag)
	if diag.Severity == SeverityError {
		d.failed = true
		d.logger.Error("row failed", "row", diag.Row, "line", diag.Line, "code", string(diag.Code), "message", diag.Message)
		return
	}
	d.logger.Warn("row warning", "row", diag.Row, "line", diag.Line, "message", diag.Message)
}

// RowFailed reports whether the current row has an error.
func (d *Diagnostics) RowFailed() bool { return d.failed }

// Items returns the diagnostics in the order they were recorded.
func (d *Diagnostics) Items() []Diagnostic {
	return append([]Diagnostic(nil), d.items...)
}

// Count returns the number of diagnostics of severity s.
func (d *Diagnostics) Count(s Severity) int {
	n := 0
	for _, item := range d.items {
		if item.Severity == s {
			n++
		}
	}
	return n
}

// HasErrors reports whether any diagnostic is an error.
func (d *Diagnostics) HasErrors() bool { return d.Count(SeverityError) > 0 }
