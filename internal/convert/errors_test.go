package convert

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epimorphics/dclib-sub000/internal/expr"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/template"
	"github.com/epimorphics/dclib-sub000/internal/value"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RowErrorCode
	}{
		{"abort", &expr.AbortError{Msg: "stop"}, ErrCodeAborted},
		{"wrapped abort", fmt.Errorf("apply: %w", &expr.AbortError{}), ErrCodeAborted},
		{"depth", &template.DepthExceededError{Limit: 3}, ErrCodeDepthExceeded},
		{"coercion", &pattern.CoercionError{Pattern: "{x}", Value: "a b", Reason: "not an absolute URI"}, ErrCodeCoercion},
		{"unresolved", &template.UnresolvedRefError{Name: "gone"}, ErrCodeUnresolvedRef},
		{"hierarchy", &template.HierarchyError{Template: "h", Message: "level gap"}, ErrCodeHierarchy},
		{"other", errors.New("disk full"), ErrCodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestRowError(t *testing.T) {
	cause := &template.UnresolvedRefError{Name: "gone"}
	re := newRowError(4, 6, cause)

	assert.Equal(t, `row 4 (line 6): UNRESOLVED_REF: no template named "gone"`, re.Error())
	assert.ErrorIs(t, re, cause)
	assert.True(t, IsRowError(fmt.Errorf("wrapped: %w", re)))
	assert.False(t, IsRowError(cause))
	assert.False(t, IsAbortError(re))

	re.Line = 0
	assert.Equal(t, `row 4: UNRESOLVED_REF: no template named "gone"`, re.Error())
}

func TestDiagnostics(t *testing.T) {
	d := NewDiagnostics(quiet)

	d.Begin(1, 2)
	d.Report(value.Error{Msg: "odd date"})
	assert.False(t, d.RowFailed(), "warnings do not fail a row")

	d.Begin(2, 3)
	d.Report(value.Fatalf("no match for %q", "x"))
	assert.True(t, d.RowFailed())

	d.Begin(3, 4)
	assert.False(t, d.RowFailed(), "Begin resets the row state")
	d.Fail(&RowError{Code: ErrCodeHierarchy, Message: "level gap"})

	assert.Equal(t, []Diagnostic{
		{Row: 1, Line: 2, Severity: SeverityWarning, Message: "odd date"},
		{Row: 2, Line: 3, Severity: SeverityError, Code: ErrCodeFatalValue, Message: `no match for "x"`},
		{Row: 3, Line: 4, Severity: SeverityError, Code: ErrCodeHierarchy, Message: "level gap"},
	}, d.Items())
	assert.Equal(t, 1, d.Count(SeverityWarning))
	assert.Equal(t, 2, d.Count(SeverityError))
	assert.True(t, d.HasErrors())
}

func TestDiagnostics_ItemsIsACopy(t *testing.T) {
	d := NewDiagnostics(nil)
	d.Report(value.Error{Msg: "w"})
	items := d.Items()
	items[0].Message = "changed"
	assert.Equal(t, "w", d.Items()[0].Message)
	assert.False(t, d.HasErrors())
}
