package convert

import (
	"errors"
	"fmt"

	"github.com/epimorphics/dclib-sub000/internal/expr"
	"github.com/epimorphics/dclib-sub000/internal/pattern"
	"github.com/epimorphics/dclib-sub000/internal/template"
)

// RowErrorCode categorizes row failures.
type RowErrorCode string

const (
	// ErrCodeNoTemplate indicates no template applied to the row.
	ErrCodeNoTemplate RowErrorCode = "NO_TEMPLATE"

	// ErrCodeCoercion indicates a value could not become the node a
	// pattern required.
	ErrCodeCoercion RowErrorCode = "COERCION"

	// ErrCodeFatalValue indicates an expression produced a fatal error
	// value, such as a required lookup with no match.
	ErrCodeFatalValue RowErrorCode = "FATAL_VALUE"

	// ErrCodeDepthExceeded indicates template delegation nested too deep.
	ErrCodeDepthExceeded RowErrorCode = "DEPTH_EXCEEDED"

	// ErrCodeUnresolvedRef indicates a reference to an unknown template.
	ErrCodeUnresolvedRef RowErrorCode = "UNRESOLVED_REF"

	// ErrCodeHierarchy indicates rows out of order for a hierarchy.
	ErrCodeHierarchy RowErrorCode = "HIERARCHY"

	// ErrCodeAborted indicates abort() was called.
	ErrCodeAborted RowErrorCode = "ABORTED"

	// ErrCodeInternal covers every other failure, such as a sink error.
	ErrCodeInternal RowErrorCode = "INTERNAL"
)

// DepthExceededError is returned when template delegation nests deeper
// than WithMaxDepth allows.
type DepthExceededError = template.DepthExceededError

// RowError is a failure tied to one input row.
type RowError struct {
	Code    RowErrorCode
	Row     int
	Line    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("row %d (line %d): %s: %s", e.Row, e.Line, e.Code, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Code, e.Message)
}

func (e *RowError) Unwrap() error { return e.Err }

// IsRowError returns true if err is or wraps a RowError.
func IsRowError(err error) bool {
	var re *RowError
	return errors.As(err, &re)
}

// IsAbortError returns true if err was raised by abort().
// Uses errors.As to handle wrapped errors.
func IsAbortError(err error) bool {
	var ae *expr.AbortError
	return errors.As(err, &ae)
}

// IsDepthError returns true if err is a delegation depth failure.
func IsDepthError(err error) bool {
	return template.IsDepthExceededError(err)
}

// classify maps a hard error from template dispatch to a row error code.
func classify(err error) RowErrorCode {
	var (
		ure *template.UnresolvedRefError
		he  *template.HierarchyError
	)
	switch {
	case IsAbortError(err):
		return ErrCodeAborted
	case IsDepthError(err):
		return ErrCodeDepthExceeded
	case pattern.IsCoercionError(err):
		return ErrCodeCoercion
	case errors.As(err, &ure):
		return ErrCodeUnresolvedRef
	case errors.As(err, &he):
		return ErrCodeHierarchy
	default:
		return ErrCodeInternal
	}
}

// newRowError wraps a dispatch error for a row.
func newRowError(row, line int, err error) *RowError {
	return &RowError{
		Code:    classify(err),
		Row:     row,
		Line:    line,
		Message: err.Error(),
		Err:     err,
	}
}
