package template

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// LoadErrorCode categorizes template loading errors.
type LoadErrorCode string

const (
	// ErrCodeParse indicates the document is not valid JSON or CUE.
	ErrCodeParse LoadErrorCode = "PARSE"

	// ErrCodeShape indicates a value has the wrong kind, such as a number
	// where a pattern string is expected.
	ErrCodeShape LoadErrorCode = "SHAPE"

	// ErrCodeUnknownType indicates an unrecognized "type" value.
	ErrCodeUnknownType LoadErrorCode = "UNKNOWN_TYPE"

	// ErrCodeMissingField indicates a required key is absent.
	ErrCodeMissingField LoadErrorCode = "MISSING_FIELD"

	// ErrCodeDuplicateName indicates two templates or sources share a name.
	ErrCodeDuplicateName LoadErrorCode = "DUPLICATE_NAME"

	// ErrCodeSource indicates a lookup source could not be built.
	ErrCodeSource LoadErrorCode = "SOURCE"
)

// LoadError represents an error in a template document, with the position
// of the offending value when known.
type LoadError struct {
	Code    LoadErrorCode
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	where := ""
	if e.Pos.IsValid() {
		where = fmt.Sprintf("%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Field != "" {
		return fmt.Sprintf("%s%s: %s: %s", where, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s%s: %s", where, e.Code, e.Message)
}

// IsLoadError returns true if err is or wraps a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// DepthExceededError is returned when template delegation nests deeper
// than the configured limit, usually because of a reference cycle.
type DepthExceededError struct {
	Template string
	Depth    int
	Limit    int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("template %s exceeded max depth: %d > %d limit", e.Template, e.Depth, e.Limit)
}

// IsDepthExceededError returns true if err is or wraps a DepthExceededError.
func IsDepthExceededError(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}

// UnresolvedRefError is returned when a reference names no registered
// template.
type UnresolvedRefError struct {
	Name string
}

func (e *UnresolvedRefError) Error() string {
	return fmt.Sprintf("no template named %q", e.Name)
}

// HierarchyError reports input that breaks a hierarchy's ordering
// precondition.
type HierarchyError struct {
	Template string
	Message  string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("hierarchy %s: %s", e.Template, e.Message)
}
