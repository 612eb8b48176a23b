package domain

import (
	"fmt"
	"strings"
)

// SchemaError reports required columns absent from a user-supplied table.
// It is surfaced to the user verbatim; no fuzzy matching or partial
// ingestion is attempted.
type SchemaError struct {
	Missing []string // sorted
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// CoercionError reports a single cell that could not be converted to its
// required type. Under strict ingestion one coercion failure rejects the
// entire table.
type CoercionError struct {
	Row    int // zero-based data row index
	Column string
	Value  string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("row %d, column %q: cannot coerce %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }
