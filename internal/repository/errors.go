// Package repository stores documents in MySQL or in memory behind one
// generic Collection interface.  The error values below let the API layer
// tell a missing document from a bad identifier, a uniqueness conflict or a
// rejected query without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned when no document matches an id or filter.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// document owned by someone else.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a replace loses an optimistic concurrency
// race: the stored version moved on since the document was read.
var ErrConflict = errors.New("conflict")

// CastError reports a value that cannot be converted to the type of the
// field it targets.  Malformed ids are CastErrors on the "id" path.
type CastError struct {
	Path  string
	Value string
}

func (e *CastError) Error() string { return fmt.Sprintf("Invalid %s: %s.", e.Path, e.Value) }

// DuplicateError reports a unique constraint violation.
type DuplicateError struct {
	Key   string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Duplicate field value: %s. Please use another value!", e.Value)
}

// FieldError reports a filter or sort on a field that does not exist or
// cannot be queried by clients.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

// ParseID converts a path parameter into a document id.
func ParseID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, &CastError{Path: "id", Value: raw}
	}
	return id, nil
}
