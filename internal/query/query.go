// Package query translates list-endpoint query strings into a typed read
// request: filters, sort order, field selection and pagination.  It performs
// no I/O; collections in the repository package execute the result.
package query

import (
	"fmt"
	"regexp"
)

// Op is a comparison operator understood by every collection.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"
	// VersionField is the internal write counter hidden from responses
	// unless explicitly selected.
	VersionField = "version"
)

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Filter is a single criterion.  Trusted filters are built by the server
// (parent scoping, soft-delete, secret tours) and may reference fields that
// clients are not allowed to query.
type Filter struct {
	Field   string
	Op      Op
	Values  []string
	Trusted bool
}

// Value returns the first operand.
func (f Filter) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// Where builds a trusted filter.
func Where(field string, op Op, values ...string) Filter {
	return Filter{Field: field, Op: op, Values: values, Trusted: true}
}

// SortField orders results by Field, descending when Desc is set.
type SortField struct {
	Field string
	Desc  bool
}

// Query is the refined read request handed to a collection.
type Query struct {
	Filters    []Filter
	Sort       []SortField
	Projection Projection
	Skip       int
	Take       int // 0 means no limit
}

// With returns a copy of q with extra filters appended.
func (q Query) With(filters ...Filter) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return out
}

// Error reports an unusable query parameter.
type Error struct {
	Param  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Invalid query parameter %s: %s", e.Param, e.Reason)
}
