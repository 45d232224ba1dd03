package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
)

// Collection is the storage contract shared by every entity.  Reads return
// copies; writes take a pointer so generated ids, timestamps and versions
// flow back to the caller.
type Collection[T any] interface {
	Find(ctx context.Context, q query.Query) ([]T, error)
	FindOne(ctx context.Context, filters ...query.Filter) (T, error)
	Get(ctx context.Context, id uint64) (T, error)
	Count(ctx context.Context, filters ...query.Filter) (int, error)
	Insert(ctx context.Context, doc *T) error
	Replace(ctx context.Context, doc *T) error
	Delete(ctx context.Context, id uint64) error
}

// Kind is the storage type of a field.  It drives conversion of query
// string operands and comparisons in the memory store.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindDecimal
	// KindJSON columns are stored but cannot be filtered or sorted.
	KindJSON
)

// Field maps a json name to a column.  Get returns the column value in the
// representation convert produces for the same kind (int64 for KindInt and
// so on), or nil for NULL.  FoldCase makes unique checks on the field
// ignore case, matching the column's case-insensitive collation.
type Field[T any] struct {
	Name     string
	Column   string
	Kind     Kind
	Hidden   bool
	FoldCase bool
	Get      func(*T) any
}

// Schema describes how an entity is stored.  Fields list every column
// except id in insert order; Scan reads a row selected as id followed by
// the same columns.  Unique lists field name groups that must not repeat.
type Schema[T any] struct {
	Table  string
	Fields []Field[T]
	Unique [][]string
	Meta   func(*T) *model.Meta
	Scan   func(scan func(dest ...any) error) (T, error)
}

func (s *Schema[T]) field(name string) (Field[T], bool) {
	if name == "id" {
		return Field[T]{Name: "id", Column: "id", Kind: KindInt, Get: func(d *T) any { return int64(s.Meta(d).ID) }}, true
	}
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field[T]{}, false
}

// resolve checks that a filter or sort may target name.
func (s *Schema[T]) resolve(name string, trusted bool) (Field[T], error) {
	f, ok := s.field(name)
	if !ok || (f.Hidden && !trusted) {
		return Field[T]{}, &FieldError{Field: name, Reason: "unknown field"}
	}
	if f.Kind == KindJSON {
		return Field[T]{}, &FieldError{Field: name, Reason: "field cannot be queried"}
	}
	return f, nil
}

func (s *Schema[T]) columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Column
	}
	return cols
}

// convert parses a query string operand into the representation used for
// the field's kind.
func convert(f string, kind Kind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, &CastError{Path: f, Value: raw}
		}
		return n, nil
	case KindFloat:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &CastError{Path: f, Value: raw}
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &CastError{Path: f, Value: raw}
		}
		return b, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, &CastError{Path: f, Value: raw}
	case KindDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, &CastError{Path: f, Value: raw}
		}
		return d, nil
	}
	return raw, nil
}

// compare orders two values of the same kind.  nil sorts before anything
// else.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case int64:
		return cmpOrdered(x, b.(int64))
	case float64:
		return cmpOrdered(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	}
	return 0
}

func cmpOrdered[V int64 | float64](a, b V) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
