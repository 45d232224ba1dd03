package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/tour-booking/internal/query"
)

// memoryCollection keeps documents in a map guarded by a RWMutex.  It backs
// STORAGE_DRIVER=memory and the handler tests.
type memoryCollection[T any] struct {
	schema *Schema[T]
	mu     sync.RWMutex
	docs   map[uint64]T
	nextID uint64
	now    func() time.Time
}

func newMemoryCollection[T any](schema *Schema[T]) *memoryCollection[T] {
	return &memoryCollection[T]{
		schema: schema,
		docs:   make(map[uint64]T),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type boundFilter[T any] struct {
	field  Field[T]
	op     query.Op
	values []any
}

func bindFilters[T any](s *Schema[T], filters []query.Filter) ([]boundFilter[T], error) {
	out := make([]boundFilter[T], 0, len(filters))
	for _, f := range filters {
		field, err := s.resolve(f.Field, f.Trusted)
		if err != nil {
			return nil, err
		}
		b := boundFilter[T]{field: field, op: f.Op}
		for _, raw := range f.Values {
			v, err := convert(f.Field, field.Kind, raw)
			if err != nil {
				return nil, err
			}
			b.values = append(b.values, v)
		}
		if len(b.values) == 0 {
			return nil, &FieldError{Field: f.Field, Reason: "missing value"}
		}
		out = append(out, b)
	}
	return out, nil
}

func (b boundFilter[T]) match(doc *T) bool {
	v := b.field.Get(doc)
	switch b.op {
	case query.OpIn:
		for _, want := range b.values {
			if v != nil && compare(v, want) == 0 {
				return true
			}
		}
		return false
	case query.OpNe:
		return v == nil || compare(v, b.values[0]) != 0
	}
	if v == nil {
		return false
	}
	c := compare(v, b.values[0])
	switch b.op {
	case query.OpEq:
		return c == 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	}
	return false
}

func matchAll[T any](filters []boundFilter[T], doc *T) bool {
	for _, f := range filters {
		if !f.match(doc) {
			return false
		}
	}
	return true
}

func (m *memoryCollection[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	filters, err := bindFilters(m.schema, q.Filters)
	if err != nil {
		return nil, err
	}
	sortFields := make([]Field[T], len(q.Sort))
	for i, s := range q.Sort {
		if sortFields[i], err = m.schema.resolve(s.Field, false); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	out := make([]T, 0, len(m.docs))
	for _, doc := range m.docs {
		if matchAll(filters, &doc) {
			out = append(out, doc)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		for k, f := range sortFields {
			c := compare(f.Get(&out[i]), f.Get(&out[j]))
			if c == 0 {
				continue
			}
			if q.Sort[k].Desc {
				return c > 0
			}
			return c < 0
		}
		return m.schema.Meta(&out[i]).ID < m.schema.Meta(&out[j]).ID
	})

	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Skip >= len(out) {
		return []T{}, nil
	}
	out = out[q.Skip:]
	if q.Take > 0 && q.Take < len(out) {
		out = out[:q.Take]
	}
	return out, nil
}

func (m *memoryCollection[T]) FindOne(ctx context.Context, filters ...query.Filter) (T, error) {
	var zero T
	docs, err := m.Find(ctx, query.Query{Filters: filters, Take: 1})
	if err != nil {
		return zero, err
	}
	if len(docs) == 0 {
		return zero, ErrNotFound
	}
	return docs[0], nil
}

func (m *memoryCollection[T]) Get(ctx context.Context, id uint64) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return doc, nil
}

func (m *memoryCollection[T]) Count(ctx context.Context, filters ...query.Filter) (int, error) {
	docs, err := m.Find(ctx, query.Query{Filters: filters})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (m *memoryCollection[T]) Insert(ctx context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(doc, 0); err != nil {
		return err
	}
	m.nextID++
	meta := m.schema.Meta(doc)
	meta.ID = m.nextID
	meta.Version = 0
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = m.now().Truncate(time.Millisecond)
	}
	m.docs[meta.ID] = *doc
	return nil
}

func (m *memoryCollection[T]) Replace(ctx context.Context, doc *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta := m.schema.Meta(doc)
	stored, ok := m.docs[meta.ID]
	if !ok {
		return ErrNotFound
	}
	if m.schema.Meta(&stored).Version != meta.Version {
		return ErrConflict
	}
	if err := m.checkUnique(doc, meta.ID); err != nil {
		return err
	}
	meta.Version++
	m.docs[meta.ID] = *doc
	return nil
}

func (m *memoryCollection[T]) Delete(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

// checkUnique must be called with the write lock held.
func (m *memoryCollection[T]) checkUnique(doc *T, self uint64) error {
	for _, group := range m.schema.Unique {
		want := make([]any, len(group))
		for i, name := range group {
			f, _ := m.schema.field(name)
			want[i] = f.Get(doc)
		}
		for id, other := range m.docs {
			if id == self {
				continue
			}
			same := true
			for i, name := range group {
				f, _ := m.schema.field(name)
				if !sameKey(f, f.Get(&other), want[i]) {
					same = false
					break
				}
			}
			if same {
				return &DuplicateError{Key: strings.Join(group, "_"), Value: joinValues(want)}
			}
		}
	}
	return nil
}

func sameKey[T any](f Field[T], a, b any) bool {
	if f.FoldCase {
		x, xok := a.(string)
		y, yok := b.(string)
		if xok && yok {
			return strings.EqualFold(x, y)
		}
	}
	return compare(a, b) == 0
}
