package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/tour-booking/internal/query"
)

// mysqlNoLimit is the documented way to express OFFSET without LIMIT.
const mysqlNoLimit = "18446744073709551615"

var duplicateEntry = regexp.MustCompile(`Duplicate entry '(.*)' for key '([^']*)'`)

type sqlCollection[T any] struct {
	db     *sql.DB
	schema *Schema[T]
	now    func() time.Time
}

func newSQLCollection[T any](db *sql.DB, schema *Schema[T]) *sqlCollection[T] {
	return &sqlCollection[T]{db: db, schema: schema, now: func() time.Time { return time.Now().UTC() }}
}

var sqlOps = map[query.Op]string{
	query.OpEq: "=", query.OpNe: "<>", query.OpGt: ">", query.OpGte: ">=", query.OpLt: "<", query.OpLte: "<=",
}

// where renders filters as a parameterised WHERE clause.  Column names come
// from the schema, never from the request.
func (c *sqlCollection[T]) where(filters []query.Filter) (string, []any, error) {
	bound, err := bindFilters(c.schema, filters)
	if err != nil {
		return "", nil, err
	}
	if len(bound) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(bound))
	var args []any
	for _, b := range bound {
		col := "`" + b.field.Column + "`"
		switch b.op {
		case query.OpIn:
			parts = append(parts, col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(b.values)), ",")+")")
			args = append(args, b.values...)
		case query.OpNe:
			parts = append(parts, "("+col+" IS NULL OR "+col+" <> ?)")
			args = append(args, b.values[0])
		default:
			op, ok := sqlOps[b.op]
			if !ok {
				return "", nil, &FieldError{Field: b.field.Name, Reason: "unsupported operator " + string(b.op)}
			}
			parts = append(parts, col+" "+op+" ?")
			args = append(args, b.values[0])
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

func (c *sqlCollection[T]) selectList() string {
	return "`id`, `" + strings.Join(c.schema.columns(), "`, `") + "`"
}

func (c *sqlCollection[T]) Find(ctx context.Context, q query.Query) ([]T, error) {
	where, args, err := c.where(q.Filters)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM `%s`%s ORDER BY ", c.selectList(), c.schema.Table, where)
	for _, s := range q.Sort {
		f, err := c.schema.resolve(s.Field, false)
		if err != nil {
			return nil, err
		}
		b.WriteString("`" + f.Column + "`")
		if s.Desc {
			b.WriteString(" DESC")
		}
		b.WriteString(", ")
	}
	b.WriteString("`id`")
	if q.Skip < 0 {
		q.Skip = 0
	}
	switch {
	case q.Take > 0:
		fmt.Fprintf(&b, " LIMIT %d OFFSET %d", q.Take, q.Skip)
	case q.Skip > 0:
		fmt.Fprintf(&b, " LIMIT %s OFFSET %d", mysqlNoLimit, q.Skip)
	}

	rows, err := c.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		doc, err := c.schema.Scan(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (c *sqlCollection[T]) FindOne(ctx context.Context, filters ...query.Filter) (T, error) {
	var zero T
	docs, err := c.Find(ctx, query.Query{Filters: filters, Take: 1})
	if err != nil {
		return zero, err
	}
	if len(docs) == 0 {
		return zero, ErrNotFound
	}
	return docs[0], nil
}

func (c *sqlCollection[T]) Get(ctx context.Context, id uint64) (T, error) {
	row := c.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM `%s` WHERE `id`=? LIMIT 1", c.selectList(), c.schema.Table), id)
	doc, err := c.schema.Scan(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, ErrNotFound
	}
	return doc, err
}

func (c *sqlCollection[T]) Count(ctx context.Context, filters ...query.Filter) (int, error) {
	where, args, err := c.where(filters)
	if err != nil {
		return 0, err
	}
	var n int
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM `%s`%s", c.schema.Table, where), args...).Scan(&n)
	return n, err
}

func (c *sqlCollection[T]) values(doc *T) []any {
	vals := make([]any, len(c.schema.Fields))
	for i, f := range c.schema.Fields {
		vals[i] = f.Get(doc)
	}
	return vals
}

func (c *sqlCollection[T]) Insert(ctx context.Context, doc *T) error {
	meta := c.schema.Meta(doc)
	meta.Version = 0
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = c.now().Truncate(time.Millisecond)
	}
	cols := c.schema.columns()
	stmt := fmt.Sprintf("INSERT INTO `%s` (`%s`) VALUES (%s)", c.schema.Table,
		strings.Join(cols, "`, `"), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))
	res, err := c.db.ExecContext(ctx, stmt, c.values(doc)...)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	meta.ID = uint64(id)
	return nil
}

// Replace overwrites every column of doc, provided the stored version still
// matches the one doc was read at.
func (c *sqlCollection[T]) Replace(ctx context.Context, doc *T) error {
	meta := c.schema.Meta(doc)
	read := meta.Version
	meta.Version++
	sets := make([]string, len(c.schema.Fields))
	for i, col := range c.schema.columns() {
		sets[i] = "`" + col + "`=?"
	}
	args := append(c.values(doc), meta.ID, read)
	res, err := c.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE `%s` SET %s WHERE `id`=? AND `version`=?", c.schema.Table, strings.Join(sets, ", ")), args...)
	if err != nil {
		meta.Version = read
		return translate(err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 1 {
		return err
	}
	meta.Version = read
	var exists int
	err = c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM `%s` WHERE `id`=?", c.schema.Table), meta.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (c *sqlCollection[T]) Delete(ctx context.Context, id uint64) error {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s` WHERE `id`=?", c.schema.Table), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// translate turns MySQL duplicate key errors (1062) into DuplicateError.
func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		if m := duplicateEntry.FindStringSubmatch(me.Message); m != nil {
			key := m[2]
			if i := strings.LastIndexByte(key, '.'); i >= 0 {
				key = key[i+1:]
			}
			return &DuplicateError{Key: key, Value: m[1]}
		}
		return &DuplicateError{Value: me.Message}
	}
	return err
}

func joinValues(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, "-")
}
