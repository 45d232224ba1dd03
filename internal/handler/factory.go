// Package handler implements the HTTP endpoints.  Plain CRUD goes through
// the generic Resource; the entity files add what is specific to users,
// tours, reviews and bookings.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// requestTimeout bounds every storage call made while serving a request.
const requestTimeout = 5 * time.Second

// Expander adds related data to the rendered document, e.g. a tour's
// reviews or a review's author.
type Expander[T any] func(ctx context.Context, doc *T, out map[string]any) error

// Options customise a Resource.  Every field is optional.
type Options[T any] struct {
	// ParentParam and ParentField scope lists to a parent taken from the
	// route, e.g. /tours/:tourId/reviews lists reviews whose tour equals
	// the tourId parameter.
	ParentParam string
	ParentField string
	// Base returns filters the server always applies, e.g. hiding secret
	// tours.  They also apply to get, update and delete.
	Base func(c echo.Context) []query.Filter
	// Decorate runs on every rendered document; Expand only on Get.
	Decorate []Expander[T]
	Expand   []Expander[T]
	// BeforeSave runs after decoding and before validation.  prev is nil
	// on create and the stored document on update.
	BeforeSave func(c echo.Context, doc, prev *T) error
	// AfterWrite runs after a successful insert, replace or delete.
	AfterWrite func(ctx context.Context, doc *T) error
	// MaxLimit caps ?limit=; zero leaves it unbounded.
	MaxLimit int
}

// Resource serves list, get, create, update and delete for one collection.
type Resource[T any] struct {
	coll repository.Collection[T]
	meta func(*T) *model.Meta
	opts Options[T]
	now  func() time.Time
}

func NewResource[T any](coll repository.Collection[T], meta func(*T) *model.Meta, opts Options[T]) *Resource[T] {
	return &Resource[T]{coll: coll, meta: meta, opts: opts, now: time.Now}
}

// defaultProjection hides the write counter from single documents.
var defaultProjection = query.Projection{Exclude: []string{query.VersionField}}

func (r *Resource[T]) List(c echo.Context) error {
	return r.list(c, c.QueryParams())
}

// list serves a list with params in place of the query string.  Extra
// filters are applied on top of the base and parent filters.
func (r *Resource[T]) list(c echo.Context, params url.Values, extra ...query.Filter) error {
	base := query.Query{Filters: append(r.baseFilters(c), extra...)}
	if r.opts.ParentParam != "" {
		if raw := c.Param(r.opts.ParentParam); raw != "" {
			id, err := repository.ParseID(raw)
			if err != nil {
				return err
			}
			base = base.With(query.Where(r.opts.ParentField, query.OpEq, strconv.FormatUint(id, 10)))
		}
	}
	q, err := query.Build(base, params, r.opts.MaxLimit)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	docs, err := r.coll.Find(ctx, q)
	if err != nil {
		return err
	}
	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		m, err := r.render(ctx, &docs[i], q.Projection, r.opts.Decorate)
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"results": len(out),
		"data":    echo.Map{"data": out},
	})
}

func (r *Resource[T]) Get(c echo.Context) error {
	id, err := repository.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	return r.get(c, id)
}

func (r *Resource[T]) get(c echo.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	doc, err := r.load(ctx, c, id)
	if err != nil {
		return err
	}
	m, err := r.render(ctx, &doc, defaultProjection, append(append([]Expander[T]{}, r.opts.Decorate...), r.opts.Expand...))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"data": m}})
}

func (r *Resource[T]) Create(c echo.Context) error {
	started := r.now().UTC()
	var doc T
	if err := decodeBody(c, &doc); err != nil {
		return err
	}
	*r.meta(&doc) = model.Meta{}
	if r.opts.BeforeSave != nil {
		if err := r.opts.BeforeSave(c, &doc, nil); err != nil {
			return err
		}
	}
	if err := c.Validate(&doc); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := r.coll.Insert(ctx, &doc); err != nil {
		return err
	}
	if err := r.afterWrite(ctx, &doc); err != nil {
		return err
	}
	m, err := r.render(ctx, &doc, defaultProjection, r.opts.Decorate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"status":     "success",
		"created_at": started.Format(time.RFC3339Nano),
		"data":       echo.Map{"data": m},
	})
}

// Update merges the JSON body into the stored document.  Fields absent from
// the body keep their values; id, createdAt and version cannot be set.
func (r *Resource[T]) Update(c echo.Context) error {
	id, err := repository.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	patch, err := readBody(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	doc, err := r.load(ctx, c, id)
	if err != nil {
		return err
	}
	prev := doc
	detach(&doc, patch)
	if err := json.Unmarshal(patch, &doc); err != nil {
		return bodyError(err)
	}
	*r.meta(&doc) = *r.meta(&prev)
	if r.opts.BeforeSave != nil {
		if err := r.opts.BeforeSave(c, &doc, &prev); err != nil {
			return err
		}
	}
	if err := c.Validate(&doc); err != nil {
		return err
	}
	if err := r.coll.Replace(ctx, &doc); err != nil {
		return err
	}
	if err := r.afterWrite(ctx, &doc); err != nil {
		return err
	}
	m, err := r.render(ctx, &doc, defaultProjection, r.opts.Decorate)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": echo.Map{"data": m}})
}

func (r *Resource[T]) Delete(c echo.Context) error {
	id, err := repository.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	doc, err := r.load(ctx, c, id)
	if err != nil {
		return err
	}
	if err := r.coll.Delete(ctx, id); err != nil {
		return err
	}
	if err := r.afterWrite(ctx, &doc); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// load fetches id subject to the base filters, so documents the server
// hides behave as missing.
func (r *Resource[T]) load(ctx context.Context, c echo.Context, id uint64) (T, error) {
	filters := append([]query.Filter{query.Where("id", query.OpEq, strconv.FormatUint(id, 10))}, r.baseFilters(c)...)
	return r.coll.FindOne(ctx, filters...)
}

func (r *Resource[T]) baseFilters(c echo.Context) []query.Filter {
	if r.opts.Base == nil {
		return nil
	}
	return r.opts.Base(c)
}

func (r *Resource[T]) afterWrite(ctx context.Context, doc *T) error {
	if r.opts.AfterWrite == nil {
		return nil
	}
	return r.opts.AfterWrite(context.WithoutCancel(ctx), doc)
}

func (r *Resource[T]) render(ctx context.Context, doc *T, p query.Projection, expanders []Expander[T]) (map[string]any, error) {
	m, err := toMap(doc)
	if err != nil {
		return nil, err
	}
	for _, x := range expanders {
		if err := x(ctx, doc, m); err != nil {
			return nil, err
		}
	}
	return p.Apply(m), nil
}

// publicDoc renders a document outside a Resource with the same default
// projection.
func publicDoc(v any) (map[string]any, error) {
	m, err := toMap(v)
	if err != nil {
		return nil, err
	}
	return defaultProjection.Apply(m), nil
}

// toMap renders v through its JSON form so projections work on json names.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// maxBodyBytes mirrors the body limit applied by the server.
const maxBodyBytes = 10 << 10

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		return nil, apperror.Wrap(err, http.StatusBadRequest, "Could not read request body.")
	}
	if len(body) > maxBodyBytes {
		return nil, apperror.New(http.StatusRequestEntityTooLarge, "Request body is too large.")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

func decodeBody(c echo.Context, v any) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError turns a JSON decoding failure into a 400.  Type mismatches
// name the offending field.
func bodyError(err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return &repository.CastError{Path: te.Field, Value: te.Value}
	}
	return apperror.Wrap(err, http.StatusBadRequest, "Invalid JSON in request body.")
}

// detach zeroes the slice, map and pointer fields of *doc that patch sets,
// so decoding allocates new values instead of writing into memory the
// loaded document shares with the store.
func detach(doc any, patch []byte) {
	var keys map[string]json.RawMessage
	if json.Unmarshal(patch, &keys) != nil {
		return
	}
	v := reflect.ValueOf(doc).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" {
			name = f.Name
		}
		if _, ok := keys[name]; !ok {
			continue
		}
		switch f.Type.Kind() {
		case reflect.Slice, reflect.Map, reflect.Pointer:
			v.Field(i).SetZero()
		}
	}
}
