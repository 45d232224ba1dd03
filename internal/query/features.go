package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var reserved = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}

var rangeOps = map[string]Op{"gte": OpGte, "gt": OpGt, "lte": OpLte, "lt": OpLt}

// IsReserved reports whether key controls paging, sorting or projection
// instead of filtering.
func IsReserved(key string) bool { return reserved[key] }

// Features refines a base query from request parameters.  Each step may be
// called once, in any order; the first parse error sticks and is returned by
// Result.
//
//	q, err := query.NewFeatures(base, c.QueryParams()).Filter().Sort().LimitFields().Paginate().Result()
type Features struct {
	q        Query
	params   url.Values
	maxLimit int
	err      error
}

func NewFeatures(base Query, params url.Values) *Features {
	return &Features{q: base, params: params}
}

// MaxLimit caps the page size; n <= 0 leaves it unbounded.
func (f *Features) MaxLimit(n int) *Features {
	f.maxLimit = n
	return f
}

// Filter turns every non-reserved parameter into a criterion.  field[op]
// keys become range comparisons, repeated keys become set membership and
// everything else is an equality test.
func (f *Features) Filter() *Features {
	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if reserved[key] {
			continue
		}
		values := f.params[key]
		if len(values) == 0 {
			continue
		}
		field, op, ok := splitKey(key)
		if !ok {
			f.fail(key, "unsupported operator")
			continue
		}
		if reserved[field] || !fieldName.MatchString(field) {
			f.fail(key, "invalid field name")
			continue
		}
		switch {
		case op != "":
			f.q.Filters = append(f.q.Filters, Filter{Field: field, Op: op, Values: values[len(values)-1:]})
		case len(values) > 1:
			f.q.Filters = append(f.q.Filters, Filter{Field: field, Op: OpIn, Values: values})
		default:
			f.q.Filters = append(f.q.Filters, Filter{Field: field, Op: OpEq, Values: values})
		}
	}
	return f
}

// Sort reads a comma separated list of fields, "-" marking descending
// order.  Without a sort parameter the base order is kept, or -createdAt
// when the base has none.
func (f *Features) Sort() *Features {
	raw := last(f.params["sort"])
	if raw == "" {
		if len(f.q.Sort) == 0 {
			f.q.Sort = parseSort(DefaultSort)
		}
		return f
	}
	fields := parseSort(raw)
	for _, s := range fields {
		if !fieldName.MatchString(s.Field) {
			f.fail("sort", "invalid field name "+s.Field)
			return f
		}
	}
	if len(fields) == 0 {
		fields = parseSort(DefaultSort)
	}
	f.q.Sort = fields
	return f
}

// LimitFields applies ?fields=a,b,c.  Without it the version field is
// dropped from the output.
func (f *Features) LimitFields() *Features {
	raw := last(f.params["fields"])
	if raw == "" {
		if len(f.q.Projection.Include) == 0 && len(f.q.Projection.Exclude) == 0 {
			f.q.Projection = Projection{Exclude: []string{VersionField}}
		}
		return f
	}
	var include []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !fieldName.MatchString(p) {
			f.fail("fields", "invalid field name "+p)
			return f
		}
		include = append(include, p)
	}
	f.q.Projection = Projection{Include: include}
	return f
}

// Paginate converts page and limit into skip and take.  Missing or
// non-positive values fall back to page 1 and limit 100.  Pages past the
// largest representable offset are clamped, so the skip never overflows.
func (f *Features) Paginate() *Features {
	page := positive(last(f.params["page"]), DefaultPage)
	limit := positive(last(f.params["limit"]), DefaultLimit)
	if f.maxLimit > 0 && limit > f.maxLimit {
		limit = f.maxLimit
	}
	if page > math.MaxInt/limit {
		page = math.MaxInt / limit
	}
	f.q.Skip = (page - 1) * limit
	f.q.Take = limit
	return f
}

// Result returns the refined query or the first parse error.
func (f *Features) Result() (Query, error) {
	if f.err != nil {
		return Query{}, f.err
	}
	return f.q, nil
}

// Build runs all four steps.
func Build(base Query, params url.Values, maxLimit int) (Query, error) {
	return NewFeatures(base, params).MaxLimit(maxLimit).Filter().Sort().LimitFields().Paginate().Result()
}

func (f *Features) fail(param, reason string) {
	if f.err == nil {
		f.err = &Error{Param: param, Reason: reason}
	}
}

// splitKey parses "price[gte]" into ("price", OpGte).  A plain key yields an
// empty operator.
func splitKey(key string) (string, Op, bool) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, "", true
	}
	if !strings.HasSuffix(key, "]") || open == 0 {
		return "", "", false
	}
	op, ok := rangeOps[key[open+1:len(key)-1]]
	if !ok {
		return "", "", false
	}
	return key[:open], op, true
}

func parseSort(raw string) []SortField {
	var out []SortField
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" || p == "-" {
			continue
		}
		if strings.HasPrefix(p, "-") {
			out = append(out, SortField{Field: p[1:], Desc: true})
			continue
		}
		out = append(out, SortField{Field: strings.TrimPrefix(p, "+")})
	}
	return out
}

func positive(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}
