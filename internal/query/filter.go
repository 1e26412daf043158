package query

import (
	"strings"
	"time"
)

// Cond is one condition to add to a Filter. Only Field and Val are required;
// zero Op, Term, and Table fall back to value-type dispatch and the filter's
// default table.
type Cond struct {
	Field string
	Val   any
	Vals  []any // multi-value terms (between, isin)
	Op    Op
	Term  Term
	Table string
}

// Filter is a de-duplicated, combinable set of criteria. Adding a criterion
// whose rendered form is already present replaces it in place; distinct
// conditions on the same field accumulate as additional AND terms.
type Filter struct {
	table    string
	criteria map[string]Criterion
	fields   map[string]Criterion
	order    []string
}

// NewFilter returns an empty filter whose unqualified conditions target the
// given default table.
func NewFilter(table string) *Filter {
	return &Filter{
		table:    table,
		criteria: map[string]Criterion{},
		fields:   map[string]Criterion{},
	}
}

// Add builds a criterion from the condition and adds it, returning the
// filter for chaining. When no operator or term is given the value type
// decides: a string containing * or % filters with LIKE, other strings and
// numbers with equality, and times with >= (the common "since date X" case).
func (f *Filter) Add(c Cond) *Filter {
	table := c.Table
	if table == f.table {
		// Conditions on the select table render unqualified.
		table = ""
	}
	ct := Criterion{Table: table, Field: c.Field, Op: c.Op, Term: c.Term}

	if c.Term != "" {
		ct.Values = c.Vals
		if len(ct.Values) == 0 && c.Val != nil {
			ct.Values = []any{c.Val}
		}
		return f.AddCriterion(ct)
	}

	switch v := c.Val.(type) {
	case string:
		v = strings.ReplaceAll(v, "*", "%")
		if strings.Contains(v, "%") && c.Op == "" {
			ct.Op = OpLike
		}
		ct.Values = []any{v}
	case time.Time:
		if c.Op == "" {
			ct.Op = OpGe
		}
		ct.Values = []any{v}
	default:
		ct.Values = []any{c.Val}
	}

	return f.AddCriterion(ct)
}

// AddMany adds a list of conditions.
func (f *Filter) AddMany(conds []Cond) *Filter {
	for _, c := range conds {
		f.Add(c)
	}
	return f
}

// AddCriterion adds a fully formed criterion, keyed by its rendered string.
func (f *Filter) AddCriterion(ct Criterion) *Filter {
	key := ct.String()
	if _, exists := f.criteria[key]; !exists {
		f.order = append(f.order, key)
	}
	f.criteria[key] = ct

	if ct.Field != "" {
		// Last writer per field wins; raw criteria carry no field.
		f.fields[strings.ToLower(ct.Field)] = ct
	}
	return f
}

// Criterion returns the first stored criterion whose rendered form contains
// the field name, case-insensitively. The match is a substring scan, so two
// fields where one name is a prefix of the other can collide; callers rely
// on this loose matching and field names are kept unambiguous in practice.
func (f *Filter) Criterion(field string) (Criterion, bool) {
	needle := strings.ToLower(field)
	for _, key := range f.order {
		if strings.Contains(strings.ToLower(key), needle) {
			return f.criteria[key], true
		}
	}
	return Criterion{}, false
}

// ByField returns the last criterion added for an exact field name.
func (f *Filter) ByField(field string) (Criterion, bool) {
	ct, ok := f.fields[strings.ToLower(field)]
	return ct, ok
}

// Remove drops the criterion with the given rendered form.
func (f *Filter) Remove(key string) {
	if _, ok := f.criteria[key]; !ok {
		return
	}
	delete(f.criteria, key)
	for i, k := range f.order {
		if k == key {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Expand renders the AND-conjunction of every criterion, in insertion order.
// An empty filter expands to the empty string: no restriction.
func (f *Filter) Expand() string {
	if len(f.order) == 0 {
		return ""
	}
	parts := make([]string, len(f.order))
	for i, key := range f.order {
		parts[i] = key
	}
	return strings.Join(parts, " AND ")
}

// Len reports how many criteria are present.
func (f *Filter) Len() int {
	return len(f.criteria)
}

// Clear removes every criterion.
func (f *Filter) Clear() {
	f.criteria = map[string]Criterion{}
	f.fields = map[string]Criterion{}
	f.order = nil
}
