// Package query builds the filtered SELECT statements the engine executes
// against the store. A Criterion is one atomic condition, a Filter is a
// de-duplicated conjunction of criteria, and a Builder composes the final
// statement for one logical table. Rendered SQL embeds literal values so a
// statement can be saved and replayed verbatim.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpNe   Op = "<>"
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpLike Op = "LIKE"
)

// Term is a multi-value or null-test condition that overrides operator
// dispatch when set.
type Term string

const (
	TermBetween Term = "between"
	TermIn      Term = "isin"
	TermNotNull Term = "notnull"
	TermIsNull  Term = "isnull"
)

// Criterion is one atomic filter condition. It is immutable once built and
// compared by its rendered string form for de-duplication.
type Criterion struct {
	Table  string // qualifying table, empty for the query's select table
	Field  string
	Op     Op
	Term   Term
	Values []any
	raw    string
}

// Raw wraps a fully formed SQL fragment as a Criterion, for conditions the
// Cond dispatch cannot express (OR groups, subselects).
func Raw(sql string) Criterion {
	return Criterion{raw: sql}
}

// String renders the criterion as a SQL fragment. The rendering doubles as
// the criterion's identity inside a Filter.
func (c Criterion) String() string {
	if c.raw != "" {
		return c.raw
	}

	field := c.Field
	if c.Table != "" {
		field = c.Table + "." + c.Field
	}

	switch c.Term {
	case TermNotNull:
		return field + " IS NOT NULL"
	case TermIsNull:
		return field + " IS NULL"
	case TermBetween:
		if len(c.Values) != 2 {
			return field + " BETWEEN NULL AND NULL"
		}
		return fmt.Sprintf("%s BETWEEN %s AND %s", field, Literal(c.Values[0]), Literal(c.Values[1]))
	case TermIn:
		vals := make([]string, len(c.Values))
		for i, v := range c.Values {
			vals[i] = Literal(v)
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(vals, ", "))
	}

	op := c.Op
	if op == "" {
		op = OpEq
	}
	var val any
	if len(c.Values) > 0 {
		val = c.Values[0]
	}
	return fmt.Sprintf("%s %s %s", field, op, Literal(val))
}

// Literal renders a Go value as a SQL literal. Strings are quoted with ''
// doubling, dates render as 'YYYY-MM-DD' (with a time part only when one is
// present), and booleans render as 1/0.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return "'" + t.Format("2006-01-02") + "'"
		}
		return "'" + t.Format("2006-01-02 15:04:05") + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int, int8, int16, int32, int64, uint, uint64:
		return fmt.Sprint(t)
	case float32, float64:
		return fmt.Sprint(t)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(t), "'", "''") + "'"
	}
}
