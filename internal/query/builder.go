package query

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// ErrNoSelectTable reports a render attempt on a builder with no table.
var ErrNoSelectTable = errors.New("query builder has no select table")

type join struct {
	table string
	field string
}

type order struct {
	col string
	asc bool
}

// Builder composes a SELECT statement for one logical table. It owns a base
// filter, an optional subquery filter applied to an inner subselect, and an
// optional wrap hook that rewrites the final statement without disturbing
// filter state. Render is deterministic for a given builder state.
type Builder struct {
	table  string
	title  string
	colmap *types.ColumnMap

	cols    []string
	joins   []join
	orderBy []order

	fltr  *Filter
	fltr2 *Filter

	sub  *Builder
	wrap func(sql string) string
}

// NewBuilder returns a builder selecting from the given store table. The
// column map may be nil for tables whose view labels equal their store names.
func NewBuilder(table string, colmap *types.ColumnMap) *Builder {
	b := &Builder{table: table, colmap: colmap}
	if def, err := types.TableByName(table); err == nil {
		b.title = def.Title
	}
	b.ResetFilter()
	return b
}

// Columns sets the explicit projection, replacing any previous one.
func (b *Builder) Columns(cols ...string) *Builder {
	b.cols = append([]string{}, cols...)
	return b
}

// ExtraColumns appends to the projection without removing previously
// selected columns.
func (b *Builder) ExtraColumns(cols ...string) *Builder {
	b.cols = append(b.cols, cols...)
	return b
}

// LeftJoin joins another table on a shared column name.
func (b *Builder) LeftJoin(table, onField string) *Builder {
	b.joins = append(b.joins, join{table: table, field: onField})
	return b
}

// OrderBy appends an ordering column.
func (b *Builder) OrderBy(col string, asc bool) *Builder {
	b.orderBy = append(b.orderBy, order{col: col, asc: asc})
	return b
}

// Filter returns the base filter.
func (b *Builder) Filter() *Filter {
	return b.fltr
}

// SubFilter returns the subquery filter. When a subquery is configured the
// subquery filter is merged into the inner subselect at render time; without
// one it falls back to the outer WHERE so no condition is silently dropped.
func (b *Builder) SubFilter() *Filter {
	return b.fltr2
}

// Where adds conditions to the base filter.
func (b *Builder) Where(conds ...Cond) *Builder {
	b.fltr.AddMany(conds)
	return b
}

// WhereSub adds conditions to the subquery filter.
func (b *Builder) WhereSub(conds ...Cond) *Builder {
	b.fltr2.AddMany(conds)
	return b
}

// SetSubquery makes the FROM clause an inner subselect built by another
// builder (one row per group via row numbering, for example).
func (b *Builder) SetSubquery(inner *Builder) *Builder {
	b.sub = inner
	return b
}

// WrapFunc installs a hook that rewrites the rendered statement. The hook
// runs only at final render time, after every filter has been attached to
// the un-wrapped query, so filter state is never duplicated between the
// inner and outer forms.
func (b *Builder) WrapFunc(fn func(sql string) string) *Builder {
	b.wrap = fn
	return b
}

// ResetFilter replaces both filters with empty ones. Called after every
// refresh so stale conditions never leak into the next query.
func (b *Builder) ResetFilter() {
	b.fltr = NewFilter(b.table)
	b.fltr2 = NewFilter(b.table)
}

// SinceDays filters the given date column to the last n days.
func (b *Builder) SinceDays(col string, days int) *Builder {
	cutoff := time.Now().AddDate(0, 0, -days)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	b.fltr.Add(Cond{Field: col, Val: cutoff, Op: OpGe})
	return b
}

// QueryKey is the AppState key under which this table's last rendered SQL
// is saved.
func (b *Builder) QueryKey() string {
	return "queries/" + strings.ToLower(b.table)
}

// ViewToStore translates view labels to store column names for this
// builder's table title.
func (b *Builder) ViewToStore(names ...string) []string {
	if b.colmap == nil {
		return names
	}
	return b.colmap.ViewToStore(b.title, names...)
}

// StoreToView translates store column names to view labels for this
// builder's table title.
func (b *Builder) StoreToView(names ...string) []string {
	if b.colmap == nil {
		return names
	}
	return b.colmap.StoreToView(b.title, names...)
}

// Render builds the final SQL statement. Rendering never executes the
// query and does not mutate builder state.
func (b *Builder) Render() (string, error) {
	if b.table == "" {
		return "", ErrNoSelectTable
	}

	from := b.table
	outerPred := b.fltr.Expand()

	if b.sub != nil {
		inner, err := b.sub.renderWith(b.fltr2)
		if err != nil {
			return "", fmt.Errorf("rendering subquery: %w", err)
		}
		from = "(" + inner + ") sq0"
	} else if b.fltr2.Len() > 0 {
		// No inner subselect to carry the subquery filter.
		if outerPred == "" {
			outerPred = b.fltr2.Expand()
		} else {
			outerPred += " AND " + b.fltr2.Expand()
		}
	}

	cols := "*"
	if len(b.cols) > 0 {
		cols = strings.Join(b.cols, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(from)

	for _, j := range b.joins {
		fmt.Fprintf(&sb, " LEFT JOIN %s ON %s.%s = %s.%s", j.table, b.table, j.field, j.table, j.field)
	}

	if outerPred != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(outerPred)
	}

	if len(b.orderBy) > 0 {
		parts := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if !o.asc {
				dir = "DESC"
			}
			parts[i] = o.col + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	sql := sb.String()
	if b.wrap != nil {
		sql = b.wrap(sql)
	}
	return sql, nil
}

// renderWith renders the builder with an extra filter merged into its WHERE
// clause, leaving the builder's own filter untouched.
func (b *Builder) renderWith(extra *Filter) (string, error) {
	if extra == nil || extra.Len() == 0 {
		return b.Render()
	}

	saved := b.fltr
	merged := NewFilter(b.table)
	for _, key := range saved.order {
		merged.AddCriterion(saved.criteria[key])
	}
	for _, key := range extra.order {
		merged.AddCriterion(extra.criteria[key])
	}
	b.fltr = merged
	defer func() { b.fltr = saved }()

	return b.Render()
}
