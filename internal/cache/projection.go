package cache

import (
	"strconv"
	"time"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// Projection holds the fully-populated display and style maps for every
// baseline row, keyed by column then row identity. It is rebuilt in one pass
// on Load and patched cell-by-cell on edits, so consumers never format or
// style values at paint time.
type Projection struct {
	cols    []string
	schema  types.Schema
	styles  map[string]types.StyleFunc
	display map[string]map[int64]string
	style   map[string]map[int64]types.CellStyle
}

func newProjection(cols []string, schema types.Schema, styles map[string]types.StyleFunc) *Projection {
	p := &Projection{cols: cols, schema: schema, styles: styles}
	p.reset()
	return p
}

func (p *Projection) reset() {
	p.display = make(map[string]map[int64]string, len(p.cols))
	p.style = make(map[string]map[int64]types.CellStyle, len(p.cols))
	for _, col := range p.cols {
		p.display[col] = map[int64]string{}
		p.style[col] = map[int64]types.CellStyle{}
	}
}

func (p *Projection) rebuild(rows []*Row) {
	p.reset()
	for _, r := range rows {
		p.add(r)
	}
}

func (p *Projection) add(r *Row) {
	for _, col := range p.cols {
		p.patch(r, col)
	}
}

func (p *Projection) patch(r *Row, col string) {
	ct, _ := p.schema.Column(col)
	p.display[col][r.id] = displayValue(r.cells[col], ct.Type)
	if fn, ok := p.styles[col]; ok {
		p.style[col][r.id] = fn(r.cells[col])
	}
}

func (p *Projection) remove(id int64) {
	for _, col := range p.cols {
		delete(p.display[col], id)
		delete(p.style[col], id)
	}
}

func (p *Projection) displayFor(id int64, col string) string {
	return p.display[col][id]
}

func (p *Projection) styleFor(id int64, col string) types.CellStyle {
	return p.style[col][id]
}

// displayValue formats a stored value for display. Nil renders empty, dates
// render without a time part, and floats drop trailing zeros.
func displayValue(v any, ct types.ColumnType) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if ct == types.TypeDateTime {
			return t.Format("2006-01-02 15:04")
		}
		return t.Format("2006-01-02")
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// alignmentFor maps a column type to its display alignment: numbers right,
// dates centered, everything else left.
func alignmentFor(ct types.ColumnType) types.Alignment {
	switch ct {
	case types.TypeInt, types.TypeFloat:
		return types.AlignRight
	case types.TypeDate, types.TypeDateTime:
		return types.AlignCenter
	}
	return types.AlignLeft
}

// lessValue orders two cell values of the same declared type, nils first.
func lessValue(a, b any, ct types.ColumnType) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	switch ct {
	case types.TypeInt:
		return asFloat(a) < asFloat(b)
	case types.TypeFloat:
		return asFloat(a) < asFloat(b)
	case types.TypeBool:
		ab, _ := a.(bool)
		bb, _ := b.(bool)
		return !ab && bb
	case types.TypeDate, types.TypeDateTime:
		at, aok := a.(time.Time)
		bt, bok := b.(time.Time)
		if aok && bok {
			return at.Before(bt)
		}
	}
	return displayValue(a, ct) < displayValue(b, ct)
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case float64:
		return t
	}
	return 0
}
