// Package cache holds the in-memory working copy of one store table: a
// baseline of loaded rows, a filtered and sorted working view over them,
// display and style projections kept in lockstep with the data, and a
// pending-write queue that coalesces cell edits until they are flushed to
// the store in one batch.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// Cache errors.
var (
	ErrReadOnly      = errors.New("table is read-only")
	ErrRowOutOfRange = errors.New("row index out of range")
	ErrUnknownColumn = errors.New("unknown column")
)

// Row is one cached record. Baseline and working views share Row pointers,
// so an edit through either view is visible in both without copying.
type Row struct {
	id    int64
	cells map[string]any
}

// ID is the row's stable identity, unchanged by filtering and sorting.
func (r *Row) ID() int64 { return r.id }

// Value returns the stored value for a column, nil when unset.
func (r *Row) Value(col string) any { return r.cells[col] }

// Option configures a Table.
type Option func(*Table)

// WithRowLimit sets the loaded-row count at which Load logs a truncation
// warning. Zero disables the check.
func WithRowLimit(n int) Option {
	return func(t *Table) { t.rowLimit = n }
}

// WithReadOnly makes every mutating call fail with ErrReadOnly.
func WithReadOnly(ro bool) Option {
	return func(t *Table) { t.readOnly = ro }
}

// WithQueue attaches a pending-write queue; cell edits are recorded there
// keyed by the row's natural key.
func WithQueue(q *WriteQueue) Option {
	return func(t *Table) { t.queue = q }
}

// WithStyle registers a per-column style hook evaluated against cell values.
func WithStyle(col string, fn types.StyleFunc) Option {
	return func(t *Table) { t.styles[col] = fn }
}

// Table is the cached working copy of one store table.
type Table struct {
	mu     sync.RWMutex
	def    types.TableDef
	schema types.Schema
	cols   []string
	log    zerolog.Logger

	rowLimit int
	readOnly bool

	baseline []*Row
	working  []*Row
	nextID   int64

	resort  func(rows []*Row)
	dynSnap []*Row
	dynOpen bool

	queue      *WriteQueue
	styles     map[string]types.StyleFunc
	projection *Projection
}

// New returns an empty table cache for the given definition and schema.
func New(def types.TableDef, schema types.Schema, log zerolog.Logger, opts ...Option) *Table {
	cols := schema.Names()
	t := &Table{
		def:    def,
		schema: schema,
		cols:   cols,
		log:    log.With().Str("table", def.Name).Logger(),
		styles: map[string]types.StyleFunc{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.projection = newProjection(cols, schema, t.styles)
	return t
}

// Load replaces the baseline with freshly queried rows, resets the working
// view and rebuilds both projections. A remembered sort order survives the
// reload; an open dynamic filter does not.
func (t *Table) Load(rows []map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.baseline = make([]*Row, 0, len(rows))
	for _, vals := range rows {
		t.nextID++
		cells := make(map[string]any, len(vals))
		for col, v := range vals {
			cells[col] = v
		}
		t.baseline = append(t.baseline, &Row{id: t.nextID, cells: cells})
	}

	t.working = append([]*Row{}, t.baseline...)
	t.dynSnap = nil
	t.dynOpen = false
	if t.resort != nil {
		t.resort(t.working)
	}
	t.projection.rebuild(t.baseline)

	if t.rowLimit > 0 && len(rows) >= t.rowLimit {
		t.log.Warn().
			Int("rows", len(rows)).
			Int("limit", t.rowLimit).
			Msg("row limit reached, results may be truncated")
	}
}

// Name returns the store table name.
func (t *Table) Name() string { return t.def.Name }

// Columns returns the schema column names in declaration order.
func (t *Table) Columns() []string {
	return append([]string{}, t.cols...)
}

// RowCount is the number of rows in the working view.
func (t *Table) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.working)
}

// BaselineCount is the number of loaded rows regardless of filtering.
func (t *Table) BaselineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.baseline)
}

// Value returns the stored value at a working-view position.
func (t *Table) Value(row int, col string) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, err := t.rowAt(row)
	if err != nil {
		return nil, err
	}
	if _, ok := t.schema.Column(col); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	return r.cells[col], nil
}

// RowValues returns a copy of the row's cells keyed by column name.
func (t *Table) RowValues(row int) (map[string]any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, err := t.rowAt(row)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(r.cells))
	for col, v := range r.cells {
		out[col] = v
	}
	return out, nil
}

// RowID returns the stable identity of the row at a working-view position.
func (t *Table) RowID(row int) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, err := t.rowAt(row)
	if err != nil {
		return 0, err
	}
	return r.id, nil
}

// rowAt requires t.mu held.
func (t *Table) rowAt(row int) (*Row, error) {
	if row < 0 || row >= len(t.working) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRowOutOfRange, row, len(t.working))
	}
	return t.working[row], nil
}

// Sort orders the working view by one column and remembers the order so it
// is re-applied after reloads and filter resets. Nil values sort first.
func (t *Table) Sort(col string, asc bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ct, ok := t.schema.Column(col)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}

	t.resort = func(rows []*Row) {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i].cells[col], rows[j].cells[col]
			if asc {
				return lessValue(a, b, ct.Type)
			}
			return lessValue(b, a, ct.Type)
		})
	}
	t.resort(t.working)
	return nil
}

// Filter narrows the working view to rows whose column value contains the
// given text, case-insensitively. Filtering starts from the full baseline,
// so successive filters replace rather than stack; while a dynamic filter
// session is open it starts from the captured snapshot instead, so
// filter-as-you-type never resurfaces rows outside the pre-session view.
func (t *Table) Filter(col, text string) error {
	needle := strings.ToLower(text)
	return t.FilterFunc(func(r *Row) bool {
		return strings.Contains(strings.ToLower(displayValue(r.cells[col], t.colType(col))), needle)
	})
}

// FilterByValues narrows the working view to rows whose column display
// value is one of the given values. Always derives from the full baseline,
// even during a dynamic filter session.
func (t *Table) FilterByValues(col string, values []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	keep := make(map[string]struct{}, len(values))
	for _, v := range values {
		keep[v] = struct{}{}
	}
	ct := t.colType(col)
	next := make([]*Row, 0, len(t.baseline))
	for _, r := range t.baseline {
		if _, ok := keep[displayValue(r.cells[col], ct)]; ok {
			next = append(next, r)
		}
	}
	t.working = next
	if t.resort != nil {
		t.resort(t.working)
	}
	return nil
}

// FilterFunc narrows the working view to rows the predicate keeps, drawn
// from the dynamic-filter snapshot when a session is open and from the
// baseline otherwise.
func (t *Table) FilterFunc(keep func(r *Row) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	source := t.baseline
	if t.dynOpen {
		source = t.dynSnap
	}
	next := make([]*Row, 0, len(source))
	for _, r := range source {
		if keep(r) {
			next = append(next, r)
		}
	}
	t.working = next
	if t.resort != nil {
		t.resort(t.working)
	}
	return nil
}

// FilterValues returns the distinct display values of a column across the
// baseline, sorted, for populating a filter picker.
func (t *Table) FilterValues(col string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := map[string]struct{}{}
	ct := t.colType(col)
	for _, r := range t.baseline {
		seen[displayValue(r.cells[col], ct)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ResetFilter restores the working view to the full baseline, keeping any
// remembered sort order. Calling it twice is the same as calling it once.
func (t *Table) ResetFilter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.working = append([]*Row{}, t.baseline...)
	if t.resort != nil {
		t.resort(t.working)
	}
}

// BeginDynamicFilter snapshots the current working view so a sequence of
// interactive filters can be abandoned. Beginning while a snapshot is
// already open is a no-op; the original snapshot stays authoritative.
func (t *Table) BeginDynamicFilter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dynOpen {
		return
	}
	t.dynSnap = append([]*Row{}, t.working...)
	t.dynOpen = true
}

// CancelDynamicFilter restores the view saved by BeginDynamicFilter and
// closes the snapshot. Without an open snapshot it does nothing.
func (t *Table) CancelDynamicFilter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dynOpen {
		return
	}
	t.working = t.dynSnap
	t.dynSnap = nil
	t.dynOpen = false
}

// EndDynamicFilter commits the current view, discarding the snapshot.
func (t *Table) EndDynamicFilter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dynSnap = nil
	t.dynOpen = false
}

// DynamicFilterOpen reports whether a snapshot is held.
func (t *Table) DynamicFilterOpen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dynOpen
}

// SetCell coerces the value to the column's declared type and writes it to
// the row, patching the projections for just that cell. A coercion failure
// leaves the row, projections, and queue untouched. When a queue is
// attached, the edit is recorded there under the row's natural key.
func (t *Table) SetCell(row int, col string, val any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readOnly {
		return ErrReadOnly
	}
	r, err := t.rowAt(row)
	if err != nil {
		return err
	}
	ct, ok := t.schema.Column(col)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}

	coerced, err := types.Coerce(val, ct.Type)
	if err != nil {
		return fmt.Errorf("setting %s.%s: %w", t.def.Name, col, err)
	}

	r.cells[col] = coerced
	t.projection.patch(r, col)

	if t.queue != nil {
		t.queue.Queue(t.def.Name, t.naturalKey(r), col, coerced)
	}
	return nil
}

// InsertRow appends a blank row with typed nil cells, overlaying any given
// defaults. Key columns left empty receive a provisional UUID identity so
// the row can be queued before the store assigns a real key. Returns the
// working-view index of the new row.
func (t *Table) InsertRow(defaults map[string]any) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readOnly {
		return 0, ErrReadOnly
	}

	cells := make(map[string]any, len(t.cols))
	for _, col := range t.cols {
		cells[col] = nil
	}
	for col, v := range defaults {
		ct, ok := t.schema.Column(col)
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
		coerced, err := types.Coerce(v, ct.Type)
		if err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", t.def.Name, err)
		}
		cells[col] = coerced
	}
	for _, key := range t.def.Keys {
		if cells[key] == nil {
			cells[key] = uuid.NewString()
		}
	}

	t.nextID++
	r := &Row{id: t.nextID, cells: cells}
	t.baseline = append(t.baseline, r)
	t.working = append(t.working, r)
	t.projection.add(r)
	return len(t.working) - 1, nil
}

// RemoveRow deletes the row from both views, drops its projections, and
// discards any queued writes for it.
func (t *Table) RemoveRow(row int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.readOnly {
		return ErrReadOnly
	}
	r, err := t.rowAt(row)
	if err != nil {
		return err
	}

	t.working = append(t.working[:row], t.working[row+1:]...)
	for i, br := range t.baseline {
		if br.id == r.id {
			t.baseline = append(t.baseline[:i], t.baseline[i+1:]...)
			break
		}
	}
	t.projection.remove(r.id)
	if t.queue != nil {
		t.queue.Discard(t.def.Name, t.naturalKey(r))
	}
	return nil
}

// Search returns the index of the next working-view row at or after from
// whose display text contains term in any column, case-insensitively,
// wrapping past the end. Returns -1 when nothing matches.
func (t *Table) Search(term string, from int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.working)
	if n == 0 {
		return -1
	}
	needle := strings.ToLower(term)
	if from < 0 {
		from = 0
	}
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		r := t.working[idx]
		for _, col := range t.cols {
			if strings.Contains(strings.ToLower(displayValue(r.cells[col], t.colType(col))), needle) {
				return idx
			}
		}
	}
	return -1
}

// Display returns the formatted text for a cell in the working view.
func (t *Table) Display(row int, col string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, err := t.rowAt(row)
	if err != nil {
		return "", err
	}
	return t.projection.displayFor(r.id, col), nil
}

// Style returns the cell style for a working-view position.
func (t *Table) Style(row int, col string) (types.CellStyle, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, err := t.rowAt(row)
	if err != nil {
		return types.CellStyle{}, err
	}
	return t.projection.styleFor(r.id, col), nil
}

// Alignment returns the display alignment for a column.
func (t *Table) Alignment(col string) types.Alignment {
	return alignmentFor(t.colType(col))
}

// naturalKey requires t.mu held.
func (t *Table) naturalKey(r *Row) map[string]any {
	keys := make(map[string]any, len(t.def.Keys))
	for _, k := range t.def.Keys {
		keys[k] = r.cells[k]
	}
	return keys
}

func (t *Table) colType(col string) types.ColumnType {
	ct, ok := t.schema.Column(col)
	if !ok {
		return types.TypeText
	}
	return ct.Type
}
