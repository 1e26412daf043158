package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

func testSchema() types.Schema {
	return types.Schema{
		{Name: "UID", Type: types.TypeText},
		{Name: "Unit", Type: types.TypeText},
		{Name: "Title", Type: types.TypeText},
		{Name: "SMR", Type: types.TypeInt},
		{Name: "DateAdded", Type: types.TypeDate},
	}
}

func testRows() []map[string]any {
	return []map[string]any{
		{"UID": "a1", "Unit": "F301", "Title": "Coolant leak", "SMR": int64(1200), "DateAdded": time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"UID": "a2", "Unit": "F302", "Title": "Engine swap", "SMR": int64(900), "DateAdded": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"UID": "a3", "Unit": "F301", "Title": "Track tension", "SMR": int64(2500), "DateAdded": time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
	}
}

func newTestTable(t *testing.T, opts ...Option) *Table {
	t.Helper()
	def := types.TableDef{Name: types.TableEventLog, Keys: []string{"UID"}, Title: "Event Log"}
	tbl := New(def, testSchema(), zerolog.Nop(), opts...)
	tbl.Load(testRows())
	return tbl
}

func TestLoadResetsView(t *testing.T) {
	tbl := newTestTable(t)
	require.Equal(t, 3, tbl.RowCount())
	require.Equal(t, 3, tbl.BaselineCount())

	v, err := tbl.Value(0, "Unit")
	require.NoError(t, err)
	assert.Equal(t, "F301", v)
}

func TestFilterStartsFromBaseline(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.Filter("Unit", "f301"))
	assert.Equal(t, 2, tbl.RowCount())

	// A second filter replaces the first rather than stacking on it.
	require.NoError(t, tbl.Filter("Unit", "f302"))
	assert.Equal(t, 1, tbl.RowCount())

	tbl.ResetFilter()
	assert.Equal(t, 3, tbl.RowCount())

	// Resetting again changes nothing.
	tbl.ResetFilter()
	assert.Equal(t, 3, tbl.RowCount())
}

func TestFilterSubstringCaseInsensitive(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.Filter("Title", "LEAK"))
	require.Equal(t, 1, tbl.RowCount())

	v, err := tbl.Value(0, "Title")
	require.NoError(t, err)
	assert.Equal(t, "Coolant leak", v)
}

func TestFilterValues(t *testing.T) {
	tbl := newTestTable(t)
	assert.Equal(t, []string{"F301", "F302"}, tbl.FilterValues("Unit"))
}

func TestSortRememberedAcrossOperations(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Sort("SMR", true))

	v, err := tbl.Value(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), v)

	// The sort is re-applied after a filter reset.
	require.NoError(t, tbl.Filter("Unit", "F301"))
	tbl.ResetFilter()
	v, err = tbl.Value(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, int64(900), v)

	// And after a reload.
	tbl.Load(testRows())
	v, err = tbl.Value(2, "SMR")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), v)
}

func TestSortDescending(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Sort("DateAdded", false))

	v, err := tbl.Value(0, "UID")
	require.NoError(t, err)
	assert.Equal(t, "a2", v)
}

func TestDynamicFilterCancelRestores(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Filter("Unit", "F301"))
	require.Equal(t, 2, tbl.RowCount())

	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Title", "leak"))
	require.Equal(t, 1, tbl.RowCount())

	tbl.CancelDynamicFilter()
	assert.Equal(t, 2, tbl.RowCount())
	assert.False(t, tbl.DynamicFilterOpen())
}

func TestDynamicFilterBeginWhileOpenIsNoop(t *testing.T) {
	tbl := newTestTable(t)

	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Unit", "F301"))

	// A nested begin must not overwrite the original snapshot.
	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Title", "leak"))

	tbl.CancelDynamicFilter()
	assert.Equal(t, 3, tbl.RowCount())
}

func TestDynamicFilterEndDiscardsSnapshot(t *testing.T) {
	tbl := newTestTable(t)

	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Unit", "F301"))
	tbl.EndDynamicFilter()

	// The snapshot is gone; cancel has nothing to restore.
	tbl.CancelDynamicFilter()
	assert.Equal(t, 2, tbl.RowCount())

	// A fresh begin snapshots the committed view.
	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Title", "leak"))
	tbl.CancelDynamicFilter()
	assert.Equal(t, 2, tbl.RowCount())
}

func TestDynamicFilterDerivesFromSnapshot(t *testing.T) {
	tbl := newTestTable(t)
	require.NoError(t, tbl.Filter("Unit", "F301"))
	require.Equal(t, 2, tbl.RowCount())

	// Typing inside the session narrows the snapshot, never the full
	// baseline, so the excluded F302 row cannot resurface.
	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.Filter("Title", "engine"))
	assert.Equal(t, 0, tbl.RowCount())

	require.NoError(t, tbl.Filter("Title", "track"))
	require.Equal(t, 1, tbl.RowCount())
	v, err := tbl.Value(0, "Unit")
	require.NoError(t, err)
	assert.Equal(t, "F301", v)

	tbl.CancelDynamicFilter()
	assert.Equal(t, 2, tbl.RowCount())
}

func TestFilterByValues(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.FilterByValues("Unit", []string{"F302"}))
	require.Equal(t, 1, tbl.RowCount())
	v, err := tbl.Value(0, "Title")
	require.NoError(t, err)
	assert.Equal(t, "Engine swap", v)

	// Membership works over display values for non-text columns too.
	require.NoError(t, tbl.FilterByValues("SMR", []string{"900", "2500"}))
	assert.Equal(t, 2, tbl.RowCount())

	// Always derives from the baseline, even mid-session.
	tbl.BeginDynamicFilter()
	require.NoError(t, tbl.FilterByValues("Unit", []string{"F301", "F302"}))
	assert.Equal(t, 3, tbl.RowCount())
	tbl.CancelDynamicFilter()
}

func TestSetCellCoercesAndPatchesProjection(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.SetCell(0, "SMR", "1,500"))

	v, err := tbl.Value(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), v)

	disp, err := tbl.Display(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, "1500", disp)
}

func TestSetCellBlankBecomesNil(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.SetCell(0, "Title", "  "))

	v, err := tbl.Value(0, "Title")
	require.NoError(t, err)
	assert.Nil(t, v)

	disp, err := tbl.Display(0, "Title")
	require.NoError(t, err)
	assert.Equal(t, "", disp)
}

func TestSetCellRejectionLeavesStateUntouched(t *testing.T) {
	q := NewWriteQueue(zerolog.Nop())
	tbl := newTestTable(t, WithQueue(q))

	err := tbl.SetCell(0, "SMR", "not a number")
	require.ErrorIs(t, err, types.ErrTypeMismatch)

	v, verr := tbl.Value(0, "SMR")
	require.NoError(t, verr)
	assert.Equal(t, int64(1200), v)
	assert.Equal(t, 0, q.Len())
}

func TestSetCellVisibleThroughFilteredView(t *testing.T) {
	tbl := newTestTable(t)

	require.NoError(t, tbl.Filter("Unit", "F302"))
	require.NoError(t, tbl.SetCell(0, "SMR", int64(950)))
	tbl.ResetFilter()

	// Baseline and working share rows, so the edit survives the reset.
	v, err := tbl.Value(1, "SMR")
	require.NoError(t, err)
	assert.Equal(t, int64(950), v)
}

func TestSetCellReadOnly(t *testing.T) {
	tbl := newTestTable(t, WithReadOnly(true))
	require.ErrorIs(t, tbl.SetCell(0, "Title", "x"), ErrReadOnly)
}

func TestSetCellUnknownColumn(t *testing.T) {
	tbl := newTestTable(t)
	require.ErrorIs(t, tbl.SetCell(0, "Nope", "x"), ErrUnknownColumn)
}

func TestInsertRowProvisionalKey(t *testing.T) {
	tbl := newTestTable(t)

	idx, err := tbl.InsertRow(map[string]any{"Unit": "F303"})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 4, tbl.BaselineCount())

	uid, err := tbl.Value(idx, "UID")
	require.NoError(t, err)
	require.IsType(t, "", uid)
	assert.NotEmpty(t, uid)

	unit, err := tbl.Value(idx, "Unit")
	require.NoError(t, err)
	assert.Equal(t, "F303", unit)
}

func TestRemoveRowDiscardsQueuedWrites(t *testing.T) {
	q := NewWriteQueue(zerolog.Nop())
	tbl := newTestTable(t, WithQueue(q))

	require.NoError(t, tbl.SetCell(1, "Title", "Engine rebuild"))
	require.Equal(t, 1, q.Len())

	require.NoError(t, tbl.RemoveRow(1))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, tbl.RowCount())
	assert.Equal(t, 2, tbl.BaselineCount())
}

func TestSearchWraps(t *testing.T) {
	tbl := newTestTable(t)

	assert.Equal(t, 0, tbl.Search("leak", 0))
	assert.Equal(t, 0, tbl.Search("leak", 1)) // wraps past the end
	assert.Equal(t, 2, tbl.Search("track", 0))
	assert.Equal(t, -1, tbl.Search("no such text", 0))
}

func TestStyleAndAlignment(t *testing.T) {
	styled := func(val any) types.CellStyle {
		if v, ok := val.(int64); ok && v > 2000 {
			return types.CellStyle{Background: "maroon", Foreground: "white"}
		}
		return types.CellStyle{}
	}
	tbl := newTestTable(t, WithStyle("SMR", styled))

	st, err := tbl.Style(2, "SMR")
	require.NoError(t, err)
	assert.Equal(t, types.ColorToken("maroon"), st.Background)

	st, err = tbl.Style(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, types.CellStyle{}, st)

	// Style is recomputed when the cell changes.
	require.NoError(t, tbl.SetCell(0, "SMR", int64(3000)))
	st, err = tbl.Style(0, "SMR")
	require.NoError(t, err)
	assert.Equal(t, types.ColorToken("maroon"), st.Background)

	assert.Equal(t, types.AlignRight, tbl.Alignment("SMR"))
	assert.Equal(t, types.AlignCenter, tbl.Alignment("DateAdded"))
	assert.Equal(t, types.AlignLeft, tbl.Alignment("Title"))
}

func TestDisplayFormatsDates(t *testing.T) {
	tbl := newTestTable(t)

	disp, err := tbl.Display(0, "DateAdded")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", disp)
}

func TestValueRowOutOfRange(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Value(9, "Unit")
	require.ErrorIs(t, err, ErrRowOutOfRange)
}
