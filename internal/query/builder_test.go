package query

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

func TestBuilderRenderBasic(t *testing.T) {
	b := NewBuilder("EventLog", nil).
		Columns("UID", "Unit", "Title").
		Where(Cond{Field: "Unit", Val: "F301"}).
		OrderBy("DateAdded", false)

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT UID, Unit, Title FROM EventLog WHERE Unit = 'F301' ORDER BY DateAdded DESC", sql)
}

func TestBuilderRenderNoSelectTable(t *testing.T) {
	b := NewBuilder("", nil)

	_, err := b.Render()
	require.ErrorIs(t, err, ErrNoSelectTable)
}

func TestBuilderDefaultsToStar(t *testing.T) {
	sql, err := NewBuilder("UnitID", nil).Render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM UnitID", sql)
}

func TestBuilderLeftJoin(t *testing.T) {
	b := NewBuilder("EventLog", nil).
		Columns("EventLog.UID", "UnitID.MineSite").
		LeftJoin("UnitID", "Unit").
		Where(Cond{Field: "MineSite", Val: "BaseMine", Table: "UnitID"})

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT EventLog.UID, UnitID.MineSite FROM EventLog"+
			" LEFT JOIN UnitID ON EventLog.Unit = UnitID.Unit"+
			" WHERE UnitID.MineSite = 'BaseMine'",
		sql)
}

func TestBuilderWrapAppliedOnlyAtRender(t *testing.T) {
	b := NewBuilder("UnitSMR", nil).
		Columns("Unit", "DateSMR", "SMR").
		Where(Cond{Field: "Unit", Val: "F301"}).
		WrapFunc(func(sql string) string {
			return "SELECT * FROM (" + sql + ") t WHERE t.SMR > 0"
		})

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM (SELECT Unit, DateSMR, SMR FROM UnitSMR WHERE Unit = 'F301') t WHERE t.SMR > 0",
		sql)

	// Rendering again yields the same statement: the wrap never feeds back
	// into builder state.
	again, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, sql, again)
	assert.Equal(t, 1, b.Filter().Len())
}

func TestBuilderSubqueryMergesSubFilter(t *testing.T) {
	inner := NewBuilder("FactoryCampaign", nil).
		Columns("Unit", "FCNumber", "Status").
		Where(Cond{Field: "Status", Val: "Open"})

	b := NewBuilder("FactoryCampaign", nil).
		Columns("Unit", "FCNumber").
		SetSubquery(inner).
		WhereSub(Cond{Field: "FCNumber", Val: "17H019"})

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT Unit, FCNumber FROM (SELECT Unit, FCNumber, Status FROM FactoryCampaign"+
			" WHERE Status = 'Open' AND FCNumber = '17H019') sq0",
		sql)

	// The inner builder's own filter is untouched after the merge.
	assert.Equal(t, 1, inner.Filter().Len())
}

func TestBuilderSubFilterFallsBackToOuterWhere(t *testing.T) {
	b := NewBuilder("EventLog", nil).
		Where(Cond{Field: "Unit", Val: "F301"}).
		WhereSub(Cond{Field: "Status", Val: "Open"})

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM EventLog WHERE Unit = 'F301' AND Status = 'Open'", sql)
}

func TestBuilderResetFilter(t *testing.T) {
	b := NewBuilder("EventLog", nil).
		Where(Cond{Field: "Unit", Val: "F301"}).
		WhereSub(Cond{Field: "Status", Val: "Open"})

	b.ResetFilter()

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM EventLog", sql)
}

func TestBuilderSinceDays(t *testing.T) {
	b := NewBuilder("EventLog", nil).SinceDays("DateAdded", 30)

	sql, err := b.Render()
	require.NoError(t, err)

	cutoff := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	assert.Equal(t, "SELECT * FROM EventLog WHERE DateAdded >= '"+cutoff+"'", sql)
}

func TestBuilderQueryKey(t *testing.T) {
	assert.Equal(t, "queries/eventlog", NewBuilder("EventLog", nil).QueryKey())
}

func TestBuilderColumnTranslation(t *testing.T) {
	cm := types.NewColumnMap()
	cm.Register("Event Log", map[string]string{
		"Added":       "DateAdded",
		"Description": "Title",
	})

	b := NewBuilder("EventLog", cm)

	assert.Equal(t, []string{"DateAdded", "Title"}, b.ViewToStore("Added", "Description"))
	assert.Equal(t, []string{"Added", "Description"}, b.StoreToView("DateAdded", "Title"))

	// Names without a mapping pass through unchanged.
	assert.Equal(t, []string{"Unit"}, b.ViewToStore("Unit"))
}

func TestBuilderOrderByMultiple(t *testing.T) {
	b := NewBuilder("UnitSMR", nil).
		OrderBy("Unit", true).
		OrderBy("DateSMR", false)

	sql, err := b.Render()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, " ORDER BY Unit ASC, DateSMR DESC"))
}
