package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

func TestParseFlagValue(t *testing.T) {
	assert.Equal(t, int64(42), parseFlagValue("42"))
	assert.Equal(t, 1.5, parseFlagValue("1.5"))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), parseFlagValue("2024-01-01"))
	assert.Equal(t, "F301", parseFlagValue("F301"))
}

func TestBuildQueryRendersFlags(t *testing.T) {
	f := &queryFlags{
		table:   types.TableEventLog,
		columns: []string{"UID", "Unit", "Title"},
		wheres:  []string{"Unit=F301", "DateAdded=2024-01-01"},
		orders:  []string{"DateAdded:desc"},
	}
	b, err := buildQuery(f)
	require.NoError(t, err)

	sql, err := b.Render()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT UID, Unit, Title FROM EventLog"+
			" WHERE Unit = 'F301' AND DateAdded >= '2024-01-01'"+
			" ORDER BY DateAdded DESC",
		sql)
}

func TestBuildQueryBadWhere(t *testing.T) {
	_, err := buildQuery(&queryFlags{table: "EventLog", wheres: []string{"nonsense"}})
	require.Error(t, err)
}

func TestParsePairs(t *testing.T) {
	schema := tableSchemas[types.TableEventLog]

	got, err := parsePairs("UID=a1,SMR=1,200", schema)
	require.Error(t, err) // the comma split breaks the formatted number

	got, err = parsePairs("UID=a1,SMR=1200", schema)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"UID": "a1", "SMR": int64(1200)}, got)

	_, err = parsePairs("Nope=1", schema)
	require.Error(t, err)
}

func TestReadCSVRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	csv := "UID,Unit,SMR,DateAdded\na1,F301,1200,2024-01-05\na2,F302,,2024-02-01\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	rows, err := readCSVRows(path, tableSchemas[types.TableEventLog])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1200), rows[0]["SMR"])
	assert.Nil(t, rows[1]["SMR"]) // blank coerces to NULL
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), rows[0]["DateAdded"])
}

func TestReadCSVRowsUnknownHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nope\nx\n"), 0o644))

	_, err := readCSVRows(path, tableSchemas[types.TableEventLog])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")
}

func TestLoadStateFirstRunWritesDefault(t *testing.T) {
	dir := t.TempDir()

	state, statePath, err := loadState(dir)
	require.NoError(t, err)
	assert.Equal(t, 5000, state.RowLimit)
	assert.Equal(t, 60, state.RecheckSeconds)
	assert.FileExists(t, statePath)

	// A saved state round-trips.
	state.SetLastQuery("queries/eventlog", "SELECT * FROM EventLog")
	state.RowLimit = 100
	require.NoError(t, saveState(state, statePath))

	again, _, err := loadState(dir)
	require.NoError(t, err)
	assert.Equal(t, 100, again.RowLimit)
	sql, ok := again.LastQuery("queries/eventlog")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM EventLog", sql)
}
