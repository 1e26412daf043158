package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

func TestTransactionStageAndCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := NewTransaction(s, nil, zerolog.Nop())
	require.NoError(t, tr.AddRow("EventLog", map[string]any{"UID": "a1", "Unit": "F301", "Title": "First"}))
	require.NoError(t, tr.AddRows("EventLog", []map[string]any{
		{"UID": "a2", "Unit": "F302", "Title": "Second"},
		{"UID": "a3", "Unit": "F301", "Title": "Third"},
	}))
	require.Equal(t, 3, tr.StagedCount())

	n, err := tr.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 0, tr.StagedCount())

	count, err := s.QueryValue(ctx, "SELECT COUNT(*) FROM EventLog")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// An empty transaction commits to nothing.
	n, err = tr.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTransactionAddRowUnknownTable(t *testing.T) {
	s := newTestStore(t)
	tr := NewTransaction(s, nil, zerolog.Nop())
	require.ErrorIs(t, tr.AddRow("NoSuchTable", map[string]any{"X": 1}), types.ErrTableNotFound)
}

func TestTransactionAddViewRowTranslates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cm := types.NewColumnMap()
	cm.Register("Event Log", map[string]string{"Description": "Title"})

	tr := NewTransaction(s, cm, zerolog.Nop())
	require.NoError(t, tr.AddViewRow("Event Log", map[string]any{
		"UID": "a1", "Unit": "F301", "Description": "Coolant leak",
	}))

	_, err := tr.Commit(ctx)
	require.NoError(t, err)

	v, err := s.QueryValue(ctx, "SELECT Title FROM EventLog WHERE UID = 'a1'")
	require.NoError(t, err)
	assert.Equal(t, "Coolant leak", v)
}

func TestTransactionCommitConstraintKeepsStagedRows(t *testing.T) {
	s := newTestStore(t)
	seedEventLog(t, s)
	ctx := context.Background()

	tr := NewTransaction(s, nil, zerolog.Nop())
	require.NoError(t, tr.AddRow("EventLog", map[string]any{"UID": "a1", "Unit": "F301"}))

	_, err := tr.Commit(ctx)
	require.ErrorIs(t, err, ErrRowExists)
	assert.Equal(t, 1, tr.StagedCount())
}

func TestBulkUpdate(t *testing.T) {
	s := newTestStore(t)
	seedEventLog(t, s)
	ctx := context.Background()

	tr := NewTransaction(s, nil, zerolog.Nop())
	n, err := tr.BulkUpdate(ctx, []types.RowUpdate{
		{Table: "EventLog", Keys: map[string]any{"UID": "a1"}, Vals: map[string]any{"Title": "Updated one", "SMR": 1300}},
		{Table: "EventLog", Keys: map[string]any{"UID": "a2"}, Vals: map[string]any{"Title": "Updated two"}},
		{Table: "EventLog", Keys: map[string]any{"UID": "ghost"}, Vals: map[string]any{"Title": "Nobody"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	v, err := s.QueryValue(ctx, "SELECT SMR FROM EventLog WHERE UID = 'a1'")
	require.NoError(t, err)
	assert.Equal(t, int64(1300), v)
}

func TestBulkUpdateEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	tr := NewTransaction(s, nil, zerolog.Nop())

	n, err := tr.BulkUpdate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkInsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tr := NewTransaction(s, nil, zerolog.Nop())
	n, err := tr.BulkInsert(ctx, "EventLog", []map[string]any{
		{"UID": "a1", "Unit": "F301"},
		{"UID": "a2", "Unit": "F302"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = tr.BulkDelete(ctx, "EventLog", []map[string]any{
		{"UID": "a1"},
		{"UID": "ghost"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.QueryValue(ctx, "SELECT COUNT(*) FROM EventLog")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInsertUpdateMergesRows(t *testing.T) {
	s := newTestStore(t)
	seedEventLog(t, s)
	ctx := context.Background()

	tr := NewTransaction(s, nil, zerolog.Nop())
	inserted, updated, err := tr.InsertUpdate(ctx, "EventLog", []map[string]any{
		{"UID": "a1", "Unit": "F301", "Title": "Amended"},
		{"UID": "a5", "Unit": "F305", "Title": "Brand new"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
	assert.Equal(t, int64(1), updated)

	v, err := s.QueryValue(ctx, "SELECT Title FROM EventLog WHERE UID = 'a1'")
	require.NoError(t, err)
	assert.Equal(t, "Amended", v)

	count, err := s.QueryValue(ctx, "SELECT COUNT(*) FROM EventLog")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestInsertUpdateMissingKeyColumn(t *testing.T) {
	s := newTestStore(t)
	tr := NewTransaction(s, nil, zerolog.Nop())

	_, _, err := tr.InsertUpdate(context.Background(), "EventLog", []map[string]any{
		{"Unit": "F301"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing key column")
}
