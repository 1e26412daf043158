package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// Transaction batches write-back operations so a whole queue flush or
// import lands in one database transaction. Rows can be staged with the
// Add methods and committed together, or applied directly with the Bulk
// methods. Column maps translate view-labelled rows to store columns at
// the staging boundary so everything past it speaks store names.
type Transaction struct {
	store  *Store
	cm     *types.ColumnMap
	log    zerolog.Logger
	staged map[string][]map[string]any
	order  []string
}

// NewTransaction returns an empty transaction bound to the store. The
// column map may be nil when callers stage store-keyed rows only.
func NewTransaction(s *Store, cm *types.ColumnMap, log zerolog.Logger) *Transaction {
	return &Transaction{
		store:  s,
		cm:     cm,
		log:    log.With().Str("component", "transaction").Logger(),
		staged: map[string][]map[string]any{},
	}
}

// AddRow stages one store-keyed row for insertion at Commit.
func (t *Transaction) AddRow(table string, vals map[string]any) error {
	if _, err := types.TableByName(table); err != nil {
		return err
	}
	if _, ok := t.staged[table]; !ok {
		t.order = append(t.order, table)
	}
	t.staged[table] = append(t.staged[table], vals)
	return nil
}

// AddRows stages a batch of store-keyed rows.
func (t *Transaction) AddRows(table string, rows []map[string]any) error {
	for _, row := range rows {
		if err := t.AddRow(table, row); err != nil {
			return err
		}
	}
	return nil
}

// AddViewRow stages one view-labelled row, translating its keys to store
// columns and resolving the table from the view title.
func (t *Transaction) AddViewRow(title string, vals map[string]any) error {
	def, err := types.TableByTitle(title)
	if err != nil {
		return fmt.Errorf("staging row for %q: %w", title, err)
	}
	if t.cm != nil {
		vals = t.cm.StoreKeyed(title, vals)
	}
	return t.AddRow(def.Name, vals)
}

// StagedCount is the number of rows waiting for Commit.
func (t *Transaction) StagedCount() int {
	n := 0
	for _, rows := range t.staged {
		n += len(rows)
	}
	return n
}

// Commit inserts every staged row in one database transaction and clears
// the staging area. On failure nothing is inserted and the staged rows are
// kept for a later retry.
func (t *Transaction) Commit(ctx context.Context) (int64, error) {
	if len(t.order) == 0 {
		return 0, nil
	}

	var inserted int64
	err := t.store.safeTx(ctx, fmt.Sprintf("commit staged rows %v", t.order), func(tx *sql.Tx) error {
		inserted = 0
		for _, table := range t.order {
			for _, row := range t.staged[table] {
				query, args := buildInsert(table, row)
				res, err := tx.ExecContext(ctx, query, args...)
				if err != nil {
					return err
				}
				n, _ := res.RowsAffected()
				inserted += n
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	t.log.Info().Int64("rows", inserted).Msg("committed staged rows")
	t.staged = map[string][]map[string]any{}
	t.order = nil
	return inserted, nil
}

// BulkUpdate applies coalesced row updates in one database transaction and
// returns the total rows affected. Satisfies the write queue's flush
// contract.
func (t *Transaction) BulkUpdate(ctx context.Context, updates []types.RowUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	var affected int64
	err := t.store.safeTx(ctx, fmt.Sprintf("bulk update %s (%d rows)", updates[0].Table, len(updates)), func(tx *sql.Tx) error {
		affected = 0
		for _, u := range updates {
			def, err := types.TableByName(u.Table)
			if err != nil {
				return err
			}
			query, args := buildUpdate(def, u.Keys, u.Vals)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		return nil
	})
	return affected, err
}

// BulkInsert inserts rows into one table in one database transaction.
func (t *Transaction) BulkInsert(ctx context.Context, table string, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var inserted int64
	err := t.store.safeTx(ctx, fmt.Sprintf("bulk insert %s (%d rows)", table, len(rows)), func(tx *sql.Tx) error {
		inserted = 0
		for _, row := range rows {
			query, args := buildInsert(table, row)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
		return nil
	})
	return inserted, err
}

// BulkDelete removes the rows identified by each key map in one database
// transaction.
func (t *Transaction) BulkDelete(ctx context.Context, table string, keys []map[string]any) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	var deleted int64
	err := t.store.safeTx(ctx, fmt.Sprintf("bulk delete %s (%d rows)", table, len(keys)), func(tx *sql.Tx) error {
		deleted = 0
		for _, key := range keys {
			query, args := buildDelete(table, key)
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			deleted += n
		}
		return nil
	})
	return deleted, err
}

// InsertUpdate merges rows into a table: rows whose natural key already
// exists are updated, the rest inserted, all in one database transaction.
// Returns the inserted and updated counts.
func (t *Transaction) InsertUpdate(ctx context.Context, table string, rows []map[string]any) (int64, int64, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}
	def, err := types.TableByName(table)
	if err != nil {
		return 0, 0, err
	}

	var inserted, updated int64
	err = t.store.safeTx(ctx, fmt.Sprintf("insert update %s (%d rows)", table, len(rows)), func(tx *sql.Tx) error {
		inserted, updated = 0, 0
		for _, row := range rows {
			keys := make(map[string]any, len(def.Keys))
			for _, col := range def.Keys {
				v, ok := row[col]
				if !ok {
					return fmt.Errorf("row for %s missing key column %s", table, col)
				}
				keys[col] = v
			}

			where, whereArgs := keyPredicate(def.Keys, keys)
			var n int
			err := tx.QueryRowContext(ctx,
				fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where), whereArgs...).Scan(&n)
			if err != nil {
				return err
			}

			if n > 0 {
				vals := make(map[string]any, len(row))
				for col, v := range row {
					if _, isKey := keys[col]; !isKey {
						vals[col] = v
					}
				}
				if len(vals) == 0 {
					continue
				}
				query, args := buildUpdate(def, keys, vals)
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return err
				}
				updated++
			} else {
				query, args := buildInsert(table, row)
				if _, err := tx.ExecContext(ctx, query, args...); err != nil {
					return err
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	t.log.Info().Str("table", table).Int64("inserted", inserted).Int64("updated", updated).
		Msg("merged rows")
	return inserted, updated, nil
}

// safeTx runs fn inside a transaction with the retry taxonomy: a
// connectivity failure resets the pool and retries the whole transaction
// once, a dead transaction rolls back and retries once, and a constraint
// violation rolls back and maps to ErrRowExists.
func (s *Store) safeTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) error {
	attempt := func() error {
		db, err := s.dbErr()
		if err != nil {
			return err
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}

	err := attempt()
	switch classify(err) {
	case classNone:
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	case classConstraint:
		return fmt.Errorf("%s: %w", name, ErrRowExists)
	case classConnectivity:
		s.log.Warn().Err(err).Str("call", name).Msg("connectivity failure, resetting and retrying")
		s.Reset()
	case classInvalidTxn:
		s.log.Warn().Err(err).Str("call", name).Msg("dead transaction, retrying")
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", name, ctx.Err())
	}
	if err = attempt(); err != nil {
		if classify(err) == classConstraint {
			return fmt.Errorf("%s: %w", name, ErrRowExists)
		}
		return fmt.Errorf("%s (after retry): %w", name, err)
	}
	return nil
}
