package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// RowHandle addresses one store row by its natural key and carries targeted
// write operations for it. The key columns come from the table registry, so
// a handle cannot be built with a partial key.
type RowHandle struct {
	store *Store
	def   types.TableDef
	keys  map[string]any
}

// NewRowHandle builds a handle for the row identified by keys. Every key
// column of the table must be present.
func NewRowHandle(s *Store, table string, keys map[string]any) (*RowHandle, error) {
	def, err := types.TableByName(table)
	if err != nil {
		return nil, err
	}
	for _, col := range def.Keys {
		if _, ok := keys[col]; !ok {
			return nil, fmt.Errorf("row handle for %s: missing key column %s", table, col)
		}
	}
	return &RowHandle{store: s, def: def, keys: keys}, nil
}

// Table returns the store table this handle addresses.
func (h *RowHandle) Table() string { return h.def.Name }

// Keys returns a copy of the natural-key values.
func (h *RowHandle) Keys() map[string]any {
	out := make(map[string]any, len(h.keys))
	for col, v := range h.keys {
		out[col] = v
	}
	return out
}

// Update sets the given columns on the row and returns the number of rows
// affected, zero when the row does not exist.
func (h *RowHandle) Update(ctx context.Context, vals map[string]any) (int64, error) {
	if len(vals) == 0 {
		return 0, nil
	}
	query, args := buildUpdate(h.def, h.keys, vals)
	return h.store.Exec(ctx, query, args...)
}

// Upsert inserts the row with the given columns, falling back to an update
// when the key already exists.
func (h *RowHandle) Upsert(ctx context.Context, vals map[string]any) (int64, error) {
	merged := make(map[string]any, len(vals)+len(h.keys))
	for col, v := range vals {
		merged[col] = v
	}
	for col, v := range h.keys {
		merged[col] = v
	}

	query, args := buildInsert(h.def.Name, merged)
	n, err := h.store.Exec(ctx, query, args...)
	if errors.Is(err, ErrRowExists) {
		return h.Update(ctx, vals)
	}
	return n, err
}

// Delete removes the row, returning the number of rows affected.
func (h *RowHandle) Delete(ctx context.Context) (int64, error) {
	query, args := buildDelete(h.def.Name, h.keys)
	return h.store.Exec(ctx, query, args...)
}

// buildUpdate renders an UPDATE with placeholder args: SET columns sorted
// for determinism, WHERE the conjunction of the key columns.
func buildUpdate(def types.TableDef, keys, vals map[string]any) (string, []any) {
	cols := sortedCols(vals)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(def.Keys))
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, vals[col])
	}

	where, whereArgs := keyPredicate(def.Keys, keys)
	args = append(args, whereArgs...)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s", def.Name, strings.Join(sets, ", "), where), args
}

func buildInsert(table string, vals map[string]any) (string, []any) {
	cols := sortedCols(vals)
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		marks[i] = "?"
		args[i] = vals[col]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", ")), args
}

func buildDelete(table string, keys map[string]any) (string, []any) {
	cols := sortedCols(keys)
	where, args := keyPredicate(cols, keys)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), args
}

// keyPredicate renders the AND conjunction of key columns with placeholder
// args, in the given column order.
func keyPredicate(cols []string, keys map[string]any) (string, []any) {
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		parts[i] = col + " = ?"
		args[i] = keys[col]
	}
	return strings.Join(parts, " AND "), args
}

func sortedCols(vals map[string]any) []string {
	cols := make([]string, 0, len(vals))
	for col := range vals {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
