// Load command for the gridsync CLI.
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gridsync/internal/cache"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

var (
	lf       queryFlags
	loadLast bool
	loadMax  int
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a table view and print it",
	Long: `Execute a table's query, load the rows into a working copy, and
print them. The rendered SQL is saved as the table's last query; with
--last the previously saved SQL is replayed verbatim instead of
building a new statement.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := buildQuery(&lf)
		if err != nil {
			return err
		}

		var sql string
		if loadLast {
			saved, ok := appCtx.state.LastQuery(b.QueryKey())
			if !ok {
				return fmt.Errorf("no saved query for %s", lf.table)
			}
			sql = saved
		} else {
			if sql, err = b.Render(); err != nil {
				return err
			}
			appCtx.state.SetLastQuery(b.QueryKey(), sql)
			if err := saveState(appCtx.state, appCtx.statePath); err != nil {
				return err
			}
		}

		rows, err := appCtx.store.Query(cmd.Context(), sql)
		if err != nil {
			return err
		}

		def, err := types.TableByName(lf.table)
		if err != nil {
			return err
		}
		schema, err := schemaFor(lf.table)
		if err != nil {
			return err
		}

		tbl := cache.New(def, schema, appCtx.log,
			cache.WithRowLimit(appCtx.state.RowLimit),
			cache.WithReadOnly(appCtx.state.ReadOnly))
		tbl.Load(coerceRows(rows, schema))

		printTable(cmd, tbl, loadMax)
		return nil
	},
}

func init() {
	registerQueryFlags(loadCmd, &lf)
	loadCmd.Flags().BoolVar(&loadLast, "last", false, "replay the table's saved query instead of building one")
	loadCmd.Flags().IntVar(&loadMax, "max-rows", 40, "rows to print (0 for all)")
	_ = loadCmd.MarkFlagRequired("table")
}

// coerceRows converts driver values to the schema's Go representations,
// dropping values that fail coercion so one bad cell cannot sink a load.
func coerceRows(rows []map[string]any, schema types.Schema) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		coerced := make(map[string]any, len(row))
		for col, v := range row {
			ct, ok := schema.Column(col)
			if !ok {
				coerced[col] = v
				continue
			}
			cv, err := types.Coerce(v, ct.Type)
			if err != nil {
				coerced[col] = nil
				continue
			}
			coerced[col] = cv
		}
		out[i] = coerced
	}
	return out
}

// printTable writes the working view through its display projection.
func printTable(cmd *cobra.Command, tbl *cache.Table, maxRows int) {
	cols := tbl.Columns()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(cols, "\t"))

	n := tbl.RowCount()
	shown := n
	if maxRows > 0 && shown > maxRows {
		shown = maxRows
	}
	for i := 0; i < shown; i++ {
		vals := make([]string, len(cols))
		for j, col := range cols {
			vals[j], _ = tbl.Display(i, col)
		}
		fmt.Fprintln(w, strings.Join(vals, "\t"))
	}
	_ = w.Flush()

	if shown < n {
		fmt.Fprintf(cmd.OutOrStdout(), "... %d of %d rows shown\n", shown, n)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d rows\n", n)
	}
}
