// Import command for the gridsync CLI.
package main

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gridsync/internal/store"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

var importSinceCol string

var importCmd = &cobra.Command{
	Use:   "import <table> <csv-file>",
	Short: "Merge a CSV file into a store table",
	Long: `Read a CSV file whose header names store columns and merge its rows
into the table: rows whose natural key exists are updated, the rest
inserted, all in one transaction. With --since-column the greatest
value of that date column is printed first, showing where an
incremental export should resume.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, path := args[0], args[1]
		if appCtx.state.ReadOnly {
			return fmt.Errorf("import %s: configuration is read-only", table)
		}

		schema, err := schemaFor(table)
		if err != nil {
			return err
		}

		if importSinceCol != "" {
			max, err := appCtx.store.MaxDate(cmd.Context(), table, importSinceCol)
			if err != nil {
				return err
			}
			if max.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: table is empty\n", table, importSinceCol)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s.%s max: %s\n", table, importSinceCol, max.Format("2006-01-02"))
			}
		}

		rows, err := readCSVRows(path, schema)
		if err != nil {
			return err
		}

		tr := store.NewTransaction(appCtx.store, viewColumns(), appCtx.log)
		inserted, updated, err := tr.InsertUpdate(cmd.Context(), table, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d inserted, %d updated\n", inserted, updated)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSinceCol, "since-column", "", "date column whose maximum to print before importing")
}

// readCSVRows parses the file into store-keyed, schema-coerced row maps.
// The first record is the header.
func readCSVRows(path string, schema types.Schema) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	header := records[0]
	for _, col := range header {
		if _, ok := schema.Column(col); !ok {
			return nil, fmt.Errorf("%s: unknown column %q in header", path, col)
		}
	}

	rows := make([]map[string]any, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for j, col := range header {
			ct, _ := schema.Column(col)
			v, err := types.Coerce(rec[j], ct.Type)
			if err != nil {
				return nil, fmt.Errorf("%s row %d, column %s: %w", path, i+2, col, err)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
