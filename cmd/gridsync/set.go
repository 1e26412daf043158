// Set and delete commands for the gridsync CLI.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/gridsync/internal/store"
	"github.com/mesh-intelligence/gridsync/pkg/types"
)

var setCmd = &cobra.Command{
	Use:   "set <table> <key=val,...> <col=val,...>",
	Short: "Write columns on one store row, inserting it when missing",
	Long: `Address a row by its natural key and upsert the given column values.
Values are coerced against the table's declared column types; blanks
become NULL.

  gridsync set EventLog UID=a1 Status=Complete,DateCompleted=2024-03-01`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		if appCtx.state.ReadOnly {
			return fmt.Errorf("set %s: configuration is read-only", table)
		}

		schema, err := schemaFor(table)
		if err != nil {
			return err
		}
		keys, err := parsePairs(args[1], schema)
		if err != nil {
			return err
		}
		vals, err := parsePairs(args[2], schema)
		if err != nil {
			return err
		}

		h, err := store.NewRowHandle(appCtx.store, table, keys)
		if err != nil {
			return err
		}
		n, err := h.Upsert(cmd.Context(), vals)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) written\n", n)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table> <key=val,...>",
	Short: "Delete one store row by its natural key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := args[0]
		if appCtx.state.ReadOnly {
			return fmt.Errorf("delete %s: configuration is read-only", table)
		}

		schema, err := schemaFor(table)
		if err != nil {
			return err
		}
		keys, err := parsePairs(args[1], schema)
		if err != nil {
			return err
		}

		h, err := store.NewRowHandle(appCtx.store, table, keys)
		if err != nil {
			return err
		}
		n, err := h.Delete(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) deleted\n", n)
		return nil
	},
}

// parsePairs splits "Col=Val,Col=Val" and coerces each value against the
// schema.
func parsePairs(arg string, schema types.Schema) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range strings.Split(arg, ",") {
		col, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want Col=Val", pair)
		}
		ct, found := schema.Column(col)
		if !found {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		v, err := types.Coerce(raw, ct.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out[col] = v
	}
	return out, nil
}
