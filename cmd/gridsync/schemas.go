package main

import (
	"fmt"

	"github.com/mesh-intelligence/gridsync/pkg/types"
)

// tableSchemas declares the columns of every synchronized table. The CLI
// needs them for coercion on import and for building cached copies; the
// registry in pkg/types holds only the keys and view titles.
var tableSchemas = map[string]types.Schema{
	types.TableEventLog: {
		{Name: "UID", Type: types.TypeText},
		{Name: "Unit", Type: types.TypeText},
		{Name: "Title", Type: types.TypeText},
		{Name: "Description", Type: types.TypeText},
		{Name: "Status", Type: types.TypeText},
		{Name: "SMR", Type: types.TypeInt},
		{Name: "DateAdded", Type: types.TypeDate},
		{Name: "DateCompleted", Type: types.TypeDate},
	},
	types.TableUnits: {
		{Name: "Unit", Type: types.TypeText},
		{Name: "Model", Type: types.TypeText},
		{Name: "Serial", Type: types.TypeText},
		{Name: "MineSite", Type: types.TypeText},
		{Name: "DeliveryDate", Type: types.TypeDate},
	},
	types.TableFactoryCampaign: {
		{Name: "Unit", Type: types.TypeText},
		{Name: "FCNumber", Type: types.TypeText},
		{Name: "Subject", Type: types.TypeText},
		{Name: "Classification", Type: types.TypeText},
		{Name: "Complete", Type: types.TypeBool},
		{Name: "DateCompleteSMS", Type: types.TypeDate},
	},
	types.TableUnitSMR: {
		{Name: "Unit", Type: types.TypeText},
		{Name: "DateSMR", Type: types.TypeDate},
		{Name: "SMR", Type: types.TypeInt},
	},
	types.TableComponentType: {
		{Name: "Floc", Type: types.TypeText},
		{Name: "Component", Type: types.TypeText},
		{Name: "Modifier", Type: types.TypeText},
		{Name: "BenchSMR", Type: types.TypeInt},
	},
}

// viewColumns maps view labels to store columns per table title.
func viewColumns() *types.ColumnMap {
	cm := types.NewColumnMap()
	cm.Register("Event Log", map[string]string{
		"Added":     "DateAdded",
		"Completed": "DateCompleted",
	})
	cm.Register("Unit Info", map[string]string{
		"Delivery Date": "DeliveryDate",
	})
	cm.Register("FC Details", map[string]string{
		"FC Number":    "FCNumber",
		"Complete SMS": "DateCompleteSMS",
	})
	return cm
}

func schemaFor(table string) (types.Schema, error) {
	schema, ok := tableSchemas[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}
	return schema, nil
}
