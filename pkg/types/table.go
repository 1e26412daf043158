package types

import (
	"errors"
	"sync"
)

// TableDef describes one logical store table: its store name, the ordered
// natural-key columns used for write-back, and the view title that scopes
// its column map.
type TableDef struct {
	Name  string
	Keys  []string
	Title string
}

// Table registry errors.
var (
	ErrTableNotFound = errors.New("table not found")
	ErrInvalidTable  = errors.New("table definition requires a name and at least one key column")
)

// Standard store table names.
const (
	TableEventLog        = "EventLog"
	TableUnits           = "UnitID"
	TableFactoryCampaign = "FactoryCampaign"
	TableUnitSMR         = "UnitSMR"
	TableComponentType   = "ComponentType"
)

var (
	regMu    sync.RWMutex
	registry = map[string]TableDef{}
)

// Definitions are looked up by name at runtime, so the set of known tables is
// fixed here instead of being discovered by reflection.
func init() {
	for _, def := range []TableDef{
		{Name: TableEventLog, Keys: []string{"UID"}, Title: "Event Log"},
		{Name: TableUnits, Keys: []string{"Unit"}, Title: "Unit Info"},
		{Name: TableFactoryCampaign, Keys: []string{"Unit", "FCNumber"}, Title: "FC Details"},
		{Name: TableUnitSMR, Keys: []string{"Unit", "DateSMR"}, Title: "Unit SMR"},
		{Name: TableComponentType, Keys: []string{"Floc"}, Title: "Component CO"},
	} {
		registry[def.Name] = def
	}
}

// RegisterTable adds or replaces a table definition. Call during startup,
// before any lookups from worker goroutines.
func RegisterTable(def TableDef) error {
	if def.Name == "" || len(def.Keys) == 0 {
		return ErrInvalidTable
	}
	regMu.Lock()
	defer regMu.Unlock()
	registry[def.Name] = def
	return nil
}

// TableByName returns the definition for a store table name.
func TableByName(name string) (TableDef, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	def, ok := registry[name]
	if !ok {
		return TableDef{}, ErrTableNotFound
	}
	return def, nil
}

// TableByTitle returns the definition whose view title matches.
func TableByTitle(title string) (TableDef, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	for _, def := range registry {
		if def.Title == title {
			return def, nil
		}
	}
	return TableDef{}, ErrTableNotFound
}

// TableKeys returns the natural-key columns for a store table name.
func TableKeys(name string) ([]string, error) {
	def, err := TableByName(name)
	if err != nil {
		return nil, err
	}
	return def.Keys, nil
}
