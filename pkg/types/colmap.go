package types

// ColumnMap translates between view column labels (what a grid shows) and
// store column names (what the database persists), scoped by table title so
// the same store column can display under different labels in different
// views. Names absent from a map pass through unchanged in both directions,
// so partially mapped tables degrade gracefully.
type ColumnMap struct {
	viewToStore map[string]map[string]string
	storeToView map[string]map[string]string
}

// NewColumnMap returns an empty column map.
func NewColumnMap() *ColumnMap {
	return &ColumnMap{
		viewToStore: map[string]map[string]string{},
		storeToView: map[string]map[string]string{},
	}
}

// Register sets the {ViewLabel: StoreColumn} pairs for a table title,
// merging into any pairs registered earlier for the same title.
func (m *ColumnMap) Register(title string, pairs map[string]string) {
	fwd, ok := m.viewToStore[title]
	if !ok {
		fwd = map[string]string{}
		m.viewToStore[title] = fwd
	}
	inv, ok := m.storeToView[title]
	if !ok {
		inv = map[string]string{}
		m.storeToView[title] = inv
	}
	for view, store := range pairs {
		fwd[view] = store
		inv[store] = view
	}
}

// ViewToStore converts view labels to store column names for a title.
func (m *ColumnMap) ViewToStore(title string, names ...string) []string {
	return translate(m.viewToStore[title], names)
}

// StoreToView converts store column names to view labels for a title.
func (m *ColumnMap) StoreToView(title string, names ...string) []string {
	return translate(m.storeToView[title], names)
}

// StoreKeyed rekeys a view-labelled value map to store column names.
func (m *ColumnMap) StoreKeyed(title string, vals map[string]any) map[string]any {
	return rekey(m.viewToStore[title], vals)
}

// ViewKeyed rekeys a store-named value map to view labels.
func (m *ColumnMap) ViewKeyed(title string, vals map[string]any) map[string]any {
	return rekey(m.storeToView[title], vals)
}

func translate(dict map[string]string, names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		if mapped, ok := dict[name]; ok {
			out[i] = mapped
		} else {
			out[i] = name
		}
	}
	return out
}

func rekey(dict map[string]string, vals map[string]any) map[string]any {
	out := make(map[string]any, len(vals))
	for name, v := range vals {
		if mapped, ok := dict[name]; ok {
			name = mapped
		}
		out[name] = v
	}
	return out
}
