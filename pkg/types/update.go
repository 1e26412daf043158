package types

// RowUpdate is one coalesced pending write: the natural-key values that
// identify a store row and the column values to apply to it. Produced by
// the write queue and consumed by the store's bulk operations.
type RowUpdate struct {
	Table string
	Keys  map[string]any
	Vals  map[string]any
}
