package types

// ColorToken names a color in the consumer's palette. The zero token means
// "no color set", which is distinct from ColorInherit: an unset background
// lets row-level highlighting apply, an inherited one explicitly defers to
// the surrounding widget.
type ColorToken string

// ColorInherit defers the cell's color to the presentation layer.
const ColorInherit ColorToken = "inherit"

// Alignment of a cell's display text, derived from the column type.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignRight  Alignment = "right"
	AlignCenter Alignment = "center"
)

// CellStyle is the per-cell style portion of a projection.
type CellStyle struct {
	Background ColorToken
	Foreground ColorToken
}

// StyleFunc computes a style for a cell value. Registered per column on the
// cache; nil return values leave the cell unstyled.
type StyleFunc func(val any) CellStyle
