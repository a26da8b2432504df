package fibertree

import "fmt"

// Format is the storage format of a rank.
type Format string

const (
	// FormatCompressed stores only non-default coordinates.
	FormatCompressed Format = "C"
	// FormatUncompressed enumerates every coordinate in [0, shape).
	FormatUncompressed Format = "U"
)

type fiberDefault struct{}

func (fiberDefault) String() string { return "Fiber" }

// FiberDefault is the default payload of non-leaf ranks. A missing
// coordinate in such a rank reads as a new empty fiber.
var FiberDefault any = fiberDefault{}

// RankAttrs is the metadata shared by all fibers of one rank.
type RankAttrs struct {
	id         string
	shape      Coord
	estimated  bool
	format     Format
	def        any
	collecting bool
}

// NewRankAttrs creates attributes for rank id. A nil shape marks the shape
// as estimated: it will be inferred from the data.
func NewRankAttrs(id string, shape Coord) *RankAttrs {
	return &RankAttrs{
		id:        id,
		shape:     normalizeCoord(shape),
		estimated: shape == nil,
		format:    FormatCompressed,
		def:       0,
	}
}

// ID returns the rank name, for example "M".
func (a *RankAttrs) ID() string { return a.id }

// SetID renames the rank.
func (a *RankAttrs) SetID(id string) { a.id = id }

// Shape returns the extent of the rank, or nil when unknown.
func (a *RankAttrs) Shape() Coord { return a.shape }

// SetShape declares the rank shape and marks it authoritative.
func (a *RankAttrs) SetShape(shape Coord) {
	a.shape = normalizeCoord(shape)
	a.estimated = false
}

// Estimated reports whether the shape was inferred from data rather than
// declared.
func (a *RankAttrs) Estimated() bool { return a.estimated }

// SetEstimated sets the estimated-shape flag.
func (a *RankAttrs) SetEstimated(estimated bool) { a.estimated = estimated }

// Format returns the storage format.
func (a *RankAttrs) Format() Format { return a.format }

// SetFormat sets the storage format.
func (a *RankAttrs) SetFormat(f Format) { a.format = f }

// Default returns the default payload value, [FiberDefault] for non-leaf
// ranks.
func (a *RankAttrs) Default() any { return a.def }

// SetDefault sets the default payload value.
func (a *RankAttrs) SetDefault(v any) { a.def = normalizeValue(Unbox(v)) }

// Collecting reports whether reuse statistics are gathered for this rank.
func (a *RankAttrs) Collecting() bool { return a.collecting }

// SetCollecting enables or disables reuse statistics for this rank.
func (a *RankAttrs) SetCollecting(on bool) { a.collecting = on }

// Equal compares every attribute.
func (a *RankAttrs) Equal(o *RankAttrs) bool {
	if a == nil || o == nil {
		return a == o
	}
	return a.id == o.id &&
		shapesEqual(a.shape, o.shape) &&
		a.estimated == o.estimated &&
		a.format == o.format &&
		equalValues(a.def, o.def) &&
		a.collecting == o.collecting
}

// Clone returns an independent copy.
func (a *RankAttrs) Clone() *RankAttrs {
	c := *a
	return &c
}

func (a *RankAttrs) String() string {
	return fmt.Sprintf("RankAttrs(%s, %s, %s, %s)", a.id, fmtValue(a.shape), a.format, fmtValue(a.def))
}

func shapesEqual(a, b Coord) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return equalValues(a, b)
}
