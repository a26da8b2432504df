package fibertree

import (
	"iter"
	"slices"
)

// Fiber is an ordered sequence of (coordinate, payload) pairs. Payloads are
// either boxed scalars (*Payload) or sub-fibers (*Fiber).
//
// A fiber is eager, holding parallel coordinate and payload arrays, or lazy,
// wrapping a restartable iterator that produces its elements on demand.
// Operations that rearrange elements (splits, flattening, swaps) require an
// eager fiber; [FromLazy] materializes a lazy one.
//
// Fibers are not safe for concurrent use.
type Fiber struct {
	coords   []Coord
	payloads []any
	seq      iter.Seq2[Coord, any]

	owner *Rank
	attrs *RankAttrs // used only while detached (owner == nil)

	activeLo, activeHi Coord
	hasActive          bool

	ordered bool
	unique  bool

	// relative is set on sub-fibers produced by a split with relative
	// coordinates: their coordinates are offsets from the parent coordinate.
	relative bool

	savedPos  int
	savedDist int
}

// FiberOption configures [NewFiber] and [FromIterator].
type FiberOption func(*fiberConfig)

type fiberConfig struct {
	def       any
	hasDef    bool
	shape     Coord
	maxCoord  Coord
	lo, hi    Coord
	hasActive bool
	rankID    string
}

// WithDefault sets the payload returned for missing coordinates of a
// detached fiber.
func WithDefault(v any) FiberOption {
	return func(c *fiberConfig) {
		c.def = normalizeValue(Unbox(v))
		c.hasDef = true
	}
}

// WithShape declares the shape of a detached fiber. A declared shape is
// authoritative and takes precedence over [WithMaxCoord].
func WithShape(shape Coord) FiberOption {
	return func(c *fiberConfig) { c.shape = normalizeCoord(shape) }
}

// WithMaxCoord records the largest coordinate the fiber may hold, so its
// (estimated) shape is maxCoord+1 even when trailing coordinates are empty.
func WithMaxCoord(maxCoord Coord) FiberOption {
	return func(c *fiberConfig) { c.maxCoord = normalizeCoord(maxCoord) }
}

// WithActiveRange scopes the fiber to the half-open range [lo, hi).
func WithActiveRange(lo, hi Coord) FiberOption {
	return func(c *fiberConfig) {
		c.lo, c.hi = normalizeCoord(lo), normalizeCoord(hi)
		c.hasActive = true
	}
}

// WithRankID names the rank of a detached fiber.
func WithRankID(id string) FiberOption {
	return func(c *fiberConfig) { c.rankID = id }
}

// NewFiber creates an eager fiber. Both slices are copied and scalar
// payloads are boxed. A nil coords slice numbers the payloads 0..n-1; a nil
// payloads slice fills every coordinate with the default payload.
//
// NewFiber returns [ErrLengthMismatch] when both slices are given with
// different lengths.
func NewFiber(coords []Coord, payloads []any, opts ...FiberOption) (*Fiber, error) {
	var cfg fiberConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case coords == nil && payloads != nil:
		coords = make([]Coord, len(payloads))
		for i := range coords {
			coords[i] = i
		}
	case payloads == nil && coords != nil:
		payloads = make([]any, len(coords))
	}
	if len(coords) != len(payloads) {
		return nil, ErrLengthMismatch
	}

	def := cfg.def
	if !cfg.hasDef {
		def = 0
		for _, p := range payloads {
			if _, ok := p.(*Fiber); ok {
				def = FiberDefault
				break
			}
		}
	}

	f := &Fiber{
		coords:   make([]Coord, len(coords)),
		payloads: make([]any, len(payloads)),
		attrs:    NewRankAttrs(cfg.rankID, nil),
	}
	f.attrs.def = def
	for i, c := range coords {
		f.coords[i] = normalizeCoord(c)
	}
	for i, p := range payloads {
		if p == nil {
			f.payloads[i] = f.newDefaultPayload()
			continue
		}
		f.payloads[i] = MaybeBox(p)
	}
	f.ordered, f.unique = checkOrder(f.coords)
	cfg.applyShape(f)
	return f, nil
}

func (cfg *fiberConfig) applyShape(f *Fiber) {
	switch {
	case cfg.shape != nil:
		f.attrs.SetShape(cfg.shape)
	case cfg.maxCoord != nil:
		f.attrs.shape = growShape(nil, cfg.maxCoord)
		f.attrs.estimated = true
	}
	if cfg.hasActive {
		f.activeLo, f.activeHi, f.hasActive = cfg.lo, cfg.hi, true
	}
}

// FromIterator creates a lazy fiber. seq is invoked afresh on every
// traversal, so it must not depend on state advanced by a previous
// traversal. Elements must be produced in ascending coordinate order.
func FromIterator(seq iter.Seq2[Coord, any], opts ...FiberOption) *Fiber {
	var cfg fiberConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	f := &Fiber{
		seq:     seq,
		attrs:   NewRankAttrs(cfg.rankID, nil),
		ordered: true,
		unique:  true,
	}
	if cfg.hasDef {
		f.attrs.def = cfg.def
	}
	cfg.applyShape(f)
	return f
}

// FromLazy materializes a lazy fiber into an eager one. Payload identity is
// preserved; scalar payloads produced by the iterator are boxed. An eager
// fiber is returned unchanged.
func FromLazy(f *Fiber) *Fiber {
	if !f.IsLazy() {
		return f
	}
	out := &Fiber{
		attrs:     f.rankAttrs().Clone(),
		ordered:   true,
		unique:    true,
		activeLo:  f.activeLo,
		activeHi:  f.activeHi,
		hasActive: f.hasActive,
	}
	out.attrs.def = f.Default()
	for c, p := range f.seq {
		out.coords = append(out.coords, c)
		out.payloads = append(out.payloads, MaybeBox(p))
	}
	out.ordered, out.unique = checkOrder(out.coords)
	return out
}

func checkOrder(coords []Coord) (ordered, unique bool) {
	ordered, unique = true, true
	for i := 1; i < len(coords); i++ {
		switch c := CompareCoords(coords[i-1], coords[i]); {
		case c > 0:
			ordered = false
		case c == 0:
			unique = false
		}
	}
	if !ordered {
		sorted := slices.Clone(coords)
		slices.SortFunc(sorted, CompareCoords)
		unique = true
		for i := 1; i < len(sorted); i++ {
			if CompareCoords(sorted[i-1], sorted[i]) == 0 {
				unique = false
				break
			}
		}
	}
	return ordered, unique
}

// newDetached creates an empty eager fiber that is not owned by a rank.
func newDetached(def any, shape Coord) *Fiber {
	f := &Fiber{attrs: NewRankAttrs("", shape), ordered: true, unique: true}
	f.attrs.def = def
	return f
}

func (f *Fiber) rankAttrs() *RankAttrs {
	if f.owner != nil {
		return f.owner.attrs
	}
	if f.attrs == nil {
		f.attrs = NewRankAttrs("", nil)
	}
	return f.attrs
}

// Owner returns the rank that owns f, or nil for a detached fiber.
func (f *Fiber) Owner() *Rank { return f.owner }

// RankAttrs returns the attributes governing f: the owner's when owned,
// otherwise the fiber's detached attributes.
func (f *Fiber) RankAttrs() *RankAttrs { return f.rankAttrs() }

// RankID returns the id of the rank f belongs to ("" when anonymous).
func (f *Fiber) RankID() string { return f.rankAttrs().id }

// Default returns the payload value of missing coordinates. Owned fibers
// defer to their rank; detached fibers use the constructor default.
func (f *Fiber) Default() any {
	if f.owner != nil {
		return f.owner.Default()
	}
	return f.rankAttrs().def
}

// SetDefault sets the default of a detached fiber, or of its rank when owned.
func (f *Fiber) SetDefault(v any) { f.rankAttrs().SetDefault(v) }

// IsLazy reports whether f wraps an iterator.
func (f *Fiber) IsLazy() bool { return f.seq != nil }

// Ordered reports whether the coordinates are ascending.
func (f *Fiber) Ordered() bool { return f.ordered }

// Unique reports whether no coordinate repeats.
func (f *Fiber) Unique() bool { return f.unique }

// Len returns the number of elements. A lazy fiber is traversed to count.
func (f *Fiber) Len() int {
	if !f.IsLazy() {
		return len(f.coords)
	}
	n := 0
	for range f.seq {
		n++
	}
	return n
}

// Coords returns a copy of the coordinate array (materializing lazy fibers).
func (f *Fiber) Coords() []Coord {
	return slices.Clone(FromLazy(f).coords)
}

// Payloads returns a copy of the payload array (materializing lazy fibers).
func (f *Fiber) Payloads() []any {
	return slices.Clone(FromLazy(f).payloads)
}

// At returns the element at position pos. It panics if pos is out of range.
func (f *Fiber) At(pos int) CoordPayload {
	e := FromLazy(f)
	return CoordPayload{Coord: e.coords[pos], Payload: e.payloads[pos]}
}

// MinCoord returns the smallest coordinate, or nil for an empty fiber.
func (f *Fiber) MinCoord() Coord {
	e := FromLazy(f)
	if len(e.coords) == 0 {
		return nil
	}
	if e.ordered {
		return e.coords[0]
	}
	return slices.MinFunc(e.coords, CompareCoords)
}

// MaxCoord returns the largest coordinate, or nil for an empty fiber.
func (f *Fiber) MaxCoord() Coord {
	e := FromLazy(f)
	if len(e.coords) == 0 {
		return nil
	}
	if e.ordered {
		return e.coords[len(e.coords)-1]
	}
	return slices.MaxFunc(e.coords, CompareCoords)
}

// SavedPos returns the position hint used by hinted lookups.
func (f *Fiber) SavedPos() int { return f.savedPos }

// SetSavedPos sets the position hint used by hinted lookups.
func (f *Fiber) SetSavedPos(pos int) { f.savedPos = pos }

// SavedPosStats returns the cumulative distance hinted lookups have moved
// from their starting hint.
func (f *Fiber) SavedPosStats() int { return f.savedDist }

// ActiveRange returns the [lo, hi) window the fiber is scoped to. Unless
// set explicitly it is [0, shape). Both bounds are nil for ranks without an
// integer shape.
func (f *Fiber) ActiveRange() (lo, hi Coord) {
	if f.hasActive {
		return f.activeLo, f.activeHi
	}
	if s, ok := f.intShape(); ok {
		return 0, s
	}
	return nil, nil
}

// SetActiveRange scopes the fiber to [lo, hi), clamped to [0, shape) when
// the shape is known.
func (f *Fiber) SetActiveRange(lo, hi Coord) {
	lo, hi = normalizeCoord(lo), normalizeCoord(hi)
	if s, ok := f.intShape(); ok {
		if l, ok := lo.(int); ok && l < 0 {
			lo = 0
		}
		if h, ok := hi.(int); ok && h > s {
			hi = s
		}
	}
	f.activeLo, f.activeHi, f.hasActive = lo, hi, true
}

func (f *Fiber) inActiveRange(c Coord) bool {
	lo, hi := f.ActiveRange()
	if lo != nil && CompareCoords(c, lo) < 0 {
		return false
	}
	if hi != nil && CompareCoords(c, hi) >= 0 {
		return false
	}
	return true
}

// newDefaultPayload creates a fresh payload equal to the fiber default: an
// empty sub-fiber for non-leaf ranks, otherwise a boxed scalar.
func (f *Fiber) newDefaultPayload() any {
	d := f.Default()
	if d == FiberDefault {
		return f.newChild()
	}
	return NewPayload(d)
}

// newChild creates an empty fiber for the rank below f. It is not appended
// to that rank; see insertDefault.
func (f *Fiber) newChild() *Fiber {
	if f.owner != nil && f.owner.next != nil {
		c := &Fiber{ordered: true, unique: true}
		c.attrs = f.owner.next.attrs.Clone()
		c.attrs.def = f.owner.next.Default()
		return c
	}
	return newDetached(0, nil)
}

// isDefault reports whether p is indistinguishable from a missing
// coordinate: an empty sub-fiber or a value equal to the fiber default.
func (f *Fiber) isDefault(p any) bool {
	switch x := p.(type) {
	case *Fiber:
		return x.IsEmpty()
	case *Payload:
		d := f.Default()
		if d == FiberDefault {
			return false
		}
		return equalValues(x.value, d)
	}
	return false
}

// IsEmpty reports whether every payload of f is a default (recursively).
func (f *Fiber) IsEmpty() bool {
	for _, p := range f.raw() {
		if !f.isDefault(p) {
			return false
		}
	}
	return true
}

// raw iterates the elements without metrics instrumentation.
func (f *Fiber) raw() iter.Seq2[Coord, any] {
	if f.seq != nil {
		return f.seq
	}
	return func(yield func(Coord, any) bool) {
		for i := 0; i < len(f.coords); i++ {
			if !yield(f.coords[i], f.payloads[i]) {
				return
			}
		}
	}
}

// Copy returns a detached deep copy of f: sub-fibers are copied and scalar
// payloads are re-boxed, so the copy shares no mutable state with f.
func (f *Fiber) Copy() *Fiber {
	e := FromLazy(f)
	out := &Fiber{
		coords:    slices.Clone(e.coords),
		payloads:  make([]any, len(e.payloads)),
		attrs:     f.rankAttrs().Clone(),
		activeLo:  f.activeLo,
		activeHi:  f.activeHi,
		hasActive: f.hasActive,
		ordered:   e.ordered,
		unique:    e.unique,
		relative:  f.relative,
	}
	out.attrs.def = f.Default()
	for i, p := range e.payloads {
		out.payloads[i] = copyPayload(p)
	}
	return out
}

func copyPayload(p any) any {
	switch x := p.(type) {
	case *Fiber:
		return x.Copy()
	case *Payload:
		return &Payload{value: x.value}
	}
	return MaybeBox(p)
}

// Depth returns the number of ranks in the tree rooted at f.
func (f *Fiber) Depth() int {
	for _, p := range f.raw() {
		if sub, ok := p.(*Fiber); ok {
			return 1 + sub.Depth()
		}
		return 1
	}
	if f.Default() == FiberDefault {
		if f.owner != nil {
			n := 0
			for r := f.owner; r != nil; r = r.next {
				n++
			}
			return n
		}
		return 2
	}
	return 1
}
