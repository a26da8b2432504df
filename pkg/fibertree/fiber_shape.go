package fibertree

import "strings"

// ShapeOptions tunes [Fiber.GetShape].
type ShapeOptions struct {
	// AllRanks returns the shape of every rank below f too.
	AllRanks bool
	// Authoritative returns nil unless every shape was declared.
	Authoritative bool
}

// GetShape returns the shape of the rank of f, or of every rank with
// AllRanks set. Owned fibers report their ranks' shapes; detached fibers
// report their declared shape, or estimate it from the data.
func (f *Fiber) GetShape(opts ShapeOptions) []Coord {
	if f.owner != nil {
		return f.owner.GetShape(opts.AllRanks, opts.Authoritative)
	}
	shapes, estimated := f.detachedShape(opts.AllRanks)
	if opts.Authoritative && estimated {
		return nil
	}
	return shapes
}

func (f *Fiber) detachedShape(allRanks bool) ([]Coord, bool) {
	e := FromLazy(f)
	a := f.rankAttrs()
	shape, estimated := a.shape, a.estimated
	if estimated {
		for _, c := range e.coords {
			shape = growShape(shape, c)
		}
	}
	out := []Coord{shape}
	if !allRanks {
		return out, estimated
	}

	var below []Coord
	for _, p := range e.payloads {
		sub, ok := p.(*Fiber)
		if !ok {
			continue
		}
		for i, x := range sub.GetShape(ShapeOptions{AllRanks: true}) {
			if i == len(below) {
				below = append(below, x)
			} else {
				below[i] = maxShape(below[i], x)
			}
		}
		if sub.GetShape(ShapeOptions{AllRanks: true, Authoritative: true}) == nil {
			estimated = true
		}
	}
	return append(out, below...), estimated
}

func maxShape(a, b Coord) Coord {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	if CompareCoords(b, a) > 0 {
		return b
	}
	return a
}

// intShape returns the shape of f's rank when it is an int.
func (f *Fiber) intShape() (int, bool) {
	s := f.GetShape(ShapeOptions{})
	if len(s) == 0 {
		return 0, false
	}
	return asInt(s[0])
}

// EstimateShape derives the shape from the data alone: the largest
// coordinate plus one at each level, taken over all fibers of the level.
func (f *Fiber) EstimateShape(allRanks bool) []Coord {
	var shape Coord
	var below []Coord
	for c, p := range f.raw() {
		shape = growShape(shape, c)
		if !allRanks {
			continue
		}
		if sub, ok := p.(*Fiber); ok {
			for i, x := range sub.EstimateShape(true) {
				if i == len(below) {
					below = append(below, x)
				} else {
					below[i] = maxShape(below[i], x)
				}
			}
		}
	}
	if shape == nil {
		shape = 0
	}
	return append([]Coord{shape}, below...)
}

// CountValues counts the leaf payloads that differ from their default.
func (f *Fiber) CountValues() int {
	n := 0
	for _, p := range f.raw() {
		switch x := p.(type) {
		case *Fiber:
			n += x.CountValues()
		default:
			if !f.isDefault(x) {
				n++
			}
		}
	}
	return n
}

// Uncompress expands f into nested []any slices covering the full shape.
// Missing leaves hold the leaf default. Every shape must be an int.
func (f *Fiber) Uncompress() ([]any, error) {
	shape := f.GetShape(ShapeOptions{AllRanks: true})
	dims := make([]int, len(shape))
	for i, s := range shape {
		if s == nil {
			continue
		}
		n, ok := asInt(s)
		if !ok {
			return nil, ErrNotIntCoord
		}
		dims[i] = n
	}
	return f.uncompress(dims, f.leafDefault())
}

func (f *Fiber) uncompress(dims []int, def any) ([]any, error) {
	out := emptyDense(dims, def)
	for c, p := range f.raw() {
		i, ok := c.(int)
		if !ok {
			return nil, ErrNotIntCoord
		}
		if i < 0 || i >= len(out) {
			continue
		}
		sub, isFiber := p.(*Fiber)
		switch {
		case isFiber && len(dims) == 1:
			return nil, ErrTooDeep
		case isFiber:
			v, err := sub.uncompress(dims[1:], def)
			if err != nil {
				return nil, err
			}
			out[i] = v
		default:
			out[i] = Unbox(p)
		}
	}
	return out, nil
}

func emptyDense(dims []int, def any) []any {
	out := make([]any, dims[0])
	for i := range out {
		if len(dims) == 1 {
			out[i] = def
		} else {
			out[i] = emptyDense(dims[1:], def)
		}
	}
	return out
}

// leafDefault returns the default payload of the leaf rank of the tree.
func (f *Fiber) leafDefault() any {
	cur := f
	for {
		d := cur.Default()
		if d != FiberDefault {
			return d
		}
		if cur.owner != nil {
			r := cur.owner
			for r.next != nil {
				r = r.next
			}
			return r.Default()
		}
		var next *Fiber
		for _, p := range cur.raw() {
			if sub, ok := p.(*Fiber); ok {
				next = sub
				break
			}
		}
		if next == nil {
			return 0
		}
		cur = next
	}
}

// Equal compares the coordinates and payloads of two fiber trees. Entries
// holding a default payload are ignored on both sides.
func (f *Fiber) Equal(other *Fiber) bool {
	if f == other {
		return true
	}
	if other == nil {
		return false
	}
	a, b := f.nonDefault(), other.nonDefault()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !CoordsEqual(a[i].Coord, b[i].Coord) || coordArity(a[i].Coord) != coordArity(b[i].Coord) {
			return false
		}
		pa, pb := a[i].Payload, b[i].Payload
		fa, aFiber := pa.(*Fiber)
		fb, bFiber := pb.(*Fiber)
		switch {
		case aFiber && bFiber:
			if !fa.Equal(fb) {
				return false
			}
		case aFiber || bFiber:
			return false
		default:
			if !equalValues(pa, pb) {
				return false
			}
		}
	}
	return true
}

func (f *Fiber) nonDefault() []CoordPayload {
	var out []CoordPayload
	for c, p := range f.raw() {
		if !f.isDefault(p) {
			out = append(out, CoordPayload{Coord: c, Payload: p})
		}
	}
	return out
}

// String formats the tree as F/[(c -> p) ...], nesting sub-fibers.
func (f *Fiber) String() string {
	var b strings.Builder
	f.format(&b)
	return b.String()
}

func (f *Fiber) format(b *strings.Builder) {
	b.WriteString("F/[")
	first := true
	for c, p := range f.raw() {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteByte('(')
		b.WriteString(fmtCoord(c))
		b.WriteString(" -> ")
		if sub, ok := p.(*Fiber); ok {
			sub.format(b)
		} else {
			b.WriteString(fmtValue(MaybeBox(p)))
		}
		b.WriteByte(')')
	}
	b.WriteByte(']')
}
