package fibertree

import "slices"

// SplitOptions tunes [Fiber.SplitUniform].
type SplitOptions struct {
	// Partitions > 1 deals the groups round-robin into that many
	// partitions, adding a level above the group level.
	Partitions int
	// RelativeCoords makes coordinates in each group offsets from the
	// group's starting coordinate.
	RelativeCoords bool
}

// group is one sub-fiber under construction.
type group struct {
	start  Coord
	lo, hi Coord
	coords []Coord
	pays   []any
}

// SplitUniform groups the elements by coordinate into buckets of size
// step. The result maps each bucket start to a sub-fiber holding the
// bucket's elements. Payloads are shared with f.
func (f *Fiber) SplitUniform(step int, opts SplitOptions) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if step <= 0 || opts.Partitions < 0 {
		return nil, ErrBadStep
	}
	if !f.ordered || !f.unique {
		return nil, ErrNotOrdered
	}
	var groups []*group
	for i, c := range f.coords {
		ci, ok := c.(int)
		if !ok {
			return nil, ErrNotIntCoord
		}
		start := ci - ci%step
		if ci < 0 && ci%step != 0 {
			start -= step
		}
		if n := len(groups); n == 0 || groups[n-1].start != start {
			groups = append(groups, &group{start: start, lo: start, hi: start + step})
		}
		g := groups[len(groups)-1]
		if opts.RelativeCoords {
			c = ci - start
		}
		g.coords = append(g.coords, c)
		g.pays = append(g.pays, f.payloads[i])
	}
	out := f.assembleGroups(groups, opts.RelativeCoords)
	if opts.Partitions > 1 {
		return out.partition(opts.Partitions), nil
	}
	return out, nil
}

// SplitNonUniform groups the elements at the given ascending coordinates:
// group i holds splits[i] <= c < splits[i+1]. Elements below splits[0]
// join the first group.
func (f *Fiber) SplitNonUniform(splits []Coord) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if len(splits) == 0 {
		return nil, ErrBadStep
	}
	if !f.ordered || !f.unique {
		return nil, ErrNotOrdered
	}
	bounds := make([]Coord, len(splits))
	for i, s := range splits {
		bounds[i] = normalizeCoord(s)
		if i > 0 && CompareCoords(bounds[i-1], bounds[i]) >= 0 {
			return nil, &CoordinateError{Coord: bounds[i], Prev: bounds[i-1]}
		}
	}
	_, end := f.ActiveRange()
	var groups []*group
	k := -1
	for i, c := range f.coords {
		j := 0
		for j+1 < len(bounds) && CompareCoords(bounds[j+1], c) <= 0 {
			j++
		}
		if j != k {
			k = j
			hi := end
			if j+1 < len(bounds) {
				hi = bounds[j+1]
			}
			groups = append(groups, &group{start: bounds[j], lo: bounds[j], hi: hi})
		}
		g := groups[len(groups)-1]
		g.coords = append(g.coords, c)
		g.pays = append(g.pays, f.payloads[i])
	}
	return f.assembleGroups(groups, false), nil
}

// SplitEqual groups the elements by position into runs of n. Each group is
// keyed by its first coordinate; only the last group may be shorter.
func (f *Fiber) SplitEqual(n int) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if n <= 0 {
		return nil, ErrBadStep
	}
	var sizes []int
	for left := len(f.coords); left > 0; left -= n {
		sizes = append(sizes, min(n, left))
	}
	return f.splitBySizes(sizes), nil
}

// SplitUnEqual groups the elements by position into runs of the given
// sizes. Elements left over after the last size join the last group.
func (f *Fiber) SplitUnEqual(sizes []int) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if len(sizes) == 0 || slices.ContainsFunc(sizes, func(s int) bool { return s <= 0 }) {
		return nil, ErrBadStep
	}
	var runs []int
	left := len(f.coords)
	for i, n := range sizes {
		if left == 0 {
			break
		}
		if i == len(sizes)-1 {
			n = left
		}
		n = min(n, left)
		runs = append(runs, n)
		left -= n
	}
	return f.splitBySizes(runs), nil
}

func (f *Fiber) splitBySizes(sizes []int) *Fiber {
	_, end := f.ActiveRange()
	groups := make([]*group, 0, len(sizes))
	pos := 0
	for _, s := range sizes {
		if s <= 0 {
			continue
		}
		g := &group{
			start:  f.coords[pos],
			lo:     f.coords[pos],
			coords: f.coords[pos : pos+s],
			pays:   f.payloads[pos : pos+s],
		}
		groups = append(groups, g)
		pos += s
	}
	for i, g := range groups {
		if i+1 < len(groups) {
			g.hi = groups[i+1].start
		} else {
			g.hi = end
		}
	}
	return f.assembleGroups(groups, false)
}

// assembleGroups builds the two-level result of a split.
func (f *Fiber) assembleGroups(groups []*group, relative bool) *Fiber {
	a := f.rankAttrs()
	out := newDetached(FiberDefault, a.shape)
	out.attrs.id = a.id
	out.attrs.estimated = a.estimated
	for _, g := range groups {
		sub := newDetached(f.Default(), a.shape)
		sub.attrs.id = a.id
		sub.attrs.estimated = a.estimated
		sub.attrs.format = a.format
		sub.coords = slices.Clone(g.coords)
		sub.payloads = slices.Clone(g.pays)
		sub.relative = relative
		if relative {
			sub.attrs.shape = subInt(g.hi, g.lo)
			sub.activeLo, sub.activeHi = 0, subInt(g.hi, g.lo)
		} else {
			sub.activeLo, sub.activeHi = g.lo, g.hi
		}
		sub.hasActive = g.hi != nil
		sub.ordered, sub.unique = checkOrder(sub.coords)

		out.coords = append(out.coords, g.start)
		out.payloads = append(out.payloads, sub)
	}
	out.ordered, out.unique = checkOrder(out.coords)
	return out
}

// partition deals the elements of f round-robin into n fibers under a new
// top level with coordinates 0..n-1.
func (f *Fiber) partition(n int) *Fiber {
	out := newDetached(FiberDefault, n)
	parts := make([]*Fiber, n)
	for i := range parts {
		parts[i] = newDetached(FiberDefault, f.rankAttrs().shape)
		parts[i].attrs.id = f.RankID()
	}
	for i, c := range f.coords {
		p := parts[i%n]
		p.coords = append(p.coords, c)
		p.payloads = append(p.payloads, f.payloads[i])
	}
	for i, p := range parts {
		p.ordered, p.unique = checkOrder(p.coords)
		out.coords = append(out.coords, i)
		out.payloads = append(out.payloads, p)
	}
	return out
}

func subInt(a, b Coord) int {
	x, _ := asInt(a)
	y, _ := asInt(b)
	return x - y
}

// Div is SplitUniform(step) with default options (the / operator).
func (f *Fiber) Div(step int) (*Fiber, error) { return f.SplitUniform(step, SplitOptions{}) }

// FloorDiv is SplitEqual(n) (the // operator).
func (f *Fiber) FloorDiv(n int) (*Fiber, error) { return f.SplitEqual(n) }

// SplitUniformBelow applies SplitUniform to every fiber depth levels below
// the payloads of f (depth 0 splits the sub-fibers of f).
func (f *Fiber) SplitUniformBelow(depth, step int, opts SplitOptions) error {
	return f.UpdatePayloadsBelow(depth, func(sub *Fiber) (*Fiber, error) {
		return sub.SplitUniform(step, opts)
	})
}

// SplitNonUniformBelow applies SplitNonUniform below f.
func (f *Fiber) SplitNonUniformBelow(depth int, splits []Coord) error {
	return f.UpdatePayloadsBelow(depth, func(sub *Fiber) (*Fiber, error) {
		return sub.SplitNonUniform(splits)
	})
}

// SplitEqualBelow applies SplitEqual below f.
func (f *Fiber) SplitEqualBelow(depth, n int) error {
	return f.UpdatePayloadsBelow(depth, func(sub *Fiber) (*Fiber, error) {
		return sub.SplitEqual(n)
	})
}

// SplitUnEqualBelow applies SplitUnEqual below f.
func (f *Fiber) SplitUnEqualBelow(depth int, sizes []int) error {
	return f.UpdatePayloadsBelow(depth, func(sub *Fiber) (*Fiber, error) {
		return sub.SplitUnEqual(sizes)
	})
}
