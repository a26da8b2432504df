package fibertree

import "fmt"

// Append adds (c, v) at the end of the fiber. c must be greater than every
// coordinate already present. A sub-fiber owned elsewhere is copied before
// it is attached.
func (f *Fiber) Append(c Coord, v any) error {
	if f.IsLazy() {
		return ErrLazyFiber
	}
	c = normalizeCoord(c)
	if n := len(f.coords); n > 0 && CompareCoords(c, f.coords[n-1]) <= 0 {
		return &CoordinateError{Coord: c, Prev: f.coords[n-1]}
	}
	f.coords = append(f.coords, c)
	f.payloads = append(f.payloads, f.adopt(v))
	f.noteCoord(c)
	return nil
}

// Extend appends every element of other. other must be ordered and start
// after the last coordinate of f.
func (f *Fiber) Extend(other *Fiber) error {
	if f.IsLazy() {
		return ErrLazyFiber
	}
	o := FromLazy(other)
	if !o.ordered || !o.unique {
		return ErrNotOrdered
	}
	for i, c := range o.coords {
		if err := f.Append(c, o.payloads[i]); err != nil {
			return err
		}
	}
	return nil
}

// SetAt replaces the element at pos. A [CoordPayload] value replaces the
// coordinate too, which must keep the fiber ordered; any other value
// replaces the payload.
func (f *Fiber) SetAt(pos int, v any) error {
	if f.IsLazy() {
		return ErrLazyFiber
	}
	if pos < 0 || pos >= len(f.coords) {
		return fmt.Errorf("position %d out of range [0, %d)", pos, len(f.coords))
	}
	cp, ok := v.(CoordPayload)
	if !ok {
		f.replacePayload(pos, f.adopt(v))
		return nil
	}
	c := normalizeCoord(cp.Coord)
	var prev, next Coord
	if pos > 0 {
		prev = f.coords[pos-1]
	}
	if pos < len(f.coords)-1 {
		next = f.coords[pos+1]
	}
	if (prev != nil && CompareCoords(c, prev) <= 0) || (next != nil && CompareCoords(c, next) >= 0) {
		return &CoordinateError{Coord: c, Prev: prev, Next: next}
	}
	f.coords[pos] = c
	f.replacePayload(pos, f.adopt(cp.Payload))
	f.noteCoord(c)
	return nil
}

func (f *Fiber) replacePayload(pos int, p any) {
	if old, ok := f.payloads[pos].(*Fiber); ok && old != p && old.owner != nil {
		old.owner.remove(old)
	}
	f.payloads[pos] = p
}

// adopt boxes v and makes sure a sub-fiber belongs to the rank below f.
func (f *Fiber) adopt(v any) any {
	sub, ok := v.(*Fiber)
	if !ok {
		return MaybeBox(v)
	}
	sub = FromLazy(sub)
	if f.owner == nil || f.owner.next == nil {
		return sub
	}
	if sub.owner != f.owner.next {
		if sub.owner != nil {
			sub = sub.Copy()
		}
		f.owner.next.adoptTree(sub)
	}
	return sub
}

// adoptTree appends f to r and its sub-fibers to the ranks below.
func (r *Rank) adoptTree(f *Fiber) {
	r.Append(f)
	if r.next == nil {
		return
	}
	for i, p := range f.payloads {
		sub, ok := p.(*Fiber)
		if !ok {
			continue
		}
		if sub.owner != nil && sub.owner != r.next {
			sub = sub.Copy()
			f.payloads[i] = sub
		}
		r.next.adoptTree(FromLazy(sub))
	}
}

// UpdateCoords replaces every coordinate at the given depth with
// fn(position, coordinate, payload). Ordering is not enforced; the ordered
// and unique flags are recomputed.
func (f *Fiber) UpdateCoords(fn func(i int, c Coord, p any) Coord, depth int) error {
	return f.atDepth(depth, func(g *Fiber) error {
		for i, c := range g.coords {
			g.coords[i] = normalizeCoord(fn(i, c, g.payloads[i]))
			g.noteCoord(g.coords[i])
		}
		g.ordered, g.unique = checkOrder(g.coords)
		return nil
	})
}

// UpdatePayloads replaces every payload at the given depth with fn(p).
func (f *Fiber) UpdatePayloads(fn func(p any) any, depth int) error {
	return f.atDepth(depth, func(g *Fiber) error {
		for i, p := range g.payloads {
			g.replacePayload(i, g.adopt(fn(p)))
		}
		return nil
	})
}

// UpdatePayloadsBelow replaces every sub-fiber payload found depth levels
// below f by fn(sub). Depth 0 addresses the payloads of f itself.
func (f *Fiber) UpdatePayloadsBelow(depth int, fn func(*Fiber) (*Fiber, error)) error {
	return f.atDepth(depth, func(g *Fiber) error {
		for i, p := range g.payloads {
			sub, ok := p.(*Fiber)
			if !ok {
				return ErrTooDeep
			}
			out, err := fn(FromLazy(sub))
			if err != nil {
				return err
			}
			g.replacePayload(i, out)
		}
		return nil
	})
}

// atDepth applies fn to every eager fiber depth levels below f.
func (f *Fiber) atDepth(depth int, fn func(*Fiber) error) error {
	if f.IsLazy() {
		return ErrLazyFiber
	}
	if depth == 0 {
		return fn(f)
	}
	for i, p := range f.payloads {
		sub, ok := p.(*Fiber)
		if !ok {
			return ErrTooDeep
		}
		if sub.IsLazy() {
			sub = FromLazy(sub)
			f.payloads[i] = sub
		}
		if err := sub.atDepth(depth-1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Assign replaces the contents of f with a deep copy of other (the fiber
// form of <<=). Sub-fibers of f are released from their rank and the
// copies are registered in their place.
func (f *Fiber) Assign(other *Fiber) {
	if f.IsLazy() {
		panic(assertf("assign", ErrLazyFiber))
	}
	src := other.Copy()
	for i := range f.payloads {
		if old, ok := f.payloads[i].(*Fiber); ok && old.owner != nil {
			old.owner.remove(old)
		}
	}
	f.coords = src.coords
	f.payloads = make([]any, len(src.payloads))
	for i, p := range src.payloads {
		f.payloads[i] = f.adopt(p)
	}
	for _, c := range f.coords {
		f.noteCoord(c)
	}
	f.ordered, f.unique = src.ordered, src.unique
}

// Prune removes explicit default payloads and empty sub-fibers,
// recursively, and returns f.
func (f *Fiber) Prune() *Fiber {
	if f.IsLazy() {
		return f
	}
	for i := len(f.payloads) - 1; i >= 0; i-- {
		if sub, ok := f.payloads[i].(*Fiber); ok {
			sub.Prune()
		}
		if f.isDefault(f.payloads[i]) {
			f.removeAt(i)
		}
	}
	return f
}
