package fibertree

import (
	"fmt"
	"slices"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

// GetOptions tunes [Fiber.GetPayloadWith].
type GetOptions struct {
	// Default is returned for a missing coordinate when NoAllocate is set.
	Default any
	// NoAllocate returns Default for missing coordinates instead of a
	// fresh copy of the rank default.
	NoAllocate bool
	// UseHint starts the search of the first coordinate at the fiber's
	// saved position and updates the hint on success.
	UseHint bool
}

// GetPayload walks one coordinate per rank and returns the payload found.
// Missing coordinates yield a fresh, unattached copy of the default; the
// fiber is not modified.
func (f *Fiber) GetPayload(coords ...Coord) any {
	return f.GetPayloadWith(GetOptions{}, coords...)
}

// GetPayloadWith is [Fiber.GetPayload] with options.
func (f *Fiber) GetPayloadWith(opts GetOptions, coords ...Coord) any {
	cur := f
	for i, c := range coords {
		c = normalizeCoord(c)
		cur.recordReuse(c)
		cur = FromLazy(cur)
		pos, ok := cur.search(c, opts.UseHint && i == 0)
		if !ok {
			if opts.NoAllocate {
				return opts.Default
			}
			p := cur.newDefaultPayload()
			sub, isFiber := p.(*Fiber)
			if !isFiber || i == len(coords)-1 {
				return p
			}
			cur = sub
			continue
		}
		p := cur.payloads[pos]
		if i == len(coords)-1 {
			return p
		}
		sub, isFiber := p.(*Fiber)
		if !isFiber {
			return p
		}
		cur = sub
	}
	return cur
}

// GetPayloadRef is like GetPayload but inserts a default payload at each
// missing coordinate, in coordinate order, and returns the (possibly new)
// payload. New sub-fibers are appended to the rank below the owner.
//
// GetPayloadRef panics with an [*AssertionError] on a lazy fiber.
func (f *Fiber) GetPayloadRef(coords ...Coord) any {
	var p any = f
	for _, c := range coords {
		cur, ok := p.(*Fiber)
		if !ok {
			return p
		}
		pos := cur.GetPositionRef(c)
		p = cur.payloads[pos]
	}
	return p
}

// GetPosition returns the position of c, or false when c is absent.
func (f *Fiber) GetPosition(c Coord) (int, bool) {
	c = normalizeCoord(c)
	f.recordReuse(c)
	return FromLazy(f).search(c, false)
}

// GetPositionRef returns the position of c, inserting a default payload
// first when c is absent.
//
// GetPositionRef panics with an [*AssertionError] on a lazy fiber.
func (f *Fiber) GetPositionRef(c Coord) int {
	if f.IsLazy() {
		panic(assertf("getPositionRef", ErrLazyFiber))
	}
	c = normalizeCoord(c)
	f.recordReuse(c)
	if pos, ok := f.search(c, false); ok {
		return pos
	}
	pos := f.insertionPoint(c)
	f.insertDefault(pos, c)
	return pos
}

// GetRange returns a detached fiber holding the elements with coordinates
// in [start, start+size). Payloads are shared with f. A non-nil trans maps
// each coordinate; the result is re-sorted if the mapping breaks the order.
func (f *Fiber) GetRange(start, size int, trans func(Coord) Coord) *Fiber {
	e := FromLazy(f)
	lo, hi := 0, len(e.coords)
	if e.ordered {
		lo, _ = slices.BinarySearchFunc(e.coords, Coord(start), CompareCoords)
		hi, _ = slices.BinarySearchFunc(e.coords, Coord(start+size), CompareCoords)
	}
	out := newDetached(f.Default(), nil)
	out.attrs.id = f.RankID()
	for i := lo; i < hi; i++ {
		c := e.coords[i]
		if !e.ordered && (CompareCoords(c, start) < 0 || CompareCoords(c, start+size) >= 0) {
			continue
		}
		if trans != nil {
			c = normalizeCoord(trans(c))
		}
		out.coords = append(out.coords, c)
		out.payloads = append(out.payloads, e.payloads[i])
	}
	out.ordered, out.unique = checkOrder(out.coords)
	if !out.ordered {
		out.sortByCoord()
	}
	return out
}

// search locates c in an eager fiber. Ordered fibers use binary search,
// optionally starting at the saved position; others are scanned.
func (f *Fiber) search(c Coord, useHint bool) (int, bool) {
	if !f.ordered {
		return f.linearSearch(c)
	}

	lo := 0
	hint := f.savedPos
	if useHint && hint > 0 && hint < len(f.coords) && CompareCoords(f.coords[hint], c) <= 0 {
		lo = hint
	}
	i, found := slices.BinarySearchFunc(f.coords[lo:], c, CompareCoords)
	pos := lo + i
	if useHint && found {
		d := pos - hint
		if d < 0 {
			d = -d
		}
		f.savedDist += d
		f.savedPos = pos
	}
	return pos, found
}

func (f *Fiber) linearSearch(c Coord) (int, bool) {
	for i, x := range f.coords {
		if CompareCoords(x, c) == 0 {
			return i, true
		}
	}
	return len(f.coords), false
}

func (f *Fiber) recordReuse(c Coord) {
	a := f.rankAttrs()
	if !a.collecting || !metrics.IsCollecting() {
		return
	}
	metrics.AddReuse(a.id, fmt.Sprintf("%p/%s", f, fmtCoord(c)))
}

// insertionPoint returns the position that keeps the coordinates sorted.
func (f *Fiber) insertionPoint(c Coord) int {
	if !f.ordered {
		return len(f.coords)
	}
	i, _ := slices.BinarySearchFunc(f.coords, c, CompareCoords)
	return i
}

// insertDefault inserts a fresh default payload for c at pos and returns
// it. A new sub-fiber is registered with the rank below the owner.
func (f *Fiber) insertDefault(pos int, c Coord) any {
	p := f.newDefaultPayload()
	f.coords = slices.Insert(f.coords, pos, c)
	f.payloads = slices.Insert(f.payloads, pos, p)
	if sub, ok := p.(*Fiber); ok && f.owner != nil && f.owner.next != nil {
		f.owner.next.Append(sub)
	}
	f.noteCoord(c)
	return p
}

// removeAt deletes the element at pos, releasing a sub-fiber from its rank.
func (f *Fiber) removeAt(pos int) {
	if sub, ok := f.payloads[pos].(*Fiber); ok && sub.owner != nil {
		sub.owner.remove(sub)
	}
	f.coords = slices.Delete(f.coords, pos, pos+1)
	f.payloads = slices.Delete(f.payloads, pos, pos+1)
}

// noteCoord grows an estimated rank shape to cover c.
func (f *Fiber) noteCoord(c Coord) {
	if f.owner != nil && f.owner.attrs.estimated {
		f.owner.attrs.shape = growShape(f.owner.attrs.shape, c)
	}
}

func (f *Fiber) sortByCoord() {
	idx := make([]int, len(f.coords))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int { return CompareCoords(f.coords[a], f.coords[b]) })
	coords := make([]Coord, len(idx))
	payloads := make([]any, len(idx))
	for i, j := range idx {
		coords[i], payloads[i] = f.coords[j], f.payloads[j]
	}
	f.coords, f.payloads = coords, payloads
	f.ordered, f.unique = checkOrder(f.coords)
}
