package fibertree

import (
	"iter"
	"slices"
	"strconv"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

// Union masks.
const (
	MaskA  = "A"
	MaskB  = "B"
	MaskAB = "AB"
)

// cursor walks a fiber one element at a time. Eager fibers are indexed
// directly; lazy fibers are pulled from their iterator.
type cursor struct {
	c   Coord
	p   any
	pos int
	ok  bool

	next func() (Coord, any, bool)
	stop func()
}

func newCursor(f *Fiber) *cursor {
	cur := &cursor{pos: -1}
	if f.IsLazy() {
		cur.next, cur.stop = iter.Pull2(f.seq)
	} else {
		i := 0
		cur.next = func() (Coord, any, bool) {
			if i >= len(f.coords) {
				return nil, nil, false
			}
			i++
			return f.coords[i-1], f.payloads[i-1], true
		}
		cur.stop = func() {}
	}
	cur.advance()
	return cur
}

func (cur *cursor) advance() {
	cur.c, cur.p, cur.ok = cur.next()
	cur.pos++
}

func requireOrdered(op string, fibers ...*Fiber) {
	for _, f := range fibers {
		if !f.ordered || !f.unique {
			panic(assertf(op, ErrNotOrdered))
		}
	}
}

// meter gathers the metrics state of one co-iteration pass. Everything is
// a no-op when metrics are not collecting.
type meter struct {
	on   bool
	rank string
}

func newMeter(f *Fiber) meter {
	if !metrics.IsCollecting() {
		return meter{}
	}
	rank := f.RankID()
	if rank == "" {
		rank = "unnamed"
	}
	return meter{on: true, rank: rank}
}

func (pr meter) count(metric string) {
	if pr.on {
		metrics.IncCount(pr.rank, metric, 1)
	}
}

func (pr meter) use(c Coord, pos int, typ string, extra ...string) {
	if pr.on {
		metrics.AddUse(pr.rank, c, pos, typ, extra...)
	}
}

// lazyResult wraps seq in a fiber that inherits a's rank and active range.
func lazyResult(a *Fiber, def any, seq iter.Seq2[Coord, any]) *Fiber {
	f := &Fiber{
		seq:       seq,
		attrs:     a.rankAttrs().Clone(),
		ordered:   true,
		unique:    true,
		activeLo:  a.activeLo,
		activeHi:  a.activeHi,
		hasActive: a.hasActive,
	}
	f.attrs.def = def
	return f
}

// Intersect co-iterates a and b and yields (c, Tuple{pA, pB}) for every
// coordinate present in both. It panics with an [*AssertionError] if either
// operand is unordered.
//
// Each coordinate comparison counts an intersection test on a's rank,
// classified as successful or unsuccessful. When one side is exhausted the
// other is drained so its trace stays complete.
func Intersect(a, b *Fiber) *Fiber {
	requireOrdered("intersect", a, b)
	seq := func(yield func(Coord, any) bool) {
		pr := newMeter(a)
		ca, cb := newCursor(a), newCursor(b)
		defer ca.stop()
		defer cb.stop()

		for ca.ok && cb.ok {
			pr.count("intersection_tests")
			switch cmp := CompareCoords(ca.c, cb.c); {
			case cmp == 0:
				pr.count("successful_intersect")
				pr.use(ca.c, ca.pos, "intersect_0", "hit")
				pr.use(cb.c, cb.pos, "intersect_1", "hit")
				c, t := pickCoord(ca.c, cb.c), Tuple{ca.p, cb.p}
				ca.advance()
				cb.advance()
				if !yield(c, t) {
					return
				}
			case cmp < 0:
				pr.count("unsuccessful_intersect")
				pr.use(ca.c, ca.pos, "intersect_0", "miss")
				ca.advance()
			default:
				pr.count("unsuccessful_intersect")
				pr.use(cb.c, cb.pos, "intersect_1", "miss")
				cb.advance()
			}
		}
		for ; ca.ok; ca.advance() {
			pr.use(ca.c, ca.pos, "intersect_0", "drain")
		}
		for ; cb.ok; cb.advance() {
			pr.use(cb.c, cb.pos, "intersect_1", "drain")
		}
	}
	return lazyResult(a, Tuple{a.Default(), b.Default()}, seq)
}

// Union co-iterates a and b and yields (c, Tuple{mask, pA, pB}) for every
// coordinate present in either. The missing side is an unattached default.
func Union(a, b *Fiber) *Fiber {
	requireOrdered("union", a, b)
	return lazyResult(a, Tuple{"", a.Default(), b.Default()}, mergeSeq(a, b, true, "union"))
}

// Xor is Union without the coordinates present in both operands.
func Xor(a, b *Fiber) *Fiber {
	requireOrdered("xor", a, b)
	return lazyResult(a, Tuple{"", a.Default(), b.Default()}, mergeSeq(a, b, false, "xor"))
}

func mergeSeq(a, b *Fiber, both bool, op string) iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		pr := newMeter(a)
		ca, cb := newCursor(a), newCursor(b)
		defer ca.stop()
		defer cb.stop()

		for ca.ok || cb.ok {
			cmp := 0
			switch {
			case !cb.ok:
				cmp = -1
			case !ca.ok:
				cmp = 1
			default:
				pr.count(op + "_tests")
				cmp = CompareCoords(ca.c, cb.c)
			}

			var c Coord
			var t Tuple
			switch {
			case cmp == 0:
				pr.use(ca.c, ca.pos, op+"_0", MaskAB)
				pr.use(cb.c, cb.pos, op+"_1", MaskAB)
				c = pickCoord(ca.c, cb.c)
				if both {
					t = Tuple{MaskAB, ca.p, cb.p}
				}
				ca.advance()
				cb.advance()
			case cmp < 0:
				pr.use(ca.c, ca.pos, op+"_0", MaskA)
				c, t = ca.c, Tuple{MaskA, ca.p, b.newDefaultPayload()}
				ca.advance()
			default:
				pr.use(cb.c, cb.pos, op+"_1", MaskB)
				c, t = cb.c, Tuple{MaskB, a.newDefaultPayload(), cb.p}
				cb.advance()
			}
			if t == nil {
				continue
			}
			if !yield(c, t) {
				return
			}
		}
	}
}

// Difference yields (c, pA) for every coordinate of a that is not in b.
func Difference(a, b *Fiber) *Fiber {
	requireOrdered("difference", a, b)
	seq := func(yield func(Coord, any) bool) {
		pr := newMeter(a)
		ca, cb := newCursor(a), newCursor(b)
		defer ca.stop()
		defer cb.stop()

		for ca.ok {
			for cb.ok && CompareCoords(cb.c, ca.c) < 0 {
				pr.use(cb.c, cb.pos, "difference_1", "skip")
				cb.advance()
			}
			pr.count("difference_tests")
			if cb.ok && CompareCoords(cb.c, ca.c) == 0 {
				pr.use(ca.c, ca.pos, "difference_0", "drop")
				ca.advance()
				cb.advance()
				continue
			}
			pr.use(ca.c, ca.pos, "difference_0", "keep")
			c, p := ca.c, ca.p
			ca.advance()
			if !yield(c, p) {
				return
			}
		}
	}
	return lazyResult(a, a.Default(), seq)
}

// Populate co-iterates b and yields (c, Tuple{refA, pB}) for every
// coordinate of b. A default payload is inserted into a wherever the
// coordinate is missing, so refA can be assigned in place.
//
// When the iteration ends, inserted or visited entries of a that still hold
// the default are removed again. For compressed ranks every element that an
// insertion shifted is written to the populate_write_0 trace.
//
// Populate panics with an [*AssertionError] if a is lazy or either operand
// is unordered.
func Populate(a, b *Fiber) *Fiber {
	if a.IsLazy() {
		panic(assertf("populate", ErrLazyFiber))
	}
	requireOrdered("populate", a, b)
	seq := func(yield func(Coord, any) bool) {
		pr := newMeter(a)
		var visited []any
		inserted := make(map[any]bool)
		firstInsert := -1
		defer func() { a.finishPopulate(pr, visited, inserted, firstInsert) }()

		i := 0
		cb := newCursor(b)
		defer cb.stop()
		for ; cb.ok; cb.advance() {
			for i < len(a.coords) && CompareCoords(a.coords[i], cb.c) < 0 {
				pr.use(a.coords[i], i, "populate_read_0", "skip")
				i++
			}
			pr.use(cb.c, cb.pos, "populate_1", "read")

			var c Coord
			var ref any
			if i < len(a.coords) && CompareCoords(a.coords[i], cb.c) == 0 {
				pr.use(a.coords[i], i, "populate_read_0", "hit")
				pr.use(a.coords[i], i, "populate_write_0", "update")
				c, ref = pickCoord(a.coords[i], cb.c), a.payloads[i]
			} else {
				c = cb.c
				ref = a.insertDefault(i, c)
				inserted[ref] = true
				if i == len(a.coords)-1 {
					pr.count("populate_appends")
					pr.use(c, i, "populate_write_0", "append")
				} else {
					pr.count("populate_inserts")
					pr.use(c, i, "populate_write_0", "insert")
					if firstInsert < 0 {
						firstInsert = i
					}
				}
			}
			visited = append(visited, ref)
			i++
			if !yield(c, Tuple{ref, cb.p}) {
				return
			}
		}
	}
	return lazyResult(a, Tuple{a.Default(), b.Default()}, seq)
}

func (f *Fiber) finishPopulate(pr meter, visited []any, inserted map[any]bool, firstInsert int) {
	if firstInsert >= 0 && f.rankAttrs().format == FormatCompressed {
		for pos := firstInsert + 1; pos < len(f.coords); pos++ {
			if inserted[f.payloads[pos]] {
				continue
			}
			pr.count("populate_shifts")
			pr.use(f.coords[pos], pos, "populate_write_0", "shift")
		}
	}

	stale := make(map[any]bool)
	for _, ref := range visited {
		if f.isDefault(ref) {
			stale[ref] = true
		}
	}
	if len(stale) == 0 {
		return
	}
	for pos := len(f.payloads) - 1; pos >= 0; pos-- {
		if stale[f.payloads[pos]] {
			pr.count("populate_removes")
			f.removeAt(pos)
		}
	}
}

// IntersectAll yields (c, Tuple{p0, p1, ...}) for the coordinates present
// in every fiber.
func IntersectAll(fibers ...*Fiber) *Fiber {
	if len(fibers) == 0 {
		return newDetached(0, nil)
	}
	requireOrdered("intersect", fibers...)
	seq := func(yield func(Coord, any) bool) {
		pr := newMeter(fibers[0])
		curs := openCursors(fibers)
		defer closeCursors(curs)

		for allOK(curs) {
			hi := curs[0].c
			for _, cur := range curs[1:] {
				if CompareCoords(cur.c, hi) > 0 {
					hi = cur.c
				}
			}
			pr.count("intersection_tests")
			match := true
			for k, cur := range curs {
				if CompareCoords(cur.c, hi) < 0 {
					pr.use(cur.c, cur.pos, "intersect_"+strconv.Itoa(k), "miss")
					cur.advance()
					match = false
				}
			}
			if !match {
				pr.count("unsuccessful_intersect")
				continue
			}
			pr.count("successful_intersect")
			c := curs[0].c
			t := make(Tuple, len(curs))
			for k, cur := range curs {
				pr.use(cur.c, cur.pos, "intersect_"+strconv.Itoa(k), "hit")
				c = pickCoord(c, cur.c)
				t[k] = cur.p
				cur.advance()
			}
			if !yield(c, t) {
				return
			}
		}
	}
	return lazyResult(fibers[0], defaultsTuple(fibers), seq)
}

// UnionAll yields (c, Tuple{mask, p0, p1, ...}) for the coordinates present
// in any fiber. The mask names the present operands with the letters A, B,
// C and so on; missing operands get unattached defaults.
func UnionAll(fibers ...*Fiber) *Fiber {
	if len(fibers) == 0 {
		return newDetached(0, nil)
	}
	requireOrdered("union", fibers...)
	seq := func(yield func(Coord, any) bool) {
		pr := newMeter(fibers[0])
		curs := openCursors(fibers)
		defer closeCursors(curs)

		for anyOK(curs) {
			var lo Coord
			for _, cur := range curs {
				if cur.ok && (lo == nil || CompareCoords(cur.c, lo) < 0) {
					lo = cur.c
				}
			}
			pr.count("union_tests")
			mask := ""
			c := lo
			t := make(Tuple, len(curs)+1)
			for k, cur := range curs {
				if cur.ok && CompareCoords(cur.c, lo) == 0 {
					mask += maskLetter(k)
					pr.use(cur.c, cur.pos, "union_"+strconv.Itoa(k), "present")
					c = pickCoord(c, cur.c)
					t[k+1] = cur.p
					cur.advance()
					continue
				}
				t[k+1] = fibers[k].newDefaultPayload()
			}
			t[0] = mask
			if !yield(c, t) {
				return
			}
		}
	}
	return lazyResult(fibers[0], append(Tuple{""}, defaultsTuple(fibers)...), seq)
}

func maskLetter(k int) string {
	if k < 26 {
		return string(rune('A' + k))
	}
	return "<" + strconv.Itoa(k) + ">"
}

func openCursors(fibers []*Fiber) []*cursor {
	curs := make([]*cursor, len(fibers))
	for i, f := range fibers {
		curs[i] = newCursor(f)
	}
	return curs
}

func closeCursors(curs []*cursor) {
	for _, cur := range curs {
		cur.stop()
	}
}

func allOK(curs []*cursor) bool {
	return !slices.ContainsFunc(curs, func(c *cursor) bool { return !c.ok })
}

func anyOK(curs []*cursor) bool {
	return slices.ContainsFunc(curs, func(c *cursor) bool { return c.ok })
}

func defaultsTuple(fibers []*Fiber) Tuple {
	t := make(Tuple, len(fibers))
	for i, f := range fibers {
		t[i] = f.Default()
	}
	return t
}

// Pair splits a co-iteration payload of the form (pA, pB).
func Pair(p any) (a, b any) {
	t, ok := Unbox(p).(Tuple)
	if !ok || len(t) != 2 {
		panic(assertf("pair", errOperand))
	}
	return t[0], t[1]
}

// Masked splits a union payload of the form (mask, pA, pB).
func Masked(p any) (mask string, a, b any) {
	t, ok := Unbox(p).(Tuple)
	if !ok || len(t) != 3 {
		panic(assertf("masked", errOperand))
	}
	mask, _ = t[0].(string)
	return mask, t[1], t[2]
}

// And is [Intersect] (the & operator).
func (f *Fiber) And(other *Fiber) *Fiber { return Intersect(f, other) }

// Or is [Union] (the | operator).
func (f *Fiber) Or(other *Fiber) *Fiber { return Union(f, other) }

// Xor is [Xor] (the ^ operator).
func (f *Fiber) Xor(other *Fiber) *Fiber { return Xor(f, other) }

// Populate is [Populate] (the << operator).
func (f *Fiber) Populate(other *Fiber) *Fiber { return Populate(f, other) }

// Sub is [Difference] (the - operator).
func (f *Fiber) Sub(other *Fiber) *Fiber { return Difference(f, other) }
