package fibertree

import (
	"iter"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

// All iterates the occupied elements in coordinate order.
//
// While metrics are collecting and the fiber's rank is registered, every
// element is stamped into the rank's "iter" trace and advances the rank's
// loop position. Breaking out early leaves the position where it stopped.
func (f *Fiber) All() iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		rank := f.RankID()
		track := rank != "" && metrics.IsCollecting() && metrics.IsRegistered(rank)
		pos := 0
		for c, p := range f.raw() {
			if track {
				metrics.AddUse(rank, c, pos, "iter")
			}
			if !yield(c, p) {
				return
			}
			if track {
				metrics.IncIter(rank)
			}
			pos++
		}
		if track {
			metrics.EndIter(rank)
		}
	}
}

// Backward iterates the occupied elements in reverse order.
func (f *Fiber) Backward() iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		e := FromLazy(f)
		for i := len(e.coords) - 1; i >= 0; i-- {
			if !yield(e.coords[i], e.payloads[i]) {
				return
			}
		}
	}
}

// IterShape iterates every coordinate in [0, shape), yielding the stored
// payload or an unattached default for missing coordinates.
func (f *Fiber) IterShape() iter.Seq2[Coord, any] {
	s, _ := f.intShape()
	return f.iterDense(0, s, 1, false)
}

// IterShapeRef is IterShape but inserts defaults for missing coordinates.
func (f *Fiber) IterShapeRef() iter.Seq2[Coord, any] {
	s, _ := f.intShape()
	return f.iterDense(0, s, 1, true)
}

// IterActive iterates the occupied elements inside the active range.
func (f *Fiber) IterActive() iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		for c, p := range f.All() {
			if !f.inActiveRange(c) {
				continue
			}
			if !yield(c, p) {
				return
			}
		}
	}
}

// IterActiveShape iterates every coordinate of the active range.
func (f *Fiber) IterActiveShape() iter.Seq2[Coord, any] {
	lo, hi := f.activeInts()
	return f.iterDense(lo, hi, 1, false)
}

// IterActiveShapeRef is IterActiveShape but inserts defaults.
func (f *Fiber) IterActiveShapeRef() iter.Seq2[Coord, any] {
	lo, hi := f.activeInts()
	return f.iterDense(lo, hi, 1, true)
}

// IterRange iterates the occupied elements c with start <= c < end and
// (c-start) a multiple of step. Non-integer coordinates are skipped.
func (f *Fiber) IterRange(start, end, step int) iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		if step <= 0 {
			return
		}
		for c, p := range f.All() {
			i, ok := c.(int)
			if !ok || i < start || i >= end || (i-start)%step != 0 {
				continue
			}
			if !yield(c, p) {
				return
			}
		}
	}
}

// IterRangeShape iterates start, start+step, ... below end, yielding
// defaults for missing coordinates.
func (f *Fiber) IterRangeShape(start, end, step int) iter.Seq2[Coord, any] {
	return f.iterDense(start, end, step, false)
}

// IterRangeShapeRef is IterRangeShape but inserts defaults.
func (f *Fiber) IterRangeShapeRef(start, end, step int) iter.Seq2[Coord, any] {
	return f.iterDense(start, end, step, true)
}

func (f *Fiber) iterDense(start, end, step int, ref bool) iter.Seq2[Coord, any] {
	return func(yield func(Coord, any) bool) {
		if step <= 0 {
			return
		}
		for c := start; c < end; c += step {
			var p any
			if ref {
				p = f.GetPayloadRef(c)
			} else {
				p = f.GetPayload(c)
			}
			if !yield(c, p) {
				return
			}
		}
	}
}

// activeInts returns the active range as ints, [0, 0) when unknown.
func (f *Fiber) activeInts() (int, int) {
	lo, hi := f.ActiveRange()
	l, _ := asInt(lo)
	h, ok := asInt(hi)
	if !ok {
		return l, l
	}
	return l, h
}
