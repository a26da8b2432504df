package fibertree

import "iter"

// CoiterShape iterates every coordinate in [0, shape) of the first fiber
// and yields the payload of each fiber at that coordinate, defaults
// included.
func CoiterShape(fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	if len(fibers) == 0 {
		return emptyCoiter
	}
	s, _ := fibers[0].intShape()
	return coiterDense(0, s, 1, false, fibers)
}

// CoiterShapeRef is CoiterShape but inserts defaults into every fiber.
func CoiterShapeRef(fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	if len(fibers) == 0 {
		return emptyCoiter
	}
	s, _ := fibers[0].intShape()
	return coiterDense(0, s, 1, true, fibers)
}

// CoiterActiveShape iterates the active range of the first fiber.
func CoiterActiveShape(fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	if len(fibers) == 0 {
		return emptyCoiter
	}
	lo, hi := fibers[0].activeInts()
	return coiterDense(lo, hi, 1, false, fibers)
}

// CoiterActiveShapeRef is CoiterActiveShape but inserts defaults.
func CoiterActiveShapeRef(fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	if len(fibers) == 0 {
		return emptyCoiter
	}
	lo, hi := fibers[0].activeInts()
	return coiterDense(lo, hi, 1, true, fibers)
}

// CoiterRangeShape iterates start, start+step, ... below end.
func CoiterRangeShape(start, end, step int, fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	return coiterDense(start, end, step, false, fibers)
}

// CoiterRangeShapeRef is CoiterRangeShape but inserts defaults.
func CoiterRangeShapeRef(start, end, step int, fibers ...*Fiber) iter.Seq2[Coord, Tuple] {
	return coiterDense(start, end, step, true, fibers)
}

func coiterDense(start, end, step int, ref bool, fibers []*Fiber) iter.Seq2[Coord, Tuple] {
	return func(yield func(Coord, Tuple) bool) {
		if step <= 0 || len(fibers) == 0 {
			return
		}
		for c := start; c < end; c += step {
			t := make(Tuple, len(fibers))
			for i, f := range fibers {
				if ref {
					t[i] = f.GetPayloadRef(c)
				} else {
					t[i] = f.GetPayload(c)
				}
			}
			if !yield(c, t) {
				return
			}
		}
	}
}

func emptyCoiter(func(Coord, Tuple) bool) {}
