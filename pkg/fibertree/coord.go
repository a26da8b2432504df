package fibertree

import (
	"cmp"
	"fmt"
	"reflect"
	"strings"
)

// Coord is a fiber coordinate. Coordinates are ints for ordinary ranks,
// strings for named ranks and [Tuple] values for flattened ranks.
type Coord = any

// Tuple is an ordered sequence of values. It serves as the coordinate type
// of flattened ranks and as the payload type yielded by co-iteration.
type Tuple []any

// String formats the tuple as "(a, b, c)".
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = fmtValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Equal reports whether both tuples have pairwise equal elements. Boxed
// elements are compared by value.
func (t Tuple) Equal(other Tuple) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if !equalValues(t[i], other[i]) {
			return false
		}
	}
	return true
}

type anyCoord struct{}

func (anyCoord) String() string { return "ANY" }

// Any is the wildcard coordinate. It compares equal to every coordinate and
// is used to project lower-arity fibers when co-iterating with tuple coords.
var Any Coord = anyCoord{}

func isAny(c Coord) bool {
	_, ok := c.(anyCoord)
	return ok
}

// CompareCoords returns -1, 0 or +1 according to the total order on
// coordinates: numbers before strings before tuples, tuples compared
// lexicographically. A tuple compared with a shorter tuple (or a scalar) is
// compared on the common prefix only, as if the shorter one were padded with
// [Any].
func CompareCoords(a, b Coord) int {
	if isAny(a) || isAny(b) {
		return 0
	}
	ta, aTuple := a.(Tuple)
	tb, bTuple := b.(Tuple)
	switch {
	case aTuple && bTuple:
		return compareTuples(ta, tb)
	case aTuple:
		return compareTuples(ta, Tuple{b})
	case bTuple:
		return compareTuples(Tuple{a}, tb)
	}
	return compareScalars(a, b)
}

// CoordsEqual reports whether CompareCoords(a, b) == 0.
func CoordsEqual(a, b Coord) bool { return CompareCoords(a, b) == 0 }

func compareTuples(a, b Tuple) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := CompareCoords(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func scalarClass(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case int, float64:
		return 1
	case string:
		return 2
	}
	return 3
}

func compareScalars(a, b any) int {
	a, b = normalizeValue(a), normalizeValue(b)
	ca, cb := scalarClass(a), scalarClass(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, y)
		}
		return cmp.Compare(float64(x), b.(float64))
	case float64:
		if y, ok := b.(int); ok {
			return cmp.Compare(x, float64(y))
		}
		return cmp.Compare(x, b.(float64))
	case string:
		return cmp.Compare(x, b.(string))
	}
	panic(assertf("compare", fmt.Errorf("unsupported coordinate type %T", a)))
}

// normalizeCoord converts the loose coordinate forms accepted at API
// boundaries (sized integers, slices) into the canonical int / Tuple forms.
func normalizeCoord(c Coord) Coord {
	return normalizeValue(c)
}

// normalizeValue canonicalizes scalars: every integer kind becomes int,
// float32 becomes float64 and slices become Tuples.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, int, float64, string, bool, Tuple, anyCoord, *Payload, *Fiber:
		return v
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	case float32:
		return float64(x)
	case []any:
		t := make(Tuple, len(x))
		for i, e := range x {
			t[i] = normalizeValue(e)
		}
		return t
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		t := make(Tuple, rv.Len())
		for i := range t {
			t[i] = normalizeValue(rv.Index(i).Interface())
		}
		return t
	}
	return v
}

func fmtCoord(c Coord) string { return fmtValue(c) }

func fmtValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// growShape returns the smallest shape that is at least shape and covers c
// (c+1 for ints, elementwise for tuples). Non-numeric coordinates leave the
// shape unchanged.
func growShape(shape Coord, c Coord) Coord {
	switch x := c.(type) {
	case int:
		if s, ok := shape.(int); ok && s > x {
			return s
		}
		return x + 1
	case Tuple:
		st, _ := shape.(Tuple)
		out := make(Tuple, len(x))
		for i := range x {
			var prev Coord
			if i < len(st) {
				prev = st[i]
			}
			out[i] = growShape(prev, x[i])
		}
		return out
	}
	return shape
}

// coordArity is 1 for scalars and the length of tuple coordinates.
func coordArity(c Coord) int {
	if t, ok := c.(Tuple); ok {
		return len(t)
	}
	return 1
}

// pickCoord returns the more specific of two coordinates that compared
// equal, so wildcard projections never leak into results.
func pickCoord(a, b Coord) Coord {
	if isAny(a) || coordArity(b) > coordArity(a) {
		return b
	}
	return a
}

func asInt(c Coord) (int, bool) {
	i, ok := normalizeValue(c).(int)
	return i, ok
}
