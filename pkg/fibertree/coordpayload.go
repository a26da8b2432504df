package fibertree

// CoordPayload is one element of a fiber. Arithmetic, indexing and
// assignment are forwarded to the payload.
type CoordPayload struct {
	Coord   Coord
	Payload any
}

// NewCoordPayload builds an element, boxing scalar payloads.
func NewCoordPayload(c Coord, p any) CoordPayload {
	return CoordPayload{Coord: normalizeCoord(c), Payload: MaybeBox(p)}
}

// Unpack returns the coordinate and the payload.
func (cp CoordPayload) Unpack() (Coord, any) { return cp.Coord, cp.Payload }

// Index forwards cp[key] to the payload: the key-th element of a tuple
// payload or the key-th element of a fiber payload.
func (cp CoordPayload) Index(key int) any {
	switch p := Unbox(cp.Payload).(type) {
	case Tuple:
		return p[key]
	case *Fiber:
		return p.At(key)
	}
	panic(assertf("index", errOperand))
}

// Set assigns v to the payload in place (the payload's <<=).
func (cp CoordPayload) Set(v any) {
	switch p := cp.Payload.(type) {
	case *Payload:
		p.Set(operand(v))
	case *Fiber:
		f, ok := operand(v).(*Fiber)
		if !ok {
			panic(assertf("assign", errOperand))
		}
		p.Assign(f)
	default:
		panic(assertf("assign", errOperand))
	}
}

// Add returns payload + o.
func (cp CoordPayload) Add(o any) *Payload { return cp.box().Add(operand(o)) }

// Sub returns payload - o.
func (cp CoordPayload) Sub(o any) *Payload { return cp.box().Sub(operand(o)) }

// Mul returns payload * o.
func (cp CoordPayload) Mul(o any) *Payload { return cp.box().Mul(operand(o)) }

// Div returns payload / o.
func (cp CoordPayload) Div(o any) *Payload { return cp.box().Div(operand(o)) }

// Equal compares payloads; o may be another CoordPayload.
func (cp CoordPayload) Equal(o any) bool { return equalValues(cp.Payload, operand(o)) }

// Compare orders payloads; o may be another CoordPayload.
func (cp CoordPayload) Compare(o any) int { return compareValues(cp.Payload, operand(o)) }

// String formats the element as "(c -> p)".
func (cp CoordPayload) String() string {
	return "(" + fmtCoord(cp.Coord) + " -> " + fmtValue(cp.Payload) + ")"
}

func (cp CoordPayload) box() *Payload {
	if p, ok := cp.Payload.(*Payload); ok {
		return p
	}
	return NewPayload(cp.Payload)
}

func operand(o any) any {
	if cp, ok := o.(CoordPayload); ok {
		return cp.Payload
	}
	return o
}
