package fibertree

import (
	"fmt"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

// computeLine is the metrics line that payload arithmetic is counted under.
const computeLine = "Compute"

// Payload is a mutable box around one immutable scalar (int, float64, bool,
// string or Tuple). Fibers store leaf values boxed so that a reference
// obtained from one fiber observes and makes in-place updates.
//
// A *Fiber is never boxed; it is already a reference type.
type Payload struct {
	value any
}

// NewPayload boxes v. Passing a *Payload copies its value into a new box.
// NewPayload panics if v is a *Fiber.
func NewPayload(v any) *Payload {
	switch x := v.(type) {
	case *Payload:
		return &Payload{value: x.value}
	case *Fiber:
		panic(assertf("box", fmt.Errorf("%w: a fiber cannot be boxed", errOperand)))
	}
	return &Payload{value: normalizeValue(v)}
}

// Value returns the boxed value.
func (p *Payload) Value() any { return p.value }

// V is a synonym for Value.
func (p *Payload) V() any { return p.value }

// SetV replaces the boxed value without counting an update.
func (p *Payload) SetV(v any) { p.value = normalizeValue(Unbox(v)) }

// Set replaces the boxed value in place. Every holder of p observes the
// new value. v may be a raw value or another *Payload.
func (p *Payload) Set(v any) {
	if _, ok := v.(*Fiber); ok {
		panic(assertf("assign", fmt.Errorf("%w: cannot assign a fiber to a scalar payload", errOperand)))
	}
	count("payload_update")
	p.value = normalizeValue(Unbox(v))
}

// Add returns a new payload holding p + o.
func (p *Payload) Add(o any) *Payload {
	count("payload_add")
	return &Payload{value: arith("+", p.value, o)}
}

// Sub returns a new payload holding p - o.
func (p *Payload) Sub(o any) *Payload {
	count("payload_add")
	return &Payload{value: arith("-", p.value, o)}
}

// Mul returns a new payload holding p * o.
func (p *Payload) Mul(o any) *Payload {
	count("payload_mul")
	return &Payload{value: arith("*", p.value, o)}
}

// Div returns a new payload holding p / o. Division always produces a
// float64.
func (p *Payload) Div(o any) *Payload {
	count("payload_mul")
	return &Payload{value: arith("/", p.value, o)}
}

// AddAssign performs p += o in place.
func (p *Payload) AddAssign(o any) {
	count("payload_add")
	p.value = arith("+", p.value, o)
}

// SubAssign performs p -= o in place.
func (p *Payload) SubAssign(o any) {
	count("payload_add")
	p.value = arith("-", p.value, o)
}

// MulAssign performs p *= o in place.
func (p *Payload) MulAssign(o any) {
	count("payload_mul")
	p.value = arith("*", p.value, o)
}

// DivAssign performs p /= o in place.
func (p *Payload) DivAssign(o any) {
	count("payload_mul")
	p.value = arith("/", p.value, o)
}

// And returns the logical (bools) or bitwise (ints) conjunction.
func (p *Payload) And(o any) *Payload { return &Payload{value: bitwise("&", p.value, o)} }

// Or returns the logical (bools) or bitwise (ints) disjunction.
func (p *Payload) Or(o any) *Payload { return &Payload{value: bitwise("|", p.value, o)} }

// Shl returns p shifted left by o bits.
func (p *Payload) Shl(o any) *Payload { return &Payload{value: bitwise("<<", p.value, o)} }

// Equal compares the boxed value with o (boxed or raw).
func (p *Payload) Equal(o any) bool { return equalValues(p.value, o) }

// Compare orders the boxed value against o.
func (p *Payload) Compare(o any) int { return compareValues(p.value, o) }

// Less reports whether p orders before o.
func (p *Payload) Less(o any) bool { return p.Compare(o) < 0 }

// String formats the boxed value as "<v>".
func (p *Payload) String() string { return "<" + fmtValue(p.value) + ">" }

// MaybeBox boxes scalars and passes payloads and fibers through unchanged.
func MaybeBox(x any) any {
	switch x.(type) {
	case *Payload, *Fiber:
		return x
	}
	return NewPayload(x)
}

// IsPayload reports whether x can be stored as a fiber payload without
// boxing, that is whether it is a *Payload or a *Fiber.
func IsPayload(x any) bool {
	switch x.(type) {
	case *Payload, *Fiber:
		return true
	}
	return false
}

// Contains reports whether x, after opening a payload box, holds a T.
func Contains[T any](x any) bool {
	_, ok := Unbox(x).(T)
	return ok
}

// Unbox returns the value inside a *Payload, or x itself.
func Unbox(x any) any {
	if p, ok := x.(*Payload); ok {
		return p.value
	}
	return x
}

func count(metric string) {
	if metrics.IsCollecting() {
		metrics.IncCount(computeLine, metric, 1)
	}
}
