package fibertree

import (
	"errors"
	"fmt"
)

var errOperand = errors.New("unsupported operand types")

// numeric widens bools and ints so that arithmetic follows the usual
// promotion rules: int op int stays int, anything involving a float is a
// float.
func numeric(v any) (i int, f float64, isFloat, ok bool) {
	switch x := normalizeValue(v).(type) {
	case bool:
		if x {
			return 1, 1, false, true
		}
		return 0, 0, false, true
	case int:
		return x, float64(x), false, true
	case float64:
		return 0, x, true, true
	}
	return 0, 0, false, false
}

func arith(op string, a, b any) any {
	a, b = Unbox(a), Unbox(b)
	ai, af, aFloat, aok := numeric(a)
	bi, bf, bFloat, bok := numeric(b)
	if aok && bok {
		if op == "/" {
			return af / bf
		}
		if aFloat || bFloat {
			switch op {
			case "+":
				return af + bf
			case "-":
				return af - bf
			case "*":
				return af * bf
			}
		}
		switch op {
		case "+":
			return ai + bi
		case "-":
			return ai - bi
		case "*":
			return ai * bi
		}
	}
	if op == "+" {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y
			}
		case Tuple:
			if y, ok := b.(Tuple); ok {
				out := make(Tuple, 0, len(x)+len(y))
				return append(append(out, x...), y...)
			}
		}
	}
	panic(assertf(op, fmt.Errorf("%w: %T and %T", errOperand, a, b)))
}

func bitwise(op string, a, b any) any {
	a, b = normalizeValue(Unbox(a)), normalizeValue(Unbox(b))
	if x, ok := a.(bool); ok {
		if y, ok := b.(bool); ok {
			if op == "&" {
				return x && y
			}
			if op == "|" {
				return x || y
			}
		}
	}
	ai, _, aFloat, aok := numeric(a)
	bi, _, bFloat, bok := numeric(b)
	if aok && bok && !aFloat && !bFloat {
		switch op {
		case "&":
			return ai & bi
		case "|":
			return ai | bi
		case "<<":
			return ai << bi
		}
	}
	panic(assertf(op, fmt.Errorf("%w: %T and %T", errOperand, a, b)))
}

// equalValues compares two payload values. Boxes are opened, numbers are
// compared numerically, tuples elementwise and fibers structurally.
func equalValues(a, b any) bool {
	a, b = normalizeValue(Unbox(a)), normalizeValue(Unbox(b))
	if fa, ok := a.(*Fiber); ok {
		fb, ok := b.(*Fiber)
		return ok && fa.Equal(fb)
	}
	if _, ok := b.(*Fiber); ok {
		return false
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(Tuple); ok {
		tb, ok := b.(Tuple)
		return ok && ta.Equal(tb)
	}
	if _, ok := b.(Tuple); ok {
		return false
	}
	if a == FiberDefault || b == FiberDefault {
		return a == b
	}
	_, af, _, aok := numeric(a)
	_, bf, _, bok := numeric(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareValues(a, b any) int {
	a, b = normalizeValue(Unbox(a)), normalizeValue(Unbox(b))
	if ta, ok := a.(Tuple); ok {
		if tb, ok := b.(Tuple); ok {
			n := min(len(ta), len(tb))
			for i := 0; i < n; i++ {
				if c := compareValues(ta[i], tb[i]); c != 0 {
					return c
				}
			}
			return len(ta) - len(tb)
		}
	}
	return compareScalars(a, b)
}
