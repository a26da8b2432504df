package fibertree

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
)

// FromUncompressed builds a fiber tree from nested slices (or arrays).
// Zero leaves are dropped at every level and so are sub-trees that are
// entirely zero. Each fiber records len(input)-1 as its maximum coordinate,
// so the dense shape survives the compression.
func FromUncompressed(data any) (*Fiber, error) {
	rv := reflect.ValueOf(data)
	if !isList(rv) {
		return nil, fmt.Errorf("from uncompressed: expected a slice, got %T", data)
	}
	f, _, err := fromDense(rv)
	return f, err
}

func isList(rv reflect.Value) bool {
	for rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
}

// fromDense returns the fiber for rv and whether it holds any non-zero leaf.
func fromDense(rv reflect.Value) (*Fiber, bool, error) {
	for rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	var opts []FiberOption
	if rv.Len() > 0 {
		opts = append(opts, WithMaxCoord(rv.Len()-1))
	}
	f, err := NewFiber([]Coord{}, []any{}, opts...)
	if err != nil {
		return nil, false, err
	}
	nested := false
	for i := 0; i < rv.Len(); i++ {
		e := rv.Index(i)
		if isList(e) {
			nested = true
			sub, nonZero, err := fromDense(e)
			if err != nil {
				return nil, false, err
			}
			if nonZero {
				f.coords = append(f.coords, i)
				f.payloads = append(f.payloads, sub)
			}
			continue
		}
		if nested {
			return nil, false, errors.New("from uncompressed: mixed scalars and lists at one level")
		}
		v := normalizeValue(e.Interface())
		if equalValues(v, 0) {
			continue
		}
		f.coords = append(f.coords, i)
		f.payloads = append(f.payloads, NewPayload(v))
	}
	if nested {
		f.attrs.def = FiberDefault
	}
	return f, len(f.coords) > 0, nil
}

// FromRandom builds a tree of len(shape) ranks in which each coordinate of
// rank i is occupied with probability density[i] (the last density applies
// to deeper ranks). Leaves are uniform in [1, interval]. The same seed
// always produces the same tree.
func FromRandom(shape []int, density []float64, interval int, seed int64) (*Fiber, error) {
	if len(shape) == 0 {
		return nil, errors.New("from random: empty shape")
	}
	if len(density) == 0 {
		return nil, errors.New("from random: empty density")
	}
	if interval < 1 {
		return nil, fmt.Errorf("from random: interval %d must be at least 1", interval)
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	return randomLevel(r, shape, density, interval), nil
}

func randomLevel(r *rand.Rand, shape []int, density []float64, interval int) *Fiber {
	d := density[0]
	rest := density
	if len(density) > 1 {
		rest = density[1:]
	}
	leaf := len(shape) == 1
	def := any(FiberDefault)
	if leaf {
		def = 0
	}
	f := newDetached(def, shape[0])
	for c := 0; c < shape[0]; c++ {
		if r.Float64() >= d {
			continue
		}
		if leaf {
			f.coords = append(f.coords, c)
			f.payloads = append(f.payloads, NewPayload(r.IntN(interval)+1))
			continue
		}
		sub := randomLevel(r, shape[1:], rest, interval)
		if len(sub.coords) == 0 {
			continue
		}
		f.coords = append(f.coords, c)
		f.payloads = append(f.payloads, sub)
	}
	return f
}
