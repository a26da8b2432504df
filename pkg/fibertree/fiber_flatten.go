package fibertree

import (
	"fmt"
	"slices"
)

// Style selects how FlattenRanks combines coordinates.
type Style int

const (
	// StyleTuple concatenates coordinates into one flat tuple.
	StyleTuple Style = iota
	// StylePair nests coordinates as (outer, inner).
	StylePair
	// StyleAbsolute keeps the inner coordinate. Inner coordinates of a
	// split with relative coordinates are offset by the outer coordinate.
	StyleAbsolute
)

func (s Style) String() string {
	switch s {
	case StyleTuple:
		return "tuple"
	case StylePair:
		return "pair"
	case StyleAbsolute:
		return "absolute"
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle converts "tuple", "pair" or "absolute" to a Style.
func ParseStyle(s string) (Style, error) {
	switch s {
	case "tuple", "":
		return StyleTuple, nil
	case "pair":
		return StylePair, nil
	case "absolute":
		return StyleAbsolute, nil
	}
	return 0, fmt.Errorf("unknown flatten style %q", s)
}

// FlattenRanks fuses levels+1 consecutive ranks into one. With depth 0 the
// rank of f is fused with the ranks below it and a new fiber is returned;
// with depth > 0 the fibers depth levels down are replaced in place and f
// is returned.
func (f *Fiber) FlattenRanks(depth, levels int, style Style) (*Fiber, error) {
	if depth == 0 {
		return f.flatten(levels, style)
	}
	err := f.UpdatePayloadsBelow(depth-1, func(sub *Fiber) (*Fiber, error) {
		return sub.flatten(levels, style)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fiber) flatten(levels int, style Style) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if levels < 1 {
		return f, nil
	}
	out := newDetached(f.innerDefault(), nil)
	out.attrs.id = f.RankID()
	if style == StyleAbsolute {
		if in := f.innerAttrs(); in != nil {
			out.attrs.shape, out.attrs.estimated = in.shape, in.estimated
		}
	}
	for i, c := range f.coords {
		sub, ok := f.payloads[i].(*Fiber)
		if !ok {
			return nil, ErrTooDeep
		}
		sub = FromLazy(sub)
		relative := sub.relative
		if levels > 1 {
			var err error
			if sub, err = sub.flatten(levels-1, style); err != nil {
				return nil, err
			}
		}
		out.attrs.def = sub.Default()
		for j, ic := range sub.coords {
			nc, err := combineCoords(c, ic, style, relative)
			if err != nil {
				return nil, err
			}
			out.coords = append(out.coords, nc)
			out.payloads = append(out.payloads, sub.payloads[j])
		}
	}
	out.ordered, out.unique = checkOrder(out.coords)
	return out, nil
}

func combineCoords(c, ic Coord, style Style, relative bool) (Coord, error) {
	switch style {
	case StylePair:
		return Tuple{c, ic}, nil
	case StyleAbsolute:
		if !relative {
			return ic, nil
		}
		x, ok1 := c.(int)
		y, ok2 := ic.(int)
		if !ok1 || !ok2 {
			return nil, ErrNotIntCoord
		}
		return x + y, nil
	}
	return append(spread(c), spread(ic)...), nil
}

func spread(c Coord) Tuple {
	if t, ok := c.(Tuple); ok {
		return slices.Clone(t)
	}
	return Tuple{c}
}

// innerDefault returns the default of the rank below f.
func (f *Fiber) innerDefault() any {
	if f.owner != nil && f.owner.next != nil {
		return f.owner.next.Default()
	}
	for _, p := range f.payloads {
		if sub, ok := p.(*Fiber); ok {
			return sub.Default()
		}
	}
	return 0
}

// innerAttrs returns the attributes of the rank below f, nil if unknown.
func (f *Fiber) innerAttrs() *RankAttrs {
	if f.owner != nil && f.owner.next != nil {
		return f.owner.next.attrs
	}
	for _, p := range f.payloads {
		if sub, ok := p.(*Fiber); ok {
			return sub.rankAttrs()
		}
	}
	return nil
}

// UnflattenRanks splits a rank of tuple coordinates into levels+1 ranks,
// grouping by the leading tuple elements. A one-element remainder becomes
// a scalar coordinate. Depth works as in FlattenRanks.
func (f *Fiber) UnflattenRanks(depth, levels int) (*Fiber, error) {
	if depth == 0 {
		return f.unflatten(levels)
	}
	err := f.UpdatePayloadsBelow(depth-1, func(sub *Fiber) (*Fiber, error) {
		return sub.unflatten(levels)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fiber) unflatten(levels int) (*Fiber, error) {
	if f.IsLazy() {
		return nil, ErrLazyFiber
	}
	if levels < 1 {
		return f, nil
	}
	src := f
	if !f.ordered {
		src = &Fiber{coords: slices.Clone(f.coords), payloads: slices.Clone(f.payloads)}
		src.sortByCoord()
	}

	out := newDetached(FiberDefault, nil)
	out.attrs.id = f.RankID()
	var cur *Fiber
	var head Coord
	for i, c := range src.coords {
		t, ok := c.(Tuple)
		if !ok || len(t) < 2 {
			return nil, ErrNotTupleCoord
		}
		var rest Coord = slices.Clone(t[1:])
		if len(t) == 2 {
			rest = t[1]
		}
		if cur == nil || !CoordsEqual(t[0], head) {
			head = t[0]
			cur = newDetached(f.Default(), nil)
			cur.attrs.id = f.RankID()
			out.coords = append(out.coords, head)
			out.payloads = append(out.payloads, cur)
		}
		cur.coords = append(cur.coords, rest)
		cur.payloads = append(cur.payloads, src.payloads[i])
	}
	for i, p := range out.payloads {
		sub := p.(*Fiber)
		sub.ordered, sub.unique = checkOrder(sub.coords)
		if levels > 1 {
			next, err := sub.unflatten(levels - 1)
			if err != nil {
				return nil, err
			}
			out.payloads[i] = next
		}
	}
	out.ordered, out.unique = checkOrder(out.coords)
	return out, nil
}

// SwapRanks exchanges the rank of f with the rank below it and returns the
// swapped tree. Payloads are shared with f.
func (f *Fiber) SwapRanks() (*Fiber, error) {
	outer := f.rankAttrs().Clone()
	inner := f.innerAttrs()
	flat, err := f.flatten(1, StylePair)
	if err != nil {
		return nil, err
	}
	for i, c := range flat.coords {
		t := c.(Tuple)
		flat.coords[i] = Tuple{t[1], t[0]}
	}
	flat.sortByCoord()
	out, err := flat.unflatten(1)
	if err != nil {
		return nil, err
	}
	if inner != nil {
		out.attrs.shape, out.attrs.estimated = inner.shape, inner.estimated
	}
	for _, p := range out.payloads {
		sub := p.(*Fiber)
		sub.attrs.shape, sub.attrs.estimated = outer.shape, outer.estimated
	}
	return out, nil
}

// SwapRanksBelow swaps the ranks depth+1 and depth+2 levels below f in
// place (depth 0 swaps the two ranks below f).
func (f *Fiber) SwapRanksBelow(depth int) error {
	return f.UpdatePayloadsBelow(depth, func(sub *Fiber) (*Fiber, error) {
		return sub.SwapRanks()
	})
}
