package fibertree

import (
	"fmt"
	"slices"
	"strings"
)

// derive builds a tensor around root with new rank ids and shapes, keeping
// the name, color and leaf default of t.
func (t *Tensor) derive(rankIDs []string, shape []Coord, root *Fiber) (*Tensor, error) {
	out, err := FromFiber(rankIDs, root,
		WithTensorShape(shape...),
		WithName(t.name),
		WithColor(t.color),
		WithTensorDefault(t.Default()),
	)
	if err != nil {
		return nil, err
	}
	out.mutable = t.mutable
	return out, nil
}

// transformAt copies the tree and applies fn to the fiber(s) of rank d:
// at the root for d == 0, otherwise below it.
func (t *Tensor) transformAt(d int, top func(*Fiber) (*Fiber, error), below func(*Fiber, int) error) (*Fiber, error) {
	root := t.Root()
	if root == nil {
		return nil, fmt.Errorf("scalar tensor has no ranks: %w", ErrTooDeep)
	}
	root = root.Copy()
	if d == 0 {
		return top(root)
	}
	if err := below(root, d-1); err != nil {
		return nil, err
	}
	return root, nil
}

func (t *Tensor) shapeWith(d, drop int, insert ...Coord) []Coord {
	shape := t.declaredShape()
	return slices.Concat(shape[:d], insert, shape[d+drop:])
}

// declaredShape returns the rank shapes, nil where estimated.
func (t *Tensor) declaredShape() []Coord {
	shape := make([]Coord, len(t.ranks))
	for i, r := range t.ranks {
		if !r.attrs.estimated {
			shape[i] = r.attrs.shape
		}
	}
	return shape
}

func idsWith(ids []string, d, drop int, insert ...string) []string {
	return slices.Concat(ids[:d], insert, ids[d+drop:])
}

// SplitUniform splits rank id into id.1 (bucket starts, step apart) and
// id.0 (coordinates within a bucket). With partitions an id.2 rank of
// partition numbers is added on top.
func (t *Tensor) SplitUniform(id string, step int, opts SplitOptions) (*Tensor, error) {
	d, err := t.rankIndex(id)
	if err != nil {
		return nil, err
	}
	root, err := t.transformAt(d,
		func(f *Fiber) (*Fiber, error) { return f.SplitUniform(step, opts) },
		func(f *Fiber, depth int) error { return f.SplitUniformBelow(depth, step, opts) })
	if err != nil {
		return nil, err
	}
	s := t.declaredShape()[d]
	inner := s
	if opts.RelativeCoords {
		inner = step
	}
	ids := []string{id + ".1", id + ".0"}
	shapes := []Coord{s, inner}
	if opts.Partitions > 1 {
		ids = append([]string{id + ".2"}, ids...)
		shapes = append([]Coord{opts.Partitions}, shapes...)
	}
	return t.derive(idsWith(t.rankIDs, d, 1, ids...), t.shapeWith(d, 1, shapes...), root)
}

// SplitNonUniform splits rank id at the given coordinates.
func (t *Tensor) SplitNonUniform(id string, splits []Coord) (*Tensor, error) {
	return t.splitSame(id, func(f *Fiber) (*Fiber, error) { return f.SplitNonUniform(splits) },
		func(f *Fiber, depth int) error { return f.SplitNonUniformBelow(depth, splits) })
}

// SplitEqual splits rank id into groups of n elements.
func (t *Tensor) SplitEqual(id string, n int) (*Tensor, error) {
	return t.splitSame(id, func(f *Fiber) (*Fiber, error) { return f.SplitEqual(n) },
		func(f *Fiber, depth int) error { return f.SplitEqualBelow(depth, n) })
}

// SplitUnEqual splits rank id into groups of the given sizes.
func (t *Tensor) SplitUnEqual(id string, sizes []int) (*Tensor, error) {
	return t.splitSame(id, func(f *Fiber) (*Fiber, error) { return f.SplitUnEqual(sizes) },
		func(f *Fiber, depth int) error { return f.SplitUnEqualBelow(depth, sizes) })
}

// splitSame runs a split whose two resulting ranks both keep the original
// coordinates and shape.
func (t *Tensor) splitSame(id string, top func(*Fiber) (*Fiber, error), below func(*Fiber, int) error) (*Tensor, error) {
	d, err := t.rankIndex(id)
	if err != nil {
		return nil, err
	}
	root, err := t.transformAt(d, top, below)
	if err != nil {
		return nil, err
	}
	s := t.declaredShape()[d]
	return t.derive(idsWith(t.rankIDs, d, 1, id+".1", id+".0"), t.shapeWith(d, 1, s, s), root)
}

// FlattenRanks fuses the levels+1 ranks starting at depth into one rank
// whose id joins theirs with "+".
func (t *Tensor) FlattenRanks(depth, levels int, style Style) (*Tensor, error) {
	if depth < 0 || levels < 1 || depth+levels >= len(t.ranks) {
		return nil, ErrTooDeep
	}
	root, err := t.transformAt(depth,
		func(f *Fiber) (*Fiber, error) { return f.flatten(levels, style) },
		func(f *Fiber, d int) error {
			return f.UpdatePayloadsBelow(d, func(sub *Fiber) (*Fiber, error) { return sub.flatten(levels, style) })
		})
	if err != nil {
		return nil, err
	}
	fused := t.rankIDs[depth : depth+levels+1]
	declared := t.declaredShape()[depth : depth+levels+1]
	var shape Coord
	switch style {
	case StyleAbsolute:
		shape = declared[len(declared)-1]
	case StyleTuple:
		if !slices.Contains(declared, nil) {
			tuple := Tuple{}
			for _, s := range declared {
				tuple = append(tuple, spread(s)...)
			}
			shape = tuple
		}
	}
	id := strings.Join(fused, "+")
	return t.derive(idsWith(t.rankIDs, depth, levels+1, id), t.shapeWith(depth, levels+1, shape), root)
}

// UnflattenRanks splits the flattened rank at depth into levels+1 ranks.
// The rank id is split at "+"; missing parts are numbered.
func (t *Tensor) UnflattenRanks(depth, levels int) (*Tensor, error) {
	if depth < 0 || depth >= len(t.ranks) || levels < 1 {
		return nil, ErrTooDeep
	}
	root, err := t.transformAt(depth,
		func(f *Fiber) (*Fiber, error) { return f.unflatten(levels) },
		func(f *Fiber, d int) error {
			return f.UpdatePayloadsBelow(d, func(sub *Fiber) (*Fiber, error) { return sub.unflatten(levels) })
		})
	if err != nil {
		return nil, err
	}
	id := t.rankIDs[depth]
	parts := strings.SplitN(id, "+", levels+1)
	for i := len(parts); i <= levels; i++ {
		parts = append(parts, fmt.Sprintf("%s.%d", id, i))
	}
	shapes := make([]Coord, levels+1)
	if s, ok := t.declaredShape()[depth].(Tuple); ok && len(s) == levels+1 {
		copy(shapes, s)
	}
	return t.derive(idsWith(t.rankIDs, depth, 1, parts...), t.shapeWith(depth, 1, shapes...), root)
}

// SwapRanks exchanges the rank at depth with the rank below it.
func (t *Tensor) SwapRanks(depth int) (*Tensor, error) {
	if depth < 0 || depth+1 >= len(t.ranks) {
		return nil, ErrTooDeep
	}
	root, err := t.transformAt(depth,
		func(f *Fiber) (*Fiber, error) { return f.SwapRanks() },
		func(f *Fiber, d int) error { return f.SwapRanksBelow(d) })
	if err != nil {
		return nil, err
	}
	ids := slices.Clone(t.rankIDs)
	ids[depth], ids[depth+1] = ids[depth+1], ids[depth]
	shape := t.declaredShape()
	shape[depth], shape[depth+1] = shape[depth+1], shape[depth]
	return t.derive(ids, shape, root)
}

// SwizzleRanks reorders the ranks to match order by adjacent swaps.
func (t *Tensor) SwizzleRanks(order []string) (*Tensor, error) {
	if len(order) != len(t.rankIDs) {
		return nil, fmt.Errorf("%w: swizzle needs %d rank ids, got %d", ErrUnknownRank, len(t.rankIDs), len(order))
	}
	target := make([]int, len(order))
	for i, id := range order {
		j, err := t.rankIndex(id)
		if err != nil {
			return nil, err
		}
		target[j] = i
	}
	seen := map[string]bool{}
	for _, id := range order {
		if seen[id] {
			return nil, fmt.Errorf("%w: %q repeated", ErrUnknownRank, id)
		}
		seen[id] = true
	}

	cur := t
	pos := slices.Clone(target)
	for swapped := true; swapped; {
		swapped = false
		for d := 0; d+1 < len(pos); d++ {
			if pos[d] <= pos[d+1] {
				continue
			}
			next, err := cur.SwapRanks(d)
			if err != nil {
				return nil, err
			}
			cur = next
			pos[d], pos[d+1] = pos[d+1], pos[d]
			swapped = true
		}
	}
	if cur == t {
		return t.derive(t.rankIDs, t.declaredShape(), t.Root().Copy())
	}
	return cur, nil
}
