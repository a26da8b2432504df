package fibertree

import "slices"

// Rank is one level of a fiber tree. It owns the fibers of its level and
// links to the rank below it.
type Rank struct {
	attrs  *RankAttrs
	fibers []*Fiber
	next   *Rank
}

// NewRank creates an empty rank. A nil attrs creates anonymous attributes.
func NewRank(attrs *RankAttrs) *Rank {
	if attrs == nil {
		attrs = NewRankAttrs("", nil)
	}
	return &Rank{attrs: attrs}
}

// ID returns the rank name.
func (r *Rank) ID() string { return r.attrs.id }

// Attrs returns the rank metadata. Changes are visible to every fiber of
// the rank.
func (r *Rank) Attrs() *RankAttrs { return r.attrs }

// Fibers returns the fibers owned by the rank in append order.
func (r *Rank) Fibers() []*Fiber { return slices.Clone(r.fibers) }

// Len returns the number of fibers in the rank.
func (r *Rank) Len() int { return len(r.fibers) }

// NextRank returns the rank below, or nil for the leaf rank.
func (r *Rank) NextRank() *Rank { return r.next }

// IsLeaf reports whether the rank holds scalar payloads.
func (r *Rank) IsLeaf() bool { return r.next == nil }

// SetNextRank links next below r. Linking a rank turns r into a non-leaf
// rank whose default is [FiberDefault].
func (r *Rank) SetNextRank(next *Rank) {
	r.next = next
	switch {
	case next != nil:
		r.attrs.def = FiberDefault
	case r.attrs.def == FiberDefault:
		r.attrs.def = 0
	}
}

// Default returns the default payload of the rank's fibers: [FiberDefault]
// for non-leaf ranks and the declared scalar default for the leaf rank.
func (r *Rank) Default() any {
	if r.next != nil {
		return FiberDefault
	}
	if r.attrs.def == FiberDefault {
		return 0
	}
	return r.attrs.def
}

// Append makes r the owner of f. While the rank shape is estimated it grows
// to cover f's coordinates.
func (r *Rank) Append(f *Fiber) {
	f.owner = r
	f.attrs = nil
	r.fibers = append(r.fibers, f)
	if r.attrs.estimated {
		for _, c := range f.coords {
			r.attrs.shape = growShape(r.attrs.shape, c)
		}
	}
}

// Pop removes and returns the most recently appended fiber, or nil.
// The fiber keeps a detached copy of the rank attributes.
func (r *Rank) Pop() *Fiber {
	if len(r.fibers) == 0 {
		return nil
	}
	f := r.fibers[len(r.fibers)-1]
	r.fibers = r.fibers[:len(r.fibers)-1]
	r.detach(f)
	return f
}

// ClearFibers drops every fiber from the rank.
func (r *Rank) ClearFibers() {
	r.fibers = nil
}

func (r *Rank) remove(f *Fiber) {
	if i := slices.Index(r.fibers, f); i >= 0 {
		r.fibers = slices.Delete(r.fibers, i, i+1)
		r.detach(f)
	}
}

func (r *Rank) detach(f *Fiber) {
	if f.owner == r {
		f.attrs = r.attrs.Clone()
		f.attrs.def = r.Default()
		f.owner = nil
	}
}

// GetShape returns the shape of r and, when allRanks is set, of every rank
// below it. With authoritative set the result is nil as soon as any of the
// shapes is estimated.
func (r *Rank) GetShape(allRanks, authoritative bool) []Coord {
	var shape []Coord
	for cur := r; cur != nil; cur = cur.next {
		if authoritative && cur.attrs.estimated {
			return nil
		}
		shape = append(shape, cur.attrs.shape)
		if !allRanks {
			break
		}
	}
	return shape
}

func (r *Rank) String() string {
	return "Rank(" + r.attrs.String() + ")"
}
