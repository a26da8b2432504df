package fibertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

func TestNewFiber(t *testing.T) {
	t.Run("numbers payloads", func(t *testing.T) {
		f := mustFiber(t, nil, []any{5, 6, 7})
		assert.Equal(t, []Coord{0, 1, 2}, f.Coords())
		assert.Equal(t, []any{5, 6, 7}, values(f))
	})

	t.Run("fills defaults", func(t *testing.T) {
		f := mustFiber(t, []Coord{1, 4}, nil, WithDefault(9))
		assert.Equal(t, []any{9, 9}, values(f))
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := NewFiber([]Coord{1, 2}, []any{1})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("order flags", func(t *testing.T) {
		f := mustFiber(t, []Coord{3, 1, 3}, []any{1, 2, 3})
		assert.False(t, f.Ordered())
		assert.False(t, f.Unique())

		g := mustFiber(t, []Coord{1, 1}, []any{1, 2})
		assert.True(t, g.Ordered())
		assert.False(t, g.Unique())
	})

	t.Run("sub-fibers set fiber default", func(t *testing.T) {
		f := mustFiber(t, []Coord{0}, []any{mustFiber(t, nil, []any{1})})
		assert.Equal(t, FiberDefault, f.Default())
		assert.Equal(t, 2, f.Depth())
	})
}

func TestGetPayload(t *testing.T) {
	f := mustFiber(t, []Coord{1, 5}, []any{10, 50})

	assert.Equal(t, 50, Unbox(f.GetPayload(5)))
	assert.Equal(t, 0, Unbox(f.GetPayload(3)))
	assert.Equal(t, 2, f.Len(), "GetPayload must not insert")

	got := f.GetPayloadWith(GetOptions{NoAllocate: true, Default: "missing"}, 3)
	assert.Equal(t, "missing", got)

	pos, ok := f.GetPosition(5)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = f.GetPosition(2)
	assert.False(t, ok)
}

func TestGetPayloadNested(t *testing.T) {
	inner := mustFiber(t, []Coord{2}, []any{7})
	f := mustFiber(t, []Coord{1}, []any{inner})

	assert.Equal(t, 7, Unbox(f.GetPayload(1, 2)))
	assert.Equal(t, 0, Unbox(f.GetPayload(1, 3)))
	assert.Equal(t, 0, Unbox(f.GetPayload(4, 2)))

	sub, ok := f.GetPayload(4).(*Fiber)
	require.True(t, ok)
	assert.Equal(t, 0, sub.Len())
}

func TestGetPayloadRefInserts(t *testing.T) {
	f := mustFiber(t, []Coord{1, 5}, []any{10, 50})

	ref := f.GetPayloadRef(3).(*Payload)
	assert.Equal(t, []Coord{1, 3, 5}, f.Coords())
	ref.Set(30)
	assert.Equal(t, []any{10, 30, 50}, values(f))

	assert.Equal(t, 1, f.GetPositionRef(3))
	assert.Equal(t, 3, f.Len())
}

func TestGetPayloadRefOnLazyPanics(t *testing.T) {
	a := mustFiber(t, []Coord{1}, []any{1})
	requireAssertion(t, ErrLazyFiber, func() { Intersect(a, a).GetPayloadRef(1) })
}

func TestSavedPosHint(t *testing.T) {
	f := mustFiber(t, nil, []any{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	f.SetSavedPos(2)

	got := f.GetPayloadWith(GetOptions{UseHint: true}, 7)
	assert.Equal(t, 7, Unbox(got))
	assert.Equal(t, 7, f.SavedPos())
	assert.Equal(t, 5, f.SavedPosStats())

	// A hint past the target falls back to a full search.
	got = f.GetPayloadWith(GetOptions{UseHint: true}, 1)
	assert.Equal(t, 1, Unbox(got))
	assert.Equal(t, 1, f.SavedPos())
	assert.Equal(t, 11, f.SavedPosStats())
}

func TestGetRange(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 4, 8}, []any{1, 2, 3, 4})

	r := f.GetRange(3, 5, nil)
	assert.Equal(t, []Coord{3, 4}, r.Coords())

	shifted := f.GetRange(3, 5, func(c Coord) Coord { return c.(int) - 3 })
	assert.Equal(t, []Coord{0, 1}, shifted.Coords())
	assert.Same(t, f.Payloads()[1], shifted.Payloads()[0])
}

func TestAppendAndExtend(t *testing.T) {
	f := mustFiber(t, []Coord{}, []any{})
	require.NoError(t, f.Append(2, 4))
	require.NoError(t, f.Append(5, 6))

	err := f.Append(3, 1)
	var cerr *CoordinateError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 5, cerr.Prev)

	tail := mustFiber(t, []Coord{7, 9}, []any{1, 2})
	require.NoError(t, f.Extend(tail))
	assert.Equal(t, []Coord{2, 5, 7, 9}, f.Coords())

	assert.ErrorAs(t, f.Extend(tail), &cerr)
}

func TestSetAt(t *testing.T) {
	f := mustFiber(t, []Coord{1, 4, 8}, []any{1, 2, 3})

	require.NoError(t, f.SetAt(1, 9))
	assert.Equal(t, []any{1, 9, 3}, values(f))

	require.NoError(t, f.SetAt(1, NewCoordPayload(6, 5)))
	assert.Equal(t, []Coord{1, 6, 8}, f.Coords())

	var cerr *CoordinateError
	require.ErrorAs(t, f.SetAt(1, NewCoordPayload(8, 5)), &cerr)
	assert.Equal(t, 1, cerr.Prev)
	assert.Equal(t, 8, cerr.Next)

	assert.Error(t, f.SetAt(3, 1))
}

func TestUpdateCoordsAndPayloads(t *testing.T) {
	inner := mustFiber(t, []Coord{1, 2}, []any{3, 4})
	f := mustFiber(t, []Coord{0}, []any{inner})

	require.NoError(t, f.UpdateCoords(func(_ int, c Coord, _ any) Coord { return c.(int) * 2 }, 1))
	assert.Equal(t, []Coord{2, 4}, inner.Coords())

	require.NoError(t, f.UpdatePayloads(func(p any) any { return p.(*Payload).Mul(10) }, 1))
	assert.Equal(t, []any{30, 40}, values(inner))

	require.NoError(t, f.UpdateCoords(func(i int, _ Coord, _ any) Coord { return -i }, 1))
	assert.False(t, inner.Ordered())

	assert.ErrorIs(t, f.UpdatePayloads(func(p any) any { return p }, 3), ErrTooDeep)
}

func TestPrune(t *testing.T) {
	empty := mustFiber(t, []Coord{}, []any{})
	zeros := mustFiber(t, []Coord{0, 1}, []any{0, 0})
	kept := mustFiber(t, []Coord{0, 1}, []any{0, 5})
	f := mustFiber(t, []Coord{0, 1, 2}, []any{empty, zeros, kept})

	f.Prune()
	assert.Equal(t, []Coord{2}, f.Coords())
	assert.Equal(t, []Coord{1}, kept.Coords())
}

func TestCopyIsDeep(t *testing.T) {
	inner := mustFiber(t, []Coord{0}, []any{1})
	f := mustFiber(t, []Coord{3}, []any{inner})

	c := f.Copy()
	require.True(t, c.Equal(f))

	c.GetPayload(3, 0).(*Payload).Set(9)
	assert.Equal(t, 1, Unbox(f.GetPayload(3, 0)))
	assert.Nil(t, c.Owner())
}

func TestEqualIgnoresDefaults(t *testing.T) {
	a := mustFiber(t, []Coord{0, 2}, []any{0, 5})
	b := mustFiber(t, []Coord{2}, []any{5})
	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(a))

	c := mustFiber(t, []Coord{2}, []any{6})
	assert.False(t, a.Equal(c))

	tup := mustFiber(t, []Coord{Tuple{2}}, []any{5})
	assert.False(t, b.Equal(tup), "coordinate arity differs")
}

func TestFiberString(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3}, []any{1, 4})
	assert.Equal(t, "F/[(0 -> <1>) (3 -> <4>)]", f.String())

	nested := mustFiber(t, []Coord{2}, []any{f})
	assert.Equal(t, "F/[(2 -> F/[(0 -> <1>) (3 -> <4>)])]", nested.String())
}

func TestIteration(t *testing.T) {
	f := mustFiber(t, []Coord{1, 3}, []any{10, 30}, WithShape(5))

	var coords []Coord
	for c := range f.All() {
		coords = append(coords, c)
	}
	assert.Equal(t, []Coord{1, 3}, coords)

	coords = nil
	for c := range f.Backward() {
		coords = append(coords, c)
	}
	assert.Equal(t, []Coord{3, 1}, coords)

	var dense []any
	for _, p := range f.IterShape() {
		dense = append(dense, Unbox(p))
	}
	assert.Equal(t, []any{0, 10, 0, 30, 0}, dense)
	assert.Equal(t, 2, f.Len(), "IterShape must not insert")

	for range f.IterShapeRef() {
	}
	assert.Equal(t, 5, f.Len())
}

func TestIterRange(t *testing.T) {
	f := mustFiber(t, nil, []any{1, 2, 3, 4, 5, 6})

	var coords []Coord
	for c := range f.IterRange(1, 6, 2) {
		coords = append(coords, c)
	}
	assert.Equal(t, []Coord{1, 3, 5}, coords)

	var dense []Coord
	for c := range f.IterRangeShape(4, 10, 3) {
		dense = append(dense, c)
	}
	assert.Equal(t, []Coord{4, 7}, dense)
}

func TestActiveRange(t *testing.T) {
	f := mustFiber(t, nil, []any{1, 2, 3, 4, 5}, WithShape(5))
	lo, hi := f.ActiveRange()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 5, hi)

	f.SetActiveRange(-3, 3)
	lo, _ = f.ActiveRange()
	assert.Equal(t, 0, lo)

	f.SetActiveRange(1, 9)
	var coords []Coord
	for c := range f.IterActive() {
		coords = append(coords, c)
	}
	assert.Equal(t, []Coord{1, 2, 3, 4}, coords)

	coords = nil
	for c := range CoiterActiveShape(f) {
		coords = append(coords, c)
	}
	assert.Equal(t, []Coord{1, 2, 3, 4}, coords)
}

func TestLazyFiber(t *testing.T) {
	seq := func(yield func(Coord, any) bool) {
		for i := 0; i < 3; i++ {
			if !yield(i*2, i) {
				return
			}
		}
	}
	f := FromIterator(seq)
	assert.True(t, f.IsLazy())
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 3, f.Len(), "a lazy fiber restarts on every traversal")

	e := FromLazy(f)
	assert.False(t, e.IsLazy())
	assert.Equal(t, []Coord{0, 2, 4}, e.Coords())
	assert.Same(t, e, FromLazy(e))

	_, err := f.SplitUniform(2, SplitOptions{})
	assert.ErrorIs(t, err, ErrLazyFiber)
	assert.ErrorIs(t, f.Append(9, 1), ErrLazyFiber)
}

func TestGetShape(t *testing.T) {
	declared := mustFiber(t, []Coord{1}, []any{1}, WithShape(10))
	assert.Equal(t, []Coord{10}, declared.GetShape(ShapeOptions{}))
	assert.Equal(t, []Coord{10}, declared.GetShape(ShapeOptions{Authoritative: true}))

	bounded := mustFiber(t, []Coord{1}, []any{1}, WithMaxCoord(7))
	assert.Equal(t, []Coord{8}, bounded.GetShape(ShapeOptions{}))
	assert.Nil(t, bounded.GetShape(ShapeOptions{Authoritative: true}))

	both := mustFiber(t, []Coord{1}, []any{1}, WithShape(10), WithMaxCoord(7))
	assert.Equal(t, []Coord{10}, both.GetShape(ShapeOptions{}))

	inner := mustFiber(t, []Coord{4}, []any{1})
	nested := mustFiber(t, []Coord{2}, []any{inner})
	assert.Equal(t, []Coord{3, 5}, nested.GetShape(ShapeOptions{AllRanks: true}))
	assert.Equal(t, []Coord{3, 5}, nested.EstimateShape(true))
}

func TestCountValues(t *testing.T) {
	f := mustDense(t, [][]int{{0, 1, 2}, {0, 0, 0}, {3, 0, 0}})
	assert.Equal(t, 3, f.CountValues())
}

func TestUncompressRoundTrip(t *testing.T) {
	data := [][]int{{0, 1, 0}, {0, 0, 0}, {2, 0, 3}}
	f := mustDense(t, data)
	assert.Equal(t, []Coord{0, 2}, f.Coords())

	dense, err := f.Uncompress()
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{0, 1, 0}, []any{0, 0, 0}, []any{2, 0, 3}}, dense)

	again := mustDense(t, dense)
	assert.True(t, again.Equal(f))
}

func TestFromUncompressedErrors(t *testing.T) {
	_, err := FromUncompressed(3)
	assert.Error(t, err)

	_, err = FromUncompressed([]any{[]any{1}, 2})
	assert.Error(t, err)
}

func TestFromRandom(t *testing.T) {
	a, err := FromRandom([]int{8, 8}, []float64{0.5, 0.5}, 9, 42)
	require.NoError(t, err)
	b, err := FromRandom([]int{8, 8}, []float64{0.5, 0.5}, 9, 42)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	for _, p := range a.Payloads() {
		sub := p.(*Fiber)
		assert.NotZero(t, sub.Len())
		for _, leaf := range sub.Payloads() {
			v := Unbox(leaf).(int)
			assert.GreaterOrEqual(t, v, 1)
			assert.LessOrEqual(t, v, 9)
		}
	}

	_, err = FromRandom(nil, []float64{1}, 1, 0)
	assert.Error(t, err)
}

func TestIterationStamps(t *testing.T) {
	isolateMetrics(t)
	require.NoError(t, metrics.BeginCollect(""))
	metrics.RegisterRank("K")

	f := mustFiber(t, []Coord{1, 2, 4}, []any{1, 2, 3}, WithRankID("K"))
	for range f.All() {
	}

	dump, err := metrics.EndCollect()
	require.NoError(t, err)
	assert.Equal(t, 3, dump.Get("K", "iterations"))
}

func TestReuseStatistics(t *testing.T) {
	isolateMetrics(t)
	require.NoError(t, metrics.BeginCollect(""))

	f := mustFiber(t, []Coord{1, 2}, []any{1, 2}, WithRankID("K"))
	f.RankAttrs().SetCollecting(true)
	f.GetPayload(1)
	f.GetPayload(2)
	f.GetPayload(1)

	dump, err := metrics.EndCollect()
	require.NoError(t, err)
	assert.Equal(t, 1, dump.Get("K", "reuses"))
}
