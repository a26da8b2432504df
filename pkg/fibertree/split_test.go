package fibertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// groupCoords returns the coordinates of every sub-fiber of a split.
func groupCoords(t *testing.T, f *Fiber) map[Coord][]Coord {
	t.Helper()
	out := make(map[Coord][]Coord)
	for c, p := range f.All() {
		sub, ok := p.(*Fiber)
		require.True(t, ok, "payload at %v is not a fiber", c)
		out[c] = sub.Coords()
	}
	return out
}

func TestSplitUniform(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7}, []any{1, 4, 9})

	s, err := f.SplitUniform(5, SplitOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Coord{0, 5}, s.Coords())
	assert.Equal(t, map[Coord][]Coord{0: {0, 3}, 5: {7}}, groupCoords(t, s))

	first := s.GetPayload(0).(*Fiber)
	assert.Equal(t, []any{1, 4}, values(first))
	assert.Same(t, f.Payloads()[0], first.Payloads()[0], "splits share payloads")

	lo, hi := first.ActiveRange()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 5, hi)
}

func TestSplitUniformRelative(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7}, []any{1, 4, 9})

	s, err := f.SplitUniform(5, SplitOptions{RelativeCoords: true})
	require.NoError(t, err)
	assert.Equal(t, map[Coord][]Coord{0: {0, 3}, 5: {2}}, groupCoords(t, s))
	assert.Equal(t, []Coord{5}, s.GetPayload(5).(*Fiber).GetShape(ShapeOptions{}))

	flat, err := s.FlattenRanks(0, 1, StyleAbsolute)
	require.NoError(t, err)
	assert.Equal(t, []Coord{0, 3, 7}, flat.Coords())
	assert.True(t, flat.Equal(f))
}

func TestSplitUniformPartitions(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7}, []any{1, 4, 9})

	s, err := f.SplitUniform(2, SplitOptions{Partitions: 2})
	require.NoError(t, err)
	assert.Equal(t, []Coord{0, 1}, s.Coords())
	assert.Equal(t, map[Coord][]Coord{0: {0, 6}, 1: {2}}, groupCoords(t, s))
}

func TestSplitUniformErrors(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3}, []any{1, 2})
	_, err := f.SplitUniform(0, SplitOptions{})
	assert.ErrorIs(t, err, ErrBadStep)

	unordered := mustFiber(t, []Coord{3, 0}, []any{1, 2})
	_, err = unordered.SplitUniform(2, SplitOptions{})
	assert.ErrorIs(t, err, ErrNotOrdered)

	strs := mustFiber(t, []Coord{"a"}, []any{1})
	_, err = strs.SplitUniform(2, SplitOptions{})
	assert.ErrorIs(t, err, ErrNotIntCoord)
}

func TestSplitNonUniform(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7, 9, 12}, []any{1, 2, 3, 4, 5})

	s, err := f.SplitNonUniform([]Coord{0, 4, 8})
	require.NoError(t, err)
	assert.Equal(t, map[Coord][]Coord{0: {0, 3}, 4: {7}, 8: {9, 12}}, groupCoords(t, s))

	_, err = f.SplitNonUniform([]Coord{4, 2})
	var cerr *CoordinateError
	assert.ErrorAs(t, err, &cerr)
}

func TestSplitEqual(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7, 9, 12}, []any{1, 2, 3, 4, 5})

	s, err := f.SplitEqual(2)
	require.NoError(t, err)
	assert.Equal(t, map[Coord][]Coord{0: {0, 3}, 7: {7, 9}, 12: {12}}, groupCoords(t, s))

	d, err := f.FloorDiv(2)
	require.NoError(t, err)
	assert.True(t, d.Equal(s))
}

func TestSplitUnEqual(t *testing.T) {
	f := mustFiber(t, []Coord{0, 3, 7, 9, 12}, []any{1, 2, 3, 4, 5})

	s, err := f.SplitUnEqual([]int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[Coord][]Coord{0: {0}, 3: {3, 7, 9, 12}}, groupCoords(t, s))

	_, err = f.SplitUnEqual([]int{1, 0})
	assert.ErrorIs(t, err, ErrBadStep)
}

func TestSplitThenFlattenRestores(t *testing.T) {
	f, err := FromRandom([]int{40}, []float64{0.3}, 9, 7)
	require.NoError(t, err)

	for _, step := range []int{1, 3, 8, 50} {
		s, err := f.SplitUniform(step, SplitOptions{})
		require.NoError(t, err)
		flat, err := s.FlattenRanks(0, 1, StyleAbsolute)
		require.NoError(t, err)
		assert.True(t, flat.Equal(f), "step %d", step)
	}
}

func TestSplitBelow(t *testing.T) {
	inner := mustFiber(t, []Coord{1, 6}, []any{1, 2})
	f := mustFiber(t, []Coord{0}, []any{inner})

	require.NoError(t, f.SplitUniformBelow(0, 5, SplitOptions{}))
	split := f.GetPayload(0).(*Fiber)
	assert.Equal(t, []Coord{0, 5}, split.Coords())
	assert.Equal(t, 2, Unbox(f.GetPayload(0, 5, 6)))
}

func TestFlattenUnflatten(t *testing.T) {
	f := mustFiber(t, []Coord{1, 4}, []any{
		mustFiber(t, []Coord{2, 5}, []any{"a", "b"}),
		mustFiber(t, []Coord{3}, []any{"c"}),
	})

	flat, err := f.FlattenRanks(0, 1, StyleTuple)
	require.NoError(t, err)
	assert.Equal(t, []Coord{Tuple{1, 2}, Tuple{1, 5}, Tuple{4, 3}}, flat.Coords())
	assert.Equal(t, []any{"a", "b", "c"}, values(flat))

	back, err := flat.UnflattenRanks(0, 1)
	require.NoError(t, err)
	assert.True(t, back.Equal(f))

	pair, err := f.FlattenRanks(0, 1, StylePair)
	require.NoError(t, err)
	assert.Equal(t, Tuple{4, 3}, pair.Coords()[2])
}

func TestFlattenThreeRanks(t *testing.T) {
	f := mustDense(t, [][][]int{
		{{0, 1}, {0, 0}},
		{{2, 0}, {0, 3}},
	})

	flat, err := f.FlattenRanks(0, 2, StyleTuple)
	require.NoError(t, err)
	assert.Equal(t, []Coord{Tuple{0, 0, 1}, Tuple{1, 0, 0}, Tuple{1, 1, 1}}, flat.Coords())

	back, err := flat.UnflattenRanks(0, 2)
	require.NoError(t, err)
	assert.True(t, back.Equal(f))
}

func TestFlattenBelow(t *testing.T) {
	f := mustDense(t, [][][]int{
		{{0, 1}, {2, 0}},
	})

	got, err := f.FlattenRanks(1, 1, StyleTuple)
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, []Coord{Tuple{0, 1}, Tuple{1, 0}}, f.GetPayload(0).(*Fiber).Coords())
}

func TestUnflattenNeedsTuples(t *testing.T) {
	f := mustFiber(t, []Coord{0, 1}, []any{1, 2})
	_, err := f.UnflattenRanks(0, 1)
	assert.ErrorIs(t, err, ErrNotTupleCoord)
}

func TestSwapRanksIsInvolution(t *testing.T) {
	f, err := FromRandom([]int{6, 6}, []float64{0.6, 0.5}, 9, 3)
	require.NoError(t, err)

	once, err := f.SwapRanks()
	require.NoError(t, err)
	twice, err := once.SwapRanks()
	require.NoError(t, err)
	assert.True(t, twice.Equal(f))

	for c, p := range f.All() {
		for ic, leaf := range p.(*Fiber).All() {
			assert.Equal(t, Unbox(leaf), Unbox(once.GetPayload(ic, c)))
		}
	}
}

func TestParseStyle(t *testing.T) {
	for _, s := range []Style{StyleTuple, StylePair, StyleAbsolute} {
		got, err := ParseStyle(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStyle("diagonal")
	assert.Error(t, err)
}
