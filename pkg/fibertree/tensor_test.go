package fibertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTensor(t *testing.T, ids []string, data any, opts ...TensorOption) *Tensor {
	t.Helper()
	tt, err := TensorFromUncompressed(ids, data, opts...)
	require.NoError(t, err)
	return tt
}

// checkOwnership asserts that every fiber is owned by the rank of its
// level and that rank i+1 holds exactly the sub-fibers reached from rank i.
func checkOwnership(t *testing.T, tt *Tensor) {
	t.Helper()
	ranks := tt.Ranks()
	for i, r := range ranks {
		var children []*Fiber
		for _, f := range r.Fibers() {
			assert.Same(t, r, f.Owner(), "rank %s", r.ID())
			for _, p := range f.Payloads() {
				if sub, ok := p.(*Fiber); ok {
					children = append(children, sub)
				}
			}
		}
		if i+1 < len(ranks) {
			assert.ElementsMatch(t, children, ranks[i+1].Fibers(), "rank %s", ranks[i+1].ID())
		} else {
			assert.Empty(t, children)
		}
	}
}

func TestNewTensor(t *testing.T) {
	tt := NewTensor([]string{"M", "K"}, WithTensorShape(4, 5), WithName("A"))
	assert.Equal(t, []string{"M", "K"}, tt.RankIDs())
	assert.Equal(t, []Coord{4, 5}, tt.Shape())
	assert.Equal(t, "A", tt.Name())
	assert.Equal(t, "red", tt.Color())
	assert.True(t, tt.Mutable())
	assert.Equal(t, 2, tt.Depth())
	assert.Equal(t, 0, tt.Root().Len())
	assert.Equal(t, FiberDefault, tt.Root().Default())
}

func TestTensorDefault(t *testing.T) {
	tt := NewTensor([]string{"K"}, WithTensorDefault(7))
	assert.Equal(t, 7, Unbox(tt.GetPayload(3)))

	ref, err := tt.GetPayloadRef(3)
	require.NoError(t, err)
	assert.Equal(t, 7, Unbox(ref))
	assert.Equal(t, 0, tt.CountValues())

	require.NoError(t, tt.SetDefault(1))
	assert.Equal(t, 1, Unbox(tt.GetPayload(9)))
}

func TestScalarTensor(t *testing.T) {
	tt := NewScalarTensor(5)
	assert.Equal(t, 0, tt.Depth())
	assert.Nil(t, tt.Root())
	assert.Equal(t, 5, tt.Value().V())
	assert.Equal(t, 1, tt.CountValues())
	assert.ErrorIs(t, tt.SetRoot(mustFiber(t, nil, nil)), ErrTooDeep)
	assert.Equal(t, "T()/<5>", tt.String())
}

func TestTensorFromUncompressed(t *testing.T) {
	data := [][]int{{0, 1}, {2, 0}, {0, 0}}
	tt := mustTensor(t, []string{"M", "K"}, data)

	assert.Equal(t, []Coord{3, 2}, tt.Shape())
	assert.Equal(t, 2, tt.CountValues())
	checkOwnership(t, tt)

	dense, err := tt.Uncompress()
	require.NoError(t, err)
	assert.Equal(t, []any{[]any{0, 1}, []any{2, 0}, []any{0, 0}}, dense)

	anon := mustTensor(t, nil, data)
	assert.Equal(t, []string{"R0", "R1"}, anon.RankIDs())
}

func TestFromFiberCopiesOwnedFibers(t *testing.T) {
	a := mustTensor(t, []string{"M", "K"}, [][]int{{1, 0}, {0, 2}})
	b, err := FromFiber([]string{"M", "K"}, a.Root())
	require.NoError(t, err)

	assert.NotSame(t, a.Root(), b.Root())
	assert.True(t, a.Equal(b))
	checkOwnership(t, a)
	checkOwnership(t, b)

	_, err = FromFiber([]string{"M"}, a.Root())
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestTensorMutability(t *testing.T) {
	tt := mustTensor(t, []string{"K"}, []int{1, 2})
	tt.SetMutable(false)

	assert.ErrorIs(t, tt.SetAt(0, 5), ErrImmutable)
	_, err := tt.GetPayloadRef(4)
	assert.ErrorIs(t, err, ErrImmutable)
	assert.ErrorIs(t, tt.UpdatePayloads(func(p any) any { return p }, 0), ErrImmutable)

	tt.SetMutable(true)
	require.NoError(t, tt.SetAt(0, 5))
	assert.Equal(t, 5, Unbox(tt.GetPayload(0)))
}

func TestTensorRankAccess(t *testing.T) {
	tt := mustTensor(t, []string{"M", "K"}, [][]int{{1}})

	r, err := tt.Rank("K")
	require.NoError(t, err)
	assert.True(t, r.IsLeaf())

	_, err = tt.Rank("N")
	assert.ErrorIs(t, err, ErrUnknownRank)

	require.NoError(t, tt.SetFormat("M", FormatUncompressed))
	m, err := tt.Rank("M")
	require.NoError(t, err)
	assert.Equal(t, FormatUncompressed, m.Attrs().Format())
	assert.Same(t, r, m.NextRank())
}

func TestTensorSwapRanks(t *testing.T) {
	root := mustFiber(t, []Coord{0, 2}, []any{
		mustFiber(t, []Coord{1, 3}, []any{"a", "b"}),
		mustFiber(t, []Coord{1}, []any{"c"}),
	})
	tt, err := FromFiber([]string{"M", "K"}, root)
	require.NoError(t, err)

	sw, err := tt.SwapRanks(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"K", "M"}, sw.RankIDs())

	want := mustFiber(t, []Coord{1, 3}, []any{
		mustFiber(t, []Coord{0, 2}, []any{"a", "c"}),
		mustFiber(t, []Coord{0}, []any{"b"}),
	})
	assert.True(t, sw.Root().Equal(want), sw.String())
	assert.Equal(t, []Coord{0, 2}, tt.Root().Coords(), "the source tensor is unchanged")
	checkOwnership(t, sw)

	back, err := sw.SwapRanks(0)
	require.NoError(t, err)
	assert.True(t, back.Equal(tt))

	_, err = tt.SwapRanks(1)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestTensorSwapKeepsShape(t *testing.T) {
	tt := mustTensor(t, []string{"M", "K"}, [][]int{{0, 1, 0}, {2, 0, 0}})
	sw, err := tt.SwapRanks(0)
	require.NoError(t, err)
	assert.Equal(t, []Coord{3, 2}, sw.Shape())
}

func TestTensorSwizzle(t *testing.T) {
	tt, err := TensorFromRandom([]string{"M", "N", "K"}, []int{4, 5, 6}, []float64{0.8, 0.7, 0.6}, 9, 11)
	require.NoError(t, err)

	sw, err := tt.SwizzleRanks([]string{"K", "M", "N"})
	require.NoError(t, err)
	assert.Equal(t, []string{"K", "M", "N"}, sw.RankIDs())
	assert.Equal(t, []Coord{6, 4, 5}, sw.Shape())
	assert.Equal(t, tt.CountValues(), sw.CountValues())

	for m, pm := range tt.Root().All() {
		for n, pn := range pm.(*Fiber).All() {
			for k, leaf := range pn.(*Fiber).All() {
				assert.Equal(t, Unbox(leaf), Unbox(sw.GetPayload(k, m, n)))
			}
		}
	}

	back, err := sw.SwizzleRanks([]string{"M", "N", "K"})
	require.NoError(t, err)
	assert.True(t, back.Equal(tt))

	same, err := tt.SwizzleRanks([]string{"M", "N", "K"})
	require.NoError(t, err)
	assert.NotSame(t, tt, same)
	assert.True(t, same.Equal(tt))

	_, err = tt.SwizzleRanks([]string{"M", "M", "K"})
	assert.ErrorIs(t, err, ErrUnknownRank)
	_, err = tt.SwizzleRanks([]string{"M"})
	assert.ErrorIs(t, err, ErrUnknownRank)
}

func TestTensorSplitUniform(t *testing.T) {
	tt := mustTensor(t, []string{"K"}, []int{1, 0, 0, 4, 0, 5})

	s, err := tt.SplitUniform("K", 2, SplitOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"K.1", "K.0"}, s.RankIDs())
	assert.Equal(t, []Coord{6, 6}, s.Shape())
	assert.Equal(t, []Coord{0, 2, 4}, s.Root().Coords())
	checkOwnership(t, s)

	p, err := tt.SplitUniform("K", 2, SplitOptions{Partitions: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"K.2", "K.1", "K.0"}, p.RankIDs())

	r, err := tt.SplitUniform("K", 2, SplitOptions{RelativeCoords: true})
	require.NoError(t, err)
	assert.Equal(t, []Coord{6, 2}, r.Shape())

	_, err = tt.SplitUniform("M", 2, SplitOptions{})
	assert.ErrorIs(t, err, ErrUnknownRank)
}

func TestTensorSplitInner(t *testing.T) {
	tt := mustTensor(t, []string{"M", "K"}, [][]int{{1, 0, 3, 4}, {0, 5, 0, 0}})

	s, err := tt.SplitEqual("K", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "K.1", "K.0"}, s.RankIDs())
	assert.Equal(t, []Coord{0, 3}, s.GetPayload(0).(*Fiber).Coords())
	checkOwnership(t, s)

	n, err := tt.SplitNonUniform("K", []Coord{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []Coord{0, 2}, n.GetPayload(0).(*Fiber).Coords())

	u, err := tt.SplitUnEqual("K", []int{1})
	require.NoError(t, err)
	assert.Equal(t, []Coord{0}, u.GetPayload(0).(*Fiber).Coords())
}

func TestTensorFlattenUnflatten(t *testing.T) {
	tt := mustTensor(t, []string{"M", "K"}, [][]int{{0, 1}, {2, 0}, {0, 3}})

	flat, err := tt.FlattenRanks(0, 1, StyleTuple)
	require.NoError(t, err)
	assert.Equal(t, []string{"M+K"}, flat.RankIDs())
	assert.Equal(t, []Coord{Tuple{3, 2}}, flat.Shape())
	assert.Equal(t, []Coord{Tuple{0, 1}, Tuple{1, 0}, Tuple{2, 1}}, flat.Root().Coords())

	back, err := flat.UnflattenRanks(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "K"}, back.RankIDs())
	assert.Equal(t, []Coord{3, 2}, back.Shape())
	assert.True(t, back.Equal(tt))
	checkOwnership(t, back)

	_, err = tt.FlattenRanks(0, 2, StyleTuple)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestTensorString(t *testing.T) {
	tt := mustTensor(t, []string{"K"}, []int{1, 0, 3})
	assert.Equal(t, "T(K)/F/[(0 -> <1>) (2 -> <3>)]", tt.String())
}
