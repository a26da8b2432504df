package fibertree_test

import (
	"fmt"

	"github.com/matzehuels/fibertree/pkg/fibertree"
)

func ExampleIntersect() {
	// Dot product of two sparse vectors: only shared coordinates are visited
	a, _ := fibertree.TensorFromUncompressed([]string{"K"}, []int{1, 0, 0, 0, 0, 0, 0, 8, 4})
	b, _ := fibertree.TensorFromUncompressed([]string{"K"}, []int{0, 2, 3, 4, 6, 0, 0, 4, 0})

	sum := fibertree.NewPayload(0)
	for k, ab := range a.Root().And(b.Root()).All() {
		pa, pb := fibertree.Pair(ab)
		fmt.Println("k =", k, pa, pb)
		sum.AddAssign(pa.(*fibertree.Payload).Mul(pb))
	}
	fmt.Println("sum:", sum)
	// Output:
	// k = 7 <8> <4>
	// sum: <32>
}

func ExampleUnion() {
	a, _ := fibertree.FromUncompressed([]int{1, 2, 0, 0})
	b, _ := fibertree.FromUncompressed([]int{0, 2, 3, 0})

	for k, p := range a.Or(b).All() {
		mask, pa, pb := fibertree.Masked(p)
		fmt.Println(k, mask, pa, pb)
	}
	// Output:
	// 0 A <1> <0>
	// 1 AB <2> <2>
	// 2 B <0> <3>
}

func ExamplePopulate() {
	// Z[m] = 2 * A[m], inserting into an empty Z
	z := fibertree.NewTensor([]string{"M"}, fibertree.WithTensorShape(9))
	a, _ := fibertree.TensorFromUncompressed([]string{"M"}, []int{0, 0, 3, 4, 0, 0, 0, 0, 9})

	for _, p := range z.Root().Populate(a.Root()).All() {
		zm, am := fibertree.Pair(p)
		zm.(*fibertree.Payload).Set(am.(*fibertree.Payload).Mul(2))
	}

	dense, _ := z.Uncompress()
	fmt.Println(dense)
	// Output:
	// [0 0 6 8 0 0 0 0 18]
}

func ExampleFiber_SplitUniform() {
	f, _ := fibertree.NewFiber([]fibertree.Coord{0, 3, 7}, []any{1, 4, 9})

	split, _ := f.SplitUniform(5, fibertree.SplitOptions{})
	fmt.Println(split)
	// Output:
	// F/[(0 -> F/[(0 -> <1>) (3 -> <4>)]) (5 -> F/[(7 -> <9>)])]
}

func ExampleFiber_FlattenRanks() {
	row1, _ := fibertree.NewFiber([]fibertree.Coord{2, 5}, []any{"a", "b"})
	row4, _ := fibertree.NewFiber([]fibertree.Coord{3}, []any{"c"})
	f, _ := fibertree.NewFiber([]fibertree.Coord{1, 4}, []any{row1, row4})

	flat, _ := f.FlattenRanks(0, 1, fibertree.StyleTuple)
	fmt.Println(flat.Coords())

	back, _ := flat.UnflattenRanks(0, 1)
	fmt.Println(back.Equal(f))
	// Output:
	// [(1, 2) (1, 5) (4, 3)]
	// true
}

func ExampleTensor_SwapRanks() {
	m0, _ := fibertree.NewFiber([]fibertree.Coord{1, 3}, []any{"a", "b"})
	m2, _ := fibertree.NewFiber([]fibertree.Coord{1}, []any{"c"})
	root, _ := fibertree.NewFiber([]fibertree.Coord{0, 2}, []any{m0, m2})
	t, _ := fibertree.FromFiber([]string{"M", "K"}, root)

	swapped, _ := t.SwapRanks(0)
	fmt.Println(swapped)
	// Output:
	// T(K,M)/F/[(1 -> F/[(0 -> <a>) (2 -> <c>)]) (3 -> F/[(0 -> <b>)])]
}
