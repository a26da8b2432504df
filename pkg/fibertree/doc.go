// Package fibertree represents sparse tensors as trees of fibers and
// provides the co-iteration algebra used to write sparse kernels over them.
//
// # Overview
//
// A [Fiber] is an ordered sequence of (coordinate, payload) pairs. Leaf
// payloads are boxed scalars ([*Payload]); the payloads of every other level
// are sub-fibers. A [Tensor] names the levels of such a tree: each level is
// a [Rank] that owns the fibers at that depth and carries shared
// [RankAttrs] (shape, storage format, default payload).
//
// Only non-default entries are stored. Reading a missing coordinate returns
// the rank's default (0 for the leaf rank, a fresh empty fiber above it),
// and assigning the default to an entry produced by [Populate] removes it.
//
// # Basic Usage
//
//	a, _ := fibertree.TensorFromUncompressed([]string{"K"}, []int{1, 0, 0, 4})
//	b, _ := fibertree.TensorFromUncompressed([]string{"K"}, []int{0, 2, 0, 3})
//	for k, ab := range a.Root().And(b.Root()).All() {
//	    pa, pb := fibertree.Pair(ab)
//	    fmt.Println(k, pa, pb) // 3 <4> <3>
//	}
//
// # Co-iteration
//
// The operators take ordered, unique fibers and return lazy fibers that do
// their work while being iterated:
//
//   - [Intersect] (a & b): coordinates in both, payload (pA, pB)
//   - [Union] (a | b): coordinates in either, payload (mask, pA, pB)
//   - [Xor] (a ^ b): coordinates in exactly one, payload (mask, pA, pB)
//   - [Difference] (a - b): coordinates only in a, payload pA
//   - [Populate] (a << b): coordinates of b, inserting defaults into a,
//     payload (refA, pB) so refA can be assigned in place
//
// Misusing an operator (an unordered operand, populating a lazy fiber)
// panics with an [*AssertionError]. Every other failure is a returned
// error.
//
// # Transforms
//
// Splits ([Fiber.SplitUniform], [Fiber.SplitNonUniform],
// [Fiber.SplitEqual], [Fiber.SplitUnEqual]) add a rank,
// [Fiber.FlattenRanks] and [Fiber.UnflattenRanks] fuse and separate ranks
// through tuple coordinates, and [Fiber.SwapRanks] exchanges two adjacent
// ranks. The [Tensor] forms return new tensors with renamed ranks;
// [Tensor.SwizzleRanks] reorders all ranks.
//
// # Metrics
//
// While a [metrics] frame is open the package counts payload arithmetic,
// intersection tests and populate inserts, stamps iterations of registered
// ranks and writes per-rank traces. Nothing is recorded otherwise.
//
// # Concurrency
//
// Fibers, ranks and tensors are not safe for concurrent use. Lazy fibers
// re-run their producer on every traversal.
//
// [metrics]: github.com/matzehuels/fibertree/pkg/metrics
package fibertree
