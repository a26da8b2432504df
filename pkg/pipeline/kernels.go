package pipeline

import (
	"errors"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
)

// kernel fills z from a and b. levels is the number of ranks at and below
// the fibers passed in.
type kernel func(z, a, b *fibertree.Fiber, levels int)

var kernels = map[string]kernel{
	OpIntersect:  intersect,
	OpUnion:      union,
	OpDifference: difference,
	OpXor:        xor,
	OpPopulate:   populate,
}

// Compute runs op over a and b and returns the output tensor. It does not
// collect metrics; see [Runner.Execute].
func Compute(op string, a, b *fibertree.Tensor, name string) (z *fibertree.Tensor, err error) {
	if !ValidOps[op] {
		return nil, errs.New(errs.ErrCodeInvalidOp, "unknown op %q", op)
	}
	if err := checkOperands(op, a, b); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			var ae *fibertree.AssertionError
			if e, ok := r.(error); ok && errors.As(e, &ae) {
				z, err = nil, errs.Wrap(errs.ErrCodeInvalidInput, ae, "%s", op)
				return
			}
			panic(r)
		}
	}()

	if op == OpMatmul {
		z = outputTensor([]string{a.RankIDs()[0], b.RankIDs()[1]},
			[]fibertree.Coord{a.Shape()[0], b.Shape()[1]}, 0, name)
		matmul(z.Root(), a.Root(), b.Root())
		return z, nil
	}

	z = outputTensor(a.RankIDs(), mergeShapes(a.Shape(), b.Shape()), a.Default(), name)
	kernels[op](z.Root(), a.Root(), b.Root(), z.Depth())
	return z, nil
}

func outputTensor(ids []string, shape []fibertree.Coord, def any, name string) *fibertree.Tensor {
	return fibertree.NewTensor(ids,
		fibertree.WithTensorShape(shape...),
		fibertree.WithTensorDefault(def),
		fibertree.WithName(name))
}

// mergeShapes takes the larger extent of each rank.
func mergeShapes(a, b []fibertree.Coord) []fibertree.Coord {
	out := make([]fibertree.Coord, len(a))
	for i := range a {
		switch {
		case i >= len(b) || b[i] == nil:
			out[i] = a[i]
		case a[i] == nil || fibertree.CompareCoords(b[i], a[i]) > 0:
			out[i] = b[i]
		default:
			out[i] = a[i]
		}
	}
	return out
}

func intersect(z, a, b *fibertree.Fiber, levels int) {
	for _, p := range z.Populate(a.And(b)).All() {
		zr, ab := fibertree.Pair(p)
		pa, pb := fibertree.Pair(ab)
		if levels > 1 {
			intersect(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), pb.(*fibertree.Fiber), levels-1)
			continue
		}
		zr.(*fibertree.Payload).Set(pa.(*fibertree.Payload).Mul(pb))
	}
}

func union(z, a, b *fibertree.Fiber, levels int) {
	for _, p := range z.Populate(a.Or(b)).All() {
		zr, ab := fibertree.Pair(p)
		_, pa, pb := fibertree.Masked(ab)
		if levels > 1 {
			union(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), pb.(*fibertree.Fiber), levels-1)
			continue
		}
		zr.(*fibertree.Payload).Set(pa.(*fibertree.Payload).Add(pb))
	}
}

// difference keeps the leaves of a whose coordinates are missing from b.
// Upper ranks are merged so that shared sub-fibers are compared leaf by
// leaf.
func difference(z, a, b *fibertree.Fiber, levels int) {
	if levels == 1 {
		for _, p := range z.Populate(a.Sub(b)).All() {
			zr, pa := fibertree.Pair(p)
			zr.(*fibertree.Payload).Set(pa)
		}
		return
	}
	for _, p := range z.Populate(a.Or(b)).All() {
		zr, ab := fibertree.Pair(p)
		mask, pa, pb := fibertree.Masked(ab)
		switch mask {
		case fibertree.MaskAB:
			difference(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), pb.(*fibertree.Fiber), levels-1)
		case fibertree.MaskA:
			copyInto(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), levels-1)
		}
	}
}

// xor keeps the leaves present in exactly one operand.
func xor(z, a, b *fibertree.Fiber, levels int) {
	if levels == 1 {
		for _, p := range z.Populate(a.Xor(b)).All() {
			zr, ab := fibertree.Pair(p)
			mask, pa, pb := fibertree.Masked(ab)
			if mask == fibertree.MaskA {
				zr.(*fibertree.Payload).Set(pa)
			} else {
				zr.(*fibertree.Payload).Set(pb)
			}
		}
		return
	}
	for _, p := range z.Populate(a.Or(b)).All() {
		zr, ab := fibertree.Pair(p)
		mask, pa, pb := fibertree.Masked(ab)
		switch mask {
		case fibertree.MaskAB:
			xor(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), pb.(*fibertree.Fiber), levels-1)
		case fibertree.MaskA:
			copyInto(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), levels-1)
		case fibertree.MaskB:
			copyInto(zr.(*fibertree.Fiber), pb.(*fibertree.Fiber), levels-1)
		}
	}
}

// populate copies a into z, then writes every element of b over it.
func populate(z, a, b *fibertree.Fiber, levels int) {
	copyInto(z, a, levels)
	copyInto(z, b, levels)
}

func copyInto(z, a *fibertree.Fiber, levels int) {
	for _, p := range z.Populate(a).All() {
		zr, pa := fibertree.Pair(p)
		if levels > 1 {
			copyInto(zr.(*fibertree.Fiber), pa.(*fibertree.Fiber), levels-1)
			continue
		}
		zr.(*fibertree.Payload).Set(pa)
	}
}

// matmul computes Z[m,n] += A[m,k] * B[k,n] in the m, k, n loop order:
// rows of A are intersected with B on k, and each hit scales a row of B
// into the output row.
func matmul(z, a, b *fibertree.Fiber) {
	for _, p := range z.Populate(a).All() {
		zm, ak := fibertree.Pair(p)
		for _, q := range ak.(*fibertree.Fiber).And(b).All() {
			av, bn := fibertree.Pair(q)
			for _, r := range zm.(*fibertree.Fiber).Populate(bn.(*fibertree.Fiber)).All() {
				zn, bv := fibertree.Pair(r)
				zn.(*fibertree.Payload).AddAssign(av.(*fibertree.Payload).Mul(bv))
			}
		}
	}
}
