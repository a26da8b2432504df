package pipeline

import (
	"context"
	"time"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	"github.com/matzehuels/fibertree/pkg/observability"
)

// Transform names.
const (
	TransformSwizzle   = "swizzle"
	TransformSwap      = "swap"
	TransformSplit     = "split"
	TransformFlatten   = "flatten"
	TransformUnflatten = "unflatten"
)

// Split modes.
const (
	SplitUniform    = "uniform"
	SplitNonUniform = "nonuniform"
	SplitEqual      = "equal"
	SplitUnEqual    = "unequal"
)

// TransformOptions selects a rank transformation and its parameters.
// Only the fields of the chosen Kind are read.
type TransformOptions struct {
	Kind string

	// swizzle
	Order []string

	// swap, flatten, unflatten
	Depth  int
	Levels int
	Style  string

	// split
	Rank       string
	Mode       string
	Step       int
	Splits     []int
	Sizes      []int
	Parts      int
	Partitions int
	Relative   bool
}

// Transform applies a rank transformation to t and returns the new
// tensor. t is not modified.
func (r *Runner) Transform(ctx context.Context, t *fibertree.Tensor, opts TransformOptions) (*fibertree.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()
	hooks.OnTransformStart(ctx, opts.Kind, t.RankIDs())
	start := time.Now()
	out, err := transform(t, opts)
	hooks.OnTransformComplete(ctx, opts.Kind, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	r.Logger.Debug("transformed tensor",
		"transform", opts.Kind,
		"from", t.RankIDs(),
		"to", out.RankIDs(),
		"duration", time.Since(start))
	return out, nil
}

func transform(t *fibertree.Tensor, opts TransformOptions) (*fibertree.Tensor, error) {
	var (
		out *fibertree.Tensor
		err error
	)
	switch opts.Kind {
	case TransformSwizzle:
		out, err = t.SwizzleRanks(opts.Order)
	case TransformSwap:
		out, err = t.SwapRanks(opts.Depth)
	case TransformSplit:
		out, err = split(t, opts)
	case TransformFlatten:
		style, serr := fibertree.ParseStyle(opts.Style)
		if serr != nil {
			return nil, errs.Wrap(errs.ErrCodeInvalidInput, serr, "flatten")
		}
		out, err = t.FlattenRanks(opts.Depth, levels(opts.Levels), style)
	case TransformUnflatten:
		out, err = t.UnflattenRanks(opts.Depth, levels(opts.Levels))
	default:
		return nil, errs.New(errs.ErrCodeInvalidOp, "unknown transform %q", opts.Kind)
	}
	if err != nil {
		if errs.GetCode(err) != "" {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "%s", opts.Kind)
	}
	return out, nil
}

func levels(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func split(t *fibertree.Tensor, opts TransformOptions) (*fibertree.Tensor, error) {
	if opts.Rank == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "split needs a rank id")
	}
	switch opts.Mode {
	case SplitUniform, "":
		return t.SplitUniform(opts.Rank, opts.Step, fibertree.SplitOptions{
			Partitions:     opts.Partitions,
			RelativeCoords: opts.Relative,
		})
	case SplitNonUniform:
		splits := make([]fibertree.Coord, len(opts.Splits))
		for i, s := range opts.Splits {
			splits[i] = s
		}
		return t.SplitNonUniform(opts.Rank, splits)
	case SplitEqual:
		return t.SplitEqual(opts.Rank, opts.Parts)
	case SplitUnEqual:
		return t.SplitUnEqual(opts.Rank, opts.Sizes)
	}
	return nil, errs.New(errs.ErrCodeInvalidInput, "unknown split mode %q", opts.Mode)
}
