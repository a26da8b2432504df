// Package pipeline runs tensor kernels for the fibertree CLI and HTTP API.
//
// A run reads its input tensors, executes one named kernel over them with
// metrics collection enabled, and returns the output tensor together with
// the collected counters. Both entry points go through the same [Runner],
// so caching, logging and observability behave identically.
//
// # Kernels
//
//   - intersect: Z = A * B where both are non-default
//   - union: Z = A + B
//   - difference: Z = A where B is default
//   - xor: Z = A or B where exactly one is non-default
//   - populate: Z = A with every element of B written over it
//   - matmul: Z[m,n] = sum over k of A[m,k] * B[k,n]
//
// The elementwise kernels take two tensors with the same rank ids. matmul
// takes two rank-2 tensors whose inner and outer rank ids match.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Op:     pipeline.OpMatmul,
//	    Inputs: []*fibertree.Tensor{a, b},
//	    Trace:  []string{"K"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Metrics.Get("K", "successful_intersect"))
//
// Transforms (swizzle, split, flatten, unflatten) and renderings go through
// [Runner.Transform] and [Runner.Render].
package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	"github.com/matzehuels/fibertree/pkg/metrics"
)

// Kernel names.
const (
	OpIntersect  = "intersect"
	OpUnion      = "union"
	OpDifference = "difference"
	OpXor        = "xor"
	OpPopulate   = "populate"
	OpMatmul     = "matmul"
)

// DefaultTraceRoot is the directory under which each traced run gets its
// own subdirectory when Options.TraceDir is empty.
const DefaultTraceRoot = "traces"

// ValidOps is the set of supported kernels.
var ValidOps = map[string]bool{
	OpIntersect:  true,
	OpUnion:      true,
	OpDifference: true,
	OpXor:        true,
	OpPopulate:   true,
	OpMatmul:     true,
}

// traceTypes lists the trace types a kernel emits on each traced rank.
var traceTypes = map[string][]string{
	OpIntersect:  {"intersect_0", "intersect_1"},
	OpUnion:      {"union_0", "union_1"},
	OpDifference: {"union_0", "union_1", "difference_0", "difference_1"},
	OpXor:        {"union_0", "union_1", "xor_0", "xor_1"},
	OpPopulate:   {"populate_read_0", "populate_write_0", "populate_1"},
	OpMatmul:     {"intersect_0", "intersect_1", "populate_read_0", "populate_write_0", "populate_1"},
}

// TraceTypes returns the trace types recorded for op, in file order.
func TraceTypes(op string) []string {
	return slices.Clone(traceTypes[op])
}

// =============================================================================
// Options - Run Configuration
// =============================================================================

// Options configures a kernel run.
type Options struct {
	// Op is the kernel name, one of the Op* constants.
	Op string

	// Inputs are the operand tensors in kernel order.
	Inputs []*fibertree.Tensor

	// Trace lists the rank ids whose access traces are written.
	Trace []string

	// TraceDir receives the trace CSV files. When empty and Trace is set,
	// TraceRoot/<run id> is used.
	TraceDir  string
	TraceRoot string

	// Refresh bypasses the cache lookup. The result is still stored.
	Refresh bool

	// Name names the output tensor (default "Z").
	Name string

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger
}

// ValidateAndSetDefaults checks the options and fills in defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Op == "" {
		return errs.New(errs.ErrCodeInvalidOp, "no op given")
	}
	if !ValidOps[o.Op] {
		return errs.New(errs.ErrCodeInvalidOp, "unknown op %q (valid: %s)", o.Op, opList())
	}
	if len(o.Inputs) != 2 {
		return errs.New(errs.ErrCodeInvalidInput, "%s needs 2 input tensors, got %d", o.Op, len(o.Inputs))
	}
	for i, t := range o.Inputs {
		if t == nil || t.Depth() == 0 {
			return errs.New(errs.ErrCodeInvalidInput, "input %d is not a tensor with ranks", i)
		}
	}
	if err := checkOperands(o.Op, o.Inputs[0], o.Inputs[1]); err != nil {
		return err
	}
	for _, id := range o.Trace {
		if err := errs.ValidateRankID(id); err != nil {
			return err
		}
	}
	if o.TraceRoot == "" {
		o.TraceRoot = DefaultTraceRoot
	}
	if o.Name == "" {
		o.Name = "Z"
	}
	return errs.ValidateTensorName(o.Name)
}

func checkOperands(op string, a, b *fibertree.Tensor) error {
	ia, ib := a.RankIDs(), b.RankIDs()
	if op == OpMatmul {
		if len(ia) != 2 || len(ib) != 2 {
			return errs.New(errs.ErrCodeInvalidInput, "matmul needs two rank-2 tensors, got %v and %v", ia, ib)
		}
		if ia[1] != ib[0] {
			return errs.New(errs.ErrCodeInvalidInput, "matmul contracts A's inner rank %s with B's outer rank %s", ia[1], ib[0])
		}
		if ia[0] == ib[1] {
			return errs.New(errs.ErrCodeInvalidInput, "matmul output ranks would both be %s", ia[0])
		}
		return nil
	}
	if !slices.Equal(ia, ib) {
		return errs.New(errs.ErrCodeInvalidInput, "%s needs equal rank ids, got %v and %v", op, ia, ib)
	}
	return nil
}

func opList() string {
	ops := make([]string, 0, len(ValidOps))
	for op := range ValidOps {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return fmt.Sprint(ops)
}

// traceDir returns the directory for the trace files of run id.
func (o *Options) traceDir(id string) string {
	if len(o.Trace) == 0 {
		return ""
	}
	if o.TraceDir != "" {
		return o.TraceDir
	}
	return filepath.Join(o.TraceRoot, id)
}

// =============================================================================
// Result - Run Output
// =============================================================================

// Result holds the output of a kernel run.
type Result struct {
	// RunID identifies this run. Cached results keep the id of the run
	// that computed them.
	RunID string

	Output  *fibertree.Tensor
	Metrics metrics.Dump

	// TraceDir is where the trace files were written, empty if none.
	TraceDir string

	Stats    Stats
	CacheHit bool
}

// Stats describes a run.
type Stats struct {
	Duration time.Duration
	Values   int
}
