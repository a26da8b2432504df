package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/fibertree/pkg/cache"
	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	"github.com/matzehuels/fibertree/pkg/observability"
)

func tensor(t *testing.T, ids []string, data any) *fibertree.Tensor {
	t.Helper()
	tt, err := fibertree.TensorFromUncompressed(ids, data)
	require.NoError(t, err)
	return tt
}

func dense(t *testing.T, tt *fibertree.Tensor) any {
	t.Helper()
	d, err := tt.Uncompress()
	require.NoError(t, err)
	return d
}

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(nilWriter{}))
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestComputeVectors(t *testing.T) {
	tests := []struct {
		op   string
		a, b []int
		want []any
	}{
		{OpIntersect, []int{1, 0, 3, 4}, []int{2, 5, 0, 1}, []any{2, 0, 0, 4}},
		{OpUnion, []int{1, 0, 3, 0}, []int{0, 2, 1, 0}, []any{1, 2, 4, 0}},
		{OpDifference, []int{1, 2, 0, 4}, []int{0, 5, 0, 0}, []any{1, 0, 0, 4}},
		{OpXor, []int{1, 2, 0, 0}, []int{0, 5, 3, 0}, []any{1, 0, 3, 0}},
		{OpPopulate, []int{1, 2, 0, 0}, []int{0, 7, 3, 0}, []any{1, 7, 3, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			a := tensor(t, []string{"K"}, tt.a)
			b := tensor(t, []string{"K"}, tt.b)
			z, err := Compute(tt.op, a, b, "Z")
			require.NoError(t, err)
			assert.Equal(t, tt.want, dense(t, z))
			assert.Equal(t, "Z", z.Name())
			assert.Equal(t, []string{"K"}, z.RankIDs())
		})
	}
}

func TestComputeMatrices(t *testing.T) {
	a := [][]int{{1, 2}, {0, 3}, {0, 0}}
	b := [][]int{{0, 5}, {0, 0}, {4, 0}}

	tests := []struct {
		op   string
		want any
	}{
		{OpIntersect, []any{[]any{0, 10}, []any{0, 0}, []any{0, 0}}},
		{OpUnion, []any{[]any{1, 7}, []any{0, 3}, []any{4, 0}}},
		{OpDifference, []any{[]any{1, 0}, []any{0, 3}, []any{0, 0}}},
		{OpXor, []any{[]any{1, 0}, []any{0, 3}, []any{4, 0}}},
		{OpPopulate, []any{[]any{1, 5}, []any{0, 3}, []any{4, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			z, err := Compute(tt.op, tensor(t, []string{"M", "K"}, a), tensor(t, []string{"M", "K"}, b), "Z")
			require.NoError(t, err)
			assert.Equal(t, tt.want, dense(t, z))
		})
	}
}

func TestComputeMatmul(t *testing.T) {
	a := tensor(t, []string{"M", "K"}, [][]int{{1, 0, 2}, {0, 3, 0}})
	b := tensor(t, []string{"K", "N"}, [][]int{{1, 1}, {0, 2}, {4, 0}})

	z, err := Compute(OpMatmul, a, b, "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"M", "N"}, z.RankIDs())
	assert.Equal(t, []any{[]any{9, 1}, []any{0, 6}}, dense(t, z))
}

func TestComputeDropsZeroRows(t *testing.T) {
	// Row 1 of A only meets empty rows of B
	a := tensor(t, []string{"M", "K"}, [][]int{{1, 0}, {0, 2}})
	b := tensor(t, []string{"K", "N"}, [][]int{{3}, {0}})

	z, err := Compute(OpMatmul, a, b, "Z")
	require.NoError(t, err)
	assert.Equal(t, []fibertree.Coord{0}, z.Root().Coords())
}

func TestValidateAndSetDefaults(t *testing.T) {
	mk := tensor(t, []string{"M", "K"}, [][]int{{1}})
	kn := tensor(t, []string{"K", "N"}, [][]int{{1}})
	k := tensor(t, []string{"K"}, []int{1})

	tests := []struct {
		name string
		opts Options
		code errs.Code
	}{
		{"no op", Options{Inputs: []*fibertree.Tensor{k, k}}, errs.ErrCodeInvalidOp},
		{"unknown op", Options{Op: "conv", Inputs: []*fibertree.Tensor{k, k}}, errs.ErrCodeInvalidOp},
		{"one input", Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k}}, errs.ErrCodeInvalidInput},
		{"scalar input", Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k, fibertree.NewScalarTensor(1)}}, errs.ErrCodeInvalidInput},
		{"rank mismatch", Options{Op: OpUnion, Inputs: []*fibertree.Tensor{mk, kn}}, errs.ErrCodeInvalidInput},
		{"matmul rank 1", Options{Op: OpMatmul, Inputs: []*fibertree.Tensor{k, kn}}, errs.ErrCodeInvalidInput},
		{"matmul contraction", Options{Op: OpMatmul, Inputs: []*fibertree.Tensor{kn, kn}}, errs.ErrCodeInvalidInput},
		{"bad trace rank", Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k, k}, Trace: []string{"1K"}}, errs.ErrCodeInvalidRankID},
		{"ok", Options{Op: OpMatmul, Inputs: []*fibertree.Tensor{mk, kn}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			err := opts.ValidateAndSetDefaults()
			if tt.code == "" {
				require.NoError(t, err)
				assert.Equal(t, "Z", opts.Name)
				assert.Equal(t, DefaultTraceRoot, opts.TraceRoot)
				return
			}
			assert.True(t, errs.Is(err, tt.code), "error = %v, want code %s", err, tt.code)
		})
	}
}

func TestExecuteCollectsMetrics(t *testing.T) {
	a := tensor(t, []string{"M", "K"}, [][]int{{1, 0, 2}, {0, 3, 0}})
	b := tensor(t, []string{"K", "N"}, [][]int{{1, 1}, {0, 2}, {4, 0}})

	res, err := quietRunner(nil).Execute(context.Background(), Options{Op: OpMatmul, Inputs: []*fibertree.Tensor{a, b}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.CacheHit)
	assert.Equal(t, 3, res.Stats.Values)
	assert.EqualValues(t, 3, res.Metrics.Get("K", "successful_intersect"))
	assert.EqualValues(t, 4, res.Metrics.Get("Compute", "payload_mul"))
	assert.Empty(t, res.TraceDir, "untraced run has a trace dir")
}

func TestExecuteCountsIterations(t *testing.T) {
	a := tensor(t, []string{"M", "K"}, [][]int{{1, 0, 2}, {0, 3, 0}})
	b := tensor(t, []string{"K", "N"}, [][]int{{1, 1}, {0, 2}, {4, 0}})

	res, err := quietRunner(nil).Execute(context.Background(), Options{Op: OpMatmul, Inputs: []*fibertree.Tensor{a, b}})
	require.NoError(t, err)

	// Two rows of A, three nonzeros of A meeting rows of B, four products
	assert.EqualValues(t, 2, res.Metrics.Get("M", "iterations"))
	assert.EqualValues(t, 3, res.Metrics.Get("K", "iterations"))
	assert.EqualValues(t, 4, res.Metrics.Get("N", "iterations"))
}

func TestExecuteWritesTraces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	a := tensor(t, []string{"K"}, []int{1, 0, 3})
	b := tensor(t, []string{"K"}, []int{2, 5, 0})

	res, err := quietRunner(nil).Execute(context.Background(), Options{
		Op:       OpIntersect,
		Inputs:   []*fibertree.Tensor{a, b},
		Trace:    []string{"K"},
		TraceDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, dir, res.TraceDir)
	for _, typ := range TraceTypes(OpIntersect) {
		data, err := os.ReadFile(filepath.Join(dir, "K-"+typ+".csv"))
		require.NoError(t, err, "trace %s", typ)
		assert.True(t, strings.HasPrefix(string(data), "K_pos,K,fiber_pos,event\n"), "trace %s:\n%s", typ, data)
		assert.Contains(t, string(data), "hit", "trace %s has no hit row", typ)
	}
}

func TestExecuteTracesLoopNest(t *testing.T) {
	dir := t.TempDir()
	a := tensor(t, []string{"M", "K"}, [][]int{{1, 0, 2}, {0, 3, 0}})
	b := tensor(t, []string{"K", "N"}, [][]int{{1, 1}, {0, 2}, {4, 0}})

	_, err := quietRunner(nil).Execute(context.Background(), Options{
		Op:       OpMatmul,
		Inputs:   []*fibertree.Tensor{a, b},
		Trace:    []string{"K"},
		TraceDir: dir,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "K-intersect_0.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Greater(t, len(lines), 1)
	assert.Equal(t, "M_pos,K_pos,M,K,fiber_pos,event", lines[0])

	// Accesses made while visiting the second row of A
	var second []string
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "1,") {
			second = append(second, line)
		}
	}
	assert.NotEmpty(t, second, "no line at M position 1:\n%s", data)
	for _, line := range second {
		assert.Equal(t, "1", strings.Split(line, ",")[2], "M coordinate of %q", line)
	}
}

func TestExecuteDefaultTraceDir(t *testing.T) {
	root := t.TempDir()
	k := tensor(t, []string{"K"}, []int{1, 2})

	res, err := quietRunner(nil).Execute(context.Background(), Options{
		Op:        OpUnion,
		Inputs:    []*fibertree.Tensor{k, k},
		Trace:     []string{"K"},
		TraceRoot: root,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, res.RunID), res.TraceDir)
	assert.FileExists(t, filepath.Join(res.TraceDir, "K-union_0.csv"))
}

func TestExecuteCaching(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	r := quietRunner(fc)
	defer r.Close()

	a := tensor(t, []string{"K"}, []int{1, 0, 3})
	b := tensor(t, []string{"K"}, []int{2, 5, 0})
	opts := Options{Op: OpUnion, Inputs: []*fibertree.Tensor{a, b}}

	first, err := r.Execute(ctx, opts)
	require.NoError(t, err)
	second, err := r.Execute(ctx, opts)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.True(t, second.CacheHit)
	assert.Equal(t, first.RunID, second.RunID)
	assert.True(t, second.Output.Equal(first.Output), "cached output %s, want %s", second.Output, first.Output)
	assert.Equal(t, first.Metrics, second.Metrics)

	opts.Refresh = true
	third, err := r.Execute(ctx, opts)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.NotEqual(t, first.RunID, third.RunID, "refresh should recompute")

	// A different op over the same inputs is a different entry
	other, err := r.Execute(ctx, Options{Op: OpIntersect, Inputs: []*fibertree.Tensor{a, b}})
	require.NoError(t, err)
	assert.False(t, other.CacheHit, "intersect should not hit the union entry")
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	k := tensor(t, []string{"K"}, []int{1})
	_, err := quietRunner(nil).Execute(ctx, Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k, k}})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	observability.NoopCacheHooks

	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) add(e string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

func (h *recordingHooks) OnRunStart(_ context.Context, op string, _ int) {
	h.add("start:" + op)
}

func (h *recordingHooks) OnRunComplete(_ context.Context, op string, _ int, _ time.Duration, _ error) {
	h.add("complete:" + op)
}

func (h *recordingHooks) OnTransformStart(_ context.Context, kind string, _ []string) {
	h.add("transform:" + kind)
}

func (h *recordingHooks) OnCacheHit(_ context.Context, keyType string) {
	h.add("hit:" + keyType)
}

func (h *recordingHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.add("miss:" + keyType)
}

func (h *recordingHooks) OnCacheSet(_ context.Context, keyType string, _ int) {
	h.add("set:" + keyType)
}

func TestHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	defer observability.Reset()

	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	r := quietRunner(fc)
	ctx := context.Background()
	k := tensor(t, []string{"K"}, []int{1, 2})
	opts := Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k, k}}

	_, err = r.Execute(ctx, opts)
	require.NoError(t, err)
	_, err = r.Execute(ctx, opts)
	require.NoError(t, err)
	_, err = r.Transform(ctx, k, TransformOptions{Kind: TransformSplit, Rank: "K", Step: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"miss:run", "start:union", "complete:union", "set:run", "hit:run", "transform:split"}, h.events)
}

func TestDisabledCacheIsNotConsulted(t *testing.T) {
	h := &recordingHooks{}
	observability.SetPipelineHooks(h)
	observability.SetCacheHooks(h)
	defer observability.Reset()

	r := quietRunner(cache.NewDisabled())
	ctx := context.Background()
	k := tensor(t, []string{"K"}, []int{1, 2})

	for range 2 {
		res, err := r.Execute(ctx, Options{Op: OpUnion, Inputs: []*fibertree.Tensor{k, k}})
		require.NoError(t, err)
		assert.False(t, res.CacheHit)
	}
	data, hit, err := r.Render(ctx, k, RenderOptions{Format: FormatDOT})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, strings.HasPrefix(string(data), "digraph T {"))

	assert.Equal(t, []string{"start:union", "complete:union", "start:union", "complete:union"}, h.events)
}

func TestTransform(t *testing.T) {
	ctx := context.Background()
	r := quietRunner(nil)
	m := tensor(t, []string{"M", "K"}, [][]int{{1, 0, 2, 0}, {0, 3, 0, 4}})

	tests := []struct {
		name string
		opts TransformOptions
		ids  []string
	}{
		{"swizzle", TransformOptions{Kind: TransformSwizzle, Order: []string{"K", "M"}}, []string{"K", "M"}},
		{"swap", TransformOptions{Kind: TransformSwap}, []string{"K", "M"}},
		{"split uniform", TransformOptions{Kind: TransformSplit, Rank: "K", Step: 2}, []string{"M", "K.1", "K.0"}},
		{"split equal", TransformOptions{Kind: TransformSplit, Rank: "K", Mode: SplitEqual, Parts: 1}, []string{"M", "K.1", "K.0"}},
		{"split nonuniform", TransformOptions{Kind: TransformSplit, Rank: "M", Mode: SplitNonUniform, Splits: []int{0, 1}}, []string{"M.1", "M.0", "K"}},
		{"flatten", TransformOptions{Kind: TransformFlatten, Style: "tuple"}, []string{"M+K"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Transform(ctx, m, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.ids, out.RankIDs())
			assert.Equal(t, m.CountValues(), out.CountValues())
		})
	}

	assert.Equal(t, []string{"M", "K"}, m.RankIDs(), "input was modified")
}

func TestTransformRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := quietRunner(nil)
	m := tensor(t, []string{"M", "K"}, [][]int{{1, 0}, {0, 3}})

	flat, err := r.Transform(ctx, m, TransformOptions{Kind: TransformFlatten})
	require.NoError(t, err)
	back, err := r.Transform(ctx, flat, TransformOptions{Kind: TransformUnflatten})
	require.NoError(t, err)
	assert.True(t, back.Equal(m), "unflatten(flatten(m)) = %s, want %s", back, m)
}

func TestTransformErrors(t *testing.T) {
	ctx := context.Background()
	r := quietRunner(nil)
	m := tensor(t, []string{"M", "K"}, [][]int{{1}})

	tests := []struct {
		name string
		opts TransformOptions
		code errs.Code
	}{
		{"unknown", TransformOptions{Kind: "rotate"}, errs.ErrCodeInvalidOp},
		{"swizzle unknown rank", TransformOptions{Kind: TransformSwizzle, Order: []string{"M", "X"}}, errs.ErrCodeInvalidInput},
		{"split no rank", TransformOptions{Kind: TransformSplit, Step: 2}, errs.ErrCodeInvalidInput},
		{"split bad step", TransformOptions{Kind: TransformSplit, Rank: "K", Step: 0}, errs.ErrCodeInvalidInput},
		{"split bad mode", TransformOptions{Kind: TransformSplit, Rank: "K", Mode: "odd"}, errs.ErrCodeInvalidInput},
		{"flatten style", TransformOptions{Kind: TransformFlatten, Style: "zigzag"}, errs.ErrCodeInvalidInput},
		{"swap too deep", TransformOptions{Kind: TransformSwap, Depth: 1}, errs.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Transform(ctx, m, tt.opts)
			assert.True(t, errs.Is(err, tt.code), "error = %v, want code %s", err, tt.code)
		})
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"dot", false},
		{"svg", false},
		{"png", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		assert.Equal(t, tt.wantErr, err != nil, "ValidateFormat(%q) error = %v", tt.format, err)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	r := quietRunner(fc)
	m := tensor(t, []string{"M", "K"}, [][]int{{1, 0}, {0, 3}})

	data, hit, err := r.Render(ctx, m, RenderOptions{Format: FormatDOT})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.True(t, strings.HasPrefix(string(data), "digraph T {"), "data = %q", data)

	again, hit, err := r.Render(ctx, m, RenderOptions{Format: FormatDOT})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, data, again)

	// Options that change the drawing are separate entries
	_, hit, _ = r.Render(ctx, m, RenderOptions{Format: FormatDOT, HideValues: true})
	assert.False(t, hit, "HideValues should not share the cached artifact")

	_, _, err = r.Render(ctx, m, RenderOptions{Format: "pdf"})
	assert.True(t, errs.Is(err, errs.ErrCodeUnsupported), "pdf error = %v", err)
}
