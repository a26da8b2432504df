package fibertree

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

func mustFiber(t *testing.T, coords []Coord, payloads []any, opts ...FiberOption) *Fiber {
	t.Helper()
	f, err := NewFiber(coords, payloads, opts...)
	require.NoError(t, err)
	return f
}

func mustDense(t *testing.T, data any) *Fiber {
	t.Helper()
	f, err := FromUncompressed(data)
	require.NoError(t, err)
	return f
}

// values unboxes the payloads of a one-rank fiber.
func values(f *Fiber) []any {
	var out []any
	for _, p := range f.Payloads() {
		out = append(out, Unbox(p))
	}
	return out
}

// isolateMetrics installs a fresh default collector for the test.
func isolateMetrics(t *testing.T) {
	t.Helper()
	prev := metrics.SetDefault(&metrics.Collector{})
	t.Cleanup(func() { metrics.SetDefault(prev) })
}

// requireAssertion runs fn and checks that it panics with an
// *AssertionError wrapping target.
func requireAssertion(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		var ae *AssertionError
		require.True(t, errors.As(err, &ae), "panic value %v is not an AssertionError", err)
		require.ErrorIs(t, err, target)
	}()
	fn()
}
