package fibertree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/fibertree/pkg/metrics"
)

func TestPayloadArithmetic(t *testing.T) {
	p := NewPayload(3)

	assert.Equal(t, 5, p.Add(2).Value())
	assert.Equal(t, 1, p.Sub(2).Value())
	assert.Equal(t, 6, p.Mul(NewPayload(2)).Value())
	assert.Equal(t, 1.5, p.Div(2).Value())
	assert.Equal(t, 4.5, p.Mul(1.5).Value())
	assert.Equal(t, 3, p.Value(), "arithmetic must not change the receiver")

	p.AddAssign(1)
	assert.Equal(t, 4, p.V())
	p.MulAssign(2)
	assert.Equal(t, 8, p.V())
}

func TestPayloadSetIsShared(t *testing.T) {
	f := mustFiber(t, []Coord{0, 1}, []any{1, 2})
	ref := f.GetPayload(1).(*Payload)
	ref.Set(7)
	assert.Equal(t, 7, Unbox(f.GetPayload(1)))
}

func TestPayloadComparisons(t *testing.T) {
	assert.True(t, NewPayload(2).Equal(2.0))
	assert.True(t, NewPayload(1).Less(NewPayload(2)))
	assert.Equal(t, 0, NewPayload("x").Compare("x"))
	assert.True(t, NewPayload(Tuple{1, 2}).Equal([]int{1, 2}))
}

func TestPayloadLogic(t *testing.T) {
	assert.Equal(t, false, NewPayload(true).And(false).Value())
	assert.Equal(t, true, NewPayload(true).Or(false).Value())
	assert.Equal(t, 6, NewPayload(3).And(6).Or(4).Value())
	assert.Equal(t, 8, NewPayload(1).Shl(3).Value())
}

func TestPayloadHelpers(t *testing.T) {
	f := mustFiber(t, nil, nil)
	assert.True(t, IsPayload(NewPayload(1)))
	assert.True(t, IsPayload(f))
	assert.False(t, IsPayload(1))

	assert.Same(t, f, MaybeBox(f))
	boxed := MaybeBox(int64(4))
	require.IsType(t, &Payload{}, boxed)
	assert.Equal(t, 4, Unbox(boxed))

	assert.True(t, Contains[int](NewPayload(4)))
	assert.False(t, Contains[string](NewPayload(4)))
	assert.Equal(t, "<4>", NewPayload(4).String())
}

func TestPayloadBoxingFiberPanics(t *testing.T) {
	requireAssertion(t, errOperand, func() { NewPayload(mustFiber(t, nil, nil)) })
}

func TestPayloadCountsCompute(t *testing.T) {
	isolateMetrics(t)
	require.NoError(t, metrics.BeginCollect(""))

	p := NewPayload(2)
	p.Add(1)
	p.SubAssign(1)
	p.Mul(3)
	p.Set(4)

	dump, err := metrics.EndCollect()
	require.NoError(t, err)
	assert.Equal(t, 2, dump.Get("Compute", "payload_add"))
	assert.Equal(t, 1, dump.Get("Compute", "payload_mul"))
	assert.Equal(t, 1, dump.Get("Compute", "payload_update"))
}

func TestCoordPayloadForwarding(t *testing.T) {
	a := NewCoordPayload(3, 4)
	b := NewCoordPayload(5, 6)

	c, p := a.Unpack()
	assert.Equal(t, 3, c)
	assert.Equal(t, 4, Unbox(p))
	assert.Equal(t, 10, a.Add(b).Value())
	assert.Equal(t, 24, a.Mul(b).Value())
	assert.True(t, a.Equal(4))
	assert.Equal(t, -1, a.Compare(b))

	a.Set(b)
	assert.Equal(t, 6, Unbox(a.Payload))
	assert.Equal(t, "(3 -> <6>)", a.String())

	tup := NewCoordPayload(0, Tuple{"x", "y"})
	assert.Equal(t, "y", tup.Index(1))
}
