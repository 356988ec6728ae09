package runtimehost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalReturnsValue(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	val, err := h.Eval(context.Background(), "inline.js", "1 + 2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), val.ToInteger())
}

func TestEvalSyntaxErrorIsClassified(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	_, err = h.Eval(context.Background(), "bad.js", "function(")
	require.Error(t, err)
}

func TestReportExceptionStopsAtFirstHandler(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	var outerCalled bool
	h.AddExceptionHandler(func(err error) bool {
		outerCalled = true
		return false
	})
	var innerCalled bool
	h.AddExceptionHandler(func(err error) bool {
		innerCalled = true
		return true
	})

	h.ReportException(errors.New("boom"))

	assert.True(t, innerCalled, "most-recently-added handler should run first")
	assert.False(t, outerCalled, "earlier handler should not run once a later one handles it")
}

func TestReportExceptionFallsThroughWhenUnhandled(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	var calls int
	h.AddExceptionHandler(func(err error) bool {
		calls++
		return false
	})
	h.AddExceptionHandler(func(err error) bool {
		calls++
		return false
	})

	h.ReportException(errors.New("boom"))
	assert.Equal(t, 2, calls)
}

func TestAwaitResolvesFulfilledPromise(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	val, err := h.Eval(context.Background(), "p.js", "Promise.resolve(42)")
	require.NoError(t, err)

	resolved, err := h.Await(context.Background(), val)
	require.NoError(t, err)
	assert.Equal(t, int64(42), resolved.ToInteger())
}

func TestAwaitSurfacesRejection(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	val, err := h.Eval(context.Background(), "p.js", `Promise.reject(new Error("boom"))`)
	require.NoError(t, err)

	_, err = h.Await(context.Background(), val)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunDrainsTimersUntilLoopIsIdle(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Free()

	fired := false
	h.Loop.SetTimer(time.Millisecond, 0, func() { fired = true })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Run(ctx))
	assert.True(t, fired)
}

func TestFreeIsIdempotent(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	calls := 0
	h.AddDispose(func() { calls++ })
	h.Free()
	h.Free()
	assert.Equal(t, 1, calls)
}

func TestDisposersRunInLIFOOrder(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	var order []int
	h.AddDispose(func() { order = append(order, 1) })
	h.AddDispose(func() { order = append(order, 2) })
	h.Free()
	assert.Equal(t, []int{2, 1}, order)
}
