package webapi

import (
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAbortTestRuntime(t *testing.T) (*goja.Runtime, *ioloop.Loop) {
	t.Helper()
	rt := goja.New()
	loop := ioloop.New()
	require.NoError(t, rt.Set("Event", NewEventConstructor(rt)))
	require.NoError(t, rt.Set("AbortController", NewAbortControllerConstructor(rt, nil)))
	require.NoError(t, rt.Set("AbortSignal", NewAbortSignalConstructor(rt, loop, nil)))
	return rt, loop
}

func TestAbortControllerAbortsSignal(t *testing.T) {
	rt, _ := newAbortTestRuntime(t)
	_, err := rt.RunString(`
		var c = new AbortController();
		var fired = false;
		c.signal.addEventListener("abort", function() { fired = true; });
		c.abort("custom");
	`)
	require.NoError(t, err)

	aborted, err := rt.RunString("c.signal.aborted")
	require.NoError(t, err)
	assert.True(t, aborted.ToBoolean())

	reason, err := rt.RunString("c.signal.reason")
	require.NoError(t, err)
	assert.Equal(t, "custom", reason.String())

	fired, err := rt.RunString("fired")
	require.NoError(t, err)
	assert.True(t, fired.ToBoolean())
}

func TestAbortIsIdempotent(t *testing.T) {
	rt, _ := newAbortTestRuntime(t)
	_, err := rt.RunString(`
		var c = new AbortController();
		var count = 0;
		c.signal.addEventListener("abort", function() { count++; });
		c.abort("first");
		c.abort("second");
	`)
	require.NoError(t, err)

	count, err := rt.RunString("count")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.ToInteger())

	reason, err := rt.RunString("c.signal.reason")
	require.NoError(t, err)
	assert.Equal(t, "first", reason.String())
}

func TestAbortSignalStaticAbort(t *testing.T) {
	rt, _ := newAbortTestRuntime(t)
	v, err := rt.RunString(`AbortSignal.abort("boom").aborted`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestAbortSignalTimeout(t *testing.T) {
	rt, loop := newAbortTestRuntime(t)
	_, err := rt.RunString(`
		var s = AbortSignal.timeout(1);
		var fired = false;
		s.addEventListener("abort", function() { fired = true; });
	`)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		v, err := rt.RunString("fired")
		require.NoError(t, err)
		if v.ToBoolean() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("abort signal never fired")
}

func TestAbortSignalAnyPropagatesFirstAbort(t *testing.T) {
	rt, _ := newAbortTestRuntime(t)
	v, err := rt.RunString(`
		var c1 = new AbortController();
		var c2 = new AbortController();
		var combined = AbortSignal.any([c1.signal, c2.signal]);
		c2.abort("from c2");
		combined.reason;
	`)
	require.NoError(t, err)
	assert.Equal(t, "from c2", v.String())
}

func TestAbortSignalAnyRejectsNonIterable(t *testing.T) {
	rt, _ := newAbortTestRuntime(t)
	_, err := rt.RunString(`AbortSignal.any(42);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not iterable")
}
