package webapi

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventTestRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	rt := goja.New()
	require.NoError(t, rt.Set("Event", NewEventConstructor(rt)))
	return rt
}

func TestAddEventListenerAndDispatch(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		var called = 0;
		target.addEventListener("ping", function() { called++; });
		var ev = new Event("ping");
		var result = target.dispatchEvent(ev);
	`)
	require.NoError(t, err)

	v, err := rt.RunString("called")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())

	result, err := rt.RunString("result")
	require.NoError(t, err)
	assert.True(t, result.ToBoolean())
}

func TestDuplicateListenerSuppressed(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		var called = 0;
		function handler() { called++; }
		target.addEventListener("ping", handler);
		target.addEventListener("ping", handler);
		target.dispatchEvent(new Event("ping"));
	`)
	require.NoError(t, err)

	v, err := rt.RunString("called")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())
}

func TestRemoveEventListener(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		var called = 0;
		function handler() { called++; }
		target.addEventListener("ping", handler);
		target.removeEventListener("ping", handler);
		target.dispatchEvent(new Event("ping"));
	`)
	require.NoError(t, err)

	v, err := rt.RunString("called")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.ToInteger())
}

func TestOnceListenerRunsOnlyOnce(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		var called = 0;
		target.addEventListener("ping", function() { called++; }, {once: true});
		target.dispatchEvent(new Event("ping"));
		target.dispatchEvent(new Event("ping"));
	`)
	require.NoError(t, err)

	v, err := rt.RunString("called")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())
}

func TestPreventDefaultAffectsDispatchReturn(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		target.addEventListener("ping", function(e) { e.preventDefault(); });
		var result = target.dispatchEvent(new Event("ping", {cancelable: true}));
	`)
	require.NoError(t, err)

	result, err := rt.RunString("result")
	require.NoError(t, err)
	assert.False(t, result.ToBoolean())
}

func TestStopImmediatePropagationHaltsIteration(t *testing.T) {
	rt := newEventTestRuntime(t)
	target := NewEventTarget(rt, nil)
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		var order = [];
		target.addEventListener("ping", function(e) { order.push(1); e.stopImmediatePropagation(); });
		target.addEventListener("ping", function(e) { order.push(2); });
		target.dispatchEvent(new Event("ping"));
	`)
	require.NoError(t, err)

	v, err := rt.RunString("order.length")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ToInteger())
}

func TestDispatchRoutesListenerThrowToOnException(t *testing.T) {
	rt := newEventTestRuntime(t)
	var caught error
	target := NewEventTarget(rt, func(err error) { caught = err })
	require.NoError(t, rt.Set("target", target.Object()))

	_, err := rt.RunString(`
		target.addEventListener("ping", function() { throw new Error("listener-boom"); });
		target.dispatchEvent(new Event("ping"));
	`)
	require.NoError(t, err)

	require.NotNil(t, caught)
	assert.Contains(t, caught.Error(), "listener-boom")
}
