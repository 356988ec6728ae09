package webapi

import (
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/R3E-Network/jsrt-go/internal/jobpump"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimersTestRuntime(t *testing.T) (*goja.Runtime, *ioloop.Loop, *jobpump.Pump) {
	t.Helper()
	rt := goja.New()
	loop := ioloop.New()
	jobs, err := jobpump.New(rt)
	require.NoError(t, err)
	require.NoError(t, InstallTimers(rt, loop, jobs, nil))
	return rt, loop, jobs
}

func TestSetTimeoutFires(t *testing.T) {
	rt, loop, _ := newTimersTestRuntime(t)
	_, err := rt.RunString(`var fired = false; setTimeout(function() { fired = true; }, 1);`)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		v, _ := rt.RunString("fired")
		if v.ToBoolean() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("setTimeout never fired")
}

func TestClearTimeoutCancels(t *testing.T) {
	rt, loop, _ := newTimersTestRuntime(t)
	_, err := rt.RunString(`var fired = false; var id = setTimeout(function() { fired = true; }, 10); clearTimeout(id);`)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	loop.RunOnceNoWait()
	v, err := rt.RunString("fired")
	require.NoError(t, err)
	assert.False(t, v.ToBoolean())
}

func TestSetImmediateRunsOnNextIdle(t *testing.T) {
	rt, loop, _ := newTimersTestRuntime(t)
	_, err := rt.RunString(`var fired = false; setImmediate(function() { fired = true; });`)
	require.NoError(t, err)

	loop.RunOnceNoWait()
	v, err := rt.RunString("fired")
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestQueueMicrotaskRunsBeforeDrainReturns(t *testing.T) {
	rt, _, jobs := newTimersTestRuntime(t)
	_, err := rt.RunString(`var fired = false; queueMicrotask(function() { fired = true; });`)
	require.NoError(t, err)

	require.NoError(t, jobs.DrainJobs())
	v, err := rt.RunString("fired")
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestSetTimeoutThrowReachesOnException(t *testing.T) {
	rt := goja.New()
	loop := ioloop.New()
	jobs, err := jobpump.New(rt)
	require.NoError(t, err)

	var caught error
	require.NoError(t, InstallTimers(rt, loop, jobs, func(err error) { caught = err }))

	_, err = rt.RunString(`setTimeout(function() { throw new Error("boom"); }, 1);`)
	require.NoError(t, err)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		loop.RunOnceNoWait()
		if caught != nil {
			assert.Contains(t, caught.Error(), "boom")
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("onException was never invoked")
}

func TestQueueMicrotaskThrowReachesOnException(t *testing.T) {
	rt := goja.New()
	loop := ioloop.New()
	jobs, err := jobpump.New(rt)
	require.NoError(t, err)

	var caught error
	require.NoError(t, InstallTimers(rt, loop, jobs, func(err error) { caught = err }))

	_, err = rt.RunString(`queueMicrotask(function() { throw new Error("micro-boom"); });`)
	require.NoError(t, err)
	require.NoError(t, jobs.DrainJobs())

	require.NotNil(t, caught)
	assert.Contains(t, caught.Error(), "micro-boom")
}
