// Package jobpump implements C3, the microtask and job queue (spec §4.3):
// it gives host code a queueMicrotask primitive and a DrainJobs operation
// that empties the queue to a fixed point before the event loop is allowed
// to poll again, preserving the ordering guarantee of spec §5 ("all
// microtasks queued during a turn run before the loop advances").
//
// goja drains its own internal Promise-reaction queue automatically at
// certain call boundaries (see RunString/RunProgram), but exposes no public
// "queue an arbitrary microtask and drain on demand" primitive (see
// DESIGN.md Open Questions). This package bridges host-level microtasks
// onto that same queue by routing every queued function through a resolved
// Promise's `.then()` reaction — the teacher's system/tee/script_engine.go
// shows the same resolved-Promise idiom for synthesizing async results from
// synchronous host calls.
package jobpump

import (
	"errors"

	"github.com/dop251/goja"
)

// Pump owns the microtask queue for one goja.Runtime.
type Pump struct {
	rt       *goja.Runtime
	resolve  goja.Callable
	reject   goja.Callable
	thenable goja.Callable
	pending  int
}

// New builds a Pump bound to rt. It installs a tiny bootstrap of JS
// (no host object framework needed yet) that exposes a resolved promise and
// its `then`, used internally to schedule microtasks.
func New(rt *goja.Runtime) (*Pump, error) {
	v, err := rt.RunString(`(function() {
		var resolved = Promise.resolve();
		return {
			schedule: function(fn) { resolved.then(fn); },
		};
	})()`)
	if err != nil {
		return nil, err
	}
	obj := v.ToObject(rt)
	scheduleFn, ok := goja.AssertFunction(obj.Get("schedule"))
	if !ok {
		return nil, errors.New("jobpump: schedule is not callable")
	}
	return &Pump{rt: rt, resolve: scheduleFn}, nil
}

// QueueMicrotask schedules fn to run during the next DrainJobs call, in FIFO
// order relative to every other microtask queued this turn (spec §5).
func (p *Pump) QueueMicrotask(fn func()) {
	p.pending++
	wrapped := p.rt.ToValue(func(goja.FunctionCall) goja.Value {
		p.pending--
		fn()
		return goja.Undefined()
	})
	// p.resolve is the bootstrap `schedule` function: schedule(fn) calls
	// resolved.then(fn), enqueueing fn as a Promise reaction job.
	if _, err := p.resolve(goja.Undefined(), wrapped); err != nil {
		// A scheduling failure is a host bug (bad runtime state), not a
		// script error; surface it via panic so Host.Eval/Host.Run see it.
		panic(err)
	}
}

// DrainJobs runs every microtask queued so far, including ones enqueued by
// microtasks that ran during this call, until none remain. goja itself runs
// enqueued Promise reactions as part of evaluating any script, so a no-op
// RunString is sufficient to pump the queue to a fixed point.
func (p *Pump) DrainJobs() error {
	for p.pending > 0 {
		if _, err := p.rt.RunString(`undefined`); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of microtasks not yet run, used by
// runtimehost.Host to decide whether run() may return.
func (p *Pump) Pending() int {
	return p.pending
}
