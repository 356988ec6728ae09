package webapi

import (
	"time"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/R3E-Network/jsrt-go/internal/jobpump"
)

// InstallTimers wires setTimeout/setInterval/clearTimeout/clearInterval
// (backed by C1) and setImmediate/clearImmediate/queueMicrotask (spec
// §4.6) onto rt. onException (may be nil) receives any error a callback
// throws, since none of these callbacks run inside a context with a JS-
// visible error path of their own.
func InstallTimers(rt *goja.Runtime, loop *ioloop.Loop, jobs *jobpump.Pump, onException func(error)) error {
	handles := make(map[int64]ioloop.HandleID)
	var nextID int64

	setTimer := func(repeat bool) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				return goja.Undefined()
			}
			cb, ok := goja.AssertFunction(call.Arguments[0])
			if !ok {
				return goja.Undefined()
			}
			delayMS := int64(0)
			if len(call.Arguments) > 1 {
				delayMS = call.Arguments[1].ToInteger()
			}
			extra := append([]goja.Value{}, call.Arguments[minInt(2, len(call.Arguments)):]...)

			nextID++
			id := nextID
			delay := time.Duration(delayMS) * time.Millisecond
			interval := time.Duration(0)
			if repeat {
				interval = delay
			}
			handles[id] = loop.SetTimer(delay, interval, func() {
				if _, err := cb(goja.Undefined(), extra...); err != nil && onException != nil {
					onException(err)
				}
			})
			return rt.ToValue(id)
		}
	}
	clearTimer := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		id := call.Arguments[0].ToInteger()
		if hid, ok := handles[id]; ok {
			loop.Clear(hid)
			delete(handles, id)
		}
		return goja.Undefined()
	}

	if err := rt.Set("setTimeout", setTimer(false)); err != nil {
		return err
	}
	if err := rt.Set("setInterval", setTimer(true)); err != nil {
		return err
	}
	if err := rt.Set("clearTimeout", clearTimer); err != nil {
		return err
	}
	if err := rt.Set("clearInterval", clearTimer); err != nil {
		return err
	}

	// setImmediate/clearImmediate: a one-shot idle-check callback (spec
	// §4.6), running after the current poll phase and before the next
	// timer phase (spec §5 ordering guarantee).
	immediates := make(map[int64]bool)
	if err := rt.Set("setImmediate", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		cb, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}
		extra := append([]goja.Value{}, call.Arguments[minInt(1, len(call.Arguments)):]...)
		nextID++
		id := nextID
		immediates[id] = true
		loop.Idle(func() {
			if !immediates[id] {
				return
			}
			delete(immediates, id)
			if _, err := cb(goja.Undefined(), extra...); err != nil && onException != nil {
				onException(err)
			}
		})
		return rt.ToValue(id)
	}); err != nil {
		return err
	}
	if err := rt.Set("clearImmediate", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		delete(immediates, call.Arguments[0].ToInteger())
		return goja.Undefined()
	}); err != nil {
		return err
	}

	// queueMicrotask goes to the job queue (spec §4.3), not the reactor.
	return rt.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		cb, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}
		jobs.QueueMicrotask(func() {
			if _, err := cb(goja.Undefined()); err != nil && onException != nil {
				onException(err)
			}
		})
		return goja.Undefined()
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
