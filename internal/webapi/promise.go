package webapi

import (
	"github.com/dop251/goja"
)

// Deferred captures a Promise's resolve/reject functions for later
// (typically asynchronous) invocation, grounded on the same
// bootstrap-via-RunString idiom internal/jobpump uses to reach into goja's
// internal Promise machinery without a published Go-level constructor API.
type Deferred struct {
	Promise *goja.Object
	resolve goja.Callable
	reject  goja.Callable
}

// NewDeferred creates `new Promise((resolve, reject) => {...})` and returns
// the promise object alongside Go-callable resolve/reject closures, used by
// fetch (C7) to settle its result from an ioloop callback running outside
// any script invocation.
func NewDeferred(rt *goja.Runtime) (*Deferred, error) {
	ctorV := rt.GlobalObject().Get("Promise")
	d := &Deferred{}
	executor := rt.ToValue(func(call goja.FunctionCall) goja.Value {
		if fn, ok := goja.AssertFunction(call.Argument(0)); ok {
			d.resolve = fn
		}
		if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
			d.reject = fn
		}
		return goja.Undefined()
	})
	promiseObj, err := rt.New(ctorV, executor)
	if err != nil {
		return nil, err
	}
	d.Promise = promiseObj
	return d, nil
}

// Resolve fulfills the promise with v. Safe to call from the loop thread
// only (single-threaded reactor invariant, spec §5).
func (d *Deferred) Resolve(v goja.Value) {
	if d.resolve == nil {
		return
	}
	if _, err := d.resolve(goja.Undefined(), v); err != nil {
		panic(err)
	}
}

// Reject rejects the promise with reason.
func (d *Deferred) Reject(reason goja.Value) {
	if d.reject == nil {
		return
	}
	if _, err := d.reject(goja.Undefined(), reason); err != nil {
		panic(err)
	}
}
