package webapi

import (
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/ioloop"
)

// signalState is the Go-side state of one AbortSignal; its JS object is the
// object of an embedded EventTarget, which supplies
// addEventListener/removeEventListener/dispatchEvent (spec §4.6).
type signalState struct {
	target  *EventTarget
	obj     *goja.Object
	aborted bool
	reason  goja.Value
}

func newSignal(rt *goja.Runtime, onException func(error)) *signalState {
	target := NewEventTarget(rt, onException)
	obj := target.Object()
	s := &signalState{target: target, obj: obj, reason: goja.Undefined()}
	_ = obj.Set("aborted", false)
	_ = obj.Set("reason", goja.Undefined())
	_ = obj.Set("throwIfAborted", func(call goja.FunctionCall) goja.Value {
		if s.aborted {
			panic(s.reason)
		}
		return goja.Undefined()
	})
	return s
}

// abort transitions the signal exactly once (spec §4.6: "idempotent"),
// records reason (defaulting to "AbortError"), and dispatches an Event on
// the signal.
func (s *signalState) abort(rt *goja.Runtime, reason goja.Value) {
	if s.aborted {
		return
	}
	s.aborted = true
	if reason == nil || goja.IsUndefined(reason) {
		reason = rt.ToValue("AbortError")
	}
	s.reason = reason
	_ = s.obj.Set("aborted", true)
	_ = s.obj.Set("reason", reason)

	evObj := rt.NewObject()
	installEventAccessors(rt, evObj, &eventState{typ: "abort"})
	s.target.Dispatch(evObj)
}

// NewAbortControllerConstructor builds the global `AbortController`.
func NewAbortControllerConstructor(rt *goja.Runtime, onException func(error)) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		signal := newSignal(rt, onException)
		obj := call.This
		_ = obj.Set("signal", signal.obj)
		_ = obj.Set("abort", func(call goja.FunctionCall) goja.Value {
			var reason goja.Value
			if len(call.Arguments) > 0 {
				reason = call.Arguments[0]
			}
			signal.abort(rt, reason)
			return goja.Undefined()
		})
		return obj
	}
}

// NewAbortSignalConstructor builds the global `AbortSignal`, including its
// static abort/any/timeout methods (spec §4.6). loop is used by
// AbortSignal.timeout to schedule the deadline.
func NewAbortSignalConstructor(rt *goja.Runtime, loop *ioloop.Loop, onException func(error)) *goja.Object {
	ctor := rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		s := newSignal(rt, onException)
		return s.obj
	}).(*goja.Object)

	_ = ctor.Set("abort", func(call goja.FunctionCall) goja.Value {
		s := newSignal(rt, onException)
		var reason goja.Value
		if len(call.Arguments) > 0 {
			reason = call.Arguments[0]
		}
		s.abort(rt, reason)
		return s.obj
	})

	_ = ctor.Set("any", func(call goja.FunctionCall) goja.Value {
		result := newSignal(rt, onException)
		if len(call.Arguments) == 0 {
			return result.obj
		}
		signals, ok := exportIterable(rt, call.Arguments[0])
		if !ok {
			panic(rt.NewTypeError("AbortSignal.any: argument is not iterable"))
		}
		for _, sv := range signals {
			sObj, ok := sv.(*goja.Object)
			if !ok {
				continue
			}
			if toBool(sObj.Get("aborted")) {
				result.abort(rt, sObj.Get("reason"))
				return result.obj
			}
		}
		for _, sv := range signals {
			sObj, ok := sv.(*goja.Object)
			if !ok {
				continue
			}
			addListenerOnce(rt, sObj, "abort", func() {
				result.abort(rt, sObj.Get("reason"))
			})
		}
		return result.obj
	})

	_ = ctor.Set("timeout", func(call goja.FunctionCall) goja.Value {
		ms := int64(0)
		if len(call.Arguments) > 0 {
			ms = call.Arguments[0].ToInteger()
		}
		if ms < 0 {
			panic(rt.NewTypeError("AbortSignal.timeout: ms must be >= 0"))
		}
		s := newSignal(rt, onException)
		loop.SetTimer(time.Duration(ms)*time.Millisecond, 0, func() {
			s.abort(rt, rt.ToValue("TimeoutError"))
		})
		return s.obj
	})

	return ctor
}

func addListenerOnce(rt *goja.Runtime, obj *goja.Object, typ string, fn func()) {
	addFn, ok := goja.AssertFunction(obj.Get("addEventListener"))
	if !ok {
		return
	}
	cb := rt.ToValue(func(goja.FunctionCall) goja.Value {
		fn()
		return goja.Undefined()
	})
	opts := rt.NewObject()
	_ = opts.Set("once", true)
	_, _ = addFn(obj, rt.ToValue(typ), cb, opts)
}

// exportIterable pulls a JS array-like or iterable into a Go slice of
// goja.Value without assuming it is a real Array (AbortSignal.any accepts
// "an iterable of signals"). An object without `.length` but with a
// Symbol.iterator method is copied through Array.from first. ok is false
// when v is neither (or isn't an object at all) — "non-iterable passed to
// AbortSignal.any" is spec §7's
// canonical TypeError example, so callers must distinguish that from a
// valid-but-empty iterable rather than silently treating both as empty.
func exportIterable(rt *goja.Runtime, v goja.Value) (out []goja.Value, ok bool) {
	obj, isObj := v.(*goja.Object)
	if !isObj {
		return nil, false
	}
	lengthVal := obj.Get("length")
	if lengthVal == nil || goja.IsUndefined(lengthVal) {
		iterFn := obj.GetSymbol(goja.SymIterator)
		if iterFn == nil || goja.IsUndefined(iterFn) {
			return nil, false
		}
		from, isFn := goja.AssertFunction(rt.Get("Array").ToObject(rt).Get("from"))
		if !isFn {
			return nil, false
		}
		arr, err := from(goja.Undefined(), obj)
		if err != nil {
			return nil, false
		}
		obj = arr.ToObject(rt)
		lengthVal = obj.Get("length")
	}
	n := lengthVal.ToInteger()
	out = make([]goja.Value, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, obj.Get(strconv.FormatInt(i, 10)))
	}
	return out, true
}
