// Package webapi implements C6, the Web-API surface (spec §4.6): Event,
// EventTarget, AbortController/AbortSignal, URL/URLSearchParams,
// TextEncoder/TextDecoder, structuredClone, Headers/Request/Response,
// fetch, timers, console, and the small extras supplemented from
// original_source/ (btoa/atob, performance.now).
//
// Every constructor here is a closure factory rather than a shared
// prototype: each call builds a fresh goja.Object and binds its methods as
// closures over a per-instance Go struct, the same "build what you need,
// in plain JS object shape" idiom the teacher's attachConsole/NewObject
// calls use throughout system/tee/script_engine.go and tee_executor.go.
package webapi

import "github.com/dop251/goja"

// listener is one registered callback (spec §3 "Event target": list of
// listeners {type, callable, capture, once, passive, next}). value is the
// original JS function value, kept alongside the asserted Callable since
// goja.Callable (a plain func type) is not itself comparable — identity
// comparisons for removeEventListener go through value.SameAs instead.
type listener struct {
	typ      string
	value    goja.Value
	callback goja.Callable
	capture  bool
	once     bool
	passive  bool
}

// eventTargetState backs one EventTarget/AbortSignal instance.
type eventTargetState struct {
	listeners []listener
}

func (s *eventTargetState) add(typ string, value goja.Value, cb goja.Callable, capture, once, passive bool) {
	for _, l := range s.listeners {
		if l.typ == typ && l.value.SameAs(value) {
			return // duplicates (same type + same callable identity) suppressed
		}
	}
	s.listeners = append(s.listeners, listener{typ: typ, value: value, callback: cb, capture: capture, once: once, passive: passive})
}

func (s *eventTargetState) remove(typ string, value goja.Value) {
	for i, l := range s.listeners {
		if l.typ == typ && l.value.SameAs(value) {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// eventState is the mutable state behind one dispatch call (spec §3 "Event
// instance"): lifetime tied to the dispatch, fields mutated only by the
// dispatch code path.
type eventState struct {
	typ               string
	bubbles           bool
	cancelable        bool
	defaultPrevented  bool
	stopFlag          bool
	stopImmediateFlag bool
	target            *goja.Object
	currentTarget     *goja.Object
}

// NewEventConstructor builds the global `Event` constructor.
func NewEventConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		typ := ""
		if len(call.Arguments) > 0 {
			typ = call.Arguments[0].String()
		}
		ev := &eventState{typ: typ}
		if len(call.Arguments) > 1 {
			if opts, ok := call.Arguments[1].(*goja.Object); ok {
				ev.bubbles = toBool(opts.Get("bubbles"))
				ev.cancelable = toBool(opts.Get("cancelable"))
			}
		}
		obj := call.This
		installEventAccessors(rt, obj, ev)
		return obj
	}
}

func installEventAccessors(rt *goja.Runtime, obj *goja.Object, ev *eventState) {
	_ = obj.Set("type", ev.typ)
	_ = obj.Set("bubbles", ev.bubbles)
	_ = obj.Set("cancelable", ev.cancelable)
	_ = obj.DefineDataProperty("defaultPrevented", rt.ToValue(false), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_TRUE)
	_ = obj.Set("preventDefault", func(goja.FunctionCall) goja.Value {
		if ev.cancelable {
			ev.defaultPrevented = true
			_ = obj.Set("defaultPrevented", true)
		}
		return goja.Undefined()
	})
	_ = obj.Set("stopPropagation", func(goja.FunctionCall) goja.Value {
		ev.stopFlag = true
		return goja.Undefined()
	})
	_ = obj.Set("stopImmediatePropagation", func(goja.FunctionCall) goja.Value {
		ev.stopFlag = true
		ev.stopImmediateFlag = true
		_ = obj.Set("__stopImmediate", true)
		return goja.Undefined()
	})
	_ = obj.Set("target", goja.Undefined())
	_ = obj.Set("currentTarget", goja.Undefined())
}

// EventTarget is the Go-side handle a host object (AbortSignal, etc.)
// embeds to get addEventListener/removeEventListener/dispatchEvent.
type EventTarget struct {
	rt          *goja.Runtime
	obj         *goja.Object
	state       *eventTargetState
	onException func(error)
}

// NewEventTarget builds a fresh EventTarget-shaped object and its Go-side
// listener state. onException is invoked (if non-nil) whenever a dispatched
// listener throws, since dispatchEvent has no JS-visible return path for
// that error; pass nil to swallow it (matches the pre-existing behavior for
// callers not yet wired to a Host).
func NewEventTarget(rt *goja.Runtime, onException func(error)) *EventTarget {
	obj := rt.NewObject()
	et := &EventTarget{rt: rt, obj: obj, state: &eventTargetState{}, onException: onException}
	et.install()
	return et
}

// Object returns the underlying JS-visible object.
func (et *EventTarget) Object() *goja.Object { return et.obj }

func (et *EventTarget) install() {
	rt := et.rt
	_ = et.obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		typ := call.Arguments[0].String()
		fnVal := call.Arguments[1]
		cb, ok := goja.AssertFunction(fnVal)
		if !ok {
			return goja.Undefined()
		}
		capture, once, passive := false, false, false
		if len(call.Arguments) > 2 {
			opt := call.Arguments[2]
			if b, ok := opt.Export().(bool); ok {
				capture = b
			} else if obj, ok := opt.(*goja.Object); ok {
				capture = toBool(obj.Get("capture"))
				once = toBool(obj.Get("once"))
				passive = toBool(obj.Get("passive"))
			}
		}
		et.state.add(typ, fnVal, cb, capture, once, passive)
		return goja.Undefined()
	})
	_ = et.obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}
		typ := call.Arguments[0].String()
		fnVal := call.Arguments[1]
		if _, ok := goja.AssertFunction(fnVal); !ok {
			return goja.Undefined()
		}
		et.state.remove(typ, fnVal)
		return goja.Undefined()
	})
	_ = et.obj.Set("dispatchEvent", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return rt.ToValue(true)
		}
		evObj, ok := call.Arguments[0].(*goja.Object)
		if !ok {
			return rt.ToValue(true)
		}
		return rt.ToValue(et.Dispatch(evObj))
	})
}

// Dispatch runs every matching listener against a snapshot of the listener
// list (spec §3: "iterates a snapshot so mutations during callbacks do not
// skip or revisit listeners"), removing `once` listeners after invocation,
// and returns !defaultPrevented (spec §4.6).
func (et *EventTarget) Dispatch(evObj *goja.Object) bool {
	typ := evObj.Get("type").String()
	snapshot := append([]listener{}, et.state.listeners...)

	_ = evObj.Set("target", et.obj)
	_ = evObj.Set("currentTarget", et.obj)

	for _, l := range snapshot {
		if l.typ != typ {
			continue
		}
		if _, err := l.callback(goja.Undefined(), evObj); err != nil && et.onException != nil {
			et.onException(err)
		}
		if l.once {
			et.state.remove(typ, l.value)
		}
		if toBool(evObj.Get("__stopImmediate")) {
			break
		}
	}

	defaultPrevented := toBool(evObj.Get("defaultPrevented"))
	return !defaultPrevented
}

func toBool(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return false
	}
	b, _ := v.Export().(bool)
	return b
}
