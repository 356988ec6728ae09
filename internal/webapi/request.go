package webapi

import (
	"github.com/dop251/goja"
)

// RequestState holds the pieces fetch's RESOLVING→WRITING transition needs
// (spec §4.7): method, target URL, headers, and an optional body.
type RequestState struct {
	Method  string
	URL     string
	Headers *HeaderList
	Body    string
}

// NewRequestConstructor builds the Request constructor (global surface §6).
// fetch accepts either a URL string + init, or a Request instance; both
// paths funnel through here so RequestFrom can read a RequestState back out
// regardless of which the caller passed.
func NewRequestConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		state := &RequestState{Method: "GET", Headers: &HeaderList{}}
		if len(call.Arguments) > 0 {
			applyRequestInput(rt, state, call.Arguments[0])
		}
		if len(call.Arguments) > 1 {
			applyRequestInit(rt, state, call.Arguments[1])
		}
		installRequest(rt, call.This, state)
		return nil
	}
}

func applyRequestInput(rt *goja.Runtime, state *RequestState, v goja.Value) {
	if obj, ok := v.(*goja.Object); ok {
		if isReq, ok := obj.Get("__isRequest").Export().(bool); ok && isReq {
			state.Method = obj.Get("method").String()
			state.URL = obj.Get("url").String()
			state.Headers = headersFromValue(rt, obj.Get("headers"))
			if b := obj.Get("__body"); b != nil && !goja.IsUndefined(b) {
				state.Body = b.String()
			}
			return
		}
	}
	state.URL = v.String()
}

func applyRequestInit(rt *goja.Runtime, state *RequestState, v goja.Value) {
	obj, ok := v.(*goja.Object)
	if !ok || goja.IsUndefined(v) || goja.IsNull(v) {
		return
	}
	if m := obj.Get("method"); m != nil && !goja.IsUndefined(m) {
		state.Method = m.String()
	}
	if h := obj.Get("headers"); h != nil && !goja.IsUndefined(h) {
		state.Headers = headersFromValue(rt, h)
	}
	if b := obj.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
		state.Body = bodyToString(rt, b)
	}
}

// bodyToString coerces a fetch body argument (string, FormData, URLSearchParams,
// or anything else with toString) into the bytes actually written on the wire.
func bodyToString(rt *goja.Runtime, v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if isForm, ok := obj.Get("__isFormData").Export().(bool); ok && isForm {
			if fn, ok := goja.AssertFunction(obj.Get("toQueryString")); ok {
				if r, err := fn(obj); err == nil {
					return r.String()
				}
			}
		}
	}
	return v.String()
}

func installRequest(rt *goja.Runtime, obj *goja.Object, state *RequestState) {
	_ = obj.Set("__isRequest", true)
	_ = obj.Set("method", state.Method)
	_ = obj.Set("url", state.URL)
	_ = obj.Set("__body", state.Body)

	headersObj := rt.NewObject()
	installHeaders(rt, headersObj, state.Headers)
	_ = obj.Set("headers", headersObj)

	_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
		return rt.ToValue(state.Body)
	})
	_ = obj.Set("clone", func(goja.FunctionCall) goja.Value {
		clone := rt.NewObject()
		cloned := *state
		installRequest(rt, clone, &cloned)
		return clone
	})
}

// RequestFrom extracts a RequestState from either a URL string or a
// Request-shaped object, used by fetch's Init step (spec §4.7).
func RequestFrom(rt *goja.Runtime, urlOrRequest goja.Value, init goja.Value) *RequestState {
	state := &RequestState{Method: "GET", Headers: &HeaderList{}}
	applyRequestInput(rt, state, urlOrRequest)
	if init != nil && !goja.IsUndefined(init) {
		applyRequestInit(rt, state, init)
	}
	return state
}
