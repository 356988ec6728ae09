package webapi

import (
	"github.com/dop251/goja"
)

// ResponseData is what the C7 state machine hands back after PARSING
// completes (spec §4.7): status, reason text, headers, and the raw body
// bytes as a string (the core spec only requires text()/json() access).
type ResponseData struct {
	Status     int
	StatusText string
	Headers    *HeaderList
	Body       string
	URL        string
}

// NewResponse builds a Response object (spec §4.6/§4.7 global surface) from
// ResponseData. fetch resolves its promise with the object this returns.
func NewResponse(rt *goja.Runtime, data ResponseData) *goja.Object {
	obj := rt.NewObject()
	_ = obj.Set("__isResponse", true)
	_ = obj.Set("status", data.Status)
	_ = obj.Set("statusText", data.StatusText)
	_ = obj.Set("ok", data.Status >= 200 && data.Status < 300)
	_ = obj.Set("url", data.URL)
	_ = obj.Set("redirected", false)
	_ = obj.Set("type", "basic")

	headersObj := rt.NewObject()
	if data.Headers == nil {
		data.Headers = &HeaderList{}
	}
	installHeaders(rt, headersObj, data.Headers)
	_ = obj.Set("headers", headersObj)

	body := data.Body
	_ = obj.Set("bodyUsed", false)
	_ = obj.Set("text", func(call goja.FunctionCall) goja.Value {
		d, err := NewDeferred(rt)
		if err != nil {
			panic(err)
		}
		d.Resolve(rt.ToValue(body))
		return d.Promise
	})
	_ = obj.Set("json", func(call goja.FunctionCall) goja.Value {
		d, err := NewDeferred(rt)
		if err != nil {
			panic(err)
		}
		parseJSON, ok := goja.AssertFunction(rt.GlobalObject().Get("JSON").ToObject(rt).Get("parse"))
		if !ok {
			d.Reject(rt.ToValue(rt.NewTypeError("JSON.parse unavailable")))
			return d.Promise
		}
		v, err := parseJSON(goja.Undefined(), rt.ToValue(body))
		if err != nil {
			d.Reject(rt.ToValue(err.Error()))
			return d.Promise
		}
		d.Resolve(v)
		return d.Promise
	})
	_ = obj.Set("arrayBuffer", func(call goja.FunctionCall) goja.Value {
		d, err := NewDeferred(rt)
		if err != nil {
			panic(err)
		}
		d.Resolve(rt.ToValue(rt.NewArrayBuffer([]byte(body))))
		return d.Promise
	})
	_ = obj.Set("clone", func(call goja.FunctionCall) goja.Value {
		return NewResponse(rt, data)
	})
	return obj
}

// NewResponseConstructor builds the script-visible `new Response(body, init)`
// constructor (spec §6 global surface), for scripts that synthesize a
// Response directly rather than receiving one from fetch.
func NewResponseConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		data := ResponseData{Status: 200, StatusText: "OK", Headers: NewHeaderList()}
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) && !goja.IsNull(call.Arguments[0]) {
			data.Body = bodyToString(rt, call.Arguments[0])
		}
		if len(call.Arguments) > 1 {
			if init, ok := call.Arguments[1].(*goja.Object); ok {
				if s := init.Get("status"); s != nil && !goja.IsUndefined(s) {
					data.Status = int(s.ToInteger())
				}
				if st := init.Get("statusText"); st != nil && !goja.IsUndefined(st) {
					data.StatusText = st.String()
				}
				if h := init.Get("headers"); h != nil && !goja.IsUndefined(h) {
					data.Headers = headersFromValue(rt, h)
				}
			}
		}
		built := NewResponse(rt, data)
		for _, key := range built.Keys() {
			_ = call.This.Set(key, built.Get(key))
		}
		return nil
	}
}
