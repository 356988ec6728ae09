package webapi

import (
	"strings"

	"github.com/dop251/goja"
)

// Blob and FormData are supplemented from the global surface (spec §6) and
// from the `fetch` body shapes listed in original_source/src/std/fetch.c;
// the core spec only requires fetch bodies to round-trip through
// response.text()/response.json(), so these stay intentionally minimal:
// byte storage plus the handful of accessors scripts actually touch.

// NewBlobConstructor builds the Blob constructor: an immutable byte buffer
// with a `type` tag, constructed from an array of strings/ArrayBuffers.
func NewBlobConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		var buf []byte
		if len(call.Arguments) > 0 {
			parts, _ := exportIterable(rt, call.Arguments[0])
			for _, p := range parts {
				if s, isStr := p.Export().(string); isStr {
					buf = append(buf, s...)
					continue
				}
				buf = append(buf, bytesFromValue(p)...)
			}
		}
		blobType := ""
		if len(call.Arguments) > 1 {
			if opts, ok := call.Arguments[1].(*goja.Object); ok {
				if t := opts.Get("type"); t != nil && !goja.IsUndefined(t) {
					blobType = t.String()
				}
			}
		}
		obj := call.This
		_ = obj.Set("__bytes", rt.NewArrayBuffer(buf))
		_ = obj.Set("type", blobType)
		_ = obj.Set("size", len(buf))
		_ = obj.Set("text", func(goja.FunctionCall) goja.Value {
			return rt.ToValue(string(buf))
		})
		_ = obj.Set("arrayBuffer", func(goja.FunctionCall) goja.Value {
			return rt.ToValue(rt.NewArrayBuffer(buf))
		})
		return nil
	}
}

// formDataEntry mirrors HeaderEntry's list-not-map shape: FormData permits
// repeated keys (spec §9's "header list as map-or-list" rationale applies
// identically here).
type formDataEntry struct {
	name  string
	value string
}

// NewFormDataConstructor builds a minimal multipart-less FormData: scripts
// use it as an ordered string multimap, which is all URLSearchParams'
// constructor (spec §4.6) and fetch bodies need from it.
func NewFormDataConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		var entries []formDataEntry
		obj := call.This
		_ = obj.Set("__isFormData", true)
		_ = obj.Set("append", func(c goja.FunctionCall) goja.Value {
			entries = append(entries, formDataEntry{argString(c, 0), argString(c, 1)})
			return goja.Undefined()
		})
		_ = obj.Set("set", func(c goja.FunctionCall) goja.Value {
			name := argString(c, 0)
			out := entries[:0]
			for _, e := range entries {
				if e.name != name {
					out = append(out, e)
				}
			}
			entries = append(out, formDataEntry{name, argString(c, 1)})
			return goja.Undefined()
		})
		_ = obj.Set("get", func(c goja.FunctionCall) goja.Value {
			name := argString(c, 0)
			for _, e := range entries {
				if e.name == name {
					return rt.ToValue(e.value)
				}
			}
			return goja.Null()
		})
		_ = obj.Set("has", func(c goja.FunctionCall) goja.Value {
			name := argString(c, 0)
			for _, e := range entries {
				if e.name == name {
					return rt.ToValue(true)
				}
			}
			return rt.ToValue(false)
		})
		_ = obj.Set("delete", func(c goja.FunctionCall) goja.Value {
			name := argString(c, 0)
			out := entries[:0]
			for _, e := range entries {
				if e.name != name {
					out = append(out, e)
				}
			}
			entries = out
			return goja.Undefined()
		})
		_ = obj.Set("toQueryString", func(goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(entries))
			for _, e := range entries {
				parts = append(parts, encodeQueryComponent(e.name)+"="+encodeQueryComponent(e.value))
			}
			return rt.ToValue(strings.Join(parts, "&"))
		})
		return nil
	}
}
