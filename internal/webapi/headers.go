package webapi

import (
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// HeaderEntry is one name/value pair. Storage is a list, not a map, to
// preserve insertion order and allow duplicates produced by append (spec
// §9 "header list as map-or-list"); lookups are O(n), acceptable for the
// header counts an HTTP/1.1 request or response actually carries.
type HeaderEntry struct {
	Name  string // lowercased
	Value string
}

type HeaderList struct {
	entries []HeaderEntry
}

func (h *HeaderList) get(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, e := range h.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

func (h *HeaderList) getAll(name string) []string {
	name = strings.ToLower(name)
	var out []string
	for _, e := range h.entries {
		if e.Name == name {
			out = append(out, e.Value)
		}
	}
	return out
}

func (h *HeaderList) has(name string) bool {
	_, ok := h.get(name)
	return ok
}

// set collapses any existing entries for name down to a single value.
func (h *HeaderList) set(name, value string) {
	name = strings.ToLower(name)
	out := h.entries[:0]
	replaced := false
	for _, e := range h.entries {
		if e.Name == name {
			if !replaced {
				out = append(out, HeaderEntry{Name: name, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, e)
	}
	h.entries = out
	if !replaced {
		h.entries = append(h.entries, HeaderEntry{Name: name, Value: value})
	}
}

// append adds a duplicate rather than overwriting (spec §9).
func (h *HeaderList) append(name, value string) {
	name = strings.ToLower(name)
	h.entries = append(h.entries, HeaderEntry{Name: name, Value: value})
}

func (h *HeaderList) del(name string) {
	name = strings.ToLower(name)
	out := h.entries[:0]
	for _, e := range h.entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	h.entries = out
}

// Get returns the first value stored for name, case-insensitively.
func (h *HeaderList) Get(name string) (string, bool) { return h.get(name) }

// Has reports whether name has at least one value.
func (h *HeaderList) Has(name string) bool { return h.has(name) }

// Set overwrites every existing value for name with value.
func (h *HeaderList) Set(name, value string) { h.set(name, value) }

// Append adds a duplicate entry rather than overwriting.
func (h *HeaderList) Append(name, value string) { h.append(name, value) }

// Entries returns the list's entries in insertion order.
func (h *HeaderList) Entries() []HeaderEntry { return h.entries }

// NewHeaderList builds an empty header list, for callers outside this
// package (internal/httpclient builds default request headers with it).
func NewHeaderList() *HeaderList { return &HeaderList{} }

// NewHeadersConstructor builds the Headers constructor (global surface §6):
// accepts another Headers, a sequence of [name, value] pairs, or a record.
func NewHeadersConstructor(rt *goja.Runtime) func(goja.ConstructorCall) *goja.Object {
	return func(call goja.ConstructorCall) *goja.Object {
		state := &HeaderList{}
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Arguments[0]) && !goja.IsNull(call.Arguments[0]) {
			initHeaders(rt, state, call.Arguments[0])
		}
		installHeaders(rt, call.This, state)
		return nil
	}
}

func initHeaders(rt *goja.Runtime, state *HeaderList, arg goja.Value) {
	obj := arg.ToObject(rt)

	if b, ok := obj.Get("__isHeaders").Export().(bool); ok && b {
		if forEach, ok := goja.AssertFunction(obj.Get("forEach")); ok {
			cb := func(call goja.FunctionCall) goja.Value {
				state.append(argString(call, 1), argString(call, 0))
				return goja.Undefined()
			}
			_, _ = forEach(obj, rt.ToValue(cb))
		}
		return
	}

	if lengthV := obj.Get("length"); lengthV != nil && !goja.IsUndefined(lengthV) {
		length := int(lengthV.ToInteger())
		for i := 0; i < length; i++ {
			pairV := obj.Get(strconv.Itoa(i))
			if pairV == nil || goja.IsUndefined(pairV) {
				continue
			}
			pair := pairV.ToObject(rt)
			if int(pair.Get("length").ToInteger()) != 2 {
				panic(rt.NewTypeError("Headers: each pair must have length 2"))
			}
			state.append(argAsString(rt, pair.Get("0")), argAsString(rt, pair.Get("1")))
		}
		return
	}

	for _, key := range obj.Keys() {
		state.append(key, argAsString(rt, obj.Get(key)))
	}
}

func argAsString(rt *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return ""
	}
	return v.ToString().String()
}

func installHeaders(rt *goja.Runtime, obj *goja.Object, state *HeaderList) {
	_ = obj.Set("__isHeaders", true)

	_ = obj.Set("append", func(call goja.FunctionCall) goja.Value {
		state.append(argString(call, 0), argString(call, 1))
		return goja.Undefined()
	})
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		state.set(argString(call, 0), argString(call, 1))
		return goja.Undefined()
	})
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		if v, ok := state.get(argString(call, 0)); ok {
			return rt.ToValue(v)
		}
		return goja.Null()
	})
	_ = obj.Set("getSetCookie", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(state.getAll("set-cookie"))
	})
	_ = obj.Set("has", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(state.has(argString(call, 0)))
	})
	_ = obj.Set("delete", func(call goja.FunctionCall) goja.Value {
		state.del(argString(call, 0))
		return goja.Undefined()
	})
	_ = obj.Set("forEach", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(rt.NewTypeError("Headers.forEach: callback is not a function"))
		}
		for _, e := range state.entries {
			if _, err := fn(goja.Undefined(), rt.ToValue(e.Value), rt.ToValue(e.Name), obj); err != nil {
				panic(err)
			}
		}
		return goja.Undefined()
	})
	_ = obj.Set("entries", func(call goja.FunctionCall) goja.Value {
		out := rt.NewArray()
		for i, e := range state.entries {
			_ = out.Set(strconv.Itoa(i), rt.ToValue([]interface{}{e.Name, e.Value}))
		}
		if fn, ok := goja.AssertFunction(out.Get("values")); ok {
			if v, err := fn(out); err == nil {
				return v
			}
		}
		return out
	})
	obj.SetSymbol(goja.SymIterator, obj.Get("entries"))
}

// headersFromValue extracts a HeaderList from a Headers instance, a plain
// object, or a nil/undefined value (spec §4.7: init's headers may be a
// Headers instance or a plain object).
func headersFromValue(rt *goja.Runtime, v goja.Value) *HeaderList {
	state := &HeaderList{}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return state
	}
	initHeaders(rt, state, v)
	return state
}
