// Package hostobject implements C5, the host-object framework (spec §4.5):
// a uniform pattern for exposing a native Go type as a JavaScript class —
// prototype with accessor/data properties, a constructor bound to the
// native opaque, and a finalizer that releases every engine value the
// opaque holds before the opaque itself is freed.
//
// goja has no QuickJS-style class-ID table; it identifies host types by Go
// type via runtime.SetFinalizer on the opaque and ordinary JS prototype
// chains (rt.NewObject + SetPrototype) instead. This package wraps that
// idiom behind two entry points, NewClass and Class.NewInstance — see
// DESIGN.md for the class-ID-table vs. Go-type-identity tradeoff. The C6
// Web-API types (internal/webapi) do not use this package; they are built
// as per-instance closure objects.
package hostobject

import (
	"runtime"

	"github.com/dop251/goja"
)

// Accessor describes a readonly or read-write property backed by Go getter
// and (optionally) setter functions, installed on a type's prototype as an
// accessor descriptor (spec §4.5: "accessor descriptors for readonly/
// read-write properties").
type Accessor struct {
	Name   string
	Get    func(rt *goja.Runtime, this *goja.Object) goja.Value
	Set    func(rt *goja.Runtime, this *goja.Object, v goja.Value) // nil for readonly
}

// Method describes a plain data-property method (spec §4.5: "plain data
// properties for methods").
type Method struct {
	Name string
	Fn   func(rt *goja.Runtime, call goja.FunctionCall, this *goja.Object) goja.Value
}

// Class is a host type's prototype plus its construction/finalization
// hooks, one Class per native Go type.
type Class struct {
	rt        *goja.Runtime
	prototype *goja.Object
}

// NewClass allocates a prototype object carrying accessors and methods, the
// moral equivalent of spec §4.5's "install a class def ... attach a
// prototype object with accessor descriptors ... and plain data properties
// for methods".
func NewClass(rt *goja.Runtime, accessors []Accessor, methods []Method) *Class {
	proto := rt.NewObject()
	for _, acc := range accessors {
		acc := acc
		var getter, setter func(goja.FunctionCall) goja.Value
		getter = func(call goja.FunctionCall) goja.Value {
			this := call.This.ToObject(rt)
			return acc.Get(rt, this)
		}
		if acc.Set != nil {
			setter = func(call goja.FunctionCall) goja.Value {
				this := call.This.ToObject(rt)
				var v goja.Value = goja.Undefined()
				if len(call.Arguments) > 0 {
					v = call.Arguments[0]
				}
				acc.Set(rt, this, v)
				return goja.Undefined()
			}
		}
		if setter != nil {
			_ = proto.DefineAccessorProperty(acc.Name, rt.ToValue(getter), rt.ToValue(setter), goja.FLAG_FALSE, goja.FLAG_TRUE)
		} else {
			_ = proto.DefineAccessorProperty(acc.Name, rt.ToValue(getter), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
		}
	}
	for _, m := range methods {
		m := m
		_ = proto.Set(m.Name, func(call goja.FunctionCall) goja.Value {
			this := call.This.ToObject(rt)
			return m.Fn(rt, call, this)
		})
	}
	return &Class{rt: rt, prototype: proto}
}

// Prototype exposes the built prototype so a constructor function can be
// registered as a global (e.g. `AbortController`) with this as its
// `.prototype`.
func (c *Class) Prototype() *goja.Object { return c.prototype }

// NewInstance allocates a fresh engine object of this class and arranges
// for finalize(opaque) to run when the engine object is collected. opaque
// is held only by that finalizer: it is not stored on obj, and there is no
// lookup from obj back to opaque.
//
// opaque must not hold a strong reference back to obj in a way that would
// keep obj alive solely through opaque (spec §4.5's no-cycle rule).
func (c *Class) NewInstance(opaque any, finalize func(opaque any)) *goja.Object {
	obj := c.rt.NewObject()
	_ = obj.SetPrototype(c.prototype)
	if finalize != nil {
		runtime.SetFinalizer(obj, func(*goja.Object) {
			finalize(opaque)
		})
	}
	return obj
}
