package webapi

import (
	"strconv"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/rterrors"
)

// StructuredClone implements spec §4.6's structuredClone: a recursive deep
// copy with cycle handling via an identity map populated before descending
// into an aggregate, supporting primitives, plain objects, arrays, Date,
// and RegExp. Any other object type fails with TypeError.
func StructuredClone(rt *goja.Runtime, v goja.Value) (goja.Value, error) {
	seen := make(map[*goja.Object]*goja.Object)
	return cloneValue(rt, v, seen)
}

func cloneValue(rt *goja.Runtime, v goja.Value, seen map[*goja.Object]*goja.Object) (goja.Value, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return v, nil
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		// Primitive: passthrough via dup (numbers/strings/booleans are
		// already value types on the Go side).
		return v, nil
	}

	if clone, ok := seen[obj]; ok {
		return clone, nil
	}

	className := obj.ClassName()
	switch className {
	case "Date":
		ms := obj.Get("getTime")
		if fn, ok := goja.AssertFunction(ms); ok {
			result, err := fn(obj)
			if err != nil {
				return nil, err
			}
			dateCtor := rt.Get("Date")
			newDate, err := rt.New(dateCtor, result)
			if err != nil {
				return nil, err
			}
			return newDate, nil
		}
	case "RegExp":
		source := obj.Get("source")
		flags := obj.Get("flags")
		regexpCtor := rt.Get("RegExp")
		newRe, err := rt.New(regexpCtor, source, flags)
		if err != nil {
			return nil, err
		}
		return newRe, nil
	case "Array":
		clone := rt.NewArray()
		seen[obj] = clone
		length := obj.Get("length").ToInteger()
		for i := int64(0); i < length; i++ {
			key := intKey(i)
			elemClone, err := cloneValue(rt, obj.Get(key), seen)
			if err != nil {
				return nil, err
			}
			_ = clone.Set(key, elemClone)
		}
		return clone, nil
	case "Object":
		clone := rt.NewObject()
		seen[obj] = clone
		for _, key := range obj.Keys() {
			valClone, err := cloneValue(rt, obj.Get(key), seen)
			if err != nil {
				return nil, err
			}
			_ = clone.Set(key, valClone)
		}
		return clone, nil
	}

	return nil, rterrors.Type("structuredClone: unsupported value of type %s", className)
}

func intKey(i int64) string {
	return strconv.FormatInt(i, 10)
}
