package builtin

import (
	"github.com/dop251/goja"
)

// newAssertModule builds the `std:assert` exports (spec §3/SPEC_FULL §3.4):
// Node-compatible assert(value, message) plus the handful of comparison
// forms original_source/src/std/assert.c exposes, minus that file's
// colorized terminal output (this runtime's console has none either, per
// internal/webapi/console.go).
func newAssertModule(rt *goja.Runtime) (goja.Value, error) {
	exports := rt.NewObject()

	assertFn := func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(newAssertionError(rt, "No assertion provided"))
		}
		if !call.Arguments[0].ToBoolean() {
			panic(newAssertionError(rt, assertMessage(call, 1, "Assertion failed")))
		}
		return goja.Undefined()
	}

	if err := exports.Set("ok", assertFn); err != nil {
		return nil, err
	}
	if err := exports.Set("equal", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.equal requires at least 2 arguments"))
		}
		if !call.Arguments[0].Equals(call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to be equal (==)")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("notEqual", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.notEqual requires at least 2 arguments"))
		}
		if call.Arguments[0].Equals(call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to be unequal (==)")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("strictEqual", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.strictEqual requires at least 2 arguments"))
		}
		if !call.Arguments[0].StrictEquals(call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to be strictly equal")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("notStrictEqual", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.notStrictEqual requires at least 2 arguments"))
		}
		if call.Arguments[0].StrictEquals(call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to be strictly unequal")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("deepEqual", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.deepEqual requires at least 2 arguments"))
		}
		if !deepEqualJSON(rt, call.Arguments[0], call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to be deeply equal")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("notDeepEqual", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(newAssertionError(rt, "assert.notDeepEqual requires at least 2 arguments"))
		}
		if deepEqualJSON(rt, call.Arguments[0], call.Arguments[1]) {
			panic(newAssertionError(rt, assertMessage(call, 2, "Expected values to not be deeply equal")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("throws", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(newAssertionError(rt, "assert.throws requires a function argument"))
		}
		if _, err := fn(goja.Undefined()); err == nil {
			panic(newAssertionError(rt, assertMessage(call, 1, "Expected function to throw")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}
	if err := exports.Set("doesNotThrow", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(newAssertionError(rt, "assert.doesNotThrow requires a function argument"))
		}
		if _, err := fn(goja.Undefined()); err != nil {
			panic(newAssertionError(rt, assertMessage(call, 1, "Expected function not to throw")))
		}
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}

	// `require('std:assert')` itself is callable, matching Node's `assert`
	// module export shape (assert(value, msg) as well as assert.ok(...)).
	assertCallable := rt.ToValue(assertFn).ToObject(rt)
	for _, key := range exports.Keys() {
		_ = assertCallable.Set(key, exports.Get(key))
	}
	return assertCallable, nil
}

func assertMessage(call goja.FunctionCall, index int, fallback string) string {
	if len(call.Arguments) > index && !goja.IsUndefined(call.Arguments[index]) {
		return call.Arguments[index].String()
	}
	return fallback
}

func newAssertionError(rt *goja.Runtime, message string) *goja.Object {
	errV := rt.NewGoError(assertionError(message))
	_ = errV.Set("name", "AssertionError")
	return errV
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

// deepEqualJSON compares two values structurally by round-tripping through
// the engine's own JSON.stringify, the same pragmatic approach
// internal/webapi/structuredclone.go's round-trip tests rely on for
// verifying deep-copy fidelity.
func deepEqualJSON(rt *goja.Runtime, a, b goja.Value) bool {
	stringify, ok := goja.AssertFunction(rt.GlobalObject().Get("JSON").ToObject(rt).Get("stringify"))
	if !ok {
		return a.StrictEquals(b)
	}
	av, errA := stringify(goja.Undefined(), a)
	bv, errB := stringify(goja.Undefined(), b)
	if errA != nil || errB != nil {
		return false
	}
	return av.String() == bv.String()
}
