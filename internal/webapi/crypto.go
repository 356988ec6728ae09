package webapi

import (
	"crypto/rand"
	"strconv"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// InstallCrypto adds a minimal `crypto` global: `randomUUID()` and
// `getRandomValues(typedArray)`. The teacher's script_engine.go stashes an
// equivalent `crypto.randomUUID` as hand-rolled JS templating over
// `Math.random` (not cryptographically random); this replaces it with a
// Go-backed, properly-random implementation, the same shape the teacher's
// services use `google/uuid` for elsewhere.
func InstallCrypto(rt *goja.Runtime) error {
	obj := rt.NewObject()
	if err := obj.Set("randomUUID", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(uuid.NewString())
	}); err != nil {
		return err
	}
	if err := obj.Set("getRandomValues", func(call goja.FunctionCall) goja.Value {
		return fillRandomValues(rt, call)
	}); err != nil {
		return err
	}
	return rt.Set("crypto", obj)
}

// fillRandomValues fills the typed array argument with cryptographically
// random bytes in place and returns it, matching the Web Crypto contract
// (the array is both mutated and returned). goja's typed arrays expose
// numeric indices as regular properties, so indexing by strconv.Itoa(i)
// (the idiom already used by internal/webapi/headers.go) is sufficient
// without reaching for goja's native ArrayBuffer/TypedArray constructors.
func fillRandomValues(rt *goja.Runtime, call goja.FunctionCall) goja.Value {
	if len(call.Arguments) == 0 {
		panic(rt.NewTypeError("crypto.getRandomValues: a typed array is required"))
	}
	arr := call.Arguments[0].ToObject(rt)
	lengthV := arr.Get("length")
	if lengthV == nil || goja.IsUndefined(lengthV) {
		panic(rt.NewTypeError("crypto.getRandomValues: argument is not a typed array"))
	}
	length := int(lengthV.ToInteger())

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(rt.NewGoError(err))
	}
	for i, b := range buf {
		if err := arr.Set(strconv.Itoa(i), int64(b)); err != nil {
			panic(rt.NewGoError(err))
		}
	}
	return arr
}
