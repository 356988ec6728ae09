package builtin

import (
	"github.com/dop251/goja"
)

// newFFIModule builds the `std:ffi` stub (SPEC_FULL §3.4): ffi.available is
// false and every call throws, but the module name still resolves:
// `require('std:ffi')` succeeds, and only calling load/define/call throws a
// TypeError inside the script. There is no original_source equivalent grounding this one
// (the original links libffi directly); it exists here purely so the
// module surface named in the spec is complete.
func newFFIModule(rt *goja.Runtime) (goja.Value, error) {
	obj := rt.NewObject()
	if err := obj.Set("available", false); err != nil {
		return nil, err
	}
	unsupported := func(call goja.FunctionCall) goja.Value {
		panic(rt.NewTypeError("std:ffi is not available in this runtime"))
	}
	for _, name := range []string{"load", "define", "call"} {
		if err := obj.Set(name, unsupported); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
