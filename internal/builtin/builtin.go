// Package builtin synthesizes the native std: modules (spec §3/SPEC_FULL
// §3.4: std:assert, std:process, std:ffi). It is supplied to
// internal/module as a module.BuiltinLoader function rather than importing
// that package directly, since assert.throws/doesNotThrow call back into
// user functions that may themselves require() other std: modules.
package builtin

import (
	"fmt"

	"github.com/dop251/goja"
)

// Loader returns a function matching module.BuiltinLoader's signature,
// closed over the process argv the host was started with.
func Loader(scriptArgs []string) func(rt *goja.Runtime, name string) (goja.Value, error) {
	return func(rt *goja.Runtime, name string) (goja.Value, error) {
		// Resolve (internal/module/resolver.go) strips the "std:" prefix
		// before handing a name to BuiltinLoader, so these cases match the
		// bare name Require actually passes, not the require() specifier.
		switch name {
		case "assert":
			return newAssertModule(rt)
		case "process":
			return newProcessModule(rt, scriptArgs)
		case "ffi":
			return newFFIModule(rt)
		default:
			return nil, fmt.Errorf("unknown builtin module %q", name)
		}
	}
}
