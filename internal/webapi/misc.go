package webapi

import (
	"encoding/base64"

	"github.com/dop251/goja"
)

// InstallEncodingHelpers adds btoa/atob, the extra builtins supplemented
// from original_source/ (spec §3): classic-script code frequently needs
// base64 framing even though this runtime has no DOM.
func InstallEncodingHelpers(rt *goja.Runtime) error {
	if err := rt.Set("btoa", func(call goja.FunctionCall) goja.Value {
		s := argString(call, 0)
		return rt.ToValue(base64.StdEncoding.EncodeToString([]byte(s)))
	}); err != nil {
		return err
	}
	return rt.Set("atob", func(call goja.FunctionCall) goja.Value {
		s := argString(call, 0)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			panic(rt.NewTypeError("atob: invalid base64 string"))
		}
		return rt.ToValue(string(decoded))
	})
}

// InstallPerformance adds a minimal `performance.now()` (milliseconds
// since this call path was installed), used by scripts for coarse timing;
// not a precision clock.
func InstallPerformance(rt *goja.Runtime, startedAt func() float64) error {
	perf := rt.NewObject()
	if err := perf.Set("now", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(startedAt())
	}); err != nil {
		return err
	}
	return rt.Set("performance", perf)
}
