package webapi

import (
	"fmt"

	"github.com/dop251/goja"
)

// InstallConsole mirrors the teacher's attachConsole helper
// (internal/services/functions/tee_executor.go): log/info/warn/error all
// format their arguments the same way via fmt.Sprintln, with no ANSI
// colorization (spec §3 supplemented features: "no console colorization" —
// a REPL or redirected-to-file script must see identical output).
func InstallConsole(rt *goja.Runtime, sink func(line string)) error {
	console := rt.NewObject()
	logFn := func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}
		sink(fmt.Sprintln(args...))
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "error", "debug", "trace"} {
		if err := console.Set(name, logFn); err != nil {
			return err
		}
	}
	return rt.Set("console", console)
}
