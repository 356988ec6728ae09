package builtin

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/pkg/version"
)

// processStart is captured once per process, mirroring
// original_source/src/std/process.c's lazily-initialized
// g_process_start_time used by process.uptime().
var processStart = time.Now()

// newProcessModule builds `std:process` (spec §3/SPEC_FULL §3.4), grounded
// on original_source/src/std/process.c's getter set. process.argv is
// "jsrt" followed by scriptArgs, not os.Args; there is no Go equivalent of
// QuickJS's manual argv plumbing to replicate.
func newProcessModule(rt *goja.Runtime, scriptArgs []string) (goja.Value, error) {
	obj := rt.NewObject()

	argv := rt.NewArray()
	_ = argv.Set("0", "jsrt")
	for i, a := range scriptArgs {
		_ = argv.Set(strconv.Itoa(i+1), a)
	}
	if err := obj.Set("argv", argv); err != nil {
		return nil, err
	}

	argv0 := "jsrt"
	if len(os.Args) > 0 {
		argv0 = os.Args[0]
	}
	if err := obj.Set("argv0", argv0); err != nil {
		return nil, err
	}

	if err := obj.Set("pid", os.Getpid()); err != nil {
		return nil, err
	}
	if err := obj.Set("ppid", os.Getppid()); err != nil {
		return nil, err
	}
	if err := obj.Set("platform", goPlatform()); err != nil {
		return nil, err
	}
	if err := obj.Set("arch", goArch()); err != nil {
		return nil, err
	}
	if err := obj.Set("version", "v"+version.Version); err != nil {
		return nil, err
	}

	versions := rt.NewObject()
	_ = versions.Set("jsrt", version.Version)
	_ = versions.Set("go", runtime.Version())
	if err := obj.Set("versions", versions); err != nil {
		return nil, err
	}

	env := rt.NewObject()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				_ = env.Set(kv[:i], kv[i+1:])
				break
			}
		}
	}
	if err := obj.Set("env", env); err != nil {
		return nil, err
	}

	if err := obj.Set("uptime", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(time.Since(processStart).Seconds())
	}); err != nil {
		return nil, err
	}

	if err := obj.Set("exit", func(call goja.FunctionCall) goja.Value {
		code := 0
		if len(call.Arguments) > 0 {
			code = int(call.Arguments[0].ToInteger())
		}
		os.Exit(code)
		return goja.Undefined()
	}); err != nil {
		return nil, err
	}

	return obj, nil
}

// goPlatform maps runtime.GOOS onto Node's process.platform vocabulary,
// which original_source/src/std/process.c produces via #ifdef at compile
// time; Go has the equivalent information at runtime in runtime.GOOS.
func goPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "darwin"
	case "linux":
		return "linux"
	case "windows":
		return "win32"
	case "freebsd":
		return "freebsd"
	case "openbsd":
		return "openbsd"
	case "netbsd":
		return "netbsd"
	default:
		return "unknown"
	}
}

func goArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "x32"
	case "arm64":
		return "arm64"
	case "arm":
		return "arm"
	default:
		return "unknown"
	}
}

