// Command jsrt is the runtime's entry point: the composition root that
// binds C1-C8 together and dispatches the CLI invariants from spec §6
// (run/stdin/repl/build/version/help). Subcommand parsing follows the
// teacher's cmd/slctl style — a bare switch over argv[0], not a CLI
// framework.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dop251/goja"
	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/jsrt-go/internal/builtin"
	"github.com/R3E-Network/jsrt-go/internal/config"
	"github.com/R3E-Network/jsrt-go/internal/httpclient"
	"github.com/R3E-Network/jsrt-go/internal/module"
	"github.com/R3E-Network/jsrt-go/internal/packager"
	"github.com/R3E-Network/jsrt-go/internal/runtimehost"
	"github.com/R3E-Network/jsrt-go/internal/webapi"
	"github.com/R3E-Network/jsrt-go/pkg/logger"
	"github.com/R3E-Network/jsrt-go/pkg/version"
)

func main() {
	if prog, err := loadEmbeddedPayload(); err == nil {
		os.Exit(runProgram(prog, os.Args[1:]))
	}

	if len(os.Args) < 2 {
		if stdinHasData() {
			os.Exit(runSource(readAll(os.Stdin), "<stdin>", nil))
		}
		printUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "-":
		os.Exit(runSource(readAll(os.Stdin), "<stdin>", os.Args[2:]))
	case "repl":
		os.Exit(runREPL())
	case "build":
		os.Exit(runBuild(os.Args[2:]))
	case "version":
		fmt.Println(version.FullVersion())
		os.Exit(0)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		os.Exit(0)
	default:
		os.Exit(runFile(os.Args[1], os.Args[2:]))
	}
}

// loadEmbeddedPayload implements spec §4.8's detect-and-run startup check
// against the currently running executable, before any normal argv
// dispatch happens.
func loadEmbeddedPayload() (*goja.Program, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return packager.DetectAndLoad(self)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "jsrt - a small general-purpose JavaScript runtime")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  jsrt <file> [args...]   run a script")
	fmt.Fprintln(w, "  jsrt -                  read a script from stdin")
	fmt.Fprintln(w, "  jsrt repl               interactive REPL")
	fmt.Fprintln(w, "  jsrt build <file> [out] produce a self-contained executable")
	fmt.Fprintln(w, "                          --cron=<expr> validates a CI smoke-schedule")
	fmt.Fprintln(w, "  jsrt version            print version")
	fmt.Fprintln(w, "  jsrt help               print this message")
}

func stdinHasData() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) == 0
}

func readAll(r io.Reader) []byte {
	data, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: reading input: %v\n", err)
		os.Exit(1)
	}
	return data
}

// newHost builds one fully-wired Host: event loop, job pump, every webapi
// global, fetch, and the require() module subsystem. This is the
// one place C1-C7 are assembled, mirroring spec §2's "control flow on a
// typical run" paragraph.
func newHost(scriptArgs []string, importerDir string) (*runtimehost.Host, *module.System, error) {
	host, err := runtimehost.New()
	if err != nil {
		return nil, nil, err
	}

	host.AddExceptionHandler(func(err error) bool {
		fmt.Fprintf(os.Stderr, "jsrt: uncaught %v\n", err)
		return true
	})

	start := time.Now()
	rt := host.Runtime()
	if err := webapi.Install(rt, host.Loop, host.Jobs(), func() float64 {
		return float64(time.Since(start).Milliseconds())
	}, func(line string) { fmt.Print(line) }, host.ReportException); err != nil {
		return nil, nil, err
	}
	if err := httpclient.Install(rt, host.Loop, version.Version); err != nil {
		return nil, nil, err
	}

	sys := module.New(rt, builtin.Loader(scriptArgs))
	if err := sys.Install(importerDir); err != nil {
		return nil, nil, err
	}

	return host, sys, nil
}

func runFile(path string, scriptArgs []string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}

	dir := filepath.Dir(abs)
	host, sys, err := newHost(scriptArgs, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	defer host.Free()

	ctx, cancel := signalContext()
	defer cancel()

	var result goja.Value
	if module.IsESModuleSyntax(string(source)) {
		loaded, err := sys.LoadESModule(abs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
			return 1
		}
		result = loaded.Namespace
	} else {
		result, err = host.Eval(ctx, abs, string(source))
		if err != nil {
			fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
			return 1
		}
	}

	if _, err := host.Await(ctx, result); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	if err := host.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	return 0
}

func runSource(source []byte, label string, scriptArgs []string) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	host, _, err := newHost(scriptArgs, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	defer host.Free()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := host.Eval(ctx, label, string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	if _, err := host.Await(ctx, result); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	if err := host.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	return 0
}

// runProgram drives a bytecode payload loaded via packager.DetectAndLoad
// (spec §4.8): run the compiled program directly, then the normal drive
// loop, same as a freshly-compiled script would get in runFile.
func runProgram(prog *goja.Program, scriptArgs []string) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	host, _, err := newHost(scriptArgs, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	defer host.Free()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := host.Runtime().RunProgram(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	if _, err := host.Await(ctx, result); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	if err := host.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	return 0
}

// runREPL implements the interactive REPL (spec §4/§6). Line editing is an
// explicit Non-goal (spec §1: "REPL line editing... out of scope"), so this
// is a plain bufio.Scanner read-eval-print loop, one statement per line.
func runREPL() int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	host, _, err := newHost(nil, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: %v\n", err)
		return 1
	}
	defer host.Free()

	log := logger.New(logger.LoggingConfig{Level: "info", Format: "text"})

	historyPath := replHistoryPath()
	history := loadREPLHistory(historyPath)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("jsrt %s - press Ctrl+D to exit\n", version.Version)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		history = append(history, line)

		val, err := host.Eval(ctx, "<repl>", line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		val, err = host.Await(ctx, val)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		if val != nil && !goja.IsUndefined(val) {
			fmt.Println(val.String())
		}
		if err := host.Jobs().DrainJobs(); err != nil {
			log.Warnf("draining jobs: %v", err)
		}
	}
	saveREPLHistory(historyPath, history)
	return 0
}

func replHistoryPath() string {
	if v := strings.TrimSpace(os.Getenv("JSRT_REPL_HISTORY")); v != "" {
		return v
	}
	return config.Load().ReplHistoryPath
}

func loadREPLHistory(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func saveREPLHistory(path string, lines []string) {
	_ = os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}

// runBuild implements `jsrt build <file> [output] [--cron=<expr>]` (spec
// §4.8/§6). --cron is a thin CI-packaging convenience, not part of the
// packager format itself: it validates a standard 5-field cron expression
// and reports when the resulting bundle's next scheduled smoke-build would
// run, so a packaging pipeline can catch a typo'd schedule at build time
// rather than at its first missed run.
func runBuild(args []string) int {
	positional, cronExpr, err := splitBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: build: %v\n", err)
		return 1
	}
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "jsrt: build requires a source file argument")
		return 1
	}
	source := positional[0]
	output := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if len(positional) > 1 {
		output = positional[1]
	}

	if cronExpr != "" {
		schedule, err := cron.ParseStandard(cronExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jsrt: build: invalid --cron schedule %q: %v\n", cronExpr, err)
			return 1
		}
		fmt.Printf("smoke-schedule %q next run: %s\n", cronExpr, schedule.Next(time.Now()).Format(time.RFC3339))
	}

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: locating host executable: %v\n", err)
		return 1
	}

	if err := packager.Build(self, source, output); err != nil {
		fmt.Fprintf(os.Stderr, "jsrt: build: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", output)
	return 0
}

// splitBuildArgs pulls an optional --cron=<expr> flag out of build's
// positional arguments, wherever it appears.
func splitBuildArgs(args []string) (positional []string, cronExpr string, err error) {
	for _, a := range args {
		if strings.HasPrefix(a, "--cron=") {
			if cronExpr != "" {
				return nil, "", fmt.Errorf("--cron specified more than once")
			}
			cronExpr = strings.TrimPrefix(a, "--cron=")
			continue
		}
		positional = append(positional, a)
	}
	return positional, cronExpr, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
