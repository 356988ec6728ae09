package webapi

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/R3E-Network/jsrt-go/internal/jobpump"
)

func newInstalledRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	rt := goja.New()
	loop := ioloop.New()
	jobs, err := jobpump.New(rt)
	require.NoError(t, err)
	require.NoError(t, Install(rt, loop, jobs, func() float64 { return 0 }, func(string) {}, nil))
	return rt
}

func TestInstallWiresEveryGlobalSurfaceName(t *testing.T) {
	rt := newInstalledRuntime(t)
	names := []string{
		"Event", "EventTarget", "AbortController", "AbortSignal",
		"URL", "URLSearchParams", "TextEncoder", "TextDecoder",
		"structuredClone", "Headers", "Request", "Response", "Blob", "FormData",
		"setTimeout", "clearTimeout", "setInterval", "clearInterval",
		"setImmediate", "clearImmediate", "queueMicrotask",
		"console", "btoa", "atob", "performance", "crypto",
	}
	for _, name := range names {
		v := rt.GlobalObject().Get(name)
		assert.Falsef(t, v == nil || goja.IsUndefined(v), "global %q was not installed", name)
	}
}

func TestEventTargetConstructorIsUsable(t *testing.T) {
	rt := newInstalledRuntime(t)
	v, err := rt.RunString(`
		var et = new EventTarget();
		var seen = null;
		et.addEventListener("ping", function(e) { seen = e.type; });
		et.dispatchEvent(new Event("ping"));
		seen;
	`)
	require.NoError(t, err)
	assert.Equal(t, "ping", v.String())
}

func TestResponseConstructorBuildsUsableResponse(t *testing.T) {
	rt := newInstalledRuntime(t)
	v, err := rt.RunString(`
		var r = new Response("hi", { status: 201, headers: { "x-test": "1" } });
		r.status + ":" + r.headers.get("x-test");
	`)
	require.NoError(t, err)
	assert.Equal(t, "201:1", v.String())
}
