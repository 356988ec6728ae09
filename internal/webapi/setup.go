package webapi

import (
	"github.com/dop251/goja"

	"github.com/R3E-Network/jsrt-go/internal/ioloop"
	"github.com/R3E-Network/jsrt-go/internal/jobpump"
)

// Install wires every Web-API global named in spec §6 except `fetch`
// (internal/httpclient installs that separately, since it needs
// internal/webapi's types and importing it back here would cycle).
// Grounded on the teacher's single `attachConsole(vm)`-style setup
// functions, generalized to one call per global. onException (may be nil)
// is threaded into every global whose callbacks run outside a JS-visible
// error path (timers, EventTarget dispatch, AbortSignal) so a throwing
// callback reaches Host.ReportException instead of being swallowed.
func Install(rt *goja.Runtime, loop *ioloop.Loop, jobs *jobpump.Pump, startedAt func() float64, consoleSink func(line string), onException func(error)) error {
	if err := rt.Set("Event", NewEventConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("EventTarget", func(call goja.ConstructorCall) *goja.Object {
		obj := NewEventTarget(rt, onException).Object()
		for _, key := range obj.Keys() {
			_ = call.This.Set(key, obj.Get(key))
		}
		return nil
	}); err != nil {
		return err
	}
	if err := rt.Set("AbortController", NewAbortControllerConstructor(rt, onException)); err != nil {
		return err
	}
	if err := rt.Set("AbortSignal", NewAbortSignalConstructor(rt, loop, onException)); err != nil {
		return err
	}
	if err := rt.Set("URL", NewURLConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("URLSearchParams", NewURLSearchParamsConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("TextEncoder", NewTextEncoderConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("TextDecoder", NewTextDecoderConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("structuredClone", func(call goja.FunctionCall) goja.Value {
		v, err := StructuredClone(rt, call.Argument(0))
		if err != nil {
			panic(rt.NewTypeError(err.Error()))
		}
		return v
	}); err != nil {
		return err
	}
	if err := rt.Set("Headers", NewHeadersConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("Request", NewRequestConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("Response", NewResponseConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("Blob", NewBlobConstructor(rt)); err != nil {
		return err
	}
	if err := rt.Set("FormData", NewFormDataConstructor(rt)); err != nil {
		return err
	}
	if err := InstallTimers(rt, loop, jobs, onException); err != nil {
		return err
	}
	if err := InstallConsole(rt, consoleSink); err != nil {
		return err
	}
	if err := InstallEncodingHelpers(rt); err != nil {
		return err
	}
	if err := InstallPerformance(rt, startedAt); err != nil {
		return err
	}
	if err := InstallCrypto(rt); err != nil {
		return err
	}
	return nil
}
